package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"gridkit/internal/dbclient"
	"gridkit/internal/domain"
	"gridkit/internal/logger"
	"gridkit/internal/secret"
)

// ─────────────────────────────────────────────────────────────
// Connection Service: external databases that feed grid tables
// ─────────────────────────────────────────────────────────────

// ConnectionInput is the DTO for creating or updating connections.
// Password goes to the secret store, never to SQLite.
type ConnectionInput struct {
	Name      string `json:"name"`
	Driver    string `json:"driver"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Database  string `json:"database"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	SSLMode   string `json:"sslMode"`
	ExtraJSON string `json:"extraJson"`
}

// ConnectionService manages connection records and keeps a pool of live
// connectors for testing and introspection.
type ConnectionService struct {
	store   domain.DatabaseConnectionStore
	secrets secret.SecretStore
	log     logger.ILogger

	mu               sync.Mutex
	activeConnectors map[string]*connEntry
}

type connEntry struct {
	connector dbclient.Connector
	createdAt time.Time
}

// NewConnectionService creates a ConnectionService.
func NewConnectionService(store domain.DatabaseConnectionStore, secrets secret.SecretStore, log logger.ILogger) *ConnectionService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ConnectionService{
		store:            store,
		secrets:          secrets,
		log:              log,
		activeConnectors: make(map[string]*connEntry),
	}
}

// ── Connection CRUD ────────────────────────────────────────

func (s *ConnectionService) ListConnections() ([]domain.DatabaseConnection, error) {
	return s.store.ListConnections()
}

func (s *ConnectionService) GetConnection(id string) (*domain.DatabaseConnection, error) {
	return s.store.GetConnection(id)
}

func (s *ConnectionService) CreateConnection(input ConnectionInput) (*domain.DatabaseConnection, error) {
	conn := &domain.DatabaseConnection{ID: uuid.NewString()}
	applyConnectionInput(conn, input)
	if err := validate.Struct(conn); err != nil {
		return nil, fmt.Errorf("invalid connection: %w", err)
	}
	if err := s.store.CreateConnection(conn); err != nil {
		return nil, fmt.Errorf("create connection: %w", err)
	}
	s.storePassword(conn.ID, input.Password)
	s.log.Info("connection", "connection created", map[string]any{"id": conn.ID, "driver": conn.Driver})
	return conn, nil
}

func (s *ConnectionService) UpdateConnection(id string, input ConnectionInput) error {
	conn, err := s.store.GetConnection(id)
	if err != nil {
		return err
	}
	applyConnectionInput(conn, input)
	if err := validate.Struct(conn); err != nil {
		return fmt.Errorf("invalid connection: %w", err)
	}
	if err := s.store.UpdateConnection(conn); err != nil {
		return err
	}
	s.storePassword(id, input.Password)
	// next use reconnects with the new settings
	s.drop(id)
	return nil
}

func (s *ConnectionService) DeleteConnection(id string) error {
	s.drop(id)
	if s.secrets != nil {
		_ = s.secrets.Delete(id)
	}
	return s.store.DeleteConnection(id)
}

func applyConnectionInput(conn *domain.DatabaseConnection, input ConnectionInput) {
	conn.Name = input.Name
	conn.Driver = domain.DatabaseDriver(input.Driver)
	conn.Host = input.Host
	conn.Port = input.Port
	conn.Database = input.Database
	conn.Username = input.Username
	conn.SSLMode = input.SSLMode
	conn.ExtraJSON = input.ExtraJSON
}

func (s *ConnectionService) storePassword(id, password string) {
	if password == "" || s.secrets == nil {
		return
	}
	if err := s.secrets.Set(id, []byte(password)); err != nil {
		s.log.Warn("connection", "store password failed", map[string]any{"id": id, "error": err.Error()})
	}
}

// Password returns the stored password for a connection, or "".
func (s *ConnectionService) Password(id string) string {
	if s.secrets == nil {
		return ""
	}
	v, err := s.secrets.Get(id)
	if err != nil {
		return ""
	}
	return string(v)
}

// ── Test + Introspect ──────────────────────────────────────

func (s *ConnectionService) TestConnection(ctx context.Context, id string) error {
	connector, err := s.getOrCreate(id)
	if err != nil {
		return err
	}
	return connector.TestConnection(ctx)
}

func (s *ConnectionService) Introspect(ctx context.Context, id string) (*dbclient.SchemaInfo, error) {
	connector, err := s.getOrCreate(id)
	if err != nil {
		return nil, err
	}
	return connector.Introspect(ctx)
}

// ── Connector pool ─────────────────────────────────────────

func (s *ConnectionService) getOrCreate(id string) (dbclient.Connector, error) {
	s.mu.Lock()
	if e, ok := s.activeConnectors[id]; ok {
		s.mu.Unlock()
		return e.connector, nil
	}
	s.mu.Unlock()

	conn, err := s.store.GetConnection(id)
	if err != nil {
		return nil, err
	}
	connector, err := dbclient.NewConnector(conn, s.Password(id), s.log)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", conn.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.activeConnectors[id]; ok {
		// lost the race; keep the first one
		_ = connector.Close()
		return e.connector, nil
	}
	s.activeConnectors[id] = &connEntry{connector: connector, createdAt: time.Now()}
	return connector, nil
}

func (s *ConnectionService) drop(id string) {
	s.mu.Lock()
	e, ok := s.activeConnectors[id]
	delete(s.activeConnectors, id)
	s.mu.Unlock()
	if ok {
		_ = e.connector.Close()
		s.log.Debug("connection", "connector closed", map[string]any{
			"id": id, "age": time.Since(e.createdAt).String(),
		})
	}
}

// Close closes every pooled connector.
func (s *ConnectionService) Close() {
	s.mu.Lock()
	entries := s.activeConnectors
	s.activeConnectors = make(map[string]*connEntry)
	s.mu.Unlock()
	for _, e := range entries {
		_ = e.connector.Close()
	}
}
