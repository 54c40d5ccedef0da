package mcpserver

import (
	"context"
	"sync/atomic"

	"github.com/mark3labs/mcp-go/server"

	"gridkit/internal/service"
)

// NotificationMethod is the MCP notification carrying service events.
const NotificationMethod = "notifications/gridkit/event"

// Notifier is a service.EventEmitter that forwards events to every
// connected MCP client. Events emitted before Attach are dropped.
type Notifier struct {
	srv atomic.Pointer[server.MCPServer]
}

// NewNotifier creates a detached notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Attach starts forwarding to s.
func (n *Notifier) Attach(s *Server) {
	n.srv.Store(s.mcp)
}

func (n *Notifier) Emit(_ context.Context, event string, data any) {
	srv := n.srv.Load()
	if srv == nil {
		return
	}
	srv.SendNotificationToAllClients(NotificationMethod, map[string]any{
		"event": event,
		"data":  data,
	})
}

var _ service.EventEmitter = (*Notifier)(nil)
