package dbclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"gridkit/internal/domain"
	"gridkit/internal/logger"
)

// mongoConnector implements Connector for MongoDB.
type mongoConnector struct {
	client *mongo.Client
	dbName string
	log    logger.ILogger
}

func newMongoConnector(conn *domain.DatabaseConnection, password string, log logger.ILogger) (*mongoConnector, error) {
	uri := buildMongoURI(conn, password)
	dbName := conn.Database
	if dbName == "" {
		dbName = mongoDatabaseFromURI(uri)
	}

	logURI := uri
	if password != "" {
		logURI = strings.ReplaceAll(logURI, password, "***")
	}
	log.Info("mongo", "connecting", map[string]any{"uri": logURI, "database": dbName})

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		log.Error("mongo", "connect failed", map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return &mongoConnector{client: client, dbName: dbName, log: log}, nil
}

// buildMongoURI accepts either a full connection string in Host (Atlas style,
// with <password> placeholders) or a plain host name plus port.
func buildMongoURI(conn *domain.DatabaseConnection, password string) string {
	if strings.HasPrefix(conn.Host, "mongodb+srv://") || strings.HasPrefix(conn.Host, "mongodb://") {
		uri := conn.Host
		if password != "" {
			uri = strings.ReplaceAll(uri, "<password>", password)
			uri = strings.ReplaceAll(uri, "<db_password>", password)
		}
		if conn.Database != "" && !strings.Contains(uri, "/"+conn.Database) {
			if idx := strings.Index(uri, "?"); idx != -1 {
				uri = strings.TrimRight(uri[:idx], "/") + "/" + conn.Database + uri[idx:]
			} else {
				uri = strings.TrimRight(uri, "/") + "/" + conn.Database
			}
		}
		return uri
	}

	port := conn.Port
	if port == 0 {
		port = 27017
	}
	uri := fmt.Sprintf("mongodb://%s:%d", conn.Host, port)
	if conn.Username != "" {
		uri = fmt.Sprintf("mongodb://%s:%s@%s:%d", conn.Username, password, conn.Host, port)
	}

	// extraJSON carries authSource, replicaSet, ...
	var extras map[string]string
	if conn.ExtraJSON != "" && json.Unmarshal([]byte(conn.ExtraJSON), &extras) == nil && len(extras) > 0 {
		keys := make([]string, 0, len(extras))
		for k := range extras {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		params := make([]string, len(keys))
		for i, k := range keys {
			params[i] = k + "=" + extras[k]
		}
		uri += "/?" + strings.Join(params, "&")
	}
	return uri
}

// mongoDatabaseFromURI extracts the path segment of user:pass@host/DB?params.
func mongoDatabaseFromURI(uri string) string {
	rest := uri
	for _, prefix := range []string{"mongodb+srv://", "mongodb://"} {
		if strings.HasPrefix(rest, prefix) {
			rest = rest[len(prefix):]
			break
		}
	}
	if at := strings.LastIndex(rest, "@"); at != -1 {
		rest = rest[at+1:]
	}
	slash := strings.Index(rest, "/")
	if slash == -1 {
		return "test"
	}
	path := rest[slash+1:]
	if q := strings.Index(path, "?"); q != -1 {
		path = path[:q]
	}
	if path == "" {
		return "test"
	}
	return path
}

func (m *mongoConnector) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

func (m *mongoConnector) FetchRows(ctx context.Context, collection string, limit int) (*RowSet, error) {
	if strings.TrimSpace(collection) == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit) + 1)
	}
	cursor, err := m.client.Database(m.dbName).Collection(collection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	set := &RowSet{}
	seen := map[string]bool{}
	for cursor.Next(ctx) {
		if limit > 0 && len(set.Records) == limit {
			set.Truncated = true
			break
		}
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		rec := make(map[string]any, len(doc))
		for _, elem := range doc {
			if !seen[elem.Key] {
				seen[elem.Key] = true
				set.Columns = append(set.Columns, elem.Key)
			}
			rec[elem.Key] = normalizeBSON(elem.Value)
		}
		set.Records = append(set.Records, rec)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor: %w", err)
	}

	m.log.Debug("mongo", "fetched documents", map[string]any{
		"collection": collection, "count": len(set.Records), "truncated": set.Truncated,
	})
	return set, nil
}

// normalizeBSON converts driver types into plain Go values: ObjectIDs become
// hex strings, datetimes RFC 3339 strings, nested documents maps.
func normalizeBSON(v any) any {
	switch val := v.(type) {
	case bson.ObjectID:
		return val.Hex()
	case bson.DateTime:
		return val.Time().UTC().Format(time.RFC3339)
	case bson.Decimal128:
		return val.String()
	case bson.D:
		out := make(map[string]any, len(val))
		for _, elem := range val {
			out[elem.Key] = normalizeBSON(elem.Value)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = normalizeBSON(e)
		}
		return out
	case bson.A:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalizeBSON(e)
		}
		return out
	case bson.Binary:
		return fmt.Sprintf("%x", val.Data)
	case bson.Null, bson.Undefined:
		return nil
	default:
		return val
	}
}

func (m *mongoConnector) Introspect(ctx context.Context) (*SchemaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	db := m.client.Database(m.dbName)
	collections, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	sort.Strings(collections)

	schema := &SchemaInfo{}
	for _, name := range collections {
		// One sampled document stands in for the collection's shape
		var doc bson.D
		err := db.Collection(name).FindOne(ctx, bson.D{}).Decode(&doc)
		if err != nil {
			schema.Tables = append(schema.Tables, TableInfo{Name: name})
			continue
		}
		cols := make([]ColumnInfo, len(doc))
		for i, elem := range doc {
			cols[i] = ColumnInfo{Name: elem.Key, Type: bsonTypeName(elem.Value)}
		}
		schema.Tables = append(schema.Tables, TableInfo{Name: name, Columns: cols})
	}
	return schema, nil
}

func bsonTypeName(v any) string {
	switch v.(type) {
	case bson.ObjectID:
		return "objectId"
	case bson.DateTime:
		return "date"
	case bson.D, bson.M:
		return "object"
	case bson.A:
		return "array"
	case string:
		return "string"
	case bool:
		return "bool"
	case int32, int64, float64, bson.Decimal128:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func (m *mongoConnector) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
