package dbclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"tabledb/internal/domain"
)

type mongoConnector struct {
	client *mongo.Client
	dbName string
}

// mongoQuery is what a database import against MongoDB carries as its query:
// a find (filter, projection, sort) or an aggregate pipeline, written as
// relaxed Extended JSON so {"$oid": ...} and {"$date": ...} work.
type mongoQuery struct {
	Collection string   `bson:"collection"`
	Filter     bson.D   `bson:"filter,omitempty"`
	Projection bson.D   `bson:"projection,omitempty"`
	Sort       bson.D   `bson:"sort,omitempty"`
	Pipeline   []bson.D `bson:"pipeline,omitempty"`
}

func parseMongoQuery(query string) (*mongoQuery, error) {
	var q mongoQuery
	if err := bson.UnmarshalExtJSON([]byte(query), false, &q); err != nil {
		return nil, fmt.Errorf("invalid query document: %w", err)
	}
	if q.Collection == "" {
		return nil, errors.New(`query must name a "collection"`)
	}
	return &q, nil
}

func newMongoConnector(conn *domain.ExternalConnection, password string) (*mongoConnector, error) {
	uri := buildMongoURI(conn, password)
	dbName := conn.Database
	if dbName == "" {
		dbName = "test"
	}
	log.Printf("[MONGO] connecting to %s (database %s)", redactURI(uri), dbName)

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return &mongoConnector{client: client, dbName: dbName}, nil
}

// buildMongoURI takes Host either as a complete mongodb:// or
// mongodb+srv:// URI, where <password> and <db_password> are replaced, or
// as a bare host name combined with the other connection fields.
func buildMongoURI(conn *domain.ExternalConnection, password string) string {
	if strings.HasPrefix(conn.Host, "mongodb://") || strings.HasPrefix(conn.Host, "mongodb+srv://") {
		escaped := strings.TrimPrefix(url.UserPassword("u", password).String(), "u:")
		return strings.NewReplacer("<password>", escaped, "<db_password>", escaped).Replace(conn.Host)
	}

	port := conn.Port
	if port == 0 {
		port = 27017
	}
	u := url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(conn.Host, strconv.Itoa(port)),
		Path:   "/",
	}
	if conn.Username != "" {
		u.User = url.UserPassword(conn.Username, password)
	}
	if len(conn.Options) > 0 {
		q := url.Values{}
		for k, v := range conn.Options {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func redactURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "<unparseable uri>"
	}
	return u.Redacted()
}

func (m *mongoConnector) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

func (m *mongoConnector) Query(ctx context.Context, query string, limit int) (*QueryPage, error) {
	q, err := parseMongoQuery(query)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	coll := m.client.Database(m.dbName).Collection(q.Collection)
	var cursor *mongo.Cursor
	if q.Pipeline != nil {
		cursor, err = coll.Aggregate(ctx, q.Pipeline)
	} else {
		// One extra document tells us the page was cut short.
		opts := options.Find().SetLimit(int64(limit) + 1)
		if q.Projection != nil {
			opts.SetProjection(q.Projection)
		}
		if q.Sort != nil {
			opts.SetSort(q.Sort)
		}
		cursor, err = coll.Find(ctx, lo.Ternary(q.Filter == nil, bson.D{}, q.Filter), opts)
	}
	if err != nil {
		return nil, fmt.Errorf("mongo %s: %w", q.Collection, err)
	}
	defer cursor.Close(ctx)

	var docs []bson.D
	truncated := false
	for cursor.Next(ctx) {
		if len(docs) >= limit {
			truncated = true
			break
		}
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode document %d: %w", len(docs)+1, err)
		}
		docs = append(docs, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor: %w", err)
	}

	page := docsToPage(docs)
	page.Truncated = truncated
	return page, nil
}

// docsToPage turns documents into a table: the union of their keys as
// columns, _id first and the rest by name.
func docsToPage(docs []bson.D) *QueryPage {
	keys := lo.Uniq(lo.FlatMap(docs, func(doc bson.D, _ int) []string {
		return lo.Map(doc, func(e bson.E, _ int) string { return e.Key })
	}))
	slices.SortFunc(keys, func(a, b string) int {
		switch {
		case a == b:
			return 0
		case a == "_id":
			return -1
		case b == "_id":
			return 1
		default:
			return strings.Compare(a, b)
		}
	})
	pos := make(map[string]int, len(keys))
	for i, k := range keys {
		pos[k] = i
	}

	rows := make([][]any, len(docs))
	for i, doc := range docs {
		row := make([]any, len(keys))
		for _, e := range doc {
			row[pos[e.Key]] = formatMongoValue(e.Value)
		}
		rows[i] = row
	}
	return &QueryPage{Columns: keys, Rows: rows}
}

// formatMongoValue maps BSON values to table-friendly scalars. Embedded
// documents and arrays become JSON text.
func formatMongoValue(v any) any {
	switch val := v.(type) {
	case nil, string, bool, int32, int64, float64:
		return val
	case bson.ObjectID:
		return val.Hex()
	case bson.DateTime:
		return formatValue(val.Time().UTC())
	case bson.Decimal128:
		return val.String()
	case bson.D:
		b, err := bson.MarshalExtJSON(val, false, false)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	case bson.A:
		b, err := json.Marshal(lo.Map(val, func(item any, _ int) any { return formatMongoValue(item) }))
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}

func (m *mongoConnector) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
