package peer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Resource is one entry served by /resource.
type Resource struct {
	ID          int64  `json:"id"          db:"id"`
	Name        string `json:"name"        db:"name"`
	Description string `json:"description" db:"description"`
}

// Store holds the resources served by /resource.
type Store interface {
	List(ctx context.Context) ([]Resource, error)
	Create(ctx context.Context, name, description string) (Resource, error)
}

// seedResources are the entries every fresh store starts with.
var seedResources = []Resource{
	{ID: 1, Name: "Resource 1", Description: "Description of resource 1"},
	{ID: 2, Name: "Resource 2", Description: "Description of resource 2"},
}

// MemoryStore is a Store kept in process memory. Ids count up from the
// seeded entries.
type MemoryStore struct {
	mu        sync.RWMutex
	resources []Resource
}

// NewMemoryStore returns a MemoryStore holding the two seed resources.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{resources: slices.Clone(seedResources)}
}

// List returns a copy of all resources in id order.
func (s *MemoryStore) List(_ context.Context) ([]Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.resources), nil
}

// Create appends a resource with the next id.
func (s *MemoryStore) Create(_ context.Context, name, description string) (Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := Resource{
		ID:          int64(len(s.resources) + 1),
		Name:        name,
		Description: description,
	}
	s.resources = append(s.resources, res)
	return res, nil
}

const (
	createResourcesTable = `CREATE TABLE IF NOT EXISTS resources (
	id SERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL
)`
	countResources  = `SELECT COUNT(*) FROM resources`
	selectResources = `SELECT id, name, description FROM resources ORDER BY id`
	insertResource  = `INSERT INTO resources (name, description) VALUES (?, ?) RETURNING id`
)

// SQLStore is a Store backed by a SQL database through sqlx. Every query
// runs in a client span named after its SQL operation.
//
//	db, err := sqlx.Open("postgres", dsn)
//	store := peer.NewSQLStore(db)
//	if err := store.Migrate(ctx); err != nil { ... }
type SQLStore struct {
	db     *sqlx.DB
	tracer trace.Tracer
	attrs  []attribute.KeyValue
}

// NewSQLStore wraps db. Spans go to the global tracer provider.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{
		db:     db,
		tracer: otel.GetTracerProvider().Tracer(instrumentationName),
		attrs: []attribute.KeyValue{
			attribute.String("db.system", dbSystem(db.DriverName())),
			attribute.String("db.sql.table", "resources"),
		},
	}
}

// Migrate creates the resources table and seeds it when it is empty.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if err := s.exec(ctx, createResourcesTable); err != nil {
		return fmt.Errorf("failed to create resources table: %w", err)
	}

	var n int
	if err := s.query(ctx, countResources, func(ctx context.Context, q string) error {
		return s.db.GetContext(ctx, &n, q)
	}); err != nil {
		return fmt.Errorf("failed to count resources: %w", err)
	}
	if n > 0 {
		return nil
	}

	for _, seed := range seedResources {
		if _, err := s.Create(ctx, seed.Name, seed.Description); err != nil {
			return fmt.Errorf("failed to seed resources: %w", err)
		}
	}
	return nil
}

// List returns all resources in id order.
func (s *SQLStore) List(ctx context.Context) ([]Resource, error) {
	out := []Resource{}
	err := s.query(ctx, selectResources, func(ctx context.Context, q string) error {
		return s.db.SelectContext(ctx, &out, q)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return out, nil
}

// Create inserts a resource and returns it with the id the database chose.
func (s *SQLStore) Create(ctx context.Context, name, description string) (Resource, error) {
	res := Resource{Name: name, Description: description}
	err := s.query(ctx, insertResource, func(ctx context.Context, q string) error {
		return s.db.QueryRowxContext(ctx, s.db.Rebind(q), name, description).Scan(&res.ID)
	})
	if err != nil {
		return Resource{}, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

func (s *SQLStore) exec(ctx context.Context, q string) error {
	return s.query(ctx, q, func(ctx context.Context, q string) error {
		_, err := s.db.ExecContext(ctx, q)
		return err
	})
}

// query runs fn inside a span for q.
func (s *SQLStore) query(ctx context.Context, q string, fn func(context.Context, string) error) error {
	op := sqlOperation(q)
	ctx, span := s.tracer.Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(s.attrs...),
		trace.WithAttributes(
			attribute.String("db.operation", op),
			attribute.String("db.statement", q),
		),
	)
	defer span.End()

	err := fn(ctx, q)
	if err != nil && !errors.Is(err, context.Canceled) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// sqlOperation returns the upper-cased first word of q, or "SQL".
func sqlOperation(q string) string {
	fields := strings.Fields(q)
	if len(fields) == 0 {
		return "SQL"
	}
	return strings.ToUpper(fields[0])
}

func dbSystem(driver string) string {
	switch driver {
	case "postgres", "pgx":
		return "postgresql"
	case "":
		return "other_sql"
	default:
		return driver
	}
}
