package infrastructure

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"staff-arabia/domain"
)

const notConnectedMessage = "Database not connected"

var (
	// ErrNotConnected means the store was built without a database handle.
	// It is distinct from an empty result.
	ErrNotConnected = errors.New(notConnectedMessage)

	// ErrUnknownField is returned when a filter names a field the collection does not have.
	ErrUnknownField = errors.New("unknown field")
)

// NotConnected is the UNAVAILABLE error every operation returns without a database handle.
func NotConnected() error {
	return domain.Unavailable(notConnectedMessage, ErrNotConnected)
}

// ObjectID is the storage-assigned identifier of a document. It is opaque to callers.
type ObjectID uuid.UUID

// NewObjectID returns a fresh random identifier.
func NewObjectID() ObjectID {
	return ObjectID(uuid.New())
}

// ParseObjectID parses the canonical string form produced by String.
func ParseObjectID(s string) (ObjectID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ObjectID{}, fmt.Errorf("parse object id %q: %w", s, err)
	}
	return ObjectID(u), nil
}

func (id ObjectID) String() string { return uuid.UUID(id).String() }

func (id ObjectID) IsZero() bool { return id == ObjectID{} }

// Value implements driver.Valuer.
func (id ObjectID) Value() (driver.Value, error) {
	return uuid.UUID(id).String(), nil
}

// Scan implements sql.Scanner.
func (id *ObjectID) Scan(src any) error {
	var u uuid.UUID
	if err := u.Scan(src); err != nil {
		return err
	}
	*id = ObjectID(u)
	return nil
}

// Document is one stored record of kind R plus the fields the storage layer owns.
type Document[R any] struct {
	ID        ObjectID `gorm:"primaryKey;type:varchar(36)"`
	Record    R        `gorm:"embedded"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName maps the document to its record kind's collection.
func (Document[R]) TableName() string {
	var r R
	if rec, ok := any(&r).(domain.Record); ok {
		return rec.Kind().Collection()
	}
	return fmt.Sprintf("%T", r)
}

// record is satisfied by *R for every registered domain record R.
type record[R any] interface {
	*R
	domain.Record
}

// Filters are equality constraints on record fields, combined with AND.
type Filters map[string]any

// DocumentStore is the data access layer over the single process-wide database handle.
// A store built with a nil handle reports ErrNotConnected from every operation.
type DocumentStore struct {
	db       *gorm.DB
	logger   *zap.Logger
	observer Observer
	tracer   trace.Tracer
}

// NewDocumentStore wraps db. db may be nil when no database is configured.
func NewDocumentStore(db *gorm.DB, logger *zap.Logger, observer Observer) *DocumentStore {
	if observer == nil {
		observer = NopObserver()
	}
	return &DocumentStore{
		db:       db,
		logger:   logger,
		observer: observer,
		tracer:   otel.Tracer("staff-arabia/infrastructure/documents"),
	}
}

// Connected reports whether the store holds a database handle.
func (s *DocumentStore) Connected() bool {
	return s.db != nil
}

// Name returns the current database name, or "" when not connected.
func (s *DocumentStore) Name() string {
	if s.db == nil {
		return ""
	}
	return s.db.Migrator().CurrentDatabase()
}

// Collections lists the tables in the current database.
func (s *DocumentStore) Collections(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, NotConnected()
	}
	tables, err := s.db.WithContext(ctx).Migrator().GetTables()
	if err != nil {
		return nil, domain.Internal("list collections", err)
	}
	return tables, nil
}

// Close releases the database pool.
func (s *DocumentStore) Close() error {
	return CloseDatabase(s.db)
}

func (s *DocumentStore) begin(ctx context.Context, op, collection string) (context.Context, func(err error, size int64)) {
	ctx, span := s.tracer.Start(ctx, "documents."+op, trace.WithAttributes(
		attribute.String("db.operation", op),
		attribute.String("db.collection", collection),
	))
	start := time.Now()
	return ctx, func(err error, size int64) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.observer.ObserveOperation(OperationContext{
			Component: "database",
			Operation: op,
			Resource:  collection,
			Duration:  time.Since(start),
			Error:     err,
			Size:      size,
		})
	}
}

// CreateDocument inserts rec into its kind's collection and returns the assigned identifier.
func CreateDocument[R any, P record[R]](ctx context.Context, s *DocumentStore, rec R) (ObjectID, error) {
	collection := P(&rec).Kind().Collection()
	if s.db == nil {
		return ObjectID{}, NotConnected()
	}

	ctx, done := s.begin(ctx, "insert", collection)
	doc := Document[R]{ID: NewObjectID(), Record: rec}
	err := s.db.WithContext(ctx).Create(&doc).Error
	done(err, 1)
	if err != nil {
		s.logger.Error("insert failed", zap.String("collection", collection), zap.Error(err))
		return ObjectID{}, domain.Internal("insert into "+collection, err)
	}

	s.logger.Debug("document created", zap.String("collection", collection), zap.Stringer("id", doc.ID))
	return doc.ID, nil
}

// GetDocuments returns up to limit documents of kind R whose fields equal every filter value.
// A limit of zero or less means no limit. Order is whatever the database returns.
func GetDocuments[R any, P record[R]](ctx context.Context, s *DocumentStore, filters Filters, limit int) ([]Document[R], error) {
	var zero R
	collection := P(&zero).Kind().Collection()
	if s.db == nil {
		return nil, NotConnected()
	}

	where, err := s.columns(&Document[R]{}, filters)
	if err != nil {
		return nil, domain.InvalidInput("invalid filter", err)
	}

	ctx, done := s.begin(ctx, "find", collection)
	q := whereEqual(s.db.WithContext(ctx).Model(&Document[R]{}), where)
	if limit > 0 {
		q = q.Limit(limit)
	}

	docs := make([]Document[R], 0)
	err = q.Find(&docs).Error
	done(err, int64(len(docs)))
	if err != nil {
		s.logger.Error("query failed", zap.String("collection", collection), zap.Error(err))
		return nil, domain.Internal("query "+collection, err)
	}
	return docs, nil
}

// CountDocuments returns the number of documents of kind R.
func CountDocuments[R any, P record[R]](ctx context.Context, s *DocumentStore) (int64, error) {
	var zero R
	collection := P(&zero).Kind().Collection()
	if s.db == nil {
		return 0, NotConnected()
	}

	ctx, done := s.begin(ctx, "count", collection)
	var n int64
	err := s.db.WithContext(ctx).Model(&Document[R]{}).Count(&n).Error
	done(err, n)
	if err != nil {
		return 0, domain.Internal("count "+collection, err)
	}
	return n, nil
}

// columns resolves filter keys (JSON or Go field names) to column names of model.
func (s *DocumentStore) columns(model any, filters Filters) (map[string]interface{}, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	stmt := &gorm.Statement{DB: s.db}
	if err := stmt.Parse(model); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	where := make(map[string]interface{}, len(filters))
	for key, value := range filters {
		field := stmt.Schema.LookUpField(key)
		if field == nil || field.DBName == "" {
			return nil, fmt.Errorf("%w %q", ErrUnknownField, key)
		}
		where[field.DBName] = value
	}
	return where, nil
}

// whereEqual adds one equality condition per column. MySQL compares with BINARY so that
// matches stay exact under the default case-insensitive utf8mb4 collation.
func whereEqual(q *gorm.DB, where map[string]interface{}) *gorm.DB {
	cols := make([]string, 0, len(where))
	for col := range where {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	binary := q.Dialector.Name() == "mysql"
	for _, col := range cols {
		if binary {
			q = q.Where(clause.Expr{SQL: "? = BINARY ?", Vars: []interface{}{clause.Column{Name: col}, where[col]}})
		} else {
			q = q.Where(clause.Eq{Column: clause.Column{Name: col}, Value: where[col]})
		}
	}
	return q
}

// models lists one document model per registered record kind.
func models() []any {
	return []any{
		&Document[domain.User]{},
		&Document[domain.Product]{},
		&Document[domain.Job]{},
		&Document[domain.ContactMessage]{},
	}
}

// Migrate creates or updates the table of every record kind.
func (s *DocumentStore) Migrate(ctx context.Context) error {
	if s.db == nil {
		return NotConnected()
	}
	if err := s.db.WithContext(ctx).AutoMigrate(models()...); err != nil {
		return fmt.Errorf("migrate collections: %w", err)
	}
	s.logger.Info("collections migrated", zap.Int("count", len(models())))
	return nil
}

// Seed inserts a handful of sample jobs when the job collection is empty.
// It returns the number of jobs inserted.
func (s *DocumentStore) Seed(ctx context.Context) (int, error) {
	count, err := CountDocuments[domain.Job](ctx, s)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	for _, job := range sampleJobs() {
		if _, err := CreateDocument(ctx, s, job); err != nil {
			return 0, fmt.Errorf("seed jobs: %w", err)
		}
	}
	s.logger.Info("seeded sample jobs", zap.Int("count", len(sampleJobs())))
	return len(sampleJobs()), nil
}

func sampleJobs() []domain.Job {
	desc := func(s string) *string { return &s }
	return []domain.Job{
		{
			Title:       "Site Safety Officer",
			Company:     "Gulf Build Co.",
			Location:    "Riyadh, Saudi Arabia",
			Category:    "Construction",
			Type:        domain.FullTime,
			Description: desc("NEBOSH certified officer for a high-rise project."),
		},
		{
			Title:       "Instrumentation Technician",
			Company:     "Desert Energy",
			Location:    "Dammam, Saudi Arabia",
			Category:    "Oil & Gas",
			Type:        domain.Contract,
			Description: desc("Calibration and maintenance of field instruments, 12 month rotation."),
		},
		{
			Title:    "Front Desk Associate",
			Company:  "Corniche Hotels",
			Location: "Doha, Qatar",
			Category: "Hospitality",
			Type:     domain.PartTime,
		},
	}
}
