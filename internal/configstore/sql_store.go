package configstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/matthewbaird/leasefin/internal/finconfig"
	"github.com/matthewbaird/leasefin/internal/types"
)

const configTable = "financial_configs"

var configColumns = []string{
	"tenant_id", "unit_id", "flow", "revision", "payload",
	"created_at", "updated_at", "updated_by", "source", "correlation_id",
}

// SQLStore implements Store on SQLite. Timestamps are unix nanoseconds.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLStore creates a new SQLStore.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

// CreateTable creates the financial_configs table if it does not exist.
func (s *SQLStore) CreateTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS financial_configs (
			tenant_id      INTEGER NOT NULL,
			unit_id        INTEGER NOT NULL,
			flow           TEXT NOT NULL,
			revision       INTEGER NOT NULL,
			payload        TEXT NOT NULL,
			created_at     INTEGER NOT NULL,
			updated_at     INTEGER NOT NULL,
			updated_by     TEXT NOT NULL,
			source         TEXT NOT NULL,
			correlation_id TEXT,
			PRIMARY KEY (tenant_id, unit_id)
		);

		CREATE INDEX IF NOT EXISTS idx_financial_configs_updated
			ON financial_configs (updated_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("creating %s: %w", configTable, err)
	}
	return nil
}

func insertRecord(rec Record, payloadJSON []byte) *entsql.InsertBuilder {
	return builder().Insert(configTable).
		Columns(configColumns...).
		Values(rec.TenantID, rec.UnitID, string(rec.Flow), rec.Revision, string(payloadJSON),
			rec.CreatedAt.UnixNano(), rec.UpdatedAt.UnixNano(), rec.UpdatedBy, rec.Source, rec.CorrelationID)
}

// Create inserts revision 1 for a new assignment. The insert ignores
// conflicts, so a zero row count means another writer got there first.
func (s *SQLStore) Create(ctx context.Context, flow finconfig.Flow, p finconfig.Payload, audit types.AuditInfo) (Record, error) {
	if err := checkIdentity(p); err != nil {
		return Record{}, err
	}
	payloadJSON, err := json.Marshal(p)
	if err != nil {
		return Record{}, fmt.Errorf("encoding payload: %w", err)
	}

	rec := newRecord(flow, p, audit, 1, s.now().UTC())
	query, args := insertRecord(rec, payloadJSON).
		OnConflict(entsql.DoNothing()).
		Query()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return Record{}, fmt.Errorf("creating financial configuration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Record{}, fmt.Errorf("creating financial configuration: %w", err)
	}
	if n == 0 {
		return Record{}, ErrAlreadyExists
	}
	return rec, nil
}

// Save upserts the configuration and bumps its revision inside one transaction.
func (s *SQLStore) Save(ctx context.Context, flow finconfig.Flow, p finconfig.Payload, audit types.AuditInfo) (Record, error) {
	if err := checkIdentity(p); err != nil {
		return Record{}, err
	}
	payloadJSON, err := json.Marshal(p)
	if err != nil {
		return Record{}, fmt.Errorf("encoding payload: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query, args := builder().Select("revision").
		From(entsql.Table(configTable)).
		Where(assignmentPredicate(p.TenantID, p.UnitID)).
		Query()
	var revision int
	switch err := tx.QueryRowContext(ctx, query, args...).Scan(&revision); {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return Record{}, fmt.Errorf("reading revision: %w", err)
	}

	now := s.now().UTC()
	rec := newRecord(flow, p, audit, revision+1, now)

	query, args = insertRecord(rec, payloadJSON).
		OnConflict(
			entsql.ConflictColumns("tenant_id", "unit_id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				for _, c := range []string{"flow", "revision", "payload", "updated_at", "updated_by", "source", "correlation_id"} {
					u.SetExcluded(c)
				}
			}),
		).
		Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return Record{}, fmt.Errorf("saving financial configuration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("committing financial configuration: %w", err)
	}

	if revision > 0 {
		stored, err := s.Get(ctx, p.TenantID, p.UnitID)
		if err != nil {
			return Record{}, err
		}
		rec.CreatedAt = stored.CreatedAt
	}
	return rec, nil
}

func assignmentPredicate(tenantID, unitID int64) *entsql.Predicate {
	return entsql.And(entsql.EQ("tenant_id", tenantID), entsql.EQ("unit_id", unitID))
}

// Get returns the configuration for an assignment.
func (s *SQLStore) Get(ctx context.Context, tenantID, unitID int64) (Record, error) {
	query, args := builder().Select(configColumns...).
		From(entsql.Table(configTable)).
		Where(assignmentPredicate(tenantID, unitID)).
		Query()
	recs, err := s.scan(ctx, query, args)
	if err != nil {
		return Record{}, err
	}
	if len(recs) == 0 {
		return Record{}, ErrNotFound
	}
	return recs[0], nil
}

// List returns configurations, most recently updated first.
func (s *SQLStore) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	sel := builder().Select(configColumns...).From(entsql.Table(configTable))
	var preds []*entsql.Predicate
	if opts.TenantID != 0 {
		preds = append(preds, entsql.EQ("tenant_id", opts.TenantID))
	}
	if opts.UnitID != 0 {
		preds = append(preds, entsql.EQ("unit_id", opts.UnitID))
	}
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	sel.OrderBy(entsql.Desc("updated_at"), "tenant_id", "unit_id").Limit(opts.limit())
	if opts.Offset > 0 {
		sel.Offset(opts.Offset)
	}
	query, args := sel.Query()
	return s.scan(ctx, query, args)
}

func (s *SQLStore) scan(ctx context.Context, query string, args []any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying financial configurations: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var (
			rec         Record
			flow        string
			payloadJSON string
			created     int64
			updated     int64
			correlation sql.NullString
		)
		if err := rows.Scan(&rec.TenantID, &rec.UnitID, &flow, &rec.Revision, &payloadJSON,
			&created, &updated, &rec.UpdatedBy, &rec.Source, &correlation); err != nil {
			return nil, fmt.Errorf("scanning financial configuration: %w", err)
		}
		if err := json.Unmarshal([]byte(payloadJSON), &rec.Payload); err != nil {
			return nil, fmt.Errorf("decoding payload for tenant %d unit %d: %w", rec.TenantID, rec.UnitID, err)
		}
		rec.Flow = finconfig.Flow(flow)
		rec.CreatedAt = time.Unix(0, created).UTC()
		rec.UpdatedAt = time.Unix(0, updated).UTC()
		rec.CorrelationID = correlation.String
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
