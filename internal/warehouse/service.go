// Package warehouse provides the SQL warehouse sink shared by the raw,
// staging and mart layers. It speaks database/sql so the layers can be
// tested against a mock driver.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/snowflakedb/gosnowflake"

	"admart/internal/frame"
	"admart/pkg/errors"
	"admart/pkg/models"
)

// LoadMode selects how Load treats existing rows.
type LoadMode int

const (
	// LoadAppend inserts rows, leaving existing rows in place.
	LoadAppend LoadMode = iota
	// LoadTruncate removes all existing rows in the same transaction
	// before inserting, so readers never observe an empty table.
	LoadTruncate
)

// CreateOptions control physical layout of a new table.
type CreateOptions struct {
	// PartitionColumn day-partitions the table when set. The column must
	// be a timestamp column of the frame.
	PartitionColumn string
	// ClusterBy lists clustering columns in priority order. Callers pass
	// only columns present in the frame.
	ClusterBy []string
}

// Sink is the warehouse surface the pipeline layers depend on.
type Sink interface {
	TableExists(ctx context.Context, dataset, table string) (bool, error)
	CreateTable(ctx context.Context, dataset, table string, f *frame.Frame, opts CreateOptions) error
	Load(ctx context.Context, dataset, table string, f *frame.Frame, mode LoadMode) (int, error)
	DeleteByKeys(ctx context.Context, dataset, table string, keys *frame.Frame) (int64, error)
	Query(ctx context.Context, query string, args ...interface{}) (*frame.Frame, error)
	Exec(ctx context.Context, query string, args ...interface{}) error
	ListTables(ctx context.Context, dataset, pattern string) ([]string, error)
	RowCount(ctx context.Context, dataset, table string) (int64, error)
}

// Service implements Sink over a live warehouse connection.
type Service struct {
	db        *sql.DB
	config    models.WarehouseConfig
	connected bool
}

// NewService creates a new warehouse service. Call Connect before use.
func NewService(config models.WarehouseConfig) *Service {
	return &Service{config: config}
}

// NewServiceWithDB wraps an existing database handle, used by tests.
func NewServiceWithDB(db *sql.DB, config models.WarehouseConfig) *Service {
	return &Service{db: db, config: config, connected: true}
}

// Connect establishes the warehouse connection, retrying transient
// failures with backoff.
func (s *Service) Connect(ctx context.Context) error {
	if s.connected {
		return nil
	}

	return errors.RetryWithBackoff(ctx, func(ctx context.Context) error {
		dsn := fmt.Sprintf("%s:%s@%s/%s?warehouse=%s&role=%s",
			s.config.Username,
			s.config.Password,
			s.config.Account,
			s.config.Database,
			s.config.Warehouse,
			s.config.Role,
		)

		db, err := sql.Open("snowflake", dsn)
		if err != nil {
			return errors.ConnectionError("failed to open warehouse connection", err).
				WithContext("account", s.config.Account).
				WithContext("warehouse", s.config.Warehouse)
		}

		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(10 * time.Minute)

		connCtx, cancel := s.callContext(ctx)
		defer cancel()

		if err := db.PingContext(connCtx); err != nil {
			db.Close()

			if strings.Contains(err.Error(), "authentication") {
				return errors.New(errors.ErrCodeAuthenticationFailed, "warehouse authentication failed").
					WithContext("user", s.config.Username)
			}

			return errors.ConnectionError("failed to connect to warehouse", err).
				WithContext("account", s.config.Account).
				AsRecoverable()
		}

		s.db = db
		s.connected = true
		return nil
	})
}

// Close closes the warehouse connection.
func (s *Service) Close() error {
	if !s.connected {
		return nil
	}
	s.connected = false
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// callContext derives a per-statement timeout context from the
// configured timeout, defaulting to five minutes.
func (s *Service) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *Service) ensureConnected() error {
	if !s.connected {
		return errors.New(errors.ErrCodeConnectionFailed, "not connected to warehouse")
	}
	return nil
}

// TableExists reports whether the table exists in the dataset.
func (s *Service) TableExists(ctx context.Context, dataset, table string) (bool, error) {
	if err := s.ensureConnected(); err != nil {
		return false, err
	}

	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	query := "SELECT COUNT(1) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?"
	var n int
	if err := s.db.QueryRowContext(callCtx, query, dataset, table).Scan(&n); err != nil {
		return false, errors.SQLError("failed to check table existence", query, err).
			WithContext("table", dataset+"."+table)
	}
	return n > 0, nil
}

// CreateTable creates the table with column types inferred from the
// frame's enforced values, applying partitioning and clustering when
// requested.
func (s *Service) CreateTable(ctx context.Context, dataset, table string, f *frame.Frame, opts CreateOptions) error {
	if err := s.ensureConnected(); err != nil {
		return err
	}

	cols := f.Columns()
	if len(cols) == 0 {
		return errors.New(errors.ErrCodeEmptyInput, "cannot create table from a frame with no columns").
			WithContext("table", dataset+"."+table)
	}

	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = fmt.Sprintf("%s %s", c, columnType(f.ColumnKind(c)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s.%s (%s)", dataset, table, strings.Join(defs, ", "))
	if opts.PartitionColumn != "" {
		fmt.Fprintf(&b, " PARTITION BY DATE(%s)", opts.PartitionColumn)
	}
	if len(opts.ClusterBy) > 0 {
		fmt.Fprintf(&b, " CLUSTER BY (%s)", strings.Join(opts.ClusterBy, ", "))
	}

	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(callCtx, b.String()); err != nil {
		return errors.Wrap(err, errors.ErrCodeTableCreateFailed, "failed to create table").
			WithContext("table", dataset+"."+table)
	}
	return nil
}

// Load writes the frame's rows into the table. Truncate mode empties the
// table inside the same transaction as the insert, so the replace is
// atomic. It returns the number of rows written.
func (s *Service) Load(ctx context.Context, dataset, table string, f *frame.Frame, mode LoadMode) (int, error) {
	if err := s.ensureConnected(); err != nil {
		return 0, err
	}

	cols := f.Columns()
	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(callCtx, nil)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeLoadFailed, "failed to begin load transaction").
			WithContext("table", dataset+"."+table)
	}
	defer tx.Rollback() //nolint:errcheck

	if mode == LoadTruncate {
		if _, err := tx.ExecContext(callCtx, fmt.Sprintf("DELETE FROM %s.%s", dataset, table)); err != nil {
			return 0, errors.SQLError("failed to truncate table before load", "DELETE FROM "+dataset+"."+table, err)
		}
	}

	if !f.Empty() {
		placeholders := "(" + strings.TrimRight(strings.Repeat("?, ", len(cols)), ", ") + ")"
		insert := fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES %s",
			dataset, table, strings.Join(cols, ", "), placeholders)

		stmt, err := tx.PrepareContext(callCtx, insert)
		if err != nil {
			return 0, errors.SQLError("failed to prepare insert", insert, err)
		}
		defer stmt.Close()

		for i := 0; i < f.Len(); i++ {
			r := f.Row(i)
			args := make([]interface{}, len(cols))
			for j, c := range cols {
				args[j] = driverValue(r[c])
			}
			if _, err := stmt.ExecContext(callCtx, args...); err != nil {
				return 0, errors.SQLError("failed to insert row", insert, err).
					WithContext("row", i)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeLoadFailed, "failed to commit load").
			WithContext("table", dataset+"."+table)
	}
	return f.Len(), nil
}

// DeleteByKeys deletes every row of the table whose key-column values
// match any row of the keys frame. Keys are compared as strings so the
// physical column types of older tables do not matter. The key rows go
// through a session-scoped temporary table to keep the statement count
// independent of key cardinality.
func (s *Service) DeleteByKeys(ctx context.Context, dataset, table string, keys *frame.Frame) (int64, error) {
	if err := s.ensureConnected(); err != nil {
		return 0, err
	}
	if keys.Empty() {
		return 0, nil
	}

	keyCols := keys.Columns()
	tempTable := table + "_delete_keys"
	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	defs := make([]string, len(keyCols))
	for i, c := range keyCols {
		defs[i] = c + " STRING"
	}
	createTemp := fmt.Sprintf("CREATE OR REPLACE TEMPORARY TABLE %s.%s (%s)",
		dataset, tempTable, strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(callCtx, createTemp); err != nil {
		return 0, errors.SQLError("failed to create key table", createTemp, err)
	}

	placeholders := "(" + strings.TrimRight(strings.Repeat("?, ", len(keyCols)), ", ") + ")"
	insert := fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES %s",
		dataset, tempTable, strings.Join(keyCols, ", "), placeholders)
	for _, r := range keys.Deduplicate().Rows() {
		args := make([]interface{}, len(keyCols))
		for j, c := range keyCols {
			args[j] = frame.Stringify(r[c])
		}
		if _, err := s.db.ExecContext(callCtx, insert, args...); err != nil {
			return 0, errors.SQLError("failed to stage delete keys", insert, err)
		}
	}

	match := make([]string, len(keyCols))
	for i, c := range keyCols {
		match[i] = fmt.Sprintf("CAST(t.%s AS STRING) = k.%s", c, c)
	}
	del := fmt.Sprintf("DELETE FROM %s.%s t WHERE EXISTS (SELECT 1 FROM %s.%s k WHERE %s)",
		dataset, table, dataset, tempTable, strings.Join(match, " AND "))

	res, err := s.db.ExecContext(callCtx, del)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDeleteFailed, "failed to delete matching rows").
			WithContext("table", dataset+"."+table)
	}
	deleted, _ := res.RowsAffected()

	drop := fmt.Sprintf("DROP TABLE IF EXISTS %s.%s", dataset, tempTable)
	if _, err := s.db.ExecContext(callCtx, drop); err != nil {
		return deleted, errors.SQLError("failed to drop key table", drop, err)
	}
	return deleted, nil
}

// Query runs a statement and materializes the result as a frame. Byte
// slices decode to strings; everything else keeps the driver's type.
func (s *Service) Query(ctx context.Context, query string, args ...interface{}) (*frame.Frame, error) {
	if err := s.ensureConnected(); err != nil {
		return nil, err
	}

	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(callCtx, query, args...)
	if err != nil {
		return nil, errors.SQLError("query failed", query, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.SQLError("failed to read result columns", query, err)
	}

	out := frame.New(cols...)
	for rows.Next() {
		cells := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.SQLError("failed to scan result row", query, err)
		}
		r := make(frame.Row, len(cols))
		for i, c := range cols {
			if b, ok := cells[i].([]byte); ok {
				r[c] = string(b)
			} else {
				r[c] = cells[i]
			}
		}
		out.Append(r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.SQLError("result iteration failed", query, err)
	}
	return out, nil
}

// Exec runs a statement and discards the result.
func (s *Service) Exec(ctx context.Context, query string, args ...interface{}) error {
	if err := s.ensureConnected(); err != nil {
		return err
	}

	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(callCtx, query, args...); err != nil {
		return errors.SQLError("statement failed", query, err)
	}
	return nil
}

// ListTables returns the dataset's table names matching the regular
// expression pattern, sorted by the catalog's default order.
func (s *Service) ListTables(ctx context.Context, dataset, pattern string) ([]string, error) {
	if err := s.ensureConnected(); err != nil {
		return nil, err
	}

	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	query := "SELECT table_name FROM information_schema.tables WHERE table_schema = ? AND RLIKE(table_name, ?)"
	rows, err := s.db.QueryContext(callCtx, query, dataset, pattern)
	if err != nil {
		return nil, errors.SQLError("failed to list tables", query, err).
			WithContext("dataset", dataset)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.SQLError("failed to scan table name", query, err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.SQLError("table listing failed", query, err)
	}
	return tables, nil
}

// RowCount returns the number of rows in the table.
func (s *Service) RowCount(ctx context.Context, dataset, table string) (int64, error) {
	if err := s.ensureConnected(); err != nil {
		return 0, err
	}

	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	query := fmt.Sprintf("SELECT COUNT(1) FROM %s.%s", dataset, table)
	var n int64
	if err := s.db.QueryRowContext(callCtx, query).Scan(&n); err != nil {
		return 0, errors.SQLError("failed to count rows", query, err).
			WithContext("table", dataset+"."+table)
	}
	return n, nil
}

// columnType maps an inferred frame kind to the warehouse column type.
func columnType(k frame.Kind) string {
	switch k {
	case frame.KindInt:
		return "INT64"
	case frame.KindFloat:
		return "FLOAT64"
	case frame.KindBool:
		return "BOOL"
	case frame.KindTimestamp:
		return "TIMESTAMP"
	default:
		return "STRING"
	}
}

// driverValue converts a frame cell into a driver-friendly value.
func driverValue(v frame.Value) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return t.UTC()
	case int:
		return int64(t)
	case int32:
		return int64(t)
	default:
		return v
	}
}
