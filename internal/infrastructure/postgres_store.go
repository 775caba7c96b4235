package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"leadsync/internal/domain"
	"leadsync/pkg/logger"
	"leadsync/pkg/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// Pool is the subset of *pgxpool.Pool the store needs.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

var baseColumnTypes = map[string]string{
	domain.ColumnLeadToken:             "TEXT",
	domain.ColumnDate:                  "DATE",
	domain.ColumnFirstUserCampaign:     "TEXT",
	domain.ColumnFirstUserCampaignID:   "TEXT",
	domain.ColumnSessions:              "BIGINT",
	domain.ColumnSourceMedium:          "TEXT",
	domain.ColumnSessionCampaign:       "TEXT",
	domain.ColumnSessionCampaignID:     "TEXT",
	domain.ColumnEngagedSessions:       "BIGINT",
	domain.ColumnKeyword:               "TEXT",
	domain.ColumnOperatingSystem:       "TEXT",
	domain.ColumnMobile:                "TEXT",
	domain.ColumnFinalSource:           "TEXT",
	domain.ColumnFinalSourceCampaignID: "TEXT",
	domain.ColumnStatus:                "TEXT",
	domain.ColumnShiftingType:          "TEXT",
	domain.ColumnMonth:                 "INTEGER",
	domain.ColumnYear:                  "INTEGER",
}

// PostgresStore keeps attribution tables in one PostgreSQL schema. It
// implements domain.TableStore.
type PostgresStore struct {
	pool    Pool
	schema  string
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewPostgresStore(pool Pool, schema string, logger *logger.Logger, metrics *metrics.Metrics) *PostgresStore {
	return &PostgresStore{pool: pool, schema: schema, logger: logger, metrics: metrics}
}

func (s *PostgresStore) ident(table string) string {
	return pgx.Identifier{s.schema, table}.Sanitize()
}

// EnsureTable creates the schema and table when missing and adds any extra
// column the table does not have yet. Extra columns are TEXT.
func (s *PostgresStore) EnsureTable(ctx context.Context, table string, extraColumns []string) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{s.schema}.Sanitize())); err != nil {
		s.metrics.RecordTableOperation(table, "ensure", "failed")
		return fmt.Errorf("create schema %s: %w", s.schema, err)
	}

	defs := make([]string, 0, len(domain.BaseColumns))
	for _, c := range domain.BaseColumns {
		defs = append(defs, pgx.Identifier{c}.Sanitize()+" "+baseColumnTypes[c])
	}
	createSQL := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", s.ident(table), strings.Join(defs, ", "))
	if _, err := s.pool.Exec(ctx, createSQL); err != nil {
		s.metrics.RecordTableOperation(table, "ensure", "failed")
		return fmt.Errorf("create table %s: %w", table, err)
	}

	for _, c := range extraColumns {
		alterSQL := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s TEXT", s.ident(table), pgx.Identifier{c}.Sanitize())
		if _, err := s.pool.Exec(ctx, alterSQL); err != nil {
			s.metrics.RecordTableOperation(table, "ensure", "failed")
			return fmt.Errorf("add column %s to %s: %w", c, table, err)
		}
	}

	s.metrics.RecordTableOperation(table, "ensure", "success")
	return nil
}

func (s *PostgresStore) columns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = $1 AND table_name = $2
		 ORDER BY ordinal_position`,
		s.schema, table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// ReadAll returns every row of table. A table that does not exist reads as
// empty.
func (s *PostgresStore) ReadAll(ctx context.Context, table string) (*domain.MappedTable, error) {
	cols, err := s.columns(ctx, table)
	if err != nil {
		s.metrics.RecordTableOperation(table, "read", "failed")
		return nil, err
	}
	if len(cols) == 0 {
		return &domain.MappedTable{}, nil
	}
	if missing := domain.MissingColumns(cols, domain.KeyColumns); len(missing) > 0 {
		return nil, &domain.MergeSchemaError{Side: "existing", Row: -1, Missing: missing}
	}

	base := make(map[string]bool, len(domain.BaseColumns))
	for _, c := range domain.BaseColumns {
		base[c] = true
	}
	selects := make([]string, len(cols))
	var extra []string
	for i, c := range cols {
		selects[i] = pgx.Identifier{c}.Sanitize() + "::text"
		if !base[c] {
			extra = append(extra, c)
		}
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT %s FROM %s", strings.Join(selects, ", "), s.ident(table)))
	if err != nil {
		s.metrics.RecordTableOperation(table, "read", "failed")
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer rows.Close()

	result := &domain.MappedTable{ExtraColumns: extra}
	values := make([]pgtype.Text, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			s.metrics.RecordTableOperation(table, "read", "failed")
			return nil, fmt.Errorf("scan %s row %d: %w", table, len(result.Records)+1, err)
		}
		row := make(map[string]pgtype.Text, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		result.Records = append(result.Records, recordFromRow(row, extra))
	}
	if err := rows.Err(); err != nil {
		s.metrics.RecordTableOperation(table, "read", "failed")
		return nil, fmt.Errorf("read %s: %w", table, err)
	}

	s.metrics.RecordTableOperation(table, "read", "success")
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"table": table,
		"rows":  len(result.Records),
	}).Info("Read warehouse table")
	return result, nil
}

// unparseable key fields read as zero and fail merge validation
func recordFromRow(row map[string]pgtype.Text, extra []string) domain.MappedRecord {
	text := func(c string) string { return row[c].String }
	num := func(c string) int {
		n, _ := strconv.Atoi(strings.TrimSpace(row[c].String))
		return n
	}

	rec := domain.MappedRecord{
		CanonicalLead: domain.CanonicalLead{
			LeadToken:             text(domain.ColumnLeadToken),
			Mobile:                text(domain.ColumnMobile),
			FirstUserCampaign:     text(domain.ColumnFirstUserCampaign),
			FirstUserCampaignID:   text(domain.ColumnFirstUserCampaignID),
			SourceMedium:          text(domain.ColumnSourceMedium),
			SessionCampaign:       text(domain.ColumnSessionCampaign),
			SessionCampaignID:     text(domain.ColumnSessionCampaignID),
			Sessions:              num(domain.ColumnSessions),
			EngagedSessions:       num(domain.ColumnEngagedSessions),
			Keyword:               text(domain.ColumnKeyword),
			OperatingSystem:       text(domain.ColumnOperatingSystem),
			FinalSource:           text(domain.ColumnFinalSource),
			FinalSourceCampaignID: text(domain.ColumnFinalSourceCampaignID),
		},
		Status:       domain.Status(text(domain.ColumnStatus)),
		ShiftingType: text(domain.ColumnShiftingType),
		Month:        num(domain.ColumnMonth),
		Year:         num(domain.ColumnYear),
	}
	if d, err := time.Parse("2006-01-02", text(domain.ColumnDate)); err == nil {
		rec.Date = d
	}
	if len(extra) > 0 {
		rec.Extra = make(map[string]string, len(extra))
		for _, c := range extra {
			if v := row[c]; v.Valid {
				rec.Extra[c] = v.String
			}
		}
	}
	return rec
}

func rowValues(rec domain.MappedRecord, extra []string) []any {
	values := []any{
		rec.LeadToken,
		pgtype.Date{Time: rec.Date, Valid: !rec.Date.IsZero()},
		rec.FirstUserCampaign,
		rec.FirstUserCampaignID,
		int64(rec.Sessions),
		rec.SourceMedium,
		rec.SessionCampaign,
		rec.SessionCampaignID,
		int64(rec.EngagedSessions),
		rec.Keyword,
		rec.OperatingSystem,
		rec.Mobile,
		rec.FinalSource,
		rec.FinalSourceCampaignID,
		string(rec.Status),
		rec.ShiftingType,
		int32(rec.Month),
		int32(rec.Year),
	}
	for _, c := range extra {
		if v, ok := rec.Extra[c]; ok {
			values = append(values, v)
		} else {
			values = append(values, nil)
		}
	}
	return values
}

// ReplaceAll truncates table and copies data in, in one transaction.
func (s *PostgresStore) ReplaceAll(ctx context.Context, table string, data *domain.MappedTable) (err error) {
	if data == nil {
		data = &domain.MappedTable{}
	}
	defer func() {
		status := "success"
		if err != nil {
			status = "failed"
		}
		s.metrics.RecordTableOperation(table, "replace", status)
	}()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace of %s: %w", table, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.logger.WithContext(ctx).WithError(rbErr).Warn("Rollback failed")
			}
		}
	}()

	if _, err = tx.Exec(ctx, fmt.Sprintf("TRUNCATE %s", s.ident(table))); err != nil {
		return fmt.Errorf("truncate %s: %w", table, err)
	}

	columns := append(append([]string(nil), domain.BaseColumns...), data.ExtraColumns...)
	rows := make([][]any, len(data.Records))
	for i, rec := range data.Records {
		rows[i] = rowValues(rec, data.ExtraColumns)
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{s.schema, table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy into %s: %w", table, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace of %s: %w", table, err)
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"table": table,
		"rows":  n,
	}).Info("Replaced warehouse table")
	return nil
}

// ResetTable drops table and recreates it empty with the base columns.
func (s *PostgresStore) ResetTable(ctx context.Context, table string) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", s.ident(table))); err != nil {
		s.metrics.RecordTableOperation(table, "reset", "failed")
		return fmt.Errorf("drop %s: %w", table, err)
	}
	if err := s.EnsureTable(ctx, table, nil); err != nil {
		s.metrics.RecordTableOperation(table, "reset", "failed")
		return err
	}
	s.metrics.RecordTableOperation(table, "reset", "success")
	s.logger.WithContext(ctx).WithField("table", table).Warn("Warehouse table reset")
	return nil
}
