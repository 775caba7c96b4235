package usecase

import (
	"context"
	"fmt"
	"sync"

	"leadsync/internal/attribution"
	"leadsync/internal/domain"
	"leadsync/pkg/logger"
	"leadsync/pkg/metrics"
)

// table kinds a run can be published to
const (
	TableMapped = "mapped"
	TableAux    = "aux"
)

// PublishService merges run output into the warehouse tables.
type PublishService struct {
	store   domain.TableStore
	runs    domain.RunRepository
	tables  map[string]string
	logger  *logger.Logger
	metrics *metrics.Metrics

	// one lock per warehouse table; read-merge-replace is not atomic
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewPublishService(
	store domain.TableStore,
	runs domain.RunRepository,
	mappedTable, auxTable string,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *PublishService {
	return &PublishService{
		store: store,
		runs:  runs,
		tables: map[string]string{
			TableMapped: mappedTable,
			TableAux:    auxTable,
		},
		logger:  logger,
		metrics: metrics,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *PublishService) lockTable(table string) func() {
	s.mu.Lock()
	l, ok := s.locks[table]
	if !ok {
		l = &sync.Mutex{}
		s.locks[table] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// TableName resolves a table kind to its warehouse table.
func (s *PublishService) TableName(kind string) (string, error) {
	if kind == "" {
		kind = TableMapped
	}
	table, ok := s.tables[kind]
	if !ok {
		return "", fmt.Errorf("%q: %w", kind, domain.ErrUnknownTable)
	}
	return table, nil
}

// Publish merges the chosen table of a stored run into the warehouse.
func (s *PublishService) Publish(ctx context.Context, runID, kind string) (*domain.PublishStats, error) {
	table, err := s.TableName(kind)
	if err != nil {
		return nil, err
	}
	state, err := s.runs.Get(ctx, runID)
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, logger.RunIDKey, runID)
	data := state.Mapped
	if kind == TableAux {
		data = state.Aux
	}
	if data == nil {
		return nil, domain.ErrNoAuxData
	}
	return s.PublishTable(ctx, table, data)
}

// PublishTable reads the current table, merges data into it and writes the
// result back as a full replacement. Publishes to the same table run one at
// a time.
func (s *PublishService) PublishTable(ctx context.Context, table string, data *domain.MappedTable) (*domain.PublishStats, error) {
	log := s.logger.WithContext(ctx).WithField("table", table)
	log.WithField("rows", data.Len()).Info("Publishing to warehouse")

	unlock := s.lockTable(table)
	defer unlock()

	if err := s.store.EnsureTable(ctx, table, data.ExtraColumns); err != nil {
		return nil, fmt.Errorf("failed to prepare table %s: %w", table, err)
	}

	existing, err := s.store.ReadAll(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", table, err)
	}

	result, err := attribution.Merge(data.Records, existing.Records)
	if err != nil {
		log.WithError(err).Error("Merge failed")
		return nil, fmt.Errorf("failed to merge into %s: %w", table, err)
	}

	merged := &domain.MappedTable{
		ExtraColumns: unionColumns(existing.ExtraColumns, data.ExtraColumns),
		Records:      result.Records,
	}
	if err := s.store.ReplaceAll(ctx, table, merged); err != nil {
		return nil, fmt.Errorf("failed to write table %s: %w", table, err)
	}

	stats := &domain.PublishStats{
		Table:         table,
		TotalRows:     len(result.Records),
		NewRecords:    result.NewRecords,
		StatusUpdates: result.StatusUpdates,
	}
	s.metrics.RecordMerge(table, stats.TotalRows, stats.NewRecords, stats.StatusUpdates)

	log.WithFields(map[string]any{
		"total_rows":     stats.TotalRows,
		"new_records":    stats.NewRecords,
		"status_updates": stats.StatusUpdates,
		"existing_rows":  existing.Len(),
	}).Info("Warehouse table updated")

	return stats, nil
}

// Reset drops and recreates the table of the given kind.
func (s *PublishService) Reset(ctx context.Context, kind string) (string, error) {
	table, err := s.TableName(kind)
	if err != nil {
		return "", err
	}
	unlock := s.lockTable(table)
	defer unlock()

	if err := s.store.ResetTable(ctx, table); err != nil {
		return "", fmt.Errorf("failed to reset table %s: %w", table, err)
	}
	s.logger.WithContext(ctx).WithField("table", table).Warn("Warehouse table reset")
	return table, nil
}

func unionColumns(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, cols := range [][]string{a, b} {
		for _, c := range cols {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}
