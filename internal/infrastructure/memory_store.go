package infrastructure

import (
	"context"
	"sync"

	"leadsync/internal/domain"
	"leadsync/pkg/logger"
)

// MemoryStore is an in-process domain.TableStore, used when no database is
// configured.
type MemoryStore struct {
	tables map[string]*domain.MappedTable
	mutex  sync.RWMutex
	logger *logger.Logger
}

func NewMemoryStore(logger *logger.Logger) *MemoryStore {
	return &MemoryStore{
		tables: make(map[string]*domain.MappedTable),
		logger: logger,
	}
}

func (s *MemoryStore) EnsureTable(ctx context.Context, table string, extraColumns []string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t, ok := s.tables[table]
	if !ok {
		t = &domain.MappedTable{}
		s.tables[table] = t
	}
	have := make(map[string]bool, len(t.ExtraColumns))
	for _, c := range t.ExtraColumns {
		have[c] = true
	}
	for _, c := range extraColumns {
		if !have[c] {
			t.ExtraColumns = append(t.ExtraColumns, c)
			have[c] = true
		}
	}
	return nil
}

func (s *MemoryStore) ReadAll(ctx context.Context, table string) (*domain.MappedTable, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	t, ok := s.tables[table]
	if !ok {
		return &domain.MappedTable{}, nil
	}
	return cloneTable(t), nil
}

func (s *MemoryStore) ReplaceAll(ctx context.Context, table string, data *domain.MappedTable) error {
	if data == nil {
		data = &domain.MappedTable{}
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.tables[table] = cloneTable(data)

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"table": table,
		"rows":  len(data.Records),
	}).Info("Replaced table in memory")
	return nil
}

func (s *MemoryStore) ResetTable(ctx context.Context, table string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.tables[table] = &domain.MappedTable{}
	s.logger.WithContext(ctx).WithField("table", table).Warn("Table reset in memory")
	return nil
}

func cloneTable(t *domain.MappedTable) *domain.MappedTable {
	out := &domain.MappedTable{
		ExtraColumns: append([]string(nil), t.ExtraColumns...),
		Records:      make([]domain.MappedRecord, len(t.Records)),
	}
	for i, rec := range t.Records {
		if rec.Extra != nil {
			extra := make(map[string]string, len(rec.Extra))
			for k, v := range rec.Extra {
				extra[k] = v
			}
			rec.Extra = extra
		}
		out.Records[i] = rec
	}
	return out
}
