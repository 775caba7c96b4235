package infrastructure

import (
	"context"
	"fmt"
	"sync"

	"leadsync/internal/domain"
	"leadsync/pkg/logger"
)

const DefaultMaxRuns = 20

// RunRepository keeps the most recent pipeline states in memory so that
// HTTP clients can inspect and publish a run after it finished. It
// implements domain.RunRepository.
type RunRepository struct {
	data    map[string]*domain.PipelineState
	order   []string
	maxRuns int
	mutex   sync.RWMutex
	logger  *logger.Logger
}

func NewRunRepository(maxRuns int, logger *logger.Logger) *RunRepository {
	if maxRuns <= 0 {
		maxRuns = DefaultMaxRuns
	}
	return &RunRepository{
		data:    make(map[string]*domain.PipelineState),
		maxRuns: maxRuns,
		logger:  logger,
	}
}

// Save stores state, evicting the oldest run once maxRuns is exceeded.
func (r *RunRepository) Save(ctx context.Context, state *domain.PipelineState) error {
	if state == nil || state.RunID == "" {
		return fmt.Errorf("run state without id")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.data[state.RunID]; !exists {
		r.order = append(r.order, state.RunID)
	}
	r.data[state.RunID] = state

	for len(r.order) > r.maxRuns {
		evicted := r.order[0]
		r.order = r.order[1:]
		delete(r.data, evicted)
		r.logger.WithContext(ctx).WithField("run_id", evicted).Debug("Evicted run state")
	}
	return nil
}

func (r *RunRepository) Get(ctx context.Context, runID string) (*domain.PipelineState, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	state, ok := r.data[runID]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrRunNotFound)
	}
	return state, nil
}
