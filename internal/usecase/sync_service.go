package usecase

import (
	"context"
	"fmt"
	"time"

	"leadsync/internal/attribution"
	"leadsync/internal/domain"
	"leadsync/pkg/logger"
	"leadsync/pkg/metrics"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SyncRequest describes one reconciliation run. CRM and Aux are optional.
type SyncRequest struct {
	Start time.Time
	End   time.Time
	CRM   domain.CRMSource
	Aux   domain.AuxSource
}

type SyncService struct {
	analytics domain.AnalyticsSource
	runs      domain.RunRepository
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewSyncService(
	analytics domain.AnalyticsSource,
	runs domain.RunRepository,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *SyncService {
	return &SyncService{
		analytics: analytics,
		runs:      runs,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Run executes the reconciliation pipeline and returns its state. The state
// is also saved to the run repository when one is configured.
func (s *SyncService) Run(ctx context.Context, req SyncRequest) (*domain.PipelineState, error) {
	start := s.now()
	s.metrics.IncSyncRunsInProgress()
	defer s.metrics.DecSyncRunsInProgress()

	runID := uuid.New().String()
	ctx = context.WithValue(ctx, logger.RunIDKey, runID)
	log := s.logger.WithContext(ctx)

	window, err := attribution.ExpandToBimonth(req.Start, req.End)
	if err != nil {
		s.metrics.RecordSyncRun("failed", "validate", time.Since(start))
		return nil, fmt.Errorf("invalid window: %w", err)
	}

	log.WithFields(map[string]any{
		"requested_start": req.Start.Format("2006-01-02"),
		"requested_end":   req.End.Format("2006-01-02"),
		"expanded_start":  window.Start.Format("2006-01-02"),
		"expanded_end":    window.End.Format("2006-01-02"),
	}).Info("Starting sync run")

	events, crm, aux, err := s.extract(ctx, window, req)
	if err != nil {
		s.metrics.RecordSyncRun("failed", "extract", time.Since(start))
		return nil, fmt.Errorf("failed to extract data: %w", err)
	}

	leads, skipped := attribution.Canonicalize(events)
	deduped := attribution.DedupeAnalytics(leads)
	s.metrics.RecordSkipped("analytics", "no_lead_id", skipped.NoLeadID)
	s.metrics.RecordSkipped("analytics", "bad_date", skipped.BadDate)
	s.metrics.RecordStageRecords("canonical", len(leads))
	s.metrics.RecordStageRecords("deduped", len(deduped))

	records, err := attribution.MapStatus(deduped, crm)
	if err != nil {
		s.metrics.RecordSyncRun("failed", "map_status", time.Since(start))
		return nil, fmt.Errorf("failed to map CRM status: %w", err)
	}
	mapped := &domain.MappedTable{Records: records}

	state := &domain.PipelineState{
		RunID:     runID,
		Requested: domain.Window{Start: req.Start, End: req.End},
		Expanded:  window,
		Mapped:    mapped,
		CreatedAt: s.now(),
		Stats: domain.RunStats{
			AnalyticsRows:  len(events),
			SkippedRows:    skipped.Total(),
			CanonicalLeads: len(leads),
			DedupedLeads:   len(deduped),
			MatchedLeads:   countMatched(records),
		},
	}
	if crm != nil {
		state.Stats.CRMRecords = len(crm.Records)
	}

	if aux != nil {
		state.Aux, err = attribution.MapAuxiliary(mapped, aux)
		if err != nil {
			s.metrics.RecordSyncRun("failed", "map_aux", time.Since(start))
			return nil, fmt.Errorf("failed to map auxiliary data: %w", err)
		}
		state.Stats.AuxRows = len(aux.Rows)
	}

	if s.runs != nil {
		if err := s.runs.Save(ctx, state); err != nil {
			s.metrics.RecordSyncRun("failed", "save", time.Since(start))
			return nil, fmt.Errorf("failed to save run: %w", err)
		}
	}

	duration := time.Since(start)
	s.metrics.RecordSyncRun("success", "complete", duration)
	s.metrics.RecordStageRecords("mapped", len(records))

	log.WithFields(map[string]any{
		"duration":        duration,
		"analytics_rows":  state.Stats.AnalyticsRows,
		"skipped_rows":    skipped.Total(),
		"deduped_leads":   len(deduped),
		"crm_records":     state.Stats.CRMRecords,
		"matched_leads":   state.Stats.MatchedLeads,
		"aux_rows":        state.Stats.AuxRows,
		"has_aux_mapping": state.Aux != nil,
	}).Info("Sync run completed successfully")

	return state, nil
}

// AttachAux maps an auxiliary dataset onto an existing run's records,
// replacing any earlier auxiliary mapping of that run.
func (s *SyncService) AttachAux(ctx context.Context, runID string, source domain.AuxSource) (*domain.PipelineState, error) {
	if s.runs == nil {
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrRunNotFound)
	}
	state, err := s.runs.Get(ctx, runID)
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, logger.RunIDKey, runID)
	aux, err := source.FetchAux(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load auxiliary data: %w", err)
	}
	mappedAux, err := attribution.MapAuxiliary(state.Mapped, aux)
	if err != nil {
		return nil, fmt.Errorf("failed to map auxiliary data: %w", err)
	}

	updated := *state
	updated.Aux = mappedAux
	updated.Stats.AuxRows = len(aux.Rows)
	if err := s.runs.Save(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	s.logger.WithContext(ctx).WithField("aux_rows", len(aux.Rows)).Info("Auxiliary data attached to run")
	return &updated, nil
}

// extract loads all inputs concurrently; the first failure cancels the rest.
func (s *SyncService) extract(ctx context.Context, window domain.Window, req SyncRequest) ([]domain.AnalyticsEvent, *domain.CRMTable, *domain.AuxTable, error) {
	var (
		events []domain.AnalyticsEvent
		crm    *domain.CRMTable
		aux    *domain.AuxTable
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		events, err = s.analytics.FetchEvents(gctx, window)
		if err != nil {
			return fmt.Errorf("analytics: %w", err)
		}
		return nil
	})

	if req.CRM != nil {
		g.Go(func() error {
			var err error
			crm, err = req.CRM.FetchCRM(gctx)
			if err != nil {
				return fmt.Errorf("crm: %w", err)
			}
			return nil
		})
	}

	if req.Aux != nil {
		g.Go(func() error {
			var err error
			aux, err = req.Aux.FetchAux(gctx)
			if err != nil {
				return fmt.Errorf("auxiliary: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Data extraction failed")
		return nil, nil, nil, err
	}
	return events, crm, aux, nil
}

func countMatched(records []domain.MappedRecord) int {
	n := 0
	for _, r := range records {
		if r.Status != domain.StatusNotFound {
			n++
		}
	}
	return n
}
