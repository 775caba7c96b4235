package usecase

import (
	"context"
	"fmt"
	"sort"

	"leadsync/internal/attribution"
	"leadsync/internal/domain"
	"leadsync/pkg/logger"
)

const defaultPageLimit = 100

// ReportService serves filtered views of a stored run.
type ReportService struct {
	runs   domain.RunRepository
	logger *logger.Logger
}

func NewReportService(runs domain.RunRepository, logger *logger.Logger) *ReportService {
	return &ReportService{runs: runs, logger: logger}
}

func (s *ReportService) table(ctx context.Context, runID, kind string) (*domain.PipelineState, *domain.MappedTable, error) {
	state, err := s.runs.Get(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	switch kind {
	case "", TableMapped:
		return state, state.Mapped, nil
	case TableAux:
		if state.Aux == nil {
			return nil, nil, domain.ErrNoAuxData
		}
		return state, state.Aux, nil
	default:
		return nil, nil, fmt.Errorf("%q: %w", kind, domain.ErrUnknownTable)
	}
}

// withRunWindow defaults the date bounds to the run's requested window.
func withRunWindow(filter domain.RecordFilter, state *domain.PipelineState) domain.RecordFilter {
	if filter.From == nil && !state.Requested.Start.IsZero() {
		from := state.Requested.Start
		filter.From = &from
	}
	if filter.To == nil && !state.Requested.End.IsZero() {
		to := state.Requested.End
		filter.To = &to
	}
	return filter
}

// Records returns one page of a run's filtered records, oldest first.
func (s *ReportService) Records(ctx context.Context, runID, kind string, filter domain.RecordFilter) (*domain.RecordPage, error) {
	state, table, err := s.table(ctx, runID, kind)
	if err != nil {
		return nil, err
	}
	filter = withRunWindow(filter, state)

	filtered := attribution.FilterRecords(table.Records, filter)
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Date.Before(filtered[j].Date)
	})

	page := paginate(filtered, filter.Limit, filter.Offset)

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id":   runID,
		"table":    kind,
		"total":    page.Total,
		"returned": len(page.Data),
		"has_more": page.HasMore,
	}).Debug("Returning run records")

	return page, nil
}

// Summary computes lead and conversion counts over a run's filtered records.
func (s *ReportService) Summary(ctx context.Context, runID string, filter domain.RecordFilter) (*domain.Summary, error) {
	state, table, err := s.table(ctx, runID, TableMapped)
	if err != nil {
		return nil, err
	}
	summary := attribution.Summarize(attribution.FilterRecords(table.Records, withRunWindow(filter, state)))
	return &summary, nil
}

func paginate(records []domain.MappedRecord, limit, offset int) *domain.RecordPage {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}

	total := len(records)
	start := offset
	end := offset + limit

	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	data := []domain.MappedRecord{}
	if start < end {
		data = records[start:end]
	}

	return &domain.RecordPage{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: end < total,
	}
}
