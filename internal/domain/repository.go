package domain

import "context"

// source of raw analytics rows for a date window
type AnalyticsSource interface {
	FetchEvents(ctx context.Context, window Window) ([]AnalyticsEvent, error)
}

// CRMSource yields the CRM opportunity table for one run.
type CRMSource interface {
	FetchCRM(ctx context.Context) (*CRMTable, error)
}

type AuxSource interface {
	FetchAux(ctx context.Context) (*AuxTable, error)
}

// TableStore is the warehouse collaborator. ReplaceAll must be atomic: either
// the whole replacement lands or the previous table is left untouched.
type TableStore interface {
	EnsureTable(ctx context.Context, table string, extraColumns []string) error
	ReadAll(ctx context.Context, table string) (*MappedTable, error)
	ReplaceAll(ctx context.Context, table string, data *MappedTable) error
	ResetTable(ctx context.Context, table string) error
}

// interface for run state kept between HTTP calls
type RunRepository interface {
	Save(ctx context.Context, state *PipelineState) error
	Get(ctx context.Context, runID string) (*PipelineState, error)
}
