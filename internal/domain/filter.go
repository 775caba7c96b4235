package domain

import "time"

// filters applied to a run's records before display or export
type RecordFilter struct {
	From             *time.Time `json:"from,omitempty"`
	To               *time.Time `json:"to,omitempty"`
	Campaigns        []string   `json:"campaigns,omitempty"`
	SourceMediums    []string   `json:"source_mediums,omitempty"`
	OperatingSystems []string   `json:"operating_systems,omitempty"`
	ShiftingTypes    []string   `json:"shifting_types,omitempty"`
	Limit            int        `json:"limit,omitempty"`
	Offset           int        `json:"offset,omitempty"`
}

type RecordPage struct {
	Data    []MappedRecord `json:"data"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	HasMore bool           `json:"has_more"`
}

// Summary counts distinct leads, not rows.
type Summary struct {
	TotalLeads     int     `json:"total_leads"`
	Conversions    int     `json:"conversions"`
	ConversionRate float64 `json:"conversion_rate"`
	NotFound       int     `json:"not_found"`
}
