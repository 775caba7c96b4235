package domain

import (
	"fmt"
	"time"
)

// PeriodKey is the deduplication key: one lead per bi-month period per year.
type PeriodKey struct {
	Mobile string
	Year   int
	Period int
}

// CompositeKey is the persistence key of the warehouse table.
type CompositeKey struct {
	Mobile string
	Month  int
	Year   int
}

func (k CompositeKey) String() string {
	return fmt.Sprintf("%s_%d_%d", k.Mobile, k.Month, k.Year)
}

type MappedRecord struct {
	CanonicalLead
	Status       Status            `json:"status"`
	ShiftingType string            `json:"shifting_type"`
	Month        int               `json:"month"`
	Year         int               `json:"year"`
	Extra        map[string]string `json:"extra,omitempty"`
}

func (r MappedRecord) Key() CompositeKey {
	return CompositeKey{Mobile: r.Mobile, Month: r.Month, Year: r.Year}
}

// MappedTable is a set of mapped records plus the auxiliary columns they
// carry in Extra, in output order.
type MappedTable struct {
	ExtraColumns []string       `json:"extra_columns,omitempty"`
	Records      []MappedRecord `json:"records"`
}

func (t *MappedTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// PipelineState is the result of one reconciliation run. It is owned by the
// caller; nothing in the core keeps it between calls.
type PipelineState struct {
	RunID     string       `json:"run_id"`
	Requested Window       `json:"requested"`
	Expanded  Window       `json:"expanded"`
	Mapped    *MappedTable `json:"mapped"`
	Aux       *MappedTable `json:"aux,omitempty"`
	Stats     RunStats     `json:"stats"`
	CreatedAt time.Time    `json:"created_at"`
}

type RunStats struct {
	AnalyticsRows  int `json:"analytics_rows"`
	SkippedRows    int `json:"skipped_rows"`
	CanonicalLeads int `json:"canonical_leads"`
	DedupedLeads   int `json:"deduped_leads"`
	CRMRecords     int `json:"crm_records"`
	MatchedLeads   int `json:"matched_leads"`
	AuxRows        int `json:"aux_rows"`
}

// outcome of writing a merged table back to the warehouse
type PublishStats struct {
	Table         string `json:"table"`
	TotalRows     int    `json:"total_rows"`
	NewRecords    int    `json:"new_records"`
	StatusUpdates int    `json:"status_updates"`
}
