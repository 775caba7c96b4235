package domain

import "time"

type Status string

const (
	StatusOpen      Status = "Open"
	StatusProspect  Status = "Prospect"
	StatusQuoted    Status = "Quoted"
	StatusClosed    Status = "Closed"
	StatusConverted Status = "Converted"

	// marks a lead with no CRM match; never produced by the CRM itself
	StatusNotFound Status = "Not Found"
)

// NotFound is the sentinel for unmatched category values.
const NotFound = "Not Found"

var statusPriority = map[Status]int{
	StatusOpen:      1,
	StatusProspect:  2,
	StatusQuoted:    3,
	StatusClosed:    4,
	StatusConverted: 5,
}

// Priority returns the pipeline rank of the status. Unknown statuses rank 0.
func (s Status) Priority() int {
	return statusPriority[s]
}

// exact column names of the CRM opportunity export
const (
	CRMColumnCreatedDate  = "House Shifting Opportunity: Created Date"
	CRMColumnMobile       = "Mobile"
	CRMColumnStatus       = "Status"
	CRMColumnShiftingType = "Shifting Type"
)

var CRMRequiredColumns = []string{
	CRMColumnCreatedDate,
	CRMColumnMobile,
	CRMColumnStatus,
	CRMColumnShiftingType,
}

type CRMRecord struct {
	Mobile       string    `json:"mobile"`
	CreatedDate  time.Time `json:"created_date"`
	Status       Status    `json:"status"`
	ShiftingType string    `json:"shifting_type"`
}

// CRMTable carries the header the records were decoded from so schema
// validation can name what was missing.
type CRMTable struct {
	Columns []string
	Records []CRMRecord
	// rows dropped because their created date did not parse
	SkippedRows int
}

// auxiliary lead columns, in lookup order
const (
	AuxColumnMobile     = "Mobile"
	AuxColumnLeadMobile = "LEAD_MOBILE"
)

// AuxTable is an arbitrary secondary dataset keyed by lead mobile.
type AuxTable struct {
	Columns []string
	Rows    []map[string]string
}
