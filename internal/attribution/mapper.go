package attribution

import (
	"strings"

	"leadsync/internal/domain"
)

// AuxCollisionSuffix is appended to auxiliary columns whose name is already
// taken by the mapped table.
const AuxCollisionSuffix = "_aux"

var auxDateMarkers = []string{"date", "Date", "DATE", "created", "Created", "CREATED"}

// MapStatus left-joins the deduplicated CRM status and shifting type onto
// every lead. Leads without a CRM match get domain.StatusNotFound.
func MapStatus(leads []domain.CanonicalLead, crm *domain.CRMTable) ([]domain.MappedRecord, error) {
	statusByMobile := map[string]domain.Status{}
	shiftingByMobile := map[string]string{}

	if crm != nil && len(crm.Records) > 0 {
		if missing := domain.MissingColumns(crm.Columns, domain.CRMRequiredColumns); len(missing) > 0 {
			return nil, &domain.SchemaError{Source: "crm", Missing: missing}
		}
		// chronological order, so a lead seen in several periods ends up
		// with its latest period's record
		for _, rec := range DedupeCRM(crm.Records) {
			statusByMobile[rec.Mobile] = rec.Status
			shiftingByMobile[rec.Mobile] = rec.ShiftingType
		}
	}

	mapped := make([]domain.MappedRecord, 0, len(leads))
	for _, lead := range leads {
		rec := domain.MappedRecord{
			CanonicalLead: lead,
			Status:        domain.StatusNotFound,
			ShiftingType:  domain.NotFound,
			Month:         int(lead.Date.Month()),
			Year:          lead.Date.Year(),
		}
		if status, ok := statusByMobile[lead.Mobile]; ok {
			rec.Status = status
			rec.ShiftingType = shiftingByMobile[lead.Mobile]
		}
		mapped = append(mapped, rec)
	}
	return mapped, nil
}

// AuxLeadColumn returns the column holding the lead mobile in an auxiliary
// table.
func AuxLeadColumn(columns []string) (string, bool) {
	for _, candidate := range []string{domain.AuxColumnMobile, domain.AuxColumnLeadMobile} {
		for _, c := range columns {
			if c == candidate {
				return c, true
			}
		}
	}
	return "", false
}

func isDateLike(column string) bool {
	for _, marker := range auxDateMarkers {
		if strings.Contains(column, marker) {
			return true
		}
	}
	return false
}

// MapAuxiliary left-joins an auxiliary dataset onto mapped records by mobile.
// Date-like auxiliary columns are never merged, the first auxiliary row per
// mobile wins, and colliding names get AuxCollisionSuffix. A nil or empty aux
// table returns mapped unchanged.
func MapAuxiliary(mapped *domain.MappedTable, aux *domain.AuxTable) (*domain.MappedTable, error) {
	if aux == nil || len(aux.Rows) == 0 {
		return mapped, nil
	}
	if mapped == nil {
		mapped = &domain.MappedTable{}
	}

	leadColumn, ok := AuxLeadColumn(aux.Columns)
	if !ok {
		return nil, &domain.SchemaError{
			Source:  "auxiliary",
			Missing: []string{domain.AuxColumnMobile + " or " + domain.AuxColumnLeadMobile},
		}
	}

	taken := make(map[string]bool, len(domain.BaseColumns)+len(mapped.ExtraColumns))
	for _, c := range domain.BaseColumns {
		taken[c] = true
	}
	for _, c := range mapped.ExtraColumns {
		taken[c] = true
	}

	// source column -> output column
	var sourceColumns []string
	rename := map[string]string{}
	extraColumns := append([]string(nil), mapped.ExtraColumns...)
	for _, c := range aux.Columns {
		if c == leadColumn || isDateLike(c) {
			continue
		}
		out := c
		if taken[out] {
			out = c + AuxCollisionSuffix
		}
		taken[out] = true
		sourceColumns = append(sourceColumns, c)
		rename[c] = out
		extraColumns = append(extraColumns, out)
	}

	lookup := make(map[string]map[string]string, len(aux.Rows))
	for _, row := range aux.Rows {
		mobile := strings.TrimSpace(row[leadColumn])
		if _, seen := lookup[mobile]; seen {
			continue
		}
		lookup[mobile] = row
	}

	records := make([]domain.MappedRecord, 0, len(mapped.Records))
	for _, rec := range mapped.Records {
		out := rec
		out.Extra = make(map[string]string, len(rec.Extra)+len(sourceColumns))
		for k, v := range rec.Extra {
			out.Extra[k] = v
		}
		if row, ok := lookup[rec.Mobile]; ok {
			for _, c := range sourceColumns {
				if v, present := row[c]; present {
					out.Extra[rename[c]] = v
				}
			}
		}
		records = append(records, out)
	}

	return &domain.MappedTable{ExtraColumns: extraColumns, Records: records}, nil
}
