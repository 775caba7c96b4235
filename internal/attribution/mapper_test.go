package attribution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadsync/internal/domain"
)

func crmTable(records ...domain.CRMRecord) *domain.CRMTable {
	return &domain.CRMTable{Columns: domain.CRMRequiredColumns, Records: records}
}

func TestMapStatus(t *testing.T) {
	leads := []domain.CanonicalLead{
		{Mobile: "9876543210", Date: day(t, "2024-03-05")},
		{Mobile: "1234567890", Date: day(t, "2024-12-31")},
	}
	crm := crmTable(
		domain.CRMRecord{Mobile: "9876543210", CreatedDate: day(t, "2024-03-06"), Status: domain.StatusOpen, ShiftingType: "Intra City"},
		domain.CRMRecord{Mobile: "9876543210", CreatedDate: day(t, "2024-03-09"), Status: domain.StatusQuoted, ShiftingType: "Inter City"},
	)

	got, err := MapStatus(leads, crm)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.StatusQuoted, got[0].Status)
	assert.Equal(t, "Inter City", got[0].ShiftingType)
	assert.Equal(t, 3, got[0].Month)
	assert.Equal(t, 2024, got[0].Year)

	assert.Equal(t, domain.StatusNotFound, got[1].Status)
	assert.Equal(t, domain.NotFound, got[1].ShiftingType)
	assert.Equal(t, 12, got[1].Month)
}

func TestMapStatus_LatestPeriodWins(t *testing.T) {
	leads := []domain.CanonicalLead{{Mobile: "9876543210", Date: day(t, "2024-01-05")}}
	crm := crmTable(
		domain.CRMRecord{Mobile: "9876543210", CreatedDate: day(t, "2024-05-01"), Status: domain.StatusOpen},
		domain.CRMRecord{Mobile: "9876543210", CreatedDate: day(t, "2024-01-10"), Status: domain.StatusConverted},
	)
	got, err := MapStatus(leads, crm)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, got[0].Status)
}

func TestMapStatus_NoCRM(t *testing.T) {
	leads := []domain.CanonicalLead{{Mobile: "9876543210", Date: day(t, "2024-03-05")}}

	for _, crm := range []*domain.CRMTable{nil, {}} {
		got, err := MapStatus(leads, crm)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, domain.StatusNotFound, got[0].Status)
		assert.NotEmpty(t, got[0].ShiftingType)
	}
}

func TestMapStatus_MissingColumns(t *testing.T) {
	crm := &domain.CRMTable{
		Columns: []string{domain.CRMColumnMobile, domain.CRMColumnStatus},
		Records: []domain.CRMRecord{{Mobile: "9876543210"}},
	}
	_, err := MapStatus(nil, crm)

	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "crm", schemaErr.Source)
	assert.Equal(t, []string{domain.CRMColumnCreatedDate, domain.CRMColumnShiftingType}, schemaErr.Missing)
}

func TestMapAuxiliary(t *testing.T) {
	mapped := &domain.MappedTable{Records: []domain.MappedRecord{
		{CanonicalLead: domain.CanonicalLead{Mobile: "9876543210"}, Status: domain.StatusOpen},
		{CanonicalLead: domain.CanonicalLead{Mobile: "1234567890"}, Status: domain.StatusNotFound},
	}}
	aux := &domain.AuxTable{
		Columns: []string{"LEAD_MOBILE", "City", "Status", "Lead Created Date"},
		Rows: []map[string]string{
			{"LEAD_MOBILE": " 9876543210 ", "City": "Pune", "Status": "Hot", "Lead Created Date": "2024-01-01"},
			{"LEAD_MOBILE": "9876543210", "City": "Delhi", "Status": "Cold"},
		},
	}

	got, err := MapAuxiliary(mapped, aux)
	require.NoError(t, err)
	assert.Equal(t, []string{"City", "Status" + AuxCollisionSuffix}, got.ExtraColumns)
	require.Len(t, got.Records, 2)

	assert.Equal(t, map[string]string{"City": "Pune", "Status_aux": "Hot"}, got.Records[0].Extra)
	assert.Equal(t, domain.StatusOpen, got.Records[0].Status)
	assert.Empty(t, got.Records[1].Extra)

	// input is not modified
	assert.Nil(t, mapped.Records[0].Extra)
}

func TestMapAuxiliary_PrefersMobileColumn(t *testing.T) {
	mapped := &domain.MappedTable{Records: []domain.MappedRecord{
		{CanonicalLead: domain.CanonicalLead{Mobile: "9876543210"}},
	}}
	aux := &domain.AuxTable{
		Columns: []string{"LEAD_MOBILE", "Mobile", "Owner"},
		Rows:    []map[string]string{{"LEAD_MOBILE": "0000000000", "Mobile": "9876543210", "Owner": "asha"}},
	}
	got, err := MapAuxiliary(mapped, aux)
	require.NoError(t, err)
	assert.Equal(t, []string{"LEAD_MOBILE", "Owner"}, got.ExtraColumns)
	assert.Equal(t, "0000000000", got.Records[0].Extra["LEAD_MOBILE"])
	assert.Equal(t, "asha", got.Records[0].Extra["Owner"])
}

func TestMapAuxiliary_EmptyReturnsInput(t *testing.T) {
	mapped := &domain.MappedTable{Records: []domain.MappedRecord{{CanonicalLead: domain.CanonicalLead{Mobile: "9876543210"}}}}

	got, err := MapAuxiliary(mapped, nil)
	require.NoError(t, err)
	assert.Same(t, mapped, got)

	got, err = MapAuxiliary(mapped, &domain.AuxTable{Columns: []string{"Mobile"}})
	require.NoError(t, err)
	assert.Same(t, mapped, got)
}

func TestMapAuxiliary_MissingLeadColumn(t *testing.T) {
	aux := &domain.AuxTable{
		Columns: []string{"Phone"},
		Rows:    []map[string]string{{"Phone": "9876543210"}},
	}
	_, err := MapAuxiliary(&domain.MappedTable{}, aux)

	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "auxiliary", schemaErr.Source)
}
