package infrastructure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadsync/internal/domain"
)

type fakeQuerier struct {
	records []opportunityRecord
	err     error
	soql    string
}

func (f *fakeQuerier) Query(soql string, out any) error {
	f.soql = soql
	if f.err != nil {
		return f.err
	}
	*out.(*[]opportunityRecord) = f.records
	return nil
}

func TestSalesforceCRMSource_FetchCRM(t *testing.T) {
	q := &fakeQuerier{records: []opportunityRecord{
		{CreatedDate: "2024-03-15T10:20:30.000+0000", Mobile: " 9876543210", Status: "Quoted", ShiftingType: "Intra City"},
	}}
	log, m := testDeps()
	src := NewSalesforceCRMSource(q, "House_Shifting_Opportunity__c", "CreatedDate = LAST_N_DAYS:90", log, m)

	table, err := src.FetchCRM(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "SELECT CreatedDate, Mobile__c, Status__c, Shifting_Type__c FROM House_Shifting_Opportunity__c WHERE CreatedDate = LAST_N_DAYS:90", q.soql)
	assert.Equal(t, domain.CRMRequiredColumns, table.Columns)
	require.Len(t, table.Records, 1)
	assert.Equal(t, domain.CRMRecord{
		Mobile:       "9876543210",
		CreatedDate:  time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Status:       domain.StatusQuoted,
		ShiftingType: "Intra City",
	}, table.Records[0])
}

func TestSalesforceCRMSource_QueryError(t *testing.T) {
	log, m := testDeps()
	src := NewSalesforceCRMSource(&fakeQuerier{err: errors.New("INVALID_SESSION_ID")}, "Opp__c", "", log, m)

	_, err := src.FetchCRM(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_SESSION_ID")
}

func TestSalesforceCRMSource_DropsUnparseableDates(t *testing.T) {
	q := &fakeQuerier{records: []opportunityRecord{
		{CreatedDate: "", Mobile: "9876543210", Status: "Open"},
		{CreatedDate: "2024-03-15T10:20:30.000+0000", Mobile: "1234567890", Status: "Open"},
	}}
	log, m := testDeps()
	src := NewSalesforceCRMSource(q, "Opp__c", "", log, m)

	table, err := src.FetchCRM(context.Background())
	require.NoError(t, err)
	require.Len(t, table.Records, 1)
	assert.Equal(t, "1234567890", table.Records[0].Mobile)
	assert.Equal(t, 1, table.SkippedRows)
}
