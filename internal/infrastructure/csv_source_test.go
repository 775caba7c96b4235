package infrastructure

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadsync/internal/domain"
)

const crmCSV = `House Shifting Opportunity: Created Date,Mobile,Status,Shifting Type,Owner
2024-03-05,9876543210,Open,Intra City,asha
03/15/2024, 1234567890 ,Converted,Inter City,ravi
not a date,5555555555,Quoted,Intra City,
`

func TestReadCRMCSV(t *testing.T) {
	table, err := ReadCRMCSV(strings.NewReader(crmCSV), "")
	require.NoError(t, err)
	require.Len(t, table.Records, 2)
	assert.Equal(t, 1, table.SkippedRows)
	assert.Contains(t, table.Columns, "Owner")

	assert.Equal(t, domain.CRMRecord{
		Mobile:       "9876543210",
		CreatedDate:  time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Status:       domain.StatusOpen,
		ShiftingType: "Intra City",
	}, table.Records[0])

	assert.Equal(t, "1234567890", table.Records[1].Mobile)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), table.Records[1].CreatedDate)
}

func TestParseCRMDate(t *testing.T) {
	tests := []struct {
		value string
		want  time.Time
	}{
		{"2024-03-05", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"2024-03-05 18:30:00", time.Date(2024, 3, 5, 18, 30, 0, 0, time.UTC)},
		{"01/03/2024", time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
		{"1/3/2024", time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
		{"1/3/2024 10:15 AM", time.Date(2024, 1, 3, 10, 15, 0, 0, time.UTC)},
		{"12/31/2024 3:04 PM", time.Date(2024, 12, 31, 15, 4, 0, 0, time.UTC)},
		{"1/3/2024 17:45", time.Date(2024, 1, 3, 17, 45, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, ok := ParseCRMDate(tt.value)
		require.True(t, ok, tt.value)
		assert.True(t, tt.want.Equal(got), "%s: got %s", tt.value, got)
	}

	for _, value := range []string{"", "not a date", "15/03/2024"} {
		_, ok := ParseCRMDate(value)
		assert.False(t, ok, value)
	}
}

func TestReadCRMCSV_SlashDatesAreMonthFirst(t *testing.T) {
	data := "House Shifting Opportunity: Created Date,Mobile,Status,Shifting Type\n" +
		"01/02/2024,9876543210,Open,Intra City\n" +
		"03/01/2024 9:30 AM,9876543210,Converted,Intra City\n"
	table, err := ReadCRMCSV(strings.NewReader(data), "")
	require.NoError(t, err)
	require.Len(t, table.Records, 2)
	assert.Zero(t, table.SkippedRows)

	assert.Equal(t, time.January, table.Records[0].CreatedDate.Month())
	assert.Equal(t, 2, table.Records[0].CreatedDate.Day())
	assert.Equal(t, time.March, table.Records[1].CreatedDate.Month())
	assert.Equal(t, 1, table.Records[1].CreatedDate.Day())
}

func TestReadCRMCSV_HeaderOnlySkipsSchemaCheck(t *testing.T) {
	table, err := ReadCRMCSV(strings.NewReader("Mobile,Status\n"), "")
	require.NoError(t, err)
	assert.Empty(t, table.Records)
	assert.Equal(t, []string{"Mobile", "Status"}, table.Columns)
}

func TestReadCRMCSV_MissingColumns(t *testing.T) {
	_, err := ReadCRMCSV(strings.NewReader("Mobile,Status\n9876543210,Open\n"), "")

	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{domain.CRMColumnCreatedDate, domain.CRMColumnShiftingType}, schemaErr.Missing)
}

func TestReadCRMCSV_Empty(t *testing.T) {
	table, err := ReadCRMCSV(strings.NewReader(""), "")
	require.NoError(t, err)
	assert.Empty(t, table.Records)
}

func TestReadCRMCSV_Latin1(t *testing.T) {
	// 0xE9 is e-acute in latin-1 and invalid UTF-8 on its own
	data := "House Shifting Opportunity: Created Date,Mobile,Status,Shifting Type\n2024-03-05,9876543210,Open,Caf\xe9\n"
	table, err := ReadCRMCSV(strings.NewReader(data), "iso-8859-1")
	require.NoError(t, err)
	assert.Equal(t, "Café", table.Records[0].ShiftingType)
}

func TestReadCRMCSV_UnknownEncoding(t *testing.T) {
	_, err := ReadCRMCSV(strings.NewReader(crmCSV), "klingon")
	assert.Error(t, err)
}

func TestReadAuxCSV(t *testing.T) {
	data := "\xef\xbb\xbfLEAD_MOBILE,City,Lead Date\n9876543210,Pune,2024-01-01\n1234567890,Delhi\n"
	table, err := ReadAuxCSV(strings.NewReader(data), "iso-8859-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"LEAD_MOBILE", "City", "Lead Date"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Pune", table.Rows[0]["City"])
	assert.Equal(t, map[string]string{"LEAD_MOBILE": "1234567890", "City": "Delhi"}, table.Rows[1])
}

func TestCSVSource_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crm.csv")
	require.NoError(t, os.WriteFile(path, []byte(crmCSV), 0o600))

	log, m := testDeps()
	src := NewCSVFileSource(path, "utf-8", log, m)
	table, err := src.FetchCRM(context.Background())
	require.NoError(t, err)
	assert.Len(t, table.Records, 2)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SyncRecordsSkipped.WithLabelValues("crm", "bad_date")))

	missing := NewCSVFileSource(filepath.Join(t.TempDir(), "nope.csv"), "", log, m)
	_, err = missing.FetchAux(context.Background())
	assert.Error(t, err)
}

func TestCSVSource_Bytes(t *testing.T) {
	log, m := testDeps()
	src := NewCSVBytesSource("aux.csv", []byte("Mobile,City\n9876543210,Pune\n"), "", log, m)
	table, err := src.FetchAux(context.Background())
	require.NoError(t, err)
	assert.Len(t, table.Rows, 1)
}
