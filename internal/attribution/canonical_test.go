package attribution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadsync/internal/domain"
)

func TestExtractLeadID(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"plain", "9876543210", "9876543210", true},
		{"embedded", "pnm_9876543210_web", "9876543210", true},
		{"first of two", "1111111111x2222222222", "1111111111", true},
		{"longer run takes first ten", "123456789012", "1234567890", true},
		{"too short", "987654321", "", false},
		{"split by separator", "98765-43210", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractLeadID(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeCampaign(t *testing.T) {
	for _, noise := range []string{"(not set)", "(direct)", "(organic)", "(referral)", "bangalore", "Nagpur", "geoID7"} {
		assert.Equal(t, SentinelNA, NormalizeCampaign(noise), noise)
	}
	assert.Equal(t, "Winter22", NormalizeCampaign("Winter22"))
	// matching is exact
	assert.Equal(t, "Bangalore", NormalizeCampaign("Bangalore"))
}

func TestComputeFinalSource(t *testing.T) {
	assert.Equal(t, FinalSourceOrganic, ComputeFinalSource("NA", "Summer Brand Promo"))
	assert.Equal(t, "Generic Sale", ComputeFinalSource("NA", "Generic Sale"))
	assert.Equal(t, "Winter22", ComputeFinalSource("Winter22", "Anything"))
	assert.Equal(t, "Winter22", ComputeFinalSource("Winter22", "Summer Brand Promo"))
	assert.Equal(t, SentinelNA, ComputeFinalSource("NA", "NA"))
}

func TestComputeFinalSourceCampaignID(t *testing.T) {
	assert.Equal(t, "ft-1", ComputeFinalSourceCampaignID("Winter22", "x", "ft-1", "s-1"))
	assert.Equal(t, "s-1", ComputeFinalSourceCampaignID("NA", "Generic Sale", "ft-1", "s-1"))
	assert.Empty(t, ComputeFinalSourceCampaignID("NA", "Summer Brand Promo", "ft-1", "s-1"))
	assert.Empty(t, ComputeFinalSourceCampaignID("NA", "NA", "ft-1", "s-1"))
}

func TestBucketOperatingSystem(t *testing.T) {
	assert.Equal(t, "iOS", BucketOperatingSystem("iOS"))
	assert.Equal(t, "Android", BucketOperatingSystem("Android"))
	assert.Equal(t, "Others", BucketOperatingSystem("Macintosh"))
	assert.Equal(t, "Others", BucketOperatingSystem(""))
}

func TestParseEventDate(t *testing.T) {
	for _, value := range []string{"20240315", "2024-03-15", "2024-03-15T18:30:00Z", " 20240315 "} {
		got, err := ParseEventDate(value)
		require.NoError(t, err, value)
		assert.Equal(t, day(t, "2024-03-15"), got, value)
	}

	_, err := ParseEventDate("15/03/2024")
	assert.Error(t, err)
}

func TestCanonicalize(t *testing.T) {
	events := []domain.AnalyticsEvent{
		{
			LeadToken:           "lead-9876543210",
			Date:                "20240315",
			FirstUserCampaign:   "(not set)",
			FirstUserCampaignID: "ft-1",
			SessionSource:       "google",
			SessionMedium:       "cpc",
			SessionCampaign:     "Summer Brand Promo",
			SessionCampaignID:   "s-1",
			Sessions:            3,
			EngagedSessions:     2,
			OperatingSystem:     "Linux",
		},
		{LeadToken: "no digits here", Date: "20240315"},
		{LeadToken: "1234567890", Date: "not a date"},
		{LeadToken: "1234567890", Date: "2024-04-01", FirstUserCampaign: "Winter22", FirstUserCampaignID: "ft-2"},
	}

	leads, skipped := Canonicalize(events)
	require.Len(t, leads, 2)
	assert.Equal(t, SkipCounts{NoLeadID: 1, BadDate: 1}, skipped)
	assert.Equal(t, 2, skipped.Total())

	first := leads[0]
	assert.Equal(t, "9876543210", first.Mobile)
	assert.Equal(t, "lead-9876543210", first.LeadToken)
	assert.Equal(t, day(t, "2024-03-15"), first.Date)
	assert.Equal(t, SentinelNA, first.FirstUserCampaign)
	assert.Equal(t, "google / cpc", first.SourceMedium)
	assert.Equal(t, FinalSourceOrganic, first.FinalSource)
	assert.Empty(t, first.FinalSourceCampaignID)
	assert.Equal(t, "Others", first.OperatingSystem)
	assert.Equal(t, 3, first.Sessions)

	second := leads[1]
	assert.Equal(t, "1234567890", second.Mobile)
	assert.Equal(t, "Winter22", second.FinalSource)
	assert.Equal(t, "ft-2", second.FinalSourceCampaignID)
	assert.Empty(t, second.SourceMedium)
	assert.Equal(t, "Others", second.OperatingSystem)
}

func TestCanonicalize_Empty(t *testing.T) {
	leads, skipped := Canonicalize(nil)
	assert.Empty(t, leads)
	assert.Zero(t, skipped.Total())
}
