package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadsync/internal/domain"
)

func reportRowFor(token, date string) reportRow {
	dims := []string{token, date, "Winter22", "ft-1", "google", "cpc", "(not set)", "", "", "kw", "iOS"}
	row := reportRow{MetricValues: []reportValue{{Value: "2"}, {Value: "1"}}}
	for _, d := range dims {
		row.DimensionValues = append(row.DimensionValues, reportValue{Value: d})
	}
	return row
}

func TestAnalyticsClient_FetchEventsPages(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []reportRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req reportRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		requests = append(requests, req)
		mu.Unlock()

		var resp reportResponse
		n := 2
		if req.Offset > 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			resp.Rows = append(resp.Rows, reportRowFor(fmt.Sprintf("98765432%02d", req.Offset+i), "20240315"))
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	log, m := testDeps()
	client := NewAnalyticsClient(server.URL, "secret", "123", 2, 1000, 5*time.Second, log, m)

	window := domain.Window{
		Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
	}
	events, err := client.FetchEvents(context.Background(), window)
	require.NoError(t, err)
	require.Len(t, events, 3)

	require.Len(t, requests, 2)
	assert.Equal(t, 0, requests[0].Offset)
	assert.Equal(t, 2, requests[1].Offset)
	assert.Equal(t, 2, requests[0].Limit)
	assert.Equal(t, "properties/123", requests[0].Property)
	assert.Equal(t, "2024-03-01", requests[0].DateRanges[0].StartDate)
	assert.Equal(t, "2024-04-30", requests[0].DateRanges[0].EndDate)
	assert.Len(t, requests[0].Dimensions, len(analyticsDimensions))

	ev := events[0]
	assert.Equal(t, "9876543200", ev.LeadToken)
	assert.Equal(t, "20240315", ev.Date)
	assert.Equal(t, "Winter22", ev.FirstUserCampaign)
	assert.Equal(t, "google", ev.SessionSource)
	assert.Equal(t, "kw", ev.Keyword)
	assert.Equal(t, "iOS", ev.OperatingSystem)
	assert.Equal(t, 2, ev.Sessions)
	assert.Equal(t, 1, ev.EngagedSessions)
}

func TestAnalyticsClient_EmptyReport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rowCount":0}`))
	}))
	defer server.Close()

	log, m := testDeps()
	client := NewAnalyticsClient(server.URL, "", "123", 10, 1000, time.Second, log, m)
	events, err := client.FetchEvents(context.Background(), domain.Window{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAnalyticsClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	log, m := testDeps()
	client := NewAnalyticsClient(server.URL, "", "123", 10, 1000, time.Second, log, m)
	_, err := client.FetchEvents(context.Background(), domain.Window{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestAnalyticsClient_MalformedRow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rows":[{"dimensionValues":[{"value":"x"}],"metricValues":[]}]}`))
	}))
	defer server.Close()

	log, m := testDeps()
	client := NewAnalyticsClient(server.URL, "", "123", 10, 1000, time.Second, log, m)
	_, err := client.FetchEvents(context.Background(), domain.Window{})
	assert.Error(t, err)
}

func TestAnalyticsClient_NotConfigured(t *testing.T) {
	log, m := testDeps()
	client := NewAnalyticsClient("", "", "", 0, 0, time.Second, log, m)
	_, err := client.FetchEvents(context.Background(), domain.Window{})
	assert.Error(t, err)
}

func TestAnalyticsClient_MalformedRowIndexOnLaterPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req reportRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := reportResponse{Rows: []reportRow{
			reportRowFor("9876543210", "20240315"),
			reportRowFor("9876543211", "20240315"),
		}}
		if req.Offset > 0 {
			resp.Rows[1] = reportRow{DimensionValues: []reportValue{{Value: "x"}}}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	log, m := testDeps()
	client := NewAnalyticsClient(server.URL, "", "123", 2, 1000, time.Second, log, m)
	_, err := client.FetchEvents(context.Background(), domain.Window{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analytics row 3:")
}
