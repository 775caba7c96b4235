package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"leadsync/internal/domain"
	"leadsync/pkg/logger"
	"leadsync/pkg/metrics"

	"golang.org/x/time/rate"
)

const DefaultAnalyticsPageSize = 100000

// report dimensions, in the order rows carry them
var analyticsDimensions = []string{
	"customEvent:PnM_parameter",
	"date",
	"firstUserCampaignName",
	"firstUserCampaignId",
	"sessionSource",
	"sessionMedium",
	"sessionCampaignName",
	"sessionCampaignId",
	"customEvent:GTES_mobile",
	"sessionManualAdContent",
	"operatingSystem",
}

var analyticsMetrics = []string{"sessions", "engagedSessions"}

const (
	dimLeadToken = iota
	dimDate
	dimFirstUserCampaign
	dimFirstUserCampaignID
	dimSessionSource
	dimSessionMedium
	dimSessionCampaign
	dimSessionCampaignID
	dimMobile
	dimKeyword
	dimOperatingSystem
)

type reportRequest struct {
	Property        string            `json:"property"`
	DateRanges      []reportDateRange `json:"dateRanges"`
	Dimensions      []reportName      `json:"dimensions"`
	Metrics         []reportName      `json:"metrics"`
	DimensionFilter json.RawMessage   `json:"dimensionFilter,omitempty"`
	Offset          int               `json:"offset"`
	Limit           int               `json:"limit"`
}

type reportDateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type reportName struct {
	Name string `json:"name"`
}

type reportValue struct {
	Value string `json:"value"`
}

type reportRow struct {
	DimensionValues []reportValue `json:"dimensionValues"`
	MetricValues    []reportValue `json:"metricValues"`
}

type reportResponse struct {
	Rows     []reportRow `json:"rows"`
	RowCount int         `json:"rowCount"`
}

// rows with an empty lead parameter are excluded server side
var leadTokenPresentFilter = json.RawMessage(`{"notExpression":{"filter":{"fieldName":"customEvent:PnM_parameter","stringFilter":{"value":""}}}}`)

// AnalyticsClient pulls session rows from a runReport-style reporting
// endpoint. It implements domain.AnalyticsSource.
type AnalyticsClient struct {
	client      *http.Client
	url         string
	token       string
	property    string
	pageSize    int
	logger      *logger.Logger
	metrics     *metrics.Metrics
	rateLimiter *rate.Limiter
}

func NewAnalyticsClient(url, token, property string, pageSize, ratePerSecond int, timeout time.Duration, logger *logger.Logger, metrics *metrics.Metrics) *AnalyticsClient {
	if pageSize <= 0 {
		pageSize = DefaultAnalyticsPageSize
	}
	if ratePerSecond <= 0 {
		ratePerSecond = 10
	}
	return &AnalyticsClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		url:         url,
		token:       token,
		property:    property,
		pageSize:    pageSize,
		logger:      logger,
		metrics:     metrics,
		rateLimiter: rate.NewLimiter(rate.Limit(ratePerSecond), 1),
	}
}

// FetchEvents pages through the report for window until a short page.
func (c *AnalyticsClient) FetchEvents(ctx context.Context, window domain.Window) ([]domain.AnalyticsEvent, error) {
	if c.url == "" {
		return nil, fmt.Errorf("analytics API URL not configured")
	}

	start := time.Now()
	var events []domain.AnalyticsEvent

	for offset := 0; ; offset += c.pageSize {
		rows, err := c.fetchPage(ctx, window, offset)
		if err != nil {
			return nil, err
		}
		for i, row := range rows {
			ev, err := eventFromRow(row)
			if err != nil {
				c.metrics.RecordExternalAPIFailure("analytics", "row_shape")
				return nil, fmt.Errorf("analytics row %d: %w", offset+i, err)
			}
			events = append(events, ev)
		}
		if len(rows) < c.pageSize {
			break
		}
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"start":    window.Start.Format("2006-01-02"),
		"end":      window.End.Format("2006-01-02"),
		"duration": time.Since(start),
		"records":  len(events),
	}).Info("Successfully fetched analytics data")

	return events, nil
}

func (c *AnalyticsClient) fetchPage(ctx context.Context, window domain.Window, offset int) ([]reportRow, error) {
	start := time.Now()

	if err := c.rateLimiter.Wait(ctx); err != nil {
		c.metrics.RecordExternalAPIFailure("analytics", "rate_limit")
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	payload, err := json.Marshal(c.buildRequest(window, offset))
	if err != nil {
		c.metrics.RecordExternalAPIFailure("analytics", "json_marshal")
		return nil, fmt.Errorf("failed to marshal report request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		c.metrics.RecordExternalAPIFailure("analytics", "request_creation")
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.RecordExternalAPIFailure("analytics", "network_error")
		return nil, fmt.Errorf("failed to fetch analytics data: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordExternalAPICall("analytics", fmt.Sprintf("error_%d", resp.StatusCode), duration)
		return nil, fmt.Errorf("analytics API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RecordExternalAPIFailure("analytics", "read_body")
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var report reportResponse
	if err := json.Unmarshal(body, &report); err != nil {
		c.metrics.RecordExternalAPIFailure("analytics", "json_parse")
		return nil, fmt.Errorf("failed to parse analytics report: %w", err)
	}

	c.metrics.RecordExternalAPICall("analytics", "success", duration)

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"offset":   offset,
		"rows":     len(report.Rows),
		"duration": duration,
	}).Debug("Fetched analytics page")

	return report.Rows, nil
}

func (c *AnalyticsClient) buildRequest(window domain.Window, offset int) reportRequest {
	req := reportRequest{
		Property: "properties/" + c.property,
		DateRanges: []reportDateRange{{
			StartDate: window.Start.Format("2006-01-02"),
			EndDate:   window.End.Format("2006-01-02"),
		}},
		DimensionFilter: leadTokenPresentFilter,
		Offset:          offset,
		Limit:           c.pageSize,
	}
	for _, d := range analyticsDimensions {
		req.Dimensions = append(req.Dimensions, reportName{Name: d})
	}
	for _, m := range analyticsMetrics {
		req.Metrics = append(req.Metrics, reportName{Name: m})
	}
	return req
}

func eventFromRow(row reportRow) (domain.AnalyticsEvent, error) {
	if len(row.DimensionValues) != len(analyticsDimensions) {
		return domain.AnalyticsEvent{}, fmt.Errorf("expected %d dimensions, got %d", len(analyticsDimensions), len(row.DimensionValues))
	}
	if len(row.MetricValues) != len(analyticsMetrics) {
		return domain.AnalyticsEvent{}, fmt.Errorf("expected %d metrics, got %d", len(analyticsMetrics), len(row.MetricValues))
	}

	dim := func(i int) string { return row.DimensionValues[i].Value }

	sessions, err := strconv.Atoi(row.MetricValues[0].Value)
	if err != nil {
		return domain.AnalyticsEvent{}, fmt.Errorf("sessions: %w", err)
	}
	engaged, err := strconv.Atoi(row.MetricValues[1].Value)
	if err != nil {
		return domain.AnalyticsEvent{}, fmt.Errorf("engagedSessions: %w", err)
	}

	return domain.AnalyticsEvent{
		LeadToken:           dim(dimLeadToken),
		Date:                dim(dimDate),
		FirstUserCampaign:   dim(dimFirstUserCampaign),
		FirstUserCampaignID: dim(dimFirstUserCampaignID),
		SessionSource:       dim(dimSessionSource),
		SessionMedium:       dim(dimSessionMedium),
		SessionCampaign:     dim(dimSessionCampaign),
		SessionCampaignID:   dim(dimSessionCampaignID),
		Sessions:            sessions,
		EngagedSessions:     engaged,
		Keyword:             dim(dimKeyword),
		OperatingSystem:     dim(dimOperatingSystem),
	}, nil
}
