package delivery

import (
	"context"
	"crypto/subtle"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"leadsync/internal/domain"
	"leadsync/internal/infrastructure"
	"leadsync/internal/usecase"
	"leadsync/pkg/logger"
	"leadsync/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	dateLayout       = "2006-01-02"
	resetTokenHeader = "X-Reset-Token"
	multipartMemory  = 32 << 20
)

// HandlerOptions carries the request-level settings of the API.
type HandlerOptions struct {
	// charset label of uploaded CSV files
	InputEncoding  string
	MaxUploadBytes int64
	// empty disables the reset endpoint
	ResetToken string
	// nil when Salesforce credentials are not configured
	SalesforceCRM domain.CRMSource
}

// handles HTTP requests
type HTTPHandlers struct {
	syncService    *usecase.SyncService
	publishService *usecase.PublishService
	reportService  *usecase.ReportService
	opts           HandlerOptions
	logger         *logger.Logger
	metrics        *metrics.Metrics
}

// creates new HTTP handlers
func NewHTTPHandlers(
	syncService *usecase.SyncService,
	publishService *usecase.PublishService,
	reportService *usecase.ReportService,
	opts HandlerOptions,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *HTTPHandlers {
	return &HTTPHandlers{
		syncService:    syncService,
		publishService: publishService,
		reportService:  reportService,
		opts:           opts,
		logger:         logger,
		metrics:        metrics,
	}
}

// SyncRun runs the reconciliation pipeline for a date range and stores the
// result under a new run id.
func (h *HTTPHandlers) SyncRun(c *gin.Context) {
	ctx, requestID := requestScope(c)
	log := h.logger.WithContext(ctx)

	if err := h.parseUpload(c); err != nil {
		h.badUpload(c, requestID, err)
		return
	}

	startDate, err := parseDate(c.PostForm("start_date"), "start_date")
	if err != nil {
		h.badRequest(c, requestID, "Invalid start date", err)
		return
	}
	endDate, err := parseDate(c.PostForm("end_date"), "end_date")
	if err != nil {
		h.badRequest(c, requestID, "Invalid end date", err)
		return
	}

	req := usecase.SyncRequest{Start: startDate, End: endDate}

	switch source := c.DefaultPostForm("crm_source", "csv"); source {
	case "salesforce":
		if h.opts.SalesforceCRM == nil {
			h.badRequest(c, requestID, "CRM source unavailable", errors.New("salesforce credentials are not configured"))
			return
		}
		req.CRM = h.opts.SalesforceCRM
	case "csv":
		crm, err := h.uploadedCSV(c, "crm_file")
		if err != nil {
			h.badRequest(c, requestID, "Invalid CRM file", err)
			return
		}
		if crm == nil {
			h.badRequest(c, requestID, "Missing required file", errors.New("crm_file is required"))
			return
		}
		req.CRM = crm
	default:
		h.badRequest(c, requestID, "Invalid CRM source", fmt.Errorf("unknown crm_source %q", source))
		return
	}

	aux, err := h.uploadedCSV(c, "aux_file")
	if err != nil {
		h.badRequest(c, requestID, "Invalid auxiliary file", err)
		return
	}
	if aux != nil {
		req.Aux = aux
	}

	log.Info("Starting sync run")

	state, err := h.syncService.Run(ctx, req)
	if err != nil {
		h.fail(ctx, c, requestID, "Sync run failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Sync run completed successfully",
		"run_id":     state.RunID,
		"requested":  state.Requested,
		"expanded":   state.Expanded,
		"stats":      state.Stats,
		"has_aux":    state.Aux != nil,
		"request_id": requestID,
	})
}

// AttachAux maps an uploaded auxiliary file onto an existing run.
func (h *HTTPHandlers) AttachAux(c *gin.Context) {
	ctx, requestID := requestScope(c)
	runID := c.Param("id")

	if err := h.parseUpload(c); err != nil {
		h.badUpload(c, requestID, err)
		return
	}

	aux, err := h.uploadedCSV(c, "aux_file")
	if err != nil {
		h.badRequest(c, requestID, "Invalid auxiliary file", err)
		return
	}
	if aux == nil {
		h.badRequest(c, requestID, "Missing required file", errors.New("aux_file is required"))
		return
	}

	state, err := h.syncService.AttachAux(ctx, runID, aux)
	if err != nil {
		h.fail(ctx, c, requestID, "Failed to attach auxiliary data", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Auxiliary data attached",
		"run_id":        state.RunID,
		"aux_rows":      state.Stats.AuxRows,
		"extra_columns": state.Aux.ExtraColumns,
		"request_id":    requestID,
	})
}

// RunRecords returns a filtered page of a run's mapped or auxiliary records.
func (h *HTTPHandlers) RunRecords(c *gin.Context) {
	ctx, requestID := requestScope(c)

	filter, err := parseRecordFilter(c)
	if err != nil {
		h.badRequest(c, requestID, "Invalid parameters", err)
		return
	}

	page, err := h.reportService.Records(ctx, c.Param("id"), c.Query("table"), filter)
	if err != nil {
		h.fail(ctx, c, requestID, "Failed to retrieve records", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       page.Data,
		"total":      page.Total,
		"limit":      page.Limit,
		"offset":     page.Offset,
		"has_more":   page.HasMore,
		"request_id": requestID,
	})
}

// RunSummary returns lead and conversion counts for a run's mapped records.
func (h *HTTPHandlers) RunSummary(c *gin.Context) {
	ctx, requestID := requestScope(c)

	filter, err := parseRecordFilter(c)
	if err != nil {
		h.badRequest(c, requestID, "Invalid parameters", err)
		return
	}

	summary, err := h.reportService.Summary(ctx, c.Param("id"), filter)
	if err != nil {
		h.fail(ctx, c, requestID, "Failed to retrieve summary", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_leads":     summary.TotalLeads,
		"conversions":     summary.Conversions,
		"conversion_rate": summary.ConversionRate,
		"not_found":       summary.NotFound,
		"request_id":      requestID,
	})
}

// PublishRun merges a run's table into the warehouse.
func (h *HTTPHandlers) PublishRun(c *gin.Context) {
	ctx, requestID := requestScope(c)
	runID := c.Param("id")

	stats, err := h.publishService.Publish(ctx, runID, c.Query("table"))
	if err != nil {
		h.fail(ctx, c, requestID, "Publish failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "Publish completed successfully",
		"run_id":         runID,
		"table":          stats.Table,
		"total_rows":     stats.TotalRows,
		"new_records":    stats.NewRecords,
		"status_updates": stats.StatusUpdates,
		"request_id":     requestID,
	})
}

// ResetTable drops and recreates a warehouse table. It requires the
// configured reset token.
func (h *HTTPHandlers) ResetTable(c *gin.Context) {
	ctx, requestID := requestScope(c)

	token := c.GetHeader(resetTokenHeader)
	if h.opts.ResetToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.opts.ResetToken)) != 1 {
		h.logger.WithContext(ctx).Warn("Rejected table reset")
		c.JSON(http.StatusForbidden, gin.H{
			"error":      "Forbidden",
			"message":    "a valid " + resetTokenHeader + " header is required",
			"request_id": requestID,
		})
		return
	}

	table, err := h.publishService.Reset(ctx, c.Param("table"))
	if err != nil {
		h.fail(ctx, c, requestID, "Reset failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Table reset",
		"table":      table,
		"request_id": requestID,
	})
}

// GetAPIInfo returns API v1 information and available endpoints
func (h *HTTPHandlers) GetAPIInfo(c *gin.Context) {
	_, requestID := requestScope(c)

	c.JSON(http.StatusOK, gin.H{
		"api_version": "v1",
		"service":     "leadsync",
		"version":     "1.0.0",
		"description": "Reconciles analytics sessions with CRM opportunities into an attribution table",
		"endpoints": gin.H{
			"sync": gin.H{
				"path":        "/api/v1/sync/run",
				"method":      "POST",
				"description": "Run the pipeline for a date range (multipart form)",
				"parameters": gin.H{
					"start_date": "Required: Start date (YYYY-MM-DD)",
					"end_date":   "Required: End date (YYYY-MM-DD)",
					"crm_source": "Optional: csv (default) or salesforce",
					"crm_file":   "CRM opportunity export, required for crm_source=csv",
					"aux_file":   "Optional: auxiliary lead file keyed by Mobile or LEAD_MOBILE",
				},
			},
			"records": gin.H{
				"path":        "/api/v1/runs/{id}/records",
				"method":      "GET",
				"description": "Filtered records of a run",
				"parameters": gin.H{
					"table":         "Optional: mapped (default) or aux",
					"from":          "Optional: Start date (YYYY-MM-DD), defaults to the run start",
					"to":            "Optional: End date (YYYY-MM-DD), defaults to the run end",
					"campaign":      "Optional, repeatable: final source",
					"source_medium": "Optional, repeatable",
					"os":            "Optional, repeatable: operating system",
					"shifting_type": "Optional, repeatable",
					"limit":         "Optional: Number of results (default: 100)",
					"offset":        "Optional: Pagination offset (default: 0)",
				},
			},
			"summary": gin.H{
				"path":   "/api/v1/runs/{id}/summary",
				"method": "GET",
			},
			"aux": gin.H{
				"path":        "/api/v1/runs/{id}/aux",
				"method":      "POST",
				"description": "Attach an auxiliary file (aux_file) to a run",
			},
			"publish": gin.H{
				"path":        "/api/v1/runs/{id}/publish",
				"method":      "POST",
				"description": "Merge a run into the warehouse table (table=mapped|aux)",
			},
			"reset": gin.H{
				"path":        "/api/v1/tables/{table}/reset",
				"method":      "POST",
				"description": "Drop and recreate a warehouse table; requires " + resetTokenHeader,
			},
		},
		"request_id": requestID,
	})
}

// HealthCheck returns the health status of the service
func (h *HTTPHandlers) HealthCheck(c *gin.Context) {
	_, requestID := requestScope(c)

	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"service":    "leadsync",
		"version":    "1.0.0",
		"request_id": requestID,
	})
}

// requestScope returns the request context and the id set by the RequestID
// middleware, generating one when the handler runs without it.
func requestScope(c *gin.Context) (context.Context, string) {
	requestID := c.GetString("request_id")
	if requestID == "" {
		requestID = uuid.New().String()
	}
	ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID)
	return ctx, requestID
}

func (h *HTTPHandlers) parseUpload(c *gin.Context) error {
	if h.opts.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes)
	}
	err := c.Request.ParseMultipartForm(multipartMemory)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return err
	}
	return nil
}

// uploadedCSV returns nil without error when the field is absent.
func (h *HTTPHandlers) uploadedCSV(c *gin.Context, field string) (*infrastructure.CSVSource, error) {
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return infrastructure.NewCSVBytesSource(header.Filename, data, h.opts.InputEncoding, h.logger, h.metrics), nil
}

func (h *HTTPHandlers) badUpload(c *gin.Context, requestID string, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":      "Upload too large",
			"message":    fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			"request_id": requestID,
		})
		return
	}
	h.badRequest(c, requestID, "Invalid form data", err)
}

func (h *HTTPHandlers) badRequest(c *gin.Context, requestID, message string, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":      message,
		"message":    err.Error(),
		"request_id": requestID,
	})
}

// fail maps service errors to a status code and writes the error body.
func (h *HTTPHandlers) fail(ctx context.Context, c *gin.Context, requestID, message string, err error) {
	status := statusForError(err)

	log := h.logger.WithContext(ctx).WithError(err)
	if status >= http.StatusInternalServerError {
		log.Error(message)
	} else {
		log.Warn(message)
	}

	body := gin.H{
		"error":      message,
		"message":    err.Error(),
		"request_id": requestID,
	}

	var schemaErr *domain.SchemaError
	var mergeErr *domain.MergeSchemaError
	switch {
	case errors.As(err, &schemaErr):
		body["source"] = schemaErr.Source
		body["missing_columns"] = schemaErr.Missing
	case errors.As(err, &mergeErr):
		body["side"] = mergeErr.Side
		body["missing_columns"] = mergeErr.Missing
	}

	c.JSON(status, body)
}

func statusForError(err error) int {
	var schemaErr *domain.SchemaError
	var mergeErr *domain.MergeSchemaError
	var parseErr *csv.ParseError

	switch {
	case errors.As(err, &schemaErr), errors.As(err, &mergeErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &parseErr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidWindow), errors.Is(err, domain.ErrUnknownTable):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoAuxData):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func parseDate(value, field string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%s is required", field)
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be in YYYY-MM-DD format", field)
	}
	return t, nil
}

// parseRecordFilter reads the record filters from the query string.
func parseRecordFilter(c *gin.Context) (domain.RecordFilter, error) {
	var filter domain.RecordFilter

	if s := c.Query("from"); s != "" {
		from, err := parseDate(s, "from")
		if err != nil {
			return filter, err
		}
		filter.From = &from
	}
	if s := c.Query("to"); s != "" {
		to, err := parseDate(s, "to")
		if err != nil {
			return filter, err
		}
		filter.To = &to
	}

	filter.Campaigns = queryValues(c, "campaign")
	filter.SourceMediums = queryValues(c, "source_medium")
	filter.OperatingSystems = queryValues(c, "os")
	filter.ShiftingTypes = queryValues(c, "shifting_type")

	var err error
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = queryInt(c, "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}

func queryValues(c *gin.Context, key string) []string {
	var values []string
	for _, v := range c.QueryArray(key) {
		if v != "" {
			values = append(values, v)
		}
	}
	return values
}

func queryInt(c *gin.Context, key string) (int, error) {
	s := c.Query(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}
