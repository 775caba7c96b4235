package infrastructure

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"leadsync/internal/domain"
	"leadsync/pkg/logger"
	"leadsync/pkg/metrics"

	"github.com/k-capehart/go-salesforce/v3"
	"golang.org/x/time/rate"
)

// SOQLQuerier is the subset of *salesforce.Salesforce used here.
type SOQLQuerier interface {
	Query(soql string, out any) error
}

type opportunityRecord struct {
	CreatedDate  string `json:"CreatedDate" salesforce:"CreatedDate"`
	Mobile       string `json:"Mobile__c" salesforce:"Mobile__c"`
	Status       string `json:"Status__c" salesforce:"Status__c"`
	ShiftingType string `json:"Shifting_Type__c" salesforce:"Shifting_Type__c"`
}

// SalesforceCRMSource queries opportunities straight from Salesforce. It
// implements domain.CRMSource and yields the same columns as the CSV export.
type SalesforceCRMSource struct {
	sf      SOQLQuerier
	object  string
	where   string
	limiter *rate.Limiter
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewSalesforceClient authenticates with the JWT bearer flow using the RSA
// key at keyFile.
func NewSalesforceClient(domainURL, username, consumerKey, keyFile string) (*salesforce.Salesforce, error) {
	pemData, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("read salesforce private key: %w", err)
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         domainURL,
		Username:       username,
		ConsumerKey:    consumerKey,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, fmt.Errorf("init salesforce: %w", err)
	}
	return sf, nil
}

func NewSalesforceCRMSource(sf SOQLQuerier, object, where string, logger *logger.Logger, metrics *metrics.Metrics) *SalesforceCRMSource {
	return &SalesforceCRMSource{
		sf:      sf,
		object:  object,
		where:   where,
		limiter: rate.NewLimiter(rate.Limit(5), 1),
		logger:  logger,
		metrics: metrics,
	}
}

func (s *SalesforceCRMSource) soql() string {
	q := fmt.Sprintf("SELECT CreatedDate, Mobile__c, Status__c, Shifting_Type__c FROM %s", s.object)
	if where := strings.TrimSpace(s.where); where != "" {
		q += " WHERE " + where
	}
	return q
}

func (s *SalesforceCRMSource) FetchCRM(ctx context.Context) (*domain.CRMTable, error) {
	start := time.Now()

	// the client library takes no context; only the wait is cancellable
	if err := s.limiter.Wait(ctx); err != nil {
		s.metrics.RecordExternalAPIFailure("salesforce", "rate_limit")
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	var records []opportunityRecord
	if err := s.sf.Query(s.soql(), &records); err != nil {
		s.metrics.RecordExternalAPIFailure("salesforce", "query")
		return nil, fmt.Errorf("salesforce query: %w", err)
	}

	table := &domain.CRMTable{
		Columns: append([]string(nil), domain.CRMRequiredColumns...),
		Records: make([]domain.CRMRecord, 0, len(records)),
	}
	for _, r := range records {
		created, ok := ParseCRMDate(salesforceDate(r.CreatedDate))
		if !ok {
			table.SkippedRows++
			continue
		}
		table.Records = append(table.Records, domain.CRMRecord{
			Mobile:       strings.TrimSpace(r.Mobile),
			CreatedDate:  created,
			Status:       domain.Status(strings.TrimSpace(r.Status)),
			ShiftingType: strings.TrimSpace(r.ShiftingType),
		})
	}

	duration := time.Since(start)
	s.metrics.RecordExternalAPICall("salesforce", "success", duration)
	s.metrics.RecordSkipped("crm", "bad_date", table.SkippedRows)

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"object":   s.object,
		"duration": duration,
		"records":  len(table.Records),
		"skipped":  table.SkippedRows,
	}).Info("Successfully fetched Salesforce opportunities")

	return table, nil
}

// salesforceDate trims a datetime such as 2024-03-15T10:20:30.000+0000 to
// its date part.
func salesforceDate(value string) string {
	if i := strings.IndexByte(value, 'T'); i > 0 {
		return value[:i]
	}
	return value
}
