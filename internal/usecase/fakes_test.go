package usecase

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"leadsync/internal/domain"
	"leadsync/pkg/logger"
	"leadsync/pkg/metrics"
)

type fakeAnalytics struct {
	events []domain.AnalyticsEvent
	err    error
	window domain.Window
}

func (f *fakeAnalytics) FetchEvents(ctx context.Context, window domain.Window) ([]domain.AnalyticsEvent, error) {
	f.window = window
	return f.events, f.err
}

type fakeCRM struct {
	table *domain.CRMTable
	err   error
}

func (f *fakeCRM) FetchCRM(ctx context.Context) (*domain.CRMTable, error) {
	return f.table, f.err
}

type fakeAux struct {
	table *domain.AuxTable
	err   error
}

func (f *fakeAux) FetchAux(ctx context.Context) (*domain.AuxTable, error) {
	return f.table, f.err
}

func testDeps() (*logger.Logger, *metrics.Metrics) {
	return logger.Discard(), metrics.New(prometheus.NewRegistry())
}
