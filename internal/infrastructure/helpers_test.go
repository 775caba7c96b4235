package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"

	"leadsync/pkg/logger"
	"leadsync/pkg/metrics"
)

func testDeps() (*logger.Logger, *metrics.Metrics) {
	return logger.Discard(), metrics.New(prometheus.NewRegistry())
}
