package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 100000, cfg.Sync.PageSize)
	assert.Equal(t, "iso-8859-1", cfg.Sync.InputEncoding)
	assert.Equal(t, "ga_sf_mapped", cfg.Warehouse.MappedTable)
	assert.Equal(t, "ga_sf_aux_mapped", cfg.Warehouse.AuxTable)
	assert.Equal(t, int64(64<<20), cfg.Server.MaxUploadBytes)
	assert.False(t, cfg.SalesforceEnabled())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("WAREHOUSE_TABLE_MAPPED", "leads")
	t.Setenv("SALESFORCE_DOMAIN", "acme.my.salesforce.com")
	t.Setenv("SALESFORCE_USERNAME", "etl@acme.com")
	t.Setenv("SALESFORCE_CONSUMER_KEY", "key")
	t.Setenv("SALESFORCE_KEY_FILE", "/etc/sf.pem")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Sync.RequestTimeout)
	assert.Equal(t, "leads", cfg.Warehouse.MappedTable)
	assert.True(t, cfg.SalesforceEnabled())
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_SECOND", "lots")
	t.Setenv("REQUEST_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Sync.RateLimitPerSecond)
	assert.Equal(t, 60*time.Second, cfg.Sync.RequestTimeout)
}

func TestLoad_RejectsSameTables(t *testing.T) {
	t.Setenv("WAREHOUSE_TABLE_MAPPED", "leads")
	t.Setenv("WAREHOUSE_TABLE_AUX", "leads")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsNonPositivePageSize(t *testing.T) {
	t.Setenv("ANALYTICS_PAGE_SIZE", "0")

	_, err := Load()
	assert.Error(t, err)
}
