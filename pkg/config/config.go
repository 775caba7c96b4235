package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Application settings
type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Sync      SyncConfig
	External  ExternalConfig
	Warehouse WarehouseConfig
	Security  SecurityConfig
}

// Server settings
type ServerConfig struct {
	Port           string
	RequestTimeout time.Duration
	MaxUploadBytes int64
}

type SyncConfig struct {
	RequestTimeout     time.Duration
	RateLimitPerSecond int
	PageSize           int
	// charset label of uploaded CSV inputs
	InputEncoding string
}

type ExternalConfig struct {
	AnalyticsAPIURL   string
	AnalyticsAPIToken string
	AnalyticsProperty string

	SalesforceDomain      string
	SalesforceUsername    string
	SalesforceConsumerKey string
	SalesforceKeyFile     string
	SalesforceObject      string
	SalesforceWhere       string
}

type WarehouseConfig struct {
	DatabaseURL string
	Schema      string
	MappedTable string
	AuxTable    string
}

type SecurityConfig struct {
	ResetToken string
}

// Logging settings
type LoggingConfig struct {
	Level string
}

// Load reads configuration from the environment. Values from a .env file in
// the working directory are applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			RequestTimeout: getDurationEnv("HTTP_REQUEST_TIMEOUT", "5m"),
			MaxUploadBytes: int64(getIntEnv("MAX_UPLOAD_MB", 64)) << 20,
		},
		Sync: SyncConfig{
			RequestTimeout:     getDurationEnv("REQUEST_TIMEOUT", "60s"),
			RateLimitPerSecond: getIntEnv("RATE_LIMIT_PER_SECOND", 10),
			PageSize:           getIntEnv("ANALYTICS_PAGE_SIZE", 100000),
			InputEncoding:      getEnv("INPUT_ENCODING", "iso-8859-1"),
		},
		External: ExternalConfig{
			AnalyticsAPIURL:       getEnv("ANALYTICS_API_URL", ""),
			AnalyticsAPIToken:     getEnv("ANALYTICS_API_TOKEN", ""),
			AnalyticsProperty:     getEnv("ANALYTICS_PROPERTY_ID", ""),
			SalesforceDomain:      getEnv("SALESFORCE_DOMAIN", ""),
			SalesforceUsername:    getEnv("SALESFORCE_USERNAME", ""),
			SalesforceConsumerKey: getEnv("SALESFORCE_CONSUMER_KEY", ""),
			SalesforceKeyFile:     getEnv("SALESFORCE_KEY_FILE", ""),
			SalesforceObject:      getEnv("SALESFORCE_OBJECT", "House_Shifting_Opportunity__c"),
			SalesforceWhere:       getEnv("SALESFORCE_WHERE", ""),
		},
		Warehouse: WarehouseConfig{
			DatabaseURL: getEnv("DATABASE_URL", ""),
			Schema:      getEnv("WAREHOUSE_SCHEMA", "attribution"),
			MappedTable: getEnv("WAREHOUSE_TABLE_MAPPED", "ga_sf_mapped"),
			AuxTable:    getEnv("WAREHOUSE_TABLE_AUX", "ga_sf_aux_mapped"),
		},
		Security: SecurityConfig{
			ResetToken: getEnv("RESET_TOKEN", ""),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.Sync.PageSize <= 0 {
		return fmt.Errorf("ANALYTICS_PAGE_SIZE must be positive, got %d", c.Sync.PageSize)
	}
	if c.Sync.RateLimitPerSecond <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_SECOND must be positive, got %d", c.Sync.RateLimitPerSecond)
	}
	if c.Warehouse.MappedTable == "" || c.Warehouse.AuxTable == "" {
		return fmt.Errorf("warehouse table names must not be empty")
	}
	if c.Warehouse.MappedTable == c.Warehouse.AuxTable {
		return fmt.Errorf("WAREHOUSE_TABLE_MAPPED and WAREHOUSE_TABLE_AUX must differ")
	}
	return nil
}

// SalesforceEnabled reports whether enough credentials are set to query
// Salesforce directly.
func (c *Config) SalesforceEnabled() bool {
	e := c.External
	return e.SalesforceDomain != "" && e.SalesforceUsername != "" &&
		e.SalesforceConsumerKey != "" && e.SalesforceKeyFile != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
