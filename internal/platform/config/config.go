package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"crewpay/internal/domain/payroll"
	"crewpay/internal/export/ach"
)

type Config struct {
	Addr              string
	DatabaseURL       string
	DataEncryptionKey string
	Environment       string
	LogLevel          string
	ExportDir         string
	CalcWorkers       int
	TaxTablePath      string
	TaxTable          string
	ContractorName    string
	RunMigrations     bool
	MigrationsDir     string
	MaxBodyBytes      int64
	RateLimitPerMin   int
	TrustProxy        bool
	ShutdownTimeout   time.Duration
	ACH               ACH
}

// ACH holds the originator settings for NACHA files.
type ACH struct {
	ImmediateDestination     string
	ImmediateDestinationName string
	ImmediateOrigin          string
	ImmediateOriginName      string
	CompanyName              string
	CompanyID                string
	ODFIRouting              string
	EntryDescription         string
	FileIDModifier           string
	CRLF                     bool
}

func Load() Config {
	return Config{
		Addr:              getEnv("APP_ADDR", ":8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		DataEncryptionKey: getEnv("DATA_ENCRYPTION_KEY", ""),
		Environment:       getEnv("APP_ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		ExportDir:         getEnv("EXPORT_DIR", "exports"),
		CalcWorkers:       getEnvInt("CALC_WORKERS", 4),
		TaxTablePath:      getEnv("TAX_TABLE_PATH", ""),
		TaxTable:          getEnv("TAX_TABLE", ""),
		ContractorName:    getEnv("CONTRACTOR_NAME", ""),
		RunMigrations:     getEnvBool("RUN_MIGRATIONS", true),
		MigrationsDir:     getEnv("MIGRATIONS_DIR", "migrations"),
		MaxBodyBytes:      int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		TrustProxy:        getEnvBool("TRUST_PROXY", false),
		ShutdownTimeout:   getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		ACH: ACH{
			ImmediateDestination:     getEnv("ACH_IMMEDIATE_DESTINATION", ""),
			ImmediateDestinationName: getEnv("ACH_IMMEDIATE_DESTINATION_NAME", ""),
			ImmediateOrigin:          getEnv("ACH_IMMEDIATE_ORIGIN", ""),
			ImmediateOriginName:      getEnv("ACH_IMMEDIATE_ORIGIN_NAME", ""),
			CompanyName:              getEnv("ACH_COMPANY_NAME", ""),
			CompanyID:                getEnv("ACH_COMPANY_ID", ""),
			ODFIRouting:              getEnv("ACH_ODFI_ROUTING", ""),
			EntryDescription:         getEnv("ACH_ENTRY_DESCRIPTION", "PAYROLL"),
			FileIDModifier:           getEnv("ACH_FILE_ID_MODIFIER", "A"),
			CRLF:                     getEnvBool("ACH_CRLF", false),
		},
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// SlogLevel maps LOG_LEVEL onto a slog level. Unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// ACHEnabled reports whether enough originator data is present to build
// NACHA files.
func (c Config) ACHEnabled() bool {
	return strings.TrimSpace(c.ACH.ImmediateDestination) != "" && strings.TrimSpace(c.ACH.CompanyID) != ""
}

func (c Config) ACHConfig() ach.Config {
	lineEnding := "\n"
	if c.ACH.CRLF {
		lineEnding = "\r\n"
	}
	return ach.Config{
		ImmediateDestination:     c.ACH.ImmediateDestination,
		ImmediateDestinationName: c.ACH.ImmediateDestinationName,
		ImmediateOrigin:          c.ACH.ImmediateOrigin,
		ImmediateOriginName:      c.ACH.ImmediateOriginName,
		CompanyName:              c.ACH.CompanyName,
		CompanyID:                c.ACH.CompanyID,
		ODFIRouting:              c.ACH.ODFIRouting,
		EntryDescription:         c.ACH.EntryDescription,
		FileIDModifier:           c.ACH.FileIDModifier,
		LineEnding:               lineEnding,
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Environment == "production" && strings.TrimSpace(c.DataEncryptionKey) == "" {
		return fmt.Errorf("DATA_ENCRYPTION_KEY must be set in production for encryption at rest")
	}
	if strings.TrimSpace(c.ExportDir) == "" {
		return fmt.Errorf("EXPORT_DIR must not be empty")
	}
	if c.CalcWorkers <= 0 {
		return fmt.Errorf("CALC_WORKERS must be positive")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMin <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.TaxTable != "" && c.TaxTablePath == "" {
		return fmt.Errorf("TAX_TABLE requires TAX_TABLE_PATH")
	}
	if c.TaxTablePath != "" {
		table, err := payroll.LoadTaxTable(c.TaxTablePath)
		if err != nil {
			return fmt.Errorf("TAX_TABLE_PATH: %w", err)
		}
		if _, err := table.Policy(c.TaxTable); err != nil {
			return fmt.Errorf("TAX_TABLE: %w", err)
		}
	}
	if c.ACHEnabled() {
		if _, err := ach.New(c.ACHConfig()); err != nil {
			return fmt.Errorf("ACH settings: %w", err)
		}
	}
	return nil
}
