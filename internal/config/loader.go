package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/AddressImport/internal/core"
)

// LookupFunc returns the value of a variable and whether it is set.
type LookupFunc func(key string) (string, bool)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads configuration through lookup instead of the process
// environment.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), lookup); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

var durationType = reflect.TypeOf(time.Duration(0))

// loadStruct recursively populates struct fields from tagged variables.
func loadStruct(v reflect.Value, lookup LookupFunc) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal, lookup); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value := lookupValue(lookup, envName, field.Tag.Get("envAlt"))
		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// lookupValue tries the primary name, then the alternate.
func lookupValue(lookup LookupFunc, name, alt string) string {
	if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if alt != "" {
		if v, ok := lookup(alt); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int32, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		var result []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string
	positive := func(name string, v int64) {
		if v <= 0 {
			errs = append(errs, name+" must be positive")
		}
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT and SERVER_WRITE_TIMEOUT must be non-negative")
	}
	positive("SERVER_SHUTDOWN_TIMEOUT", int64(c.Server.ShutdownTimeout))
	positive("SERVER_REQUEST_TIMEOUT", int64(c.Server.RequestTimeout))

	// Import
	positive("IMPORT_MAX_FILE_SIZE", c.Import.MaxFileSize)
	positive("IMPORT_MAX_FILES", int64(c.Import.MaxFiles))
	positive("IMPORT_CHUNK_SIZE", int64(c.Import.ChunkSize))
	positive("IMPORT_DECODE_CONCURRENCY", int64(c.Import.DecodeConcurrency))
	positive("IMPORT_CACHE_SIZE", int64(c.Import.CacheSize))
	positive("IMPORT_MAX_CONCURRENT", int64(c.Import.MaxConcurrent))
	positive("IMPORT_MAX_WAIT_TIME", int64(c.Import.MaxWaitTime))
	positive("IMPORT_TIMEOUT", int64(c.Import.Timeout))
	if _, err := core.ParseContractRule(c.Import.ContractRule, core.DefaultAliases); err != nil {
		errs = append(errs, fmt.Sprintf("CONTRACT_RULE: %v", err))
	}

	// Export
	positive("EXPORT_CHUNK_SIZE", int64(c.Export.ChunkSize))
	switch strings.ToLower(c.Export.DefaultFormat) {
	case core.FormatCSV, core.FormatXLSX:
	default:
		errs = append(errs, fmt.Sprintf("EXPORT_DEFAULT_FORMAT (%q) must be one of: csv, xlsx", c.Export.DefaultFormat))
	}
	if c.Export.SheetName == "" || len(c.Export.SheetName) > 31 {
		errs = append(errs, "EXPORT_SHEET_NAME must be 1-31 characters")
	}

	// Data
	positive("DATA_ACTIVITY_CAPACITY", int64(c.Data.ActivityCapacity))

	// Rate limit
	if c.Rate.Enabled {
		positive("RATE_LIMIT_REQUESTS_PER_MINUTE", int64(c.Rate.RequestsPerMinute))
		positive("RATE_LIMIT_IMPORT", int64(c.Rate.ImportLimit))
	}

	// Security
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Logging
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String returns a safe string representation of the config for logging.
// API keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Addr: %q}, ", c.Server.Addr())
	fmt.Fprintf(&b, "Import: {MaxFileSize: %d, MaxFiles: %d, ChunkSize: %d, MaxConcurrent: %d, ContractRule: %q}, ",
		c.Import.MaxFileSize, c.Import.MaxFiles, c.Import.ChunkSize, c.Import.MaxConcurrent, c.Import.ContractRule)
	fmt.Fprintf(&b, "Export: {DefaultFormat: %q}, ", c.Export.DefaultFormat)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d}, ", c.Rate.Enabled, c.Rate.RequestsPerMinute)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: [%d MASKED]}, ", c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
