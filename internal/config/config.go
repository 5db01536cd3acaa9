// Package config reads settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// DatabaseURL is empty when results are not persisted.
	DatabaseURL string
	ResultsDB   string

	NATSURL           string
	NATSSubjectPrefix string
	LogNATSSubjects   bool

	MetricsAddr string

	// StepLength zero keeps the scenario's step, or one second.
	StepLength time.Duration
	// EndTime zero runs until nothing is left to simulate.
	EndTime  time.Duration
	Lefthand bool

	Scenario       string
	TripInfoOutput string
	RouteOutput    string
	RouteLength    bool
	SummaryCSV     string

	LogFormat string
	LogLevel  string
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	// Results DSN: prefer DATABASE_URL / PG_DSN, else build from PG* vars when PGDATABASE is set
	cfg.DatabaseURL = firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN"))
	if cfg.DatabaseURL == "" {
		if db := os.Getenv("PGDATABASE"); db != "" {
			host := getenvDefault("PGHOST", "127.0.0.1")
			port := getenvDefault("PGPORT", "5432")
			user := getenvDefault("PGUSER", "postgres")
			pass := os.Getenv("PGPASSWORD")
			sslmode := getenvDefault("PGSSLMODE", "disable")
			if pass != "" {
				cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
			} else {
				cfg.DatabaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
			}
		}
	}
	cfg.ResultsDB = os.Getenv("RESULTS_DB")

	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", "ridesim")
	cfg.LogNATSSubjects = parseBool(os.Getenv("LOG_NATS_SUBJECTS"))

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	if v := os.Getenv("STEP_LENGTH_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid STEP_LENGTH_MS: %q", v)
		}
		cfg.StepLength = time.Duration(ms) * time.Millisecond
	}

	if v := os.Getenv("END_TIME_SEC"); v != "" {
		sec, err := strconv.ParseFloat(v, 64)
		if err != nil || sec < 0 {
			return nil, fmt.Errorf("invalid END_TIME_SEC: %q", v)
		}
		cfg.EndTime = time.Duration(sec * float64(time.Second))
	}

	cfg.Lefthand = parseBool(os.Getenv("LEFTHAND"))

	cfg.Scenario = os.Getenv("SCENARIO")
	cfg.TripInfoOutput = os.Getenv("TRIPINFO_OUTPUT")
	cfg.RouteOutput = os.Getenv("ROUTE_OUTPUT")
	cfg.RouteLength = parseBool(os.Getenv("ROUTE_LENGTH"))
	cfg.SummaryCSV = os.Getenv("SUMMARY_CSV")

	cfg.LogFormat = strings.ToUpper(strings.TrimSpace(os.Getenv("LOG_FORMAT")))
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")

	return cfg, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
