package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all runtime configuration, read from the environment.
// The mains load a .env file via godotenv before calling Load.
type Config struct {
	// HTTPPort is the API server listen port.
	HTTPPort string

	// GCP settings for the BigQuery entity store and the GCS file store.
	ProjectID string
	DatasetID string
	GCSBucket string

	// ModelName is the Gemini model used for categorization and summaries.
	ModelName string

	// VerificationBaseURL is the public base for report verification links,
	// e.g. "https://verify.kitako.ph".
	VerificationBaseURL string

	// ReportExpiryDays sets the access window of generated reports.
	// Zero means reports never expire.
	ReportExpiryDays int

	// WorkerCount is the number of concurrent job workers.
	WorkerCount int

	// QueueBuffer is the job queue channel capacity.
	QueueBuffer int
}

// Load reads configuration from the environment. ProjectID and DatasetID are
// required; everything else has a sensible default.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:            getenv("HTTP_PORT", "8080"),
		ProjectID:           os.Getenv("GCP_PROJECT_ID"),
		DatasetID:           getenv("BQ_DATASET", "incomeproof"),
		GCSBucket:           os.Getenv("GCS_BUCKET"),
		ModelName:           getenv("GEMINI_MODEL", "gemini-2.5-flash"),
		VerificationBaseURL: getenv("VERIFICATION_BASE_URL", "https://verify.kitako.ph"),
		ReportExpiryDays:    getenvInt("REPORT_EXPIRY_DAYS", 90),
		WorkerCount:         getenvInt("WORKER_COUNT", 5),
		QueueBuffer:         getenvInt("QUEUE_BUFFER", 100),
	}

	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("config: GCP_PROJECT_ID is required")
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
