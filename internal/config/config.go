// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all runtime configuration for the sync service.
type Config struct {
	Port                 string
	DatabaseURL          string
	RedisURL             string
	AirtableAPIKey       string
	AirtableBaseID       string
	AirtableJobsTableID  string
	AirtableSkillTableID string
	SyncIntervalHours    int    // how often the cron job fires
	PolicyFile           string // optional; built-in defaults when empty
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	apiKey := os.Getenv("AIRTABLE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("AIRTABLE_API_KEY is required")
	}

	baseID := os.Getenv("AIRTABLE_BASE_ID")
	if baseID == "" {
		return nil, fmt.Errorf("AIRTABLE_BASE_ID is required")
	}

	jobsTable := os.Getenv("AIRTABLE_TABLE_ID_JOBS")
	if jobsTable == "" {
		return nil, fmt.Errorf("AIRTABLE_TABLE_ID_JOBS is required")
	}

	skillsTable := os.Getenv("AIRTABLE_TABLE_ID_SKILLS")
	if skillsTable == "" {
		return nil, fmt.Errorf("AIRTABLE_TABLE_ID_SKILLS is required")
	}

	interval := 6
	if s := os.Getenv("SYNC_INTERVAL_HOURS"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("SYNC_INTERVAL_HOURS must be a positive integer, got %q", s)
		}
		interval = v
	}

	port := os.Getenv("SYNC_PORT")
	if port == "" {
		port = "8083"
	}

	return &Config{
		Port:                 port,
		DatabaseURL:          dbURL,
		RedisURL:             redisURL,
		AirtableAPIKey:       apiKey,
		AirtableBaseID:       baseID,
		AirtableJobsTableID:  jobsTable,
		AirtableSkillTableID: skillsTable,
		SyncIntervalHours:    interval,
		PolicyFile:           os.Getenv("SYNC_POLICY_FILE"),
	}, nil
}
