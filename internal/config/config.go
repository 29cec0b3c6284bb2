// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the
// go-care-keeper client. It aggregates all sub-configurations and is
// populated by merging values from environment variables, command-line flags,
// an optional JSON file and finally the built-in defaults.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env: variable name for scalar fields, read with [EnvPrefix] in front.
type StructuredConfig struct {
	// App holds identity and integrity settings of the running client.
	App App `envPrefix:"APP_"`

	// Storage holds configuration of the local persistence medium.
	Storage Storage `envPrefix:"STORAGE_"`

	// Adapter holds settings of the remote authority the sync engine talks to.
	Adapter Adapter `envPrefix:"ADAPTER_"`

	// Workers holds intervals of the background sync and connectivity jobs.
	Workers Workers `envPrefix:"WORKERS_"`

	// Status holds settings of the local status endpoint.
	Status Status `envPrefix:"STATUS_"`

	// Log holds logger output settings.
	Log Log `envPrefix:"LOG_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// Populated via the CARE_CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// App holds application-level configuration of the client.
type App struct {
	// UserID identifies the signed-in user. It is mixed into the device
	// secret so that different users on one device get different keys.
	// When empty it is read from the subject of Token.
	// Env: CARE_APP_USER_ID
	UserID string `env:"USER_ID"`

	// Token is the bearer token sent to the remote authority.
	// Env: CARE_APP_TOKEN
	Token string `env:"TOKEN"`

	// HashKey is the HMAC key used to sign mutation payloads.
	// Env: CARE_APP_HASH_KEY
	HashKey string `env:"HASH_KEY"`

	// Namespace prefixes every key the client writes to the secure store.
	// Env: CARE_APP_NAMESPACE
	Namespace string `env:"NAMESPACE"`
}

// Storage groups the configuration for the local storage backends.
type Storage struct {
	// DB holds the local database connection settings.
	DB DB `envPrefix:"DB_"`
}

// DB holds connection settings for the local SQLite database.
type DB struct {
	// DSN is the SQLite database path, or "memory" for a non-persistent
	// in-memory medium.
	// Env: CARE_STORAGE_DB_DSN
	DSN string `env:"DSN"`
}

// Adapter holds configuration of the remote authority HTTP client.
type Adapter struct {
	// HTTPAddress is the base URL of the remote authority
	// (e.g. "https://api.example.org").
	// Env: CARE_ADAPTER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// RequestTimeout bounds a single outbound request. A timed out request
	// counts as a transient sync failure.
	// Env: CARE_ADAPTER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// Workers holds configuration for background worker processes.
type Workers struct {
	// SyncInterval is the period of the background sync job.
	// Env: CARE_WORKERS_SYNC_INTERVAL
	SyncInterval time.Duration `env:"SYNC_INTERVAL"`

	// ProbeInterval is the period of the connectivity probe.
	// Env: CARE_WORKERS_PROBE_INTERVAL
	ProbeInterval time.Duration `env:"PROBE_INTERVAL"`
}

// Status holds settings of the local status HTTP endpoint.
type Status struct {
	// Address is the host:port the status endpoint listens on.
	// Env: CARE_STATUS_ADDRESS
	Address string `env:"ADDRESS"`
}

// Log holds logger output settings.
type Log struct {
	// Path is the log file. Empty means a "logs" file next to the executable.
	// Env: CARE_LOG_PATH
	Path string `env:"PATH"`

	// Level is the minimum zerolog level ("debug", "info", "warn", ...).
	// Env: CARE_LOG_LEVEL
	Level string `env:"LEVEL"`
}

// GetStructuredConfig loads and merges the configuration from all available
// sources. For every field the first source that sets it wins:
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//  4. Built-in defaults
//
// Returns a fully populated *StructuredConfig or an error if any source
// fails to load or the final config fails validation.
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		withDefaults().
		build()
}
