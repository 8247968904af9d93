// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Label values shared by the collectors.
const (
	// StatusSuccess marks an operation that completed.
	StatusSuccess = "success"
	// StatusError marks an operation that failed.
	StatusError = "error"

	// OpSaveRun is the datastore operation label for inserting a training run.
	OpSaveRun = "save_run"
	// OpLatestRun is the datastore operation label for the latest run lookup.
	OpLatestRun = "latest_run"
	// OpListRuns is the datastore operation label for listing runs.
	OpListRuns = "list_runs"
	// OpMigrate is the datastore operation label for schema migration.
	OpMigrate = "migrate"
)

// Histogram bucket configuration constants.
const (
	// BucketStart100us is the starting bucket for 0.1ms histograms.
	BucketStart100us = 0.0001
	// BucketStart1ms is the starting bucket for 1ms histograms.
	BucketStart1ms = 0.001
	// BucketStart100ms is the starting bucket for 100ms histograms.
	BucketStart100ms = 0.1

	// BucketFactor2 is the common exponential growth factor for histogram buckets.
	BucketFactor2 = 2

	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
	// BucketCount15 defines 15 exponential buckets.
	BucketCount15 = 15
)

// ShutdownTimeout is the timeout for graceful shutdown of the metrics listener.
const ShutdownTimeout = 5 * time.Second
