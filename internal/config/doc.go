// Package config loads process settings from defaults, an optional config
// file, TIMESLOT_* environment variables (optionally seeded from a .env file)
// and command-line flags, in increasing order of precedence.
//
// Instrumentation settings are not handled here; they are read from the
// standard OTEL_* and METRICS_* variables by package instrumentation.
package config
