// Package config handles configuration loading, parsing, and validation
// from defaults, an optional config file and DAYREPORT_ environment
// variables. It provides type-safe access to the settings needed by the
// fetcher, quota ledger, task runner and transport while keeping
// configuration details separate from pipeline logic.
package config
