// Package log captures host exchanges for later inspection.
//
// Every get, set, update and identify that passes between the host and a
// characteristic delegate can be recorded as an Event. This is separate from
// operational logging (slog): the exchange log is a machine-readable trace of
// what the host asked, what the plugin answered and how long it took.
//
// # Basic Usage
//
//	// During development: mirror exchanges to the console
//	cfg.ExchangeLogger = log.NewSlogAdapter(slog.Default())
//
//	// For later analysis: append to a CBOR file
//	cfg.ExchangeLogger, _ = log.NewFileLogger("/var/lib/hblib/exchanges.xlog")
//
//	// Both
//	cfg.ExchangeLogger = log.NewMultiLogger(console, file)
//
// # File Format
//
// Files are a sequence of CBOR-encoded events with integer keys. Reader
// streams them back, optionally through a Filter.
package log
