// Command hblib-log views and analyzes exchange logs.
//
// Exchange logs are written by hblib-demo when started with -exchange-log.
// Each record is one host read, host write, plugin update or identify
// request.
//
// Usage:
//
//	hblib-log <command> [flags] <file.cbor>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSONL or CSV format
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View all exchanges
//	hblib-log view exchanges.cbor
//
//	# View only timed-out host reads
//	hblib-log view -op get -outcome timeout exchanges.cbor
//
//	# Export one accessory to CSV
//	hblib-log export -format csv -accessory lamp-1 exchanges.cbor
//
//	# Keep the last hour of writes
//	hblib-log filter -op set -since 2026-10-14T09:00:00Z -o writes.cbor exchanges.cbor
//
//	# Show statistics
//	hblib-log stats exchanges.cbor
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ebaauw/homebridge-lib-go/cmd/hblib-log/commands"
)

const usage = `hblib-log - Exchange Log Analyzer

Usage:
  hblib-log <command> [flags] <file.cbor>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSONL or CSV format
  filter   Filter log file and write to new file
  stats    Show statistics about the log file

Use "hblib-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// filterFlags registers the selection flags shared by view, export and filter.
func filterFlags(fs *flag.FlagSet) *commands.FilterOptions {
	var opts commands.FilterOptions
	fs.StringVar(&opts.AccessoryID, "accessory", "", "Filter by accessory id")
	fs.StringVar(&opts.ServiceKey, "service", "", "Filter by service key")
	fs.StringVar(&opts.Key, "key", "", "Filter by characteristic key")
	fs.StringVar(&opts.Op, "op", "", "Filter by op (get, set, update, identify)")
	fs.StringVar(&opts.Outcome, "outcome", "", "Filter by outcome (ok, touch, timeout, error, late)")
	fs.StringVar(&opts.Since, "since", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.Until, "until", "", "Filter by end time (RFC3339)")
	return &opts
}

// parse parses args and returns the log file path, exiting on error.
func parse(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func buildFilter(opts *commands.FilterOptions) commands.Filter {
	filter, err := opts.Build()
	if err != nil {
		fail(err)
	}
	return filter
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func usageFor(fs *flag.FlagSet, name, summary string) {
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "hblib-log %s - %s\n\nUsage:\n  hblib-log %s [flags] <file.cbor>\n\nFlags:\n", name, summary, name)
		fs.PrintDefaults()
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	usageFor(fs, "view", "View log file in human-readable format")
	opts := filterFlags(fs)
	path := parse(fs, args)

	if err := commands.RunView(path, buildFilter(opts), os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	usageFor(fs, "export", "Export log file to JSONL or CSV format")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	opts := filterFlags(fs)
	path := parse(fs, args)

	w := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fail(fmt.Errorf("failed to create output file: %w", err))
		}
		defer f.Close()
		w = f
	}
	if err := commands.RunExport(path, *format, buildFilter(opts), w); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	usageFor(fs, "filter", "Filter log file and write to new file")
	output := fs.String("o", "", "Output file (required)")
	opts := filterFlags(fs)
	path := parse(fs, args)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}
	n, err := commands.RunFilter(path, *output, buildFilter(opts))
	if err != nil {
		fail(err)
	}
	fmt.Printf("Wrote %d events to %s\n", n, *output)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	usageFor(fs, "stats", "Show statistics about the log file")
	path := parse(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
