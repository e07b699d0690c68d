// Command hamctl-log inspects protocol captures written by hamctl
// -protocol-log.
//
// Usage:
//
//	hamctl-log <command> [flags] <file.hlog>
//
// Commands:
//
//	view     Print events in human-readable form
//	export   Convert to JSON lines or CSV
//	filter   Copy matching events into a new capture
//	stats    Summarise connections, commands and rejections
//
// Examples:
//
//	hamctl-log view -direction out -kind radio session.hlog
//	hamctl-log export -format csv -o session.csv session.hlog
//	hamctl-log filter -device-id rotator-10.0.0.5:4533 -o rot.hlog session.hlog
//	hamctl-log stats session.hlog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/log4ym/hamctl-go/cmd/hamctl-log/commands"
)

const usage = `hamctl-log - hamctl protocol capture tool

Usage:
  hamctl-log <command> [flags] <file.hlog>

Commands:
  view     Print events in human-readable form
  export   Convert to JSON lines or CSV
  filter   Copy matching events into a new capture
  stats    Summarise connections, commands and rejections

Use "hamctl-log <command> -help" for the flags of a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "view":
		err = runView(args)
	case "export":
		err = runExport(args)
	case "filter":
		err = runFilter(args)
	case "stats":
		err = runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newFlagSet returns a flag set whose usage names the command.
func newFlagSet(name, summary string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "hamctl-log %s - %s\n\nUsage:\n  hamctl-log %s [flags] <file.hlog>\n\nFlags:\n",
			name, summary, name)
		fs.PrintDefaults()
	}
	return fs
}

// capturePath parses args and returns the single positional argument.
func capturePath(fs *flag.FlagSet, args []string) string {
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func runView(args []string) error {
	fs := newFlagSet("view", "Print events in human-readable form")
	var opts commands.ViewOptions
	fs.StringVar(&opts.Layer, "layer", "", "Only this layer (transport, protocol, service)")
	fs.StringVar(&opts.Direction, "direction", "", "Only this direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "Only this category (message, state, error)")
	fs.StringVar(&opts.Kind, "kind", "", "Only this device kind (radio, rotator)")
	fs.StringVar(&opts.DeviceID, "device-id", "", "Only this device ID")
	path := capturePath(fs, args)

	return commands.RunView(path, opts, os.Stdout)
}

func runExport(args []string) error {
	fs := newFlagSet("export", "Convert to JSON lines or CSV")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default stdout)")
	path := capturePath(fs, args)

	return commands.RunExport(path, *format, *output)
}

func runFilter(args []string) error {
	fs := newFlagSet("filter", "Copy matching events into a new capture")
	var opts commands.FilterOptions
	fs.StringVar(&opts.Output, "o", "", "Output capture file (required)")
	fs.StringVar(&opts.ConnID, "conn-id", "", "Only this connection ID")
	fs.StringVar(&opts.DeviceID, "device-id", "", "Only this device ID")
	fs.StringVar(&opts.Kind, "kind", "", "Only this device kind (radio, rotator)")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Events at or after this time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Events before this time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "Only this layer (transport, protocol, service)")
	fs.StringVar(&opts.Direction, "direction", "", "Only this direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "Only this category (message, state, error)")
	path := capturePath(fs, args)

	_, err := commands.RunFilter(path, opts, os.Stdout)
	return err
}

func runStats(args []string) error {
	fs := newFlagSet("stats", "Summarise connections, commands and rejections")
	path := capturePath(fs, args)

	return commands.RunStats(path, os.Stdout)
}
