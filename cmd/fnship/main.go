package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess     = 0
	ExitConfigError = 1
	ExitDeployError = 2
	ExitUsageError  = 64
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet("fnship", flag.ContinueOnError)
	configPath := flags.String("config", "", "Path to the service definition file (default ./fnship.yaml)")
	showVersion := flags.Bool("version", false, "Print version and exit")
	if err := flags.Parse(args); err != nil {
		return ExitUsageError
	}

	if *showVersion {
		fmt.Printf("fnship %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	}

	command := flags.Arg(0)
	if command == "" {
		printUsage()
		return ExitUsageError
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	logger := SetupLogger(cfg)
	ctx := context.Background()

	switch command {
	case "deploy":
		return runDeploy(ctx, cfg, logger)
	case "functions":
		return runFunctions(ctx, cfg, logger)
	case "history":
		return runHistory(ctx, cfg, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		return ExitUsageError
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: fnship [-config path] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  deploy     Deploy infrastructure and upload the packaged code")
	fmt.Fprintln(os.Stderr, "  functions  List the deployed function entries")
	fmt.Fprintln(os.Stderr, "  history    Show recorded deployment runs")
}
