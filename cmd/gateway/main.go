// Package main is the entry point for the API Gateway.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/vyrodovalexey/avapigw/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	routingPath string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting avapigw",
		observability.String("version", version),
		observability.String("routing_config", flags.routingPath),
	)

	cfg := loadAmbientConfig()
	if err := cfg.Validate(); err != nil {
		fatalWithSync(logger, "invalid configuration", observability.Error(err))
	}

	app, err := initApplication(cfg, flags.routingPath, logger)
	if err != nil {
		fatalWithSync(logger, "failed to initialize application", observability.Error(err))
	}

	runGateway(app, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	routingPath := flag.String("routes", getEnvOrDefault("GATEWAY_ROUTING_PATH", "configs/routes.yaml"),
		"Path to the routing document")
	logLevel := flag.String("log-level", getEnvOrDefault("GATEWAY_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("GATEWAY_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		routingPath: *routingPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("avapigw version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// fatalWithSync logs msg at fatal level (which calls os.Exit), syncing
// buffered log output first so the message is not lost on exit.
func fatalWithSync(logger observability.Logger, msg string, fields ...observability.Field) {
	_ = logger.Sync()
	logger.Fatal(msg, fields...)
}
