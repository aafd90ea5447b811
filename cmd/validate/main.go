package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"eclairia/internal/core/ports"
	"eclairia/internal/core/services"
	"eclairia/internal/infrastructure/catalog"
	"eclairia/internal/infrastructure/probe"
	"eclairia/pkg/config"
	"eclairia/pkg/logger"
	"eclairia/pkg/validation"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code: 0 on success, 1 on a usage or setup
// error, 2 when the reachable share falls under -min-success.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "configs/config.yaml", "Config file (optional)")
	catalogPath := fs.String("catalog", "", "Station catalog JSON (defaults to catalog.path from config)")
	concurrency := fs.Int("concurrency", 0, "Probes in flight at once")
	retries := fs.Int("retries", 0, "Attempts per station")
	timeout := fs.Duration("timeout", 0, "Timeout per attempt")
	proxy := fs.String("proxy", "", "Proxy base URL; probes go to <proxy>/proxy?url=<stream>")
	method := fs.String("method", "", "HTTP method for probes (HEAD or GET)")
	asJSON := fs.Bool("json", false, "Print the summary as JSON")
	onlyFailed := fs.Bool("only-failed", false, "Only print unreachable stations while running")
	minSuccess := fs.Int("min-success", 0, "Exit with status 2 when fewer than this percent of stations are reachable")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if err := validation.ValidateRange(*minSuccess, 0, 100, "min-success"); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if *catalogPath != "" {
		cfg.Catalog.Path = *catalogPath
	}

	zapLogger := logger.New("warn", "console")
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	stations, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	opts := services.ValidatorOptions{
		MaxConcurrent: cfg.Validation.MaxConcurrent,
		RetryAttempts: cfg.Validation.RetryAttempts,
		Timeout:       cfg.Validation.Timeout,
		DispatchDelay: cfg.Validation.DispatchDelay,
		BackoffStep:   cfg.Validation.BackoffStep,
	}
	if *concurrency > 0 {
		opts.MaxConcurrent = *concurrency
	}
	if *retries > 0 {
		opts.RetryAttempts = *retries
	}
	if *timeout > 0 {
		opts.Timeout = *timeout
	}

	validator, err := services.NewValidator(opts, nil, log)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	probeCfg := probe.Config{
		Method:       cfg.Probe.Method,
		ProxyBaseURL: cfg.Probe.ProxyBaseURL,
		UserAgent:    cfg.Probe.UserAgent,
	}
	if *proxy != "" {
		probeCfg.ProxyBaseURL = *proxy
	}
	if *method != "" {
		probeCfg.Method = *method
	}
	prober := probe.NewHTTPProber(&http.Client{}, probeCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sink ports.ResultSink
	if !*asJSON {
		sink = &reportSink{out: stdout, onlyFailed: *onlyFailed}
		fmt.Fprintf(stdout, "Validating %d stations (concurrency %d, %d attempts, timeout %s)\n\n",
			len(stations), opts.MaxConcurrent, opts.RetryAttempts, opts.Timeout)
	}

	summary, err := validator.ValidateAll(ctx, stations, prober, sink)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	} else {
		writeSummary(stdout, summary)
	}

	if *minSuccess > 0 && summary.SuccessPercent() < *minSuccess {
		return 2
	}
	return 0
}
