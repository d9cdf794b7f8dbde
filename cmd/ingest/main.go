package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"rideingest/internal/config"
	"rideingest/internal/metrics"
	"rideingest/internal/metrics/datadog"
	"rideingest/internal/metrics/prompush"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "rideingest/internal/storage/all"
)

// main loads one or more pipeline configs, optionally initializes a metrics
// backend, and runs each pipeline to completion. Multiple configs run
// concurrently; each is an independent run with its own dedup state.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		statsdAddrFlg     string
		validate          bool
		printDDL          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/pipelines/ride_bookings.json", "pipeline config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (pushgateway, datadog, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&statsdAddrFlg, "statsd-addr", "", "DogStatsD address (overrides env DD_AGENT_ADDR)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration(s) and exit")
	flag.BoolVar(&printDDL, "print-ddl", false, "print CREATE TABLE statements for the configured tables and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	// Positional args are additional config paths; -config is the first.
	paths := append([]string{cfgPath}, flag.Args()...)

	specs := make([]config.Pipeline, 0, len(paths))
	hasError := false
	for _, path := range paths {
		spec, err := loadConfig(path)
		if err != nil {
			fatalf("%v", err)
		}
		for _, iss := range config.ValidatePipeline(spec) {
			fmt.Fprintf(os.Stderr, "%s: %s: %s: %s\n", path, iss.Severity, iss.Path, iss.Message)
			if iss.Severity == config.SeverityError {
				hasError = true
			}
		}
		specs = append(specs, spec)
	}
	if hasError {
		log.Printf("configuration is invalid")
		os.Exit(1)
	}
	if validate {
		log.Printf("configuration is valid")
		os.Exit(0)
	}
	if printDDL {
		for _, spec := range specs {
			if err := emitDDL(os.Stdout, spec); err != nil {
				fatalf("job %s: %v", spec.Job, err)
			}
		}
		os.Exit(0)
	}

	initMetrics(metricsBackendFlg, pushGatewayURLFlg, statsdAddrFlg, specs[0].Job, *verbose)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	ctx := context.Background()
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for _, spec := range specs {
		g.Go(func() error {
			if *verbose {
				log.Printf("pipeline: job=%s source=%s storage=%s table=%s",
					spec.Job, spec.Source.Kind, spec.Storage.Kind, spec.Storage.DB.Table)
			}
			_, err := runPipeline(ctx, spec)
			if err != nil {
				return fmt.Errorf("job %s: %w", spec.Job, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("%v", err)
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

func loadConfig(path string) (config.Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return config.Pipeline{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var p config.Pipeline
	if err := json.NewDecoder(f).Decode(&p); err != nil {
		return config.Pipeline{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return p, nil
}

// initMetrics decides the metrics backend: flag first, then environment.
// Metrics failures never block a run; the nop backend simply stays in place.
func initMetrics(name, gwURL, statsdAddr, jobName string, verbose bool) {
	if name == "" {
		name = os.Getenv("METRICS_BACKEND")
	}
	if jobName == "" {
		jobName = "ingest_job"
	}

	switch name {
	case "pushgateway":
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(jobName, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: backend=pushgateway url=%s job_name=%s", gwURL, jobName)
		metrics.SetBackend(b)

	case "datadog":
		if statsdAddr == "" {
			statsdAddr = os.Getenv("DD_AGENT_ADDR")
		}
		b, err := datadog.NewBackend(datadog.Config{Addr: statsdAddr, Namespace: "rideingest"})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: backend=datadog addr=%s", statsdAddr)
		metrics.SetBackend(b)

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", name)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", name)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
