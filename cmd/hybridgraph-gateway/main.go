// Command hybridgraph-gateway exposes an engine.Engine over HTTP. Flag
// parsing, env var fallbacks, and graceful shutdown are grounded on
// cmd/gateway/main.go's lifecycle; the HTTP handler itself is
// internal/gatewayserver, built from scratch since the teacher's own
// cmd/gateway/main.go references an internal/gateway package that does
// not exist anywhere in that repo.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hybridgraph/hybridgraph/internal/config"
	"github.com/hybridgraph/hybridgraph/internal/engine"
	"github.com/hybridgraph/hybridgraph/internal/gatewayserver"
	"github.com/hybridgraph/hybridgraph/internal/observability"
	"github.com/hybridgraph/hybridgraph/internal/tsbackend/memframe"
)

func main() {
	addr := flag.String("addr", "", "listen address (default: :<config server.port>)")
	configPath := flag.String("config", "", "config file (default: config.yaml in ~/.hybridgraph or the current directory)")
	endpoint := flag.String("endpoint", "", "SPARQL endpoint (overrides config)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("hybridgraph-gateway 0.1.0")
		return
	}

	if v := os.Getenv("HYBRIDGRAPH_ENDPOINT"); v != "" && *endpoint == "" {
		*endpoint = v
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log("config: %v", err)
		os.Exit(1)
	}
	if *endpoint != "" {
		cfg.SPARQLEndpoint = *endpoint
	}

	eng := engine.NewWithConfig(cfg, cfg.SPARQLEndpoint)
	eng.SetLogger(observability.NewJSONLogger(os.Stdout))

	backend, err := memframe.Open(memframe.Options{Concurrency: cfg.TimeSeries.Concurrency})
	if err != nil {
		log("time-series backend: %v", err)
		os.Exit(1)
	}
	if err := eng.SetTimeSeriesBackend(backend); err != nil {
		log("time-series backend: %v", err)
		os.Exit(1)
	}

	listenAddr := *addr
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%d", cfg.Server.Port)
	}

	readTimeout, err := time.ParseDuration(cfg.Server.ReadTimeout)
	if err != nil {
		readTimeout = 30 * time.Second
	}
	writeTimeout, err := time.ParseDuration(cfg.Server.WriteTimeout)
	if err != nil {
		writeTimeout = 30 * time.Second
	}

	server := &http.Server{
		Addr:         listenAddr,
		Handler:      gatewayserver.New(eng),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  90 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		<-sigCh
		log("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log("shutdown: %v", err)
		}
		close(done)
	}()

	log("listening on %s (sparql endpoint %s)", listenAddr, cfg.SPARQLEndpoint)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log("serve: %v", err)
		os.Exit(1)
	}

	<-done
}

func log(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "hybridgraph-gateway: "+format+"\n", args...)
}
