package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pzverkov/quantum-agility/pkg/crypto"
	"github.com/pzverkov/quantum-agility/pkg/ledger"
	"github.com/pzverkov/quantum-agility/pkg/metrics"
)

func serveCommand(args []string) error {
	fs, f := newFlagSet("serve", `Serve the ledger over HTTP until interrupted.

ENDPOINTS:
    POST /v1/entries, GET /v1/entries[/{index}|/latest]
    GET /v1/verify, GET /v1/status
    /metrics, /health, /healthz, /readyz`)
	addr := fs.String("addr", "", "Listen address (default $PQLEDGER_METRICS_ADDR or :8080)")
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, l, err := f.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	listen := *addr
	if listen == "" {
		listen = a.cfg.Metrics.Addr
	}
	if listen == "" {
		listen = ":8080"
	}

	server := newServer(l, a)
	a.logger.Info("serving ledger", metrics.Fields{
		"addr":    listen,
		"ledger":  l.ID().String(),
		"entries": l.Len(),
	})
	fmt.Fprintf(stdout, "✓ Ledger %s on %s (api: /v1, metrics: /metrics, health: /health)\n", l.ID(), listen)

	if err := server.ListenAndServe(ctx, listen); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "\nShutting down...")
	return nil
}

// newServer wires the API, metrics and health checks for l.
func newServer(l *ledger.Ledger, a *app) *metrics.Server {
	server := metrics.NewServer(metrics.ServerConfig{
		Collector:        a.collector,
		Version:          getVersion(),
		Namespace:        a.cfg.Metrics.Namespace,
		EnablePrometheus: true,
		EnableHealth:     true,
	})
	server.AddHealthCheck("store", metrics.PingCheck(l.Ping))
	server.AddHealthCheck("self_test", metrics.SelfTestCheck(selfTest))
	server.Handle("/v1/", newAPI(l, a.logger))
	return server
}

func selfTest() error {
	result := crypto.RunPOST()
	if !result.Passed {
		return errors.New(strings.Join(result.Errors, "; "))
	}
	return nil
}
