// Package main provides the command-line entry point for running a single
// Kademlia DHT node: bind an address, optionally bootstrap off a known
// peer, and serve requests until interrupted.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lithp/kademlia/dht"
	"github.com/lithp/kademlia/id"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// CLIConfig holds command-line configuration for the node process.
type CLIConfig struct {
	listenAddr      string
	bootstrapAddr   string
	bootstrapID     string
	k               int
	alpha           int
	requestTimeout  time.Duration
	refreshInterval time.Duration
	metricsAddr     string
	logLevel        string
}

// parseCLIFlags parses command-line flags and returns the configuration.
// Network flags: -listen, -bootstrap-addr, -bootstrap-id
// Tuning flags: -k, -alpha, -request-timeout, -refresh-interval
// Observability flags: -metrics-addr, -log-level
func parseCLIFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.listenAddr, "listen", ":33445", "UDP address to bind")
	flag.StringVar(&cfg.bootstrapAddr, "bootstrap-addr", "", "address of a well-known peer to bootstrap from (host:port)")
	flag.StringVar(&cfg.bootstrapID, "bootstrap-id", "", "hex-encoded id of the bootstrap peer")

	flag.IntVar(&cfg.k, "k", 20, "bucket size / replication factor")
	flag.IntVar(&cfg.alpha, "alpha", 3, "lookup concurrency degree")
	flag.DurationVar(&cfg.requestTimeout, "request-timeout", 5*time.Second, "per-RPC timeout")
	flag.DurationVar(&cfg.refreshInterval, "refresh-interval", time.Hour, "background bucket refresh interval")

	flag.StringVar(&cfg.metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	flag.StringVar(&cfg.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	flag.Parse()
	return cfg
}

func main() {
	cfg := parseCLIFlags()

	level, err := logrus.ParseLevel(cfg.logLevel)
	if err != nil {
		logrus.WithError(err).Fatal("invalid -log-level")
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	node, err := dht.New(dht.Config{
		K:               cfg.k,
		Alpha:           cfg.alpha,
		RequestTimeout:  cfg.requestTimeout,
		RefreshInterval: cfg.refreshInterval,
	})
	if err != nil {
		logrus.WithError(err).Fatal("failed to construct node")
	}

	if err := node.Listen(cfg.listenAddr); err != nil {
		logrus.WithError(err).Fatal("failed to listen")
	}
	defer node.Close()

	logrus.WithFields(logrus.Fields{
		"id":     node.ID().String(),
		"listen": cfg.listenAddr,
	}).Info("kademlia node started")

	if cfg.metricsAddr != "" {
		go serveMetrics(node, cfg.metricsAddr)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.bootstrapAddr != "" {
		bootstrapID, err := parseID(cfg.bootstrapID)
		if err != nil {
			logrus.WithError(err).Fatal("invalid -bootstrap-id")
		}
		bctx, bcancel := context.WithTimeout(ctx, 30*time.Second)
		err = node.Bootstrap(bctx, cfg.bootstrapAddr, bootstrapID)
		bcancel()
		if err != nil {
			logrus.WithError(err).Error("bootstrap failed, continuing with an empty routing table")
		} else {
			logrus.Info("bootstrap complete")
		}
	}

	<-ctx.Done()
	logrus.Info("shutting down")
}

func serveMetrics(node *dht.Node, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(node.Registry(), promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logrus.WithError(err).Error("metrics server stopped")
	}
}

func parseID(s string) (id.ID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return id.ID{}, fmt.Errorf("decoding hex id: %w", err)
	}
	if len(b) != id.Size {
		return id.ID{}, fmt.Errorf("id must be %d bytes, got %d", id.Size, len(b))
	}
	return id.FromBytes(b), nil
}
