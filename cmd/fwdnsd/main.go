package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fwdns/internal/dns/common/clock"
	"fwdns/internal/dns/common/log"
	"fwdns/internal/dns/config"
	"fwdns/internal/dns/gateways/transport"
	"fwdns/internal/dns/gateways/upstream"
	"fwdns/internal/dns/gateways/wire"
	"fwdns/internal/dns/repos/dnscache"
	"fwdns/internal/dns/services/resolver"
)

const (
	version = "0.1.0-dev"
	appName = "fwdnsd"

	defaultShutdownTimeout = 10 * time.Second
)

// Application holds the wired components of the forwarding resolver.
type Application struct {
	config    *config.AppConfig
	transport *transport.UDPTransport
	upstream  *upstream.Client
	handler   resolver.Handler
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"app":           appName,
		"version":       version,
		"env":           cfg.Env,
		"log_level":     cfg.LogLevel,
		"port":          cfg.Port,
		"upstream":      cfg.Upstream,
		"cache_size":    cfg.CacheSize,
		"cache_max_ttl": cfg.CacheMaxTTL,
	}, "Starting fwdns server")

	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err}, "Failed to build application")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()
	}()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err}, "Server failed")
	}

	log.Info(nil, "fwdns server stopped gracefully")
}

// buildApplication constructs all components and wires them together.
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	logger := log.GetLogger()
	clk := clock.RealClock{}

	codec := wire.NewCodec(logger)

	cache, err := dnscache.New(int(cfg.CacheSize), cfg.CacheMaxTTL, clk)
	if err != nil {
		return nil, fmt.Errorf("failed to create response cache: %w", err)
	}

	upstreamClient, err := upstream.NewClient(upstream.Options{
		Addr:    cfg.Upstream,
		Codec:   codec,
		Timeout: time.Duration(cfg.UpstreamTimeout) * time.Second,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream client: %w", err)
	}

	resolverService := resolver.New(resolver.Options{
		Cache:    cache,
		Upstream: upstreamClient,
		Logger:   logger,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	udpTransport := transport.NewUDPTransport(addr, codec, logger)

	return &Application{
		config:    cfg,
		transport: udpTransport,
		upstream:  upstreamClient,
		handler:   resolverService,
	}, nil
}

// Run starts the DNS server and blocks until the context is cancelled.
func (app *Application) Run(ctx context.Context) error {
	if err := app.transport.Start(ctx, app.handler); err != nil {
		return fmt.Errorf("failed to start UDP transport: %w", err)
	}

	log.Info(map[string]any{
		"address":   app.transport.Address(),
		"transport": "UDP",
	}, "DNS server started")

	<-ctx.Done()

	log.Info(nil, "Shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		if err := app.transport.Stop(); err != nil {
			log.Warn(map[string]any{"error": err}, "Error during transport shutdown")
		}
		if err := app.upstream.Close(); err != nil {
			log.Warn(map[string]any{"error": err}, "Error closing upstream client")
		}
		close(done)
	}()

	select {
	case <-done:
		log.Info(nil, "Graceful shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		log.Warn(map[string]any{"timeout": defaultShutdownTimeout}, "Shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout")
	}
}
