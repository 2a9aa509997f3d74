package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"election-gateway/api"
	"election-gateway/config"
	"election-gateway/contract"
	"election-gateway/service"
	"election-gateway/signer"
)

const (
	dialTimeout     = 30 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}

	app := &cli.App{
		Name:   "election-gateway",
		Usage:  "HTTP gateway to a voting smart contract",
		Flags:  config.Flags(),
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c)
	if err != nil {
		return err
	}
	if err := cfg.ConfigureLogging(); err != nil {
		return err
	}

	operator, err := signer.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return fmt.Errorf("invalid PRIVATE_KEY: %w", err)
	}
	cfg.PrivateKey = ""

	parsed, err := contract.LoadABI(cfg.ABIPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	client, err := contract.Dial(dialCtx, cfg.RPCURL, common.HexToAddress(cfg.ContractAddress), parsed, operator)
	cancel()
	if err != nil {
		return err
	}
	defer client.Close()

	log.WithFields(log.Fields{
		"operator":    signer.Address(operator).Hex(),
		"fingerprint": signer.Fingerprint(operator),
	}).Info("Gateway operator loaded")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gateway := service.NewGateway(client,
		service.NewSchedule(cfg.StartLead, cfg.Duration),
		service.NewMetricsCollector(registry))

	httpServer := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.NewServer(gateway, registry).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting election gateway on %s", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down, draining in-flight requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Info("Election gateway stopped")
	return nil
}
