package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/speedrun-hq/speedrun-relayclient/pkg/account"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/chainclient"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/config"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/health"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/httpclient"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/knownrelays"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/logger"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/relayclient"
	"github.com/speedrun-hq/speedrun-relayclient/pkg/validator"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	stdLogger := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chainClient, err := chainclient.New(ctx, cfg.RPCURL, cfg.RelayClient.RelayHubAddress, stdLogger)
	if err != nil {
		log.Fatalf("Failed to create chain client: %v", err)
	}
	defer chainClient.Close()

	accounts := account.New(chainClient)
	if cfg.PrivateKey != "" {
		sender, err := accounts.AddAccount(cfg.PrivateKey)
		if err != nil {
			log.Fatalf("Failed to load sender key: %v", err)
		}
		stdLogger.Info("Relaying on behalf of %s", sender.Hex())
	} else {
		sender, err := accounts.NewAccount()
		if err != nil {
			log.Fatalf("Failed to create sender key: %v", err)
		}
		stdLogger.Warn("PRIVATE_KEY not set, using ephemeral sender %s", sender.Hex())
	}

	directory, err := knownrelays.New(chainClient, cfg.KnownRelays, stdLogger)
	if err != nil {
		log.Fatalf("Failed to create relay directory: %v", err)
	}

	client := relayclient.New(cfg.RelayClient, relayclient.Dependencies{
		Chain:     chainClient,
		Signer:    accounts,
		Directory: directory,
		Wire:      httpclient.New(cfg.HTTPTimeout, stdLogger),
		Validator: validator.New(chainClient, cfg.MaxViewableGasLimit, stdLogger),
		Logger:    stdLogger,
	})
	client.RegisterEventListener(func(event relayclient.Event) {
		stdLogger.Debug("Relay client event: %s", event.Kind)
	})

	if _, err := client.Init(ctx); err != nil {
		log.Fatalf("Failed to initialize relay client: %v", err)
	}

	gasPriceRoutine := chainclient.NewGasPriceRoutine(ctx, chainClient, cfg.GasPriceRefresh)
	gasPriceRoutine.Start()
	defer gasPriceRoutine.Stop()

	server := health.NewServer(cfg.MetricsPort, cfg.MetricsAPIKey, client, directory, stdLogger)
	go server.Start()

	// Set up signal handling for graceful shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	<-signalCh
	log.Println("Received termination signal, shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		stdLogger.Error("Failed to shut down health server: %v", err)
	}
}
