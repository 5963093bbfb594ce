package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/bpermana/kafgate/internal/backend"
	"github.com/bpermana/kafgate/internal/config"
	"github.com/bpermana/kafgate/internal/gateway"
	"github.com/bpermana/kafgate/internal/logging"
	"github.com/bpermana/kafgate/internal/server"
	"github.com/bpermana/kafgate/internal/store"
)

// acquireDataLock acquires an exclusive lock on the data directory.
// The returned file must stay open for the lifetime of the process.
func acquireDataLock(dataDir string) (*os.File, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	lockPath := filepath.Join(dataDir, ".lock")
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("another kafgate instance is using data directory %s", dataDir)
	}

	return f, nil
}

var (
	version = "0.1.0"
	commit  = "none"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "version":
		fmt.Printf("kafgate %s (%s)\n", version, commit)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`kafgate - Kafka wire protocol gateway over partitioned topic storage

Usage:
  kafgate <command> [options]

Commands:
  serve     Start the gateway
  version   Print version information
  help      Print this help message

Run 'kafgate serve --help' for serve options.`)
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)

	configFile := fs.String("config", "", "Path to config file (YAML)")
	kafkaAddr := fs.String("kafka-addr", ":9092", "Kafka protocol listen address")
	httpAddr := fs.String("http-addr", ":8080", "HTTP API listen address")
	dataDir := fs.String("data-dir", "./data", "Data directory for storage")
	logLevel := fs.String("log-level", "info", "Log level (debug, info, warn, error)")

	fs.Parse(args)

	// Precedence: flags > env > file > defaults
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *kafkaAddr != ":9092" || cfg.Server.KafkaAddr == "" {
		cfg.Server.KafkaAddr = *kafkaAddr
	}
	if *httpAddr != ":8080" || cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = *httpAddr
	}
	if *dataDir != "./data" || cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = *dataDir
	}
	if *logLevel != "info" || cfg.Logging.Level == "" {
		cfg.Logging.Level = *logLevel
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	lockFile, err := acquireDataLock(cfg.Storage.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to acquire data lock: %v\n", err)
		os.Exit(1)
	}
	defer lockFile.Close()

	sqliteDB, err := store.OpenSQLite(cfg.Storage.DataDir)
	if err != nil {
		logger.Fatal("open metadata store", zap.Error(err))
	}
	defer sqliteDB.Close()

	badgerDB, err := store.Open(cfg.Storage.DataDir)
	if err != nil {
		logger.Fatal("open batch store", zap.Error(err))
	}
	defer badgerDB.Close()

	admin, err := store.NewTopicAdmin(sqliteDB)
	if err != nil {
		logger.Fatal("load topic metadata", zap.Error(err))
	}
	offsets := store.NewOffsetStore(sqliteDB)
	plog := store.NewPartitionLog(badgerDB, nodeAddress(cfg))

	gw := gateway.New(cfg, logger.Named("gateway"), admin, plog, offsets)
	gw.Start()
	defer gw.Stop()

	kafkaSrv := gateway.NewServer(gw)
	httpSrv := server.NewHTTPServer(cfg, admin, plog)

	go func() {
		logger.Info("kafka listener started", zap.String("addr", cfg.Server.KafkaAddr))
		if err := kafkaSrv.ListenAndServe(); err != nil {
			logger.Error("kafka listener failed", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("http listener started", zap.String("addr", cfg.Server.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil {
			logger.Error("http listener failed", zap.Error(err))
		}
	}()

	runGC(badgerDB, cfg, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	kafkaSrv.Close()
	httpSrv.Close()
}

func nodeAddress(cfg *config.Config) backend.NodeAddress {
	return backend.NodeAddress{
		ID:   cfg.Server.BrokerID,
		Host: cfg.Server.AdvertisedHost,
		Port: cfg.Server.AdvertisedPort,
	}
}

// runGC triggers badger value log GC on a timer in the background.
func runGC(db *store.DB, cfg *config.Config, logger *zap.Logger) {
	go func() {
		ticker := time.NewTicker(cfg.Storage.GCInterval)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.RunGC(); err != nil && err != badger.ErrNoRewrite {
				logger.Debug("value log gc", zap.Error(err))
			}
		}
	}()
}
