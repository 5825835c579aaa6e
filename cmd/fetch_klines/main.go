package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hedgegraph/config"
	"hedgegraph/internal/adapters/binanceclient"
	"hedgegraph/internal/adapters/console"
	"hedgegraph/internal/adapters/export"
	"hedgegraph/internal/adapters/logger"
	"hedgegraph/internal/adapters/sqlite"
	"hedgegraph/internal/app"
	"hedgegraph/internal/chart"
	"hedgegraph/internal/domain"
	"hedgegraph/internal/ports"
)

// doneListener reports like the console and signals when the episode fails.
type doneListener struct {
	*console.Listener
	done chan error
}

func (l *doneListener) OnError(ctx context.Context, err *domain.FetchError) {
	l.Listener.OnError(ctx, err)
	l.done <- err
}

// doneExporter signals once the completed dataset has been exported.
type doneExporter struct {
	ports.Exporter
	done chan error
}

func (e *doneExporter) Export(ctx context.Context, ds chart.Dataset) error {
	err := e.Exporter.Export(ctx, ds)
	e.done <- err
	return err
}

func main() {
	symbol := flag.String("symbol", "ETHUSDT", "Symbol to fetch")
	interval := flag.String("interval", "1m", "Kline interval")
	from := flag.String("from", "", "Window start (RFC 3339, YYYY-MM-DD or unix ms); defaults to 3 months ago")
	to := flag.String("to", "", "Window end; defaults to now")
	archiveToo := flag.Bool("archive", false, "Also store the klines in the SQLite archive")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New(cfg.LogLevel, cfg.LogFormat)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Resolve the window
	end := time.Now().UTC()
	if *to != "" {
		if end, err = console.ParseTime(*to); err != nil {
			log.Fatalf("Invalid -to: %v", err)
		}
	}
	start := end.AddDate(0, -3, 0) // 3 months ago
	if *from != "" {
		if start, err = console.ParseTime(*from); err != nil {
			log.Fatalf("Invalid -from: %v", err)
		}
	}
	iv, err := domain.ParseInterval(*interval)
	if err != nil {
		log.Fatalf("Invalid -interval: %v", err)
	}

	// 4. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Market:     cfg.Market,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	// 5. Initialize Exporters
	csvExporter, err := export.NewCSVExporter(export.Config{Dir: cfg.ExportDir, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize CSV exporter: %v", err)
	}
	exporters := export.Multi{csvExporter}
	if *archiveToo {
		archive, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.ArchiveDBPath, Logger: appLogger})
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize kline archive: %v", err)
		}
		defer archive.Close()
		exporters = append(exporters, archive)
	}

	// 6. Run one export episode
	done := make(chan error, 1)
	listener := &doneListener{Listener: console.NewListener(appLogger), done: done}
	session, err := app.NewSession(cfg, appLogger, binanceClient, listener, &doneExporter{Exporter: exporters, done: done})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize session: %v", err)
	}
	go session.Run(ctx)

	err = session.Submit(ctx, app.ChooseRange{Symbol: *symbol, Start: start, End: end, Interval: iv, Export: true})
	if err != nil {
		appLogger.Error(ctx, err, "Range rejected")
		log.Fatalf("Range rejected: %v", err)
	}

	select {
	case err = <-done:
	case <-ctx.Done():
		err = ports.ErrContextCanceled
	}
	stop()
	<-session.Done()
	if err != nil {
		log.Fatalf("Error fetching klines: %v", err)
	}
	appLogger.Info(context.Background(), "Done", map[string]interface{}{"symbol": *symbol, "exportDir": cfg.ExportDir})
}
