package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"strings"
	"syscall"

	"hedgegraph/config"
	"hedgegraph/internal/adapters/binanceclient"
	"hedgegraph/internal/adapters/console"
	"hedgegraph/internal/adapters/export"
	"hedgegraph/internal/adapters/logger"
	"hedgegraph/internal/adapters/sqlite"
	"hedgegraph/internal/app"
	"hedgegraph/internal/domain"
	"hedgegraph/internal/ports"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New(cfg.LogLevel, cfg.LogFormat)
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	// 3. Initialize Kline Archive (SQLite Adapter)
	var archive *sqlite.Repository
	if cfg.ArchiveDBPath != "" {
		archive, err = sqlite.NewRepository(sqlite.Config{
			DBPath: cfg.ArchiveDBPath,
			Logger: appLogger,
		})
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize kline archive")
			log.Fatalf("FATAL: Failed to initialize kline archive: %v", err)
		}
		defer func() {
			if err := archive.Close(); err != nil {
				appLogger.Error(context.Background(), err, "Error closing kline archive")
			}
		}()
	}

	// 4. Initialize Kline Source
	var fetcher ports.KlineFetcher
	var lister ports.SymbolLister
	switch cfg.Source {
	case config.SourceArchive:
		fetcher = archive
		appLogger.Info(ctx, "Replaying klines from archive", map[string]interface{}{"path": cfg.ArchiveDBPath})
	default:
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
		if err := binanceClient.Ping(ctx); err != nil {
			appLogger.Warn(ctx, "Binance is not reachable yet, loads will fail until it is", map[string]interface{}{"error": err.Error()})
		}
		fetcher, lister = binanceClient, binanceClient
	}

	// 5. Initialize Exporters
	csvExporter, err := export.NewCSVExporter(export.Config{Dir: cfg.ExportDir, Logger: appLogger})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize CSV exporter")
		log.Fatalf("FATAL: Failed to initialize CSV exporter: %v", err)
	}
	exporters := export.Multi{csvExporter}
	if archive != nil && cfg.Source != config.SourceArchive {
		exporters = append(exporters, archive)
	}

	// 6. Initialize Session
	session, err := app.NewSession(cfg, appLogger, fetcher, console.NewListener(appLogger), exporters)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize session")
		log.Fatalf("FATAL: Failed to initialize session: %v", err)
	}
	go func() {
		if err := session.Run(ctx); err != nil {
			appLogger.Error(context.Background(), err, "Session exited with error")
		}
	}()

	if cfg.Symbol != "" {
		submit(ctx, session, appLogger, app.SelectSymbol{Symbol: cfg.Symbol})
	}

	// 7. Read Commands
	fmt.Println(console.Usage)
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			<-session.Done()
			appLogger.Info(context.Background(), "Application finished gracefully.")
			return
		case line, ok := <-lines:
			if !ok {
				stop()
				continue
			}
			cmd, err := console.Parse(line)
			if err != nil {
				fmt.Println(err)
				continue
			}
			switch cmd.Action {
			case console.ActionSubmit:
				submit(ctx, session, appLogger, cmd.Intent)
			case console.ActionSymbols:
				listSymbols(ctx, lister, appLogger)
			case console.ActionHelp:
				fmt.Println(console.Usage)
			case console.ActionQuit:
				stop()
			}
		}
	}
}

func submit(ctx context.Context, session *app.Session, appLogger ports.Logger, intent app.Intent) {
	err := session.Submit(ctx, intent)
	var verr *domain.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		fmt.Println(verr)
	default:
		appLogger.Error(ctx, err, "Intent not delivered")
	}
}

func listSymbols(ctx context.Context, lister ports.SymbolLister, appLogger ports.Logger) {
	if lister == nil {
		fmt.Println("symbol listing needs SOURCE=binance")
		return
	}
	symbols, err := lister.ListSymbols(ctx)
	if err != nil {
		appLogger.Error(ctx, err, "Failed to list symbols")
		return
	}
	fmt.Println(strings.Join(symbols, " "))
}
