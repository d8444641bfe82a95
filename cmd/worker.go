package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/chemtrack/services/ledger/config"
	"example.com/chemtrack/services/ledger/internal/cache"
	"example.com/chemtrack/services/ledger/internal/messaging"
	"example.com/chemtrack/services/ledger/internal/metrics"
	"example.com/chemtrack/services/ledger/internal/repositories"
	"example.com/chemtrack/services/ledger/internal/search"
	"example.com/chemtrack/services/ledger/internal/services"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long: `Start the background worker that consumes batch commands from
Azure Service Bus and re-indexes audit records the API failed to project`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Create an error group to manage goroutines
	g, ctx := errgroup.WithContext(ctx)

	// Initialize the database and restore the ledger from it
	db, err := initDatabase(cfg)
	if err != nil {
		return err
	}
	journal := repositories.NewGormJournal(db)

	core, err := bootLedger(ctx, cfg, journal)
	if err != nil {
		return err
	}

	// Initialize cache (command dedupe lives here)
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without command dedupe")
		redisCache = nil
	}

	// Initialize Elasticsearch client
	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
		elasticClient = nil
	}

	// Initialize Azure Service Bus client
	bus, err := messaging.NewServiceBusClient(cfg.Azure)
	if err != nil {
		return err
	}
	defer bus.Close()

	// Initialize metrics
	metricsCollector := metrics.NewMetrics()

	var svcCache services.Cache
	if redisCache != nil {
		svcCache = redisCache
	}
	var svcSearch services.EventIndex
	if elasticClient != nil {
		svcSearch = elasticClient
	}

	svc := services.NewLedgerService(core, journal, svcCache, svcSearch, bus,
		metricsCollector, cfg.Worker.DedupeTTL)

	// Start the command queue processor
	g.Go(func() error {
		log.Info().Str("queue", cfg.Azure.CommandQueue).Msg("Starting command queue processor")
		return bus.ProcessMessages(ctx, svc.ProcessCommandMessage)
	})

	// Start the reindex cron job as the fallback for failed projections
	g.Go(func() error {
		log.Info().Dur("interval", cfg.Worker.ReindexInterval).Msg("Starting audit-record reindex job")

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Worker.ReindexInterval),
			gocron.NewTask(func() {
				if err := svc.ReindexUnindexedEvents(ctx, cfg.Worker.ReindexBatchSize); err != nil {
					log.Error().Err(err).Msg("Failed to reindex audit records")
				}
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()

		// Wait for context cancellation
		<-ctx.Done()

		return scheduler.Shutdown()
	})

	// Wait for any goroutine to exit
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
