package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/chemtrack/services/ledger/config"
	"example.com/chemtrack/services/ledger/internal/api"
	"example.com/chemtrack/services/ledger/internal/cache"
	"example.com/chemtrack/services/ledger/internal/ledger"
	"example.com/chemtrack/services/ledger/internal/messaging"
	"example.com/chemtrack/services/ledger/internal/metrics"
	"example.com/chemtrack/services/ledger/internal/models"
	"example.com/chemtrack/services/ledger/internal/repositories"
	"example.com/chemtrack/services/ledger/internal/search"
	"example.com/chemtrack/services/ledger/internal/services"
	"example.com/chemtrack/services/ledger/internal/tracing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server exposing the batch ledger operations`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
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

	// Initialize cache
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		redisCache = nil
	}

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
	}

	// Initialize Elasticsearch client
	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
		elasticClient = nil
	}

	// Initialize the outbound event publisher
	bus, err := messaging.NewServiceBusClient(cfg.Azure)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Service Bus client, continuing without event publishing")
		bus = nil
	}

	// Initialize metrics
	metricsCollector := metrics.NewMetrics()
	metricsCollector.SetHealth("ledger", true)

	// Initialize the ledger service; avoid handing typed nils to the
	// service's interfaces.
	var svcCache services.Cache
	if redisCache != nil {
		svcCache = redisCache
	}
	var svcSearch services.EventIndex
	if elasticClient != nil {
		svcSearch = elasticClient
	}
	var svcPublisher services.EventPublisher
	if bus != nil {
		svcPublisher = bus
	}

	svc := services.NewLedgerService(core, journal, svcCache, svcSearch, svcPublisher,
		metricsCollector, cfg.Worker.DedupeTTL)

	// Initialize and start the server
	server := api.NewServer(cfg, svc, metricsCollector, tracer)

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	// Shutdown the server
	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down API server")
	return nil
}

func initDatabase(cfg config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if err := models.SetupModels(db); err != nil {
		return nil, errors.Wrap(err, "failed to run migrations")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying DB connection")
	}
	sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	return db, nil
}

// bootLedger restores the in-memory ledger from the journal's backing
// store, or creates a fresh one governed by the configured genesis admin
// when the store is empty.
func bootLedger(ctx context.Context, cfg config.Config, journal *repositories.GormJournal) (*ledger.Ledger, error) {
	snap, found, err := journal.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	if found {
		core, err := ledger.Restore(snap, journal)
		if err != nil {
			return nil, errors.Wrap(err, "failed to restore ledger")
		}
		log.Info().
			Int("batches", len(snap.Batches)).
			Uint64("batch_counter", snap.State.BatchCounter).
			Msg("Ledger restored from database")
		return core, nil
	}

	admin := ledger.Principal(cfg.Ledger.GenesisAdmin)
	core, err := ledger.New(admin, journal)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create ledger; set LEDGER_LEDGER_GENESIS_ADMIN for first bring-up")
	}
	log.Info().Str("admin", admin.String()).Msg("Fresh ledger created")
	return core, nil
}
