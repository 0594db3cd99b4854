package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/uptrace/bun/migrate"

	"github.com/getchainhub/chainhub/chain"
	"github.com/getchainhub/chainhub/db"
	"github.com/getchainhub/chainhub/db/migrations"
	"github.com/getchainhub/chainhub/db/store"
	"github.com/getchainhub/chainhub/lib/logging"
	"github.com/getchainhub/chainhub/lib/service"
	"github.com/getchainhub/chainhub/lib/transport"
	"github.com/getchainhub/chainhub/rabbitmq"
)

func main() {

	c := &service.Config{}

	// Load configuration from environment variables
	err := godotenv.Load(".env")
	if err != nil {
		fmt.Println("Failed to load .env file")
	}
	err = envconfig.Process("", c)
	if err != nil {
		log.Fatalf("Error loading environment variables: %v", err)
	}

	// Setup logging to STDOUT or a configured log file
	logger := logging.Logger(c.LogFilePath)

	// Open the invoice store: postgres when DATABASE_URI is set, otherwise
	// the in-memory store
	startupCtx := context.Background()
	var invoiceStore store.Store
	if c.DatabaseUri != "" {
		dbConn, err := db.Open(&db.Config{
			DatabaseUri:             c.DatabaseUri,
			DatabaseMaxConns:        c.DatabaseMaxConns,
			DatabaseMaxIdleConns:    c.DatabaseMaxIdleConns,
			DatabaseConnMaxLifetime: c.DatabaseConnMaxLifetime,
		})
		if err != nil {
			logger.Fatalf("Error initializing db connection: %v", err)
		}
		migrator := migrate.NewMigrator(dbConn, migrations.Migrations)
		err = migrator.Init(startupCtx)
		if err != nil {
			logger.Fatalf("Error initializing db migrator: %v", err)
		}
		_, err = migrator.Migrate(startupCtx)
		if err != nil {
			logger.Fatalf("Error migrating database: %v", err)
		}
		invoiceStore = store.NewBunStore(dbConn)
	} else {
		logger.Info("No DATABASE_URI configured, using the in-memory invoice store")
		invoiceStore = store.NewMemoryStore()
	}

	// Setup exception tracking with Sentry if configured
	// sentry init needs to happen before the echo middlewares are added
	if c.SentryDSN != "" {
		if err = sentry.Init(sentry.ClientOptions{
			Dsn:              c.SentryDSN,
			EnableTracing:    c.SentryTracesSampleRate > 0,
			TracesSampleRate: c.SentryTracesSampleRate,
		}); err != nil {
			logger.Errorf("sentry init error: %v", err)
		}
	}

	// Init the chain providers; malformed collection wallets abort startup
	chainCfg, err := chain.LoadConfig()
	if err != nil {
		logger.Fatalf("Error loading chain config: %v", err)
	}
	providers, err := chain.InitProviders(chainCfg, logger)
	if err != nil {
		logger.Fatalf("Error initializing chain providers: %v", err)
	}

	// If no RABBITMQ_URI was provided we will not attempt to create a client
	// No rabbitmq features will be available in this case.
	var rabbitmqClient rabbitmq.Client
	if c.RabbitMQUri != "" {
		rabbitmqClient, err = rabbitmq.Dial(c.RabbitMQUri,
			rabbitmq.WithLogger(logger),
			rabbitmq.WithInvoiceExchange(c.RabbitMQInvoiceExchange),
		)
		if err != nil {
			logger.Fatal(err)
		}

		// close the connection gently at the end of the runtime
		defer rabbitmqClient.Close()
	}

	svc := &service.ChainhubService{
		Config:              c,
		Store:               invoiceStore,
		Providers:           providers,
		CollectionWallets:   chainCfg.CollectionWallets(),
		ProviderCallTimeout: chainCfg.Timeout(),
		Logger:              logger,
		InvoicePubSub:       service.NewPubsub(),
	}

	//init echo server
	e := transport.InitEcho(c, logger)

	logMw := transport.CreateLoggingMiddleware(logger)
	// strict rate limit for requests hitting external backends
	strictRateLimitMiddleware := transport.CreateRateLimitMiddleware(c.StrictRateLimit, c.BurstRateLimit)

	transport.RegisterEndpoints(svc, e, strictRateLimitMiddleware, logMw)

	var backgroundWg sync.WaitGroup
	backGroundCtx, _ := signal.NotifyContext(context.Background(), os.Interrupt)

	// Poll pending invoices until they are paid or expired
	backgroundWg.Add(1)
	go func() {
		err = svc.StartReconciliationRoutine(backGroundCtx)
		if err != nil && err != context.Canceled {
			sentry.CaptureException(err)
			svc.Logger.Error(err)
		}
		svc.Logger.Info("Reconciliation routine done")
		backgroundWg.Done()
	}()

	// Sweep invoices as they become paid
	backgroundWg.Add(1)
	go func() {
		err = svc.StartForwardingRoutine(backGroundCtx)
		if err != nil && err != context.Canceled {
			sentry.CaptureException(err)
			svc.Logger.Error(err)
		}
		svc.Logger.Info("Forwarding routine done")
		backgroundWg.Done()
	}()

	//Start rabbit publisher
	if rabbitmqClient != nil {
		backgroundWg.Add(1)
		go func() {
			err = rabbitmqClient.StartPublishInvoices(backGroundCtx, svc.SubscribeInvoiceEvents)
			if err != nil && err != context.Canceled {
				svc.Logger.Error(err)
				sentry.CaptureException(err)
			}
			svc.Logger.Info("Rabbit invoice publisher done")
			backgroundWg.Done()
		}()
	}

	//Start Prometheus server if necessary
	if svc.Config.EnablePrometheus {
		go transport.StartPrometheusEcho(logger, svc, e)
	}

	// Start server
	go func() {
		if err := e.Start(fmt.Sprintf(":%v", c.Port)); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	<-backGroundCtx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
	//Wait for graceful shutdown of background routines
	backgroundWg.Wait()
	svc.Logger.Info("Chainhub exiting gracefully. Goodbye.")
}
