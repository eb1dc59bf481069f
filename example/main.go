package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	receiptgen "github.com/padigital/receiptgen"
	"github.com/padigital/receiptgen/blobstore"
	"github.com/padigital/receiptgen/embedded"
	"github.com/padigital/receiptgen/sqlstore"
)

const dbDSN = "root:password@tcp(localhost:3306)/receiptgen_db?parseTime=true"

// loggingMetrics satisfies the pipeline's metrics interface by logging every
// sample. A real deployment would hand in an OpenTelemetry collector instead.
type loggingMetrics struct {
	logger *zap.Logger
}

var _ embedded.MetricsCollector = (*loggingMetrics)(nil)

func (m *loggingMetrics) IncrementCounter(name string, tags map[string]string) {
	m.logger.Info("counter", zap.String("name", name), zap.Any("tags", tags))
}

func (m *loggingMetrics) RecordDuration(name string, d time.Duration, tags map[string]string) {
	m.logger.Info("duration", zap.String("name", name), zap.Duration("value", d), zap.Any("tags", tags))
}

func (m *loggingMetrics) RecordGauge(name string, value float64, tags map[string]string) {
	m.logger.Info("gauge", zap.String("name", name), zap.Float64("value", value), zap.Any("tags", tags))
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	db, err := sql.Open("mysql", dbDSN)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := sqlstore.NewSQLStore(db, logger)
	if err := store.EnsureTables(ctx); err != nil {
		logger.Fatal("Failed to ensure tables", zap.Error(err))
	}

	queue, err := receiptgen.NewKafkaQueue(logger) // Uses default localhost config
	if err != nil {
		logger.Fatal("Failed to create Kafka queue", zap.Error(err))
	}
	defer queue.Close()

	layout, err := os.ReadFile("template.zip")
	if err != nil {
		logger.Fatal("Failed to read PDF layout", zap.Error(err))
	}
	renderer := receiptgen.NewPDFEngineClient(
		os.Getenv("PDF_ENGINE_ENDPOINT"),
		os.Getenv("PDF_ENGINE_SUBSCRIPTION_KEY"),
		layout,
		receiptgen.WithRendererLogger(logger),
	)

	artifacts, err := blobstore.NewGCSStore(ctx, "receipt-artifacts", "")
	if err != nil {
		logger.Fatal("Failed to create artifact store", zap.Error(err))
	}

	carrier, err := receiptgen.NewCarrier(store,
		receiptgen.WithLogger(logger),
		receiptgen.WithQueue(queue),
		receiptgen.WithRenderer(renderer),
		receiptgen.WithArtifactStore(artifacts),
		receiptgen.WithCipher(receiptgen.NewCipher(os.Getenv("AES_SECRET"), os.Getenv("AES_SALT"))),
		receiptgen.WithMetrics(&loggingMetrics{logger: logger}),
	)
	if err != nil {
		logger.Fatal("Failed to create carrier", zap.Error(err))
	}

	// Background workers: poison review requeue and poison record cleanup.
	dispatcher := carrier.Dispatcher()
	go dispatcher.Start(ctx)

	// In a real deployment the generation service is driven by a queue
	// consumer. Here we feed it a single sample message.
	svc := carrier.Service()
	poison := carrier.PoisonService()
	go func() {
		payload := []byte(`{
			"id": "evt-0001",
			"eventStatus": "DONE",
			"debtor": {"entityUniqueIdentifierValue": "AAAAAA00A00A000A"},
			"payer": {"entityUniqueIdentifierValue": "BBBBBB00B00B000B"},
			"paymentInfo": {"amount": "120.00", "remittanceInformation": "TARI 2026"},
			"creditor": {"companyName": "Comune di Esempio"}
		}`)
		if err := svc.ProcessGenerate(ctx, payload); err != nil {
			logger.Warn("Generation failed, routing to poison handling", zap.Error(err))
			if errors.Is(err, receiptgen.ErrBizEventNotValid) {
				return // nothing to recover from an unparseable message
			}
			if err := poison.ProcessPoisonMessage(ctx, payload); err != nil {
				logger.Error("Poison handling failed", zap.Error(err))
			}
		}
	}()

	<-ctx.Done()

	logger.Info("Shutdown signal received. Stopping dispatcher...")
	dispatcher.Stop()
	logger.Info("Dispatcher stopped gracefully.")
}
