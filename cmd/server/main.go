package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	restate "github.com/restatedev/sdk-go"
	"github.com/restatedev/sdk-go/server"
	kafka "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/fx"

	"github.com/commercedesk/backoffice/internal/api"
	appconfig "github.com/commercedesk/backoffice/internal/config"
	"github.com/commercedesk/backoffice/internal/events"
	"github.com/commercedesk/backoffice/internal/fulfillment"
	"github.com/commercedesk/backoffice/internal/gateway"
	"github.com/commercedesk/backoffice/internal/reconcile"
	"github.com/commercedesk/backoffice/internal/secrets"
	"github.com/commercedesk/backoffice/internal/store"
	"github.com/commercedesk/backoffice/internal/telemetry"
)

func newLogger(cfg appconfig.Config) *log.Logger {
	prefix := ""
	if cfg.ServiceName != "" {
		prefix = fmt.Sprintf("[%s] ", cfg.ServiceName)
	}
	logger := log.New(os.Stdout, prefix, log.LstdFlags|log.Lmicroseconds)
	log.SetOutput(os.Stdout)
	log.SetFlags(logger.Flags())
	log.SetPrefix(prefix)
	return logger
}

func setupTelemetry(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger) {
	var cleanup func()
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			cleanup = telemetry.InitTracer(cfg.ServiceName)
			return nil
		},
		OnStop: func(context.Context) error {
			if cleanup != nil {
				cleanup()
			}
			return nil
		},
	})
}

// newGatewayClient builds the payment gateway client. Without a secret key
// the app still starts; every reconciliation then fails fast with a clear
// error instead of a 401 from the gateway.
func newGatewayClient(cfg appconfig.Config, logger *log.Logger) gateway.Client {
	client, err := gateway.NewHTTPClient(cfg.Gateway.BaseURL, cfg.Gateway.SecretKey)
	if err != nil {
		logger.Printf("Warning: payment gateway not configured: %v", err)
		return nil
	}
	return client
}

func newStoreClient(cfg appconfig.Config) store.Store {
	return store.NewClient(cfg.Store.BaseURL, cfg.Store.Dataset, cfg.Store.Token)
}

func newFulfillmentClient(cfg appconfig.Config, logger *log.Logger) fulfillment.Client {
	if cfg.Fulfillment.BaseURL == "" {
		logger.Printf("Fulfillment endpoint not configured; autoFulfill requests will be ignored")
		return nil
	}
	return fulfillment.NewHTTPClient(cfg.Fulfillment.BaseURL)
}

func newEngine(gw gateway.Client, st store.Store, ful fulfillment.Client, logger *log.Logger) *reconcile.Engine {
	return reconcile.New(gw, st, ful, logger)
}

// newKafkaProducer constructs a shared Kafka producer and binds its lifecycle to Fx.
func newKafkaProducer(cfg appconfig.Config, lc fx.Lifecycle) *events.Producer {
	prod := events.NewProducer(cfg.Kafka.Brokers)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return prod.Close()
		},
	})
	return prod
}

func buildRestateServer() *server.Restate {
	srv := server.NewRestate()

	// Keyed by the raw payment id: the runtime serializes concurrent runs for
	// the same id, which is what keeps replays from racing into duplicates.
	reconcileObject := restate.NewObject("recon.sv1.ReconcileService").
		Handler("Reconcile", restate.NewObjectHandler(reconcile.Reconcile))
	srv = srv.Bind(reconcileObject)

	return srv
}

func registerRestateServer(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger, shutdowner fx.Shutdowner, srv *server.Restate) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Println("Restate server listening on", cfg.Restate.ListenAddr)
			logger.Println("  - ReconcileService: VIRTUAL OBJECT (keyed by payment id)")
			logger.Printf("  restate deployments register http://localhost%s", cfg.Restate.ListenAddr)

			go func() {
				defer close(done)
				if err := srv.Start(ctx, cfg.Restate.ListenAddr); err != nil && !errors.Is(err, context.Canceled) {
					logger.Printf("Server error: %v", err)
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			<-done
			return nil
		},
	})
}

func newWebServer(cfg appconfig.Config, engine *reconcile.Engine, st store.Store, prod *events.Producer) *http.Server {
	mux := http.NewServeMux()

	api.RegisterReconcileRoutes(mux, api.ReconcileDeps{
		Engine:     engine,
		RuntimeURL: cfg.Restate.RuntimeURL,
		Producer:   prod,
		Topic:      cfg.Kafka.ReconciliationsTopic,
	})
	api.RegisterOrdersRoutes(mux, st)

	mux.Handle("/healthz", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}), "healthz"))

	return &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: api.WithCORS(mux),
	}
}

func registerWebServer(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger, shutdowner fx.Shutdowner, engine *reconcile.Engine, st store.Store, prod *events.Producer) {
	httpServer := newWebServer(cfg, engine, st, prod)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				logger.Printf("HTTP API listening on %s", cfg.HTTP.Addr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Printf("HTTP API server error: %v", err)
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	})
}

func registerReconciliationsConsumer(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger, shutdowner fx.Shutdowner) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.ReconciliationsTopic,
		GroupID:  cfg.Kafka.ReconciliationsGroup,
		MinBytes: 1e3, MaxBytes: 10e6,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := runReconciliationsConsumer(ctx, reader, cfg.Kafka.ReconciliationsTopic, cfg.Kafka.ReconciliationsGroup, logger); err != nil {
					logger.Printf("reconciliations consumer stopped with error: %v", err)
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			_ = reader.Close()
			<-done
			return nil
		},
	})
}

func runReconciliationsConsumer(ctx context.Context, reader *kafka.Reader, topic, group string, logger *log.Logger) error {
	logger.Printf("[%s] consumer started (group=%s)", topic, group)
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("[%s] read error: %w", topic, err)
		}

		var evt events.Envelope
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Printf("[%s] bad JSON: %v; payload=%s", topic, err, string(msg.Value))
			continue
		}

		switch evt.EventType {
		case "OrderReconciled":
			handleOrderReconciled(logger, evt)
		default:
			logger.Printf("[%s] ignored eventType=%s key=%s", topic, evt.EventType, string(msg.Key))
		}
	}
}

func handleOrderReconciled(logger *log.Logger, evt events.Envelope) {
	data := toMap(evt.Data)
	logger.Printf("[OrderReconciled] id=%s orderId=%s invoiceId=%s status=%s degraded=%v",
		evt.AggregateID,
		toString(data["orderId"]),
		toString(data["invoiceId"]),
		toString(data["paymentStatus"]),
		data["degradedSteps"],
	)
}

// small helpers for robust logging
func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toMap(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func main() {
	_ = godotenv.Load()

	if err := secrets.BootstrapFromOpenBao(context.Background()); err != nil {
		log.Printf("Warning: OpenBao bootstrap failed: %v", err)
	}

	app := fx.New(
		fx.Provide(
			appconfig.Load,
			newLogger,
			newGatewayClient,
			newStoreClient,
			newFulfillmentClient,
			newEngine,
			newKafkaProducer,
			buildRestateServer,
		),
		fx.Invoke(
			func(logger *log.Logger, cfg appconfig.Config) {
				logger.Printf("Starting %s...", cfg.ServiceName)
			},
			func(e *reconcile.Engine) { reconcile.SetEngine(e) },
			setupTelemetry,
			registerWebServer,
			registerReconciliationsConsumer,
			registerRestateServer,
		),
	)

	app.Run()
}
