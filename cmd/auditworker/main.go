package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	"github.com/commercedesk/backoffice/internal/events"
	"github.com/commercedesk/backoffice/internal/store"
)

// The audit worker consumes reconciliation outcomes and writes one log
// document per run into the content store, so the dashboard can show when a
// payment was last reconciled and whether anything degraded.
func main() {
	_ = godotenv.Load()
	log.Println("Audit worker starting...")
	startConsumer()
}

func startConsumer() {
	brokers := getenv("KAFKA_BROKERS", "localhost:9092")
	topic := getenv("KAFKA_RECONCILIATIONS_TOPIC", "reconciliations.v1")
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{brokers},
		Topic:    topic,
		GroupID:  "audit-workers", // its own consumer group
		MinBytes: 1e3, MaxBytes: 10e6,
	})
	defer reader.Close()

	st := store.NewClient(
		getenv("CONTENT_STORE_URL", "http://localhost:3333"),
		getenv("CONTENT_STORE_DATASET", "production"),
		os.Getenv("CONTENT_STORE_TOKEN"),
	)

	log.Printf("[audit-worker] consuming %s (group=audit-workers)", topic)
	for {
		msg, err := reader.ReadMessage(context.Background())
		if err != nil {
			log.Printf("[audit-worker] read error: %v", err)
			return
		}

		var evt events.Envelope
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			log.Printf("[audit-worker] bad json: %v; payload=%s", err, string(msg.Value))
			continue
		}

		switch evt.EventType {
		case "OrderReconciled":
			handleOrderReconciled(st, evt)
		default:
			// ignore other event types
		}
	}
}

func handleOrderReconciled(st store.Store, evt events.Envelope) {
	data := toMap(evt.Data)
	doc := map[string]any{
		"_type":         "reconciliationLog",
		"paymentId":     evt.AggregateID,
		"orderId":       toString(data["orderId"]),
		"invoiceId":     toString(data["invoiceId"]),
		"paymentStatus": toString(data["paymentStatus"]),
		"degradedSteps": data["degradedSteps"],
		"occurredAt":    evt.OccurredAt.Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := st.Create(ctx, doc); err != nil {
		log.Printf("[audit-worker] log write failed for %s: %v", evt.AggregateID, err)
		return
	}
	log.Printf("[audit-worker] logged reconciliation id=%s order=%s status=%s",
		evt.AggregateID, toString(data["orderId"]), toString(data["paymentStatus"]))
}

// helpers
func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func toMap(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
