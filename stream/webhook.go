// Package stream provides DynamoDB Streams handlers for payment settlement.
package stream

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/ledger/store"
)

// Handler settles payments from gateway webhook callbacks. Webhook payloads
// are appended to the webhook log table by the API layer; the table's stream
// drives verification and settlement asynchronously.
type Handler struct {
	store  *store.Store
	secret []byte
	logger *slog.Logger
}

// NewHandler creates a new stream handler. secret is the gateway's shared
// signing key.
func NewHandler(s *store.Store, secret []byte, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:  s,
		secret: secret,
		logger: logger,
	}
}

// webhookEvent is the gateway callback payload shape.
type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// HandleSettlement processes webhook-log stream events: verifies the
// gateway signature, marks the referenced payment completed, confirms its
// order, and notifies the buyer. Designed to be used as an AWS Lambda
// handler.
func (h *Handler) HandleSettlement(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord settles one webhook log entry.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	// Only fresh log entries settle; replays of processed rows are no-ops.
	if record.EventName != "INSERT" {
		return nil
	}

	logID := getStringAttr(record.Change.NewImage, "id")
	payload := getStringAttr(record.Change.NewImage, "payload")
	signature := getStringAttr(record.Change.NewImage, "signature")

	if !VerifySignature(h.secret, []byte(payload), signature) {
		// A forged callback is not retriable; record it and move on.
		h.logger.Warn("webhook signature mismatch", "logID", logID)
		return h.store.MarkWebhookProcessed(ctx, logID)
	}

	var evt webhookEvent
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		h.logger.Warn("webhook payload is not valid JSON", "logID", logID, "error", err)
		return h.store.MarkWebhookProcessed(ctx, logID)
	}
	if evt.Event != "charge.success" {
		return h.store.MarkWebhookProcessed(ctx, logID)
	}

	// The gateway reference is our payment id; locating it without the
	// composite key takes the slow path across payment partitions.
	payment, err := h.store.FindPaymentByID(ctx, evt.Data.Reference)
	if err != nil {
		return fmt.Errorf("find payment %s: %w", evt.Data.Reference, err)
	}

	if err := h.store.SettlePayment(ctx, payment.ID, payment.CreatedAt, payload); err != nil {
		return fmt.Errorf("settle payment %s: %w", payment.ID, err)
	}
	if err := h.store.UpdateOrderStatus(ctx, payment.OrderID, payment.OrderCreatedAt, store.OrderConfirmed); err != nil {
		return fmt.Errorf("confirm order %s: %w", payment.OrderID, err)
	}

	order, err := h.store.GetOrder(ctx, payment.OrderID, payment.OrderCreatedAt)
	if err != nil {
		return fmt.Errorf("get order %s: %w", payment.OrderID, err)
	}
	if _, err := h.store.Notify(ctx, order.UserID,
		"Your payment was received and your order is confirmed.",
		"payment", payment.ID); err != nil {
		h.logger.Warn("failed to notify user",
			"userID", order.UserID,
			"paymentID", payment.ID,
			"error", err,
		)
		// Settlement already committed; notification failure is not fatal.
	}

	if err := h.store.MarkWebhookProcessed(ctx, logID); err != nil {
		return fmt.Errorf("mark webhook processed: %w", err)
	}

	h.logger.Info("payment settled",
		"paymentID", payment.ID,
		"orderID", payment.OrderID,
		"logID", logID,
	)
	return nil
}

// VerifySignature checks a gateway callback signature: hex-encoded
// HMAC-SHA512 of the raw payload under the shared secret.
func VerifySignature(secret, payload []byte, signature string) bool {
	mac := hmac.New(sha512.New, secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok {
		return v.String()
	}
	return ""
}
