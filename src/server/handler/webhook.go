package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tunecast/tunecast/src/server/metrics"
	models "github.com/tunecast/tunecast/src/server/model"

	"github.com/gin-gonic/gin"
)

// Signatures older than this are replays
const webhookTolerance = 5 * time.Minute

// WebhookHandler receives billing provider events and mirrors them onto
// local subscription rows
type WebhookHandler struct {
	DB     *sql.DB
	Secret string
}

// webhookEvent is the provider's envelope. Data carries the subscription
// or session object depending on event type.
type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Object webhookObject `json:"object"`
	} `json:"data"`
}

type webhookObject struct {
	CustomerID     string `json:"customer"`
	SubscriptionID string `json:"subscription"`
	ID             string `json:"id"`
	Status         string `json:"status"`
	CurrentPeriod  int64  `json:"current_period_end"`
	Metadata       struct {
		UserID string `json:"user_id"`
		Tier   string `json:"tier"`
	} `json:"metadata"`
}

// Handle verifies the signature and applies the event. Unknown event types
// are logged and acknowledged so the provider stops retrying them.
func (h *WebhookHandler) Handle(c *gin.Context) {
	if h.Secret == "" {
		RespondError(c, http.StatusServiceUnavailable, ErrServiceUnavail, "Billing webhook not configured")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		RespondError(c, http.StatusBadRequest, ErrInvalidInput, "unreadable payload")
		return
	}

	if err := verifySignature(c.GetHeader("Webhook-Signature"), payload, h.Secret, time.Now()); err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "bad_signature").Inc()
		RespondError(c, http.StatusUnauthorized, ErrUnauthorized, "Invalid signature")
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		RespondError(c, http.StatusBadRequest, ErrInvalidInput, "invalid event payload")
		return
	}

	if err := h.apply(&event); err != nil {
		metrics.WebhookEvents.WithLabelValues(event.Type, "error").Inc()
		log.Printf("❌ Webhook %s failed: %v", event.Type, err)
		RespondError(c, http.StatusInternalServerError, ErrInternal, "Event processing failed")
		return
	}

	metrics.WebhookEvents.WithLabelValues(event.Type, "ok").Inc()
	RespondData(c, gin.H{"received": true})
}

// verifySignature checks a `t=<unix>,v1=<hex>` header: HMAC-SHA256 over
// "<t>.<payload>" with the shared secret, constant-time compare, bounded age
func verifySignature(header string, payload []byte, secret string, now time.Time) error {
	if header == "" {
		return fmt.Errorf("missing signature header")
	}

	var timestamp int64
	var signature string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid timestamp")
			}
			timestamp = ts
		case "v1":
			signature = kv[1]
		}
	}
	if timestamp == 0 || signature == "" {
		return fmt.Errorf("malformed signature header")
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > webhookTolerance || age < -webhookTolerance {
		return fmt.Errorf("timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

func (h *WebhookHandler) apply(event *webhookEvent) error {
	subModel := &models.SubscriptionModel{DB: h.DB}
	obj := &event.Data.Object

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated", "checkout.session.completed":
		userID, tier, err := resolveTarget(subModel, obj)
		if err != nil {
			return err
		}
		var expiresAt *time.Time
		if obj.CurrentPeriod > 0 {
			t := time.Unix(obj.CurrentPeriod, 0)
			expiresAt = &t
		}
		subscriptionID := obj.SubscriptionID
		if subscriptionID == "" {
			subscriptionID = obj.ID
		}
		return subModel.ApplyBillingUpdate(userID, tier, models.SubStatusActive, obj.CustomerID, subscriptionID, expiresAt)

	case "customer.subscription.deleted":
		userID, _, err := resolveTarget(subModel, obj)
		if err != nil {
			return err
		}
		return subModel.SetStatus(userID, models.SubStatusCancelled)

	case "invoice.payment_succeeded":
		userID, _, err := resolveTarget(subModel, obj)
		if err != nil {
			return err
		}
		return subModel.SetStatus(userID, models.SubStatusActive)

	case "invoice.payment_failed":
		userID, _, err := resolveTarget(subModel, obj)
		if err != nil {
			return err
		}
		return subModel.SetStatus(userID, models.SubStatusPaymentFailed)

	default:
		log.Printf("⚠️ Unhandled webhook event type: %s", event.Type)
		return nil
	}
}

// resolveTarget finds the local user for an event: metadata user_id when
// present, the stored customer mapping otherwise
func resolveTarget(subModel *models.SubscriptionModel, obj *webhookObject) (int64, models.Tier, error) {
	tier := models.Tier(obj.Metadata.Tier)
	if obj.Metadata.UserID != "" {
		userID, err := strconv.ParseInt(obj.Metadata.UserID, 10, 64)
		if err != nil {
			return 0, "", fmt.Errorf("invalid metadata user_id: %q", obj.Metadata.UserID)
		}
		if !tier.Valid() {
			tier = models.TierPlus
		}
		return userID, tier, nil
	}

	if obj.CustomerID == "" {
		return 0, "", fmt.Errorf("event has neither metadata user_id nor customer id")
	}
	sub, err := subModel.GetByCustomerID(obj.CustomerID)
	if err != nil {
		return 0, "", fmt.Errorf("unknown customer %s: %w", obj.CustomerID, err)
	}
	if !tier.Valid() {
		tier = sub.Tier
	}
	return sub.UserID, tier, nil
}
