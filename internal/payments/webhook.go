package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventlane/backend/internal/models"
	"github.com/eventlane/backend/internal/registrations"
	"github.com/eventlane/backend/pkg/response"
)

// signatureTolerance bounds how old a webhook timestamp may be.
const signatureTolerance = 5 * time.Minute

// WebhookHandler handles payment provider webhooks.
type WebhookHandler struct {
	repo   *Repository
	regs   *registrations.Repository
	secret string
	logger *zap.Logger
	now    func() time.Time
}

// NewWebhookHandler creates a webhook handler. An empty secret disables
// signature verification (local development).
func NewWebhookHandler(repo *Repository, regRepo *registrations.Repository, secret string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{repo: repo, regs: regRepo, secret: secret, logger: logger, now: time.Now}
}

// stripeEvent is the subset of the provider payload we consume.
type stripeEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string `json:"id"`
			Amount   int    `json:"amount"`
			Currency string `json:"currency"`
			Metadata struct {
				RegistrationID string `json:"registration_id"`
			} `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// HandleStripe handles POST /webhooks/stripe. Succeeded payment intents are
// recorded as charges against the registration named in the metadata;
// replayed events are dropped by provider payment ID.
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "failed to read body")
		return
	}
	if h.secret != "" {
		if !h.verifySignature(c.GetHeader("Stripe-Signature"), body) {
			response.Unauthorized(c, "invalid signature")
			return
		}
	}

	var ev stripeEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		response.BadRequest(c, "invalid payload")
		return
	}
	if ev.Type != "payment_intent.succeeded" {
		response.OK(c, gin.H{"received": true})
		return
	}

	ctx := c.Request.Context()
	if ev.Data.Object.ID != "" {
		existing, err := h.repo.GetByProviderPaymentID(ctx, models.PaymentProviderStripe, ev.Data.Object.ID)
		if err == nil && existing != nil {
			response.OK(c, gin.H{"received": true, "duplicate": true})
			return
		}
	}

	regID, err := uuid.Parse(ev.Data.Object.Metadata.RegistrationID)
	if err != nil {
		response.BadRequest(c, "missing registration_id metadata")
		return
	}
	reg, err := h.regs.GetRegistration(ctx, regID)
	if err != nil {
		h.logger.Error("webhook registration lookup failed", zap.Error(err))
		response.Internal(c, "lookup failed")
		return
	}
	if reg == nil {
		response.NotFound(c, "registration not found")
		return
	}

	p := &models.Payment{
		EventID:           reg.EventID,
		RegistrationID:    reg.ID,
		Provider:          models.PaymentProviderStripe,
		ProviderPaymentID: ev.Data.Object.ID,
		AmountCents:       ev.Data.Object.Amount,
		Currency:          strings.ToUpper(ev.Data.Object.Currency),
	}
	if err := h.repo.RecordCharge(ctx, p); err != nil {
		// A refunded registration can still receive a late webhook; answer
		// 200 so the provider stops retrying a permanent condition.
		h.logger.Warn("webhook charge not recorded",
			zap.Error(err), zap.String("registration_id", reg.ID.String()))
		response.OK(c, gin.H{"received": true, "recorded": false})
		return
	}

	h.logger.Info("webhook payment recorded",
		zap.String("registration_id", reg.ID.String()),
		zap.String("provider_payment_id", ev.Data.Object.ID),
		zap.Int("amount_cents", p.AmountCents),
	)
	response.OK(c, gin.H{"received": true, "recorded": true})
}

// verifySignature checks the provider's t=...,v1=... HMAC header over
// "<t>.<body>" and rejects stale timestamps.
func (h *WebhookHandler) verifySignature(header string, body []byte) bool {
	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return false
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	age := h.now().Sub(time.Unix(unix, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := mac.Sum(nil)
	for _, sig := range sigs {
		got, err := hex.DecodeString(sig)
		if err == nil && hmac.Equal(got, expected) {
			return true
		}
	}
	return false
}
