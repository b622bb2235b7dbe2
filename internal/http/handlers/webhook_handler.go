package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/whatsorder/go-orders-backend/internal/http/middleware"
)

// webhookSource tags dedupe records for the WhatsApp platform.
const webhookSource = "whatsapp"

// webhookPayload mirrors the Meta webhook envelope down to the fields the
// bot consumes. Everything else in the payload is ignored.
type webhookPayload struct {
	Entry []webhookEntry `json:"entry"`
}

type webhookEntry struct {
	Changes []webhookChange `json:"changes"`
}

type webhookChange struct {
	Value webhookValue `json:"value"`
}

type webhookValue struct {
	Contacts []webhookContact `json:"contacts"`
	Messages []webhookMessage `json:"messages"`
}

type webhookContact struct {
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type webhookMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

// VerifyWebhook handles the platform's GET verification handshake: echo
// hub.challenge when hub.mode is "subscribe" and the verify token matches.
func (h *Handlers) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.webhookVerifyToken {
		middleware.LoggerFrom(c).Info().Msg("webhook verified")
		c.String(http.StatusOK, challenge)
		return
	}
	fail(c, http.StatusForbidden, ErrCodeForbidden, "webhook verification failed")
}

// ReceiveWebhook handles POST /webhook. The platform redelivers payloads it
// considers unacknowledged, so this handler always returns 200 and relies
// on the event deduper to make redeliveries harmless. Payloads without a
// text message (status callbacks, media) are acknowledged and skipped.
func (h *Handlers) ReceiveWebhook(c *gin.Context) {
	log := middleware.LoggerFrom(c)

	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Warn().Err(err).Msg("unparseable webhook payload")
		c.Status(http.StatusOK)
		return
	}

	msg, profileName, found := extractTextMessage(payload)
	if !found {
		log.Debug().Msg("webhook without text message, skipping")
		c.Status(http.StatusOK)
		return
	}

	ctx := c.Request.Context()
	if h.dedupe != nil && msg.ID != "" {
		first, err := h.dedupe.MarkProcessed(ctx, webhookSource, msg.ID)
		if err != nil {
			// Processing anyway risks a duplicate order on redelivery but
			// dropping risks losing the message entirely. Process.
			log.Warn().Err(err).Str("event_id", msg.ID).Msg("event dedupe check failed")
		} else if !first {
			log.Info().Str("event_id", msg.ID).Msg("duplicate webhook delivery, skipping")
			c.Status(http.StatusOK)
			return
		}
	}

	h.convo.HandleMessage(ctx, msg.From, profileName, msg.Text.Body)
	c.Status(http.StatusOK)
}

// extractTextMessage digs the first text message and the sender's profile
// name out of the webhook envelope.
func extractTextMessage(p webhookPayload) (msg webhookMessage, profileName string, found bool) {
	if len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return msg, "", false
	}
	value := p.Entry[0].Changes[0].Value
	if len(value.Messages) == 0 {
		return msg, "", false
	}
	m := value.Messages[0]
	if m.Type != "" && m.Type != "text" {
		return msg, "", false
	}
	if len(value.Contacts) > 0 {
		profileName = value.Contacts[0].Profile.Name
	}
	return m, profileName, true
}
