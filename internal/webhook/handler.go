package webhook

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"code-storage-client/internal/model"
	pkgResponse "code-storage-client/pkg/response"
	"code-storage-client/pkg/storage"
)

// HandlePierreWebhook processes signed push notifications from the code
// storage service.
func (h *Handler) HandlePierreWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	// IP whitelist first; untrusted sources never reach the HMAC path
	if err := h.security.ValidateIPAddress(c.Request); err != nil {
		h.l.Warnf(ctx, "Webhook IP rejected: %v", err)
		pkgResponse.Forbidden(c)
		return
	}

	// Check rate limit
	if err := h.security.CheckRateLimit("pierre"); err != nil {
		h.l.Warnf(ctx, "Rate limit exceeded: %v", err)
		pkgResponse.TooManyRequests(c)
		return
	}

	// Read body
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.l.Errorf(ctx, "Failed to read webhook body: %v", err)
		pkgResponse.Error(c, err, nil)
		return
	}

	validation := storage.ValidateWebhook(body, c.Request.Header, h.secret, h.options)
	if !validation.Valid {
		h.l.Errorf(ctx, "Webhook validation failed: %s", validation.Error)
		c.JSON(http.StatusUnauthorized, gin.H{"error": validation.Error})
		return
	}

	// A valid signature seen twice inside the window is a replay
	if err := h.security.CheckReplay(c.GetHeader("X-Pierre-Signature")); err != nil {
		h.l.Warnf(ctx, "Webhook replay rejected: %v", err)
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate delivery"})
		return
	}

	if validation.Payload == nil || validation.Payload.Push == nil {
		h.l.Infof(ctx, "Ignoring webhook event type: %s", validation.EventType)
		pkgResponse.OK(c, gin.H{"status": "ignored", "reason": "unsupported event type"})
		return
	}

	push := validation.Payload.Push
	key := h.store.Record(model.PushEvent{
		RepoID:     push.Repository.ID,
		RepoURL:    push.Repository.URL,
		Ref:        push.Ref,
		Before:     push.Before,
		After:      push.After,
		CustomerID: push.CustomerID,
		PushedAt:   push.PushedAt,
		ReceivedAt: time.Now().UTC(),
	})

	h.l.Infof(ctx, "Recorded push %s on %s (%s)", push.After, push.Repository.ID, key)
	pkgResponse.OK(c, gin.H{"status": "accepted"})
}

// HandleListEvents returns the recently received push events.
func (h *Handler) HandleListEvents(c *gin.Context) {
	events := h.store.List()

	out := make([]gin.H, 0, len(events))
	for _, event := range events {
		out = append(out, gin.H{
			"repo_id":     event.RepoID,
			"repo_url":    event.RepoURL,
			"ref":         event.Ref,
			"before":      event.Before,
			"after":       event.After,
			"customer_id": event.CustomerID,
			"pushed_at":   event.PushedAt,
			"received_at": event.ReceivedAt,
		})
	}

	pkgResponse.OK(c, gin.H{"events": out, "count": len(out)})
}
