package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	// EventIDHeader carries the id of the event a committed vault call emitted.
	EventIDHeader = "X-Vault-Event-ID"
	// ReplayedHeader marks a response served from a previously committed call.
	ReplayedHeader = "Idempotent-Replayed"

	vaultCallPrefix = "vault:call:"
	storeTimeout    = 2 * time.Second
)

// vaultCall is what a committed call leaves behind under its idempotency key:
// the event it produced and the response that reported it. A reservation has
// Pending set and no response yet.
type vaultCall struct {
	Fingerprint string `json:"fingerprint"`
	Pending     bool   `json:"pending,omitempty"`
	EventID     string `json:"event_id,omitempty"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency makes vault writes safe to retry. Each caller's Idempotency-Key
// is bound to the first request it accompanied; a retry of a committed call
// replays the recorded response and event id instead of running again. A key
// reused with a different request is rejected. Calls that did not commit
// release their key.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := c.Get(idempotencyKeyHeader)
		if key == "" {
			return fiber.NewError(fiber.StatusBadRequest, "missing Idempotency-Key header")
		}
		cacheKey := callKey(c, key)
		fingerprint := requestFingerprint(c)

		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		raw, err := cache.Get(ctx, cacheKey).Bytes()
		switch {
		case err == nil:
			var prior vaultCall
			if err := json.Unmarshal(raw, &prior); err != nil {
				logger.Warn("undecodable vault call record", slog.String("key", key), slog.Any("error", err))
				return fiber.NewError(fiber.StatusConflict, "duplicate request")
			}
			return replay(c, prior, fingerprint, logger)
		case !errors.Is(err, redis.Nil):
			logger.Error("idempotency lookup failed", slog.String("key", key), slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
		}

		reservation, _ := json.Marshal(vaultCall{Fingerprint: fingerprint, Pending: true})
		reserved, err := cache.SetNX(ctx, cacheKey, reservation, ttl).Result()
		if err != nil {
			logger.Error("idempotency reservation failed", slog.String("key", key), slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency reservation failure")
		}
		if !reserved {
			return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
		}

		release := func() {
			ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			defer cancel()
			cache.Del(ctx, cacheKey)
		}

		if err := c.Next(); err != nil {
			release()
			return err
		}
		status := c.Response().StatusCode()
		if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
			release()
			return nil
		}

		call := vaultCall{
			Fingerprint: fingerprint,
			EventID:     string(c.Response().Header.Peek(EventIDHeader)),
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
		}
		payload, err := json.Marshal(call)
		if err != nil {
			logger.Error("failed to encode vault call record", slog.String("key", key), slog.Any("error", err))
			release()
			return nil
		}

		persistCtx, persistCancel := context.WithTimeout(context.Background(), storeTimeout)
		defer persistCancel()
		if err := cache.Set(persistCtx, cacheKey, payload, ttl).Err(); err != nil {
			// The call already committed; the client still gets its answer.
			logger.Error("failed to record vault call",
				slog.String("key", key),
				slog.String("event_id", call.EventID),
				slog.Any("error", err),
			)
			release()
		}
		return nil
	}
}

func replay(c *fiber.Ctx, prior vaultCall, fingerprint string, logger *slog.Logger) error {
	if prior.Fingerprint != fingerprint {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "Idempotency-Key was used for a different request")
	}
	if prior.Pending {
		return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
	}

	logger.Info("vault call replayed",
		slog.String("path", c.Path()),
		slog.String("event_id", prior.EventID),
	)
	if prior.ContentType != "" {
		c.Set(fiber.HeaderContentType, prior.ContentType)
	}
	if prior.EventID != "" {
		c.Set(EventIDHeader, prior.EventID)
	}
	c.Set(ReplayedHeader, "true")
	return c.Status(prior.Status).Send(prior.Body)
}

// callKey scopes key to the authenticated caller.
func callKey(c *fiber.Ctx, key string) string {
	scope := "anonymous"
	if caller, ok := Caller(c); ok {
		scope = caller.Hex()
	}
	return vaultCallPrefix + scope + ":" + key
}

func requestFingerprint(c *fiber.Ctx) string {
	h := sha256.New()
	h.Write([]byte(c.Method()))
	h.Write([]byte{0})
	h.Write([]byte(c.Path()))
	h.Write([]byte{0})
	h.Write(c.Body())
	return hex.EncodeToString(h.Sum(nil))
}
