package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/pkg/web"
)

const (
	// IdempotencyKeyHeader names the client supplied idempotency key.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotencyReplayedHeader is set on responses served from the cache.
	IdempotencyReplayedHeader = "X-Idempotency-Replayed"

	idempotencyPrefix   = "idempotency:"
	idempotencyInFlight = "in-flight:"
	maxIdempotencyKey   = 255
)

var (
	// ErrIdempotencyInFlight is returned while the first request with a key is still served.
	ErrIdempotencyInFlight = errors.New("a request with the same idempotency key is in progress")
	// ErrIdempotencyKeyLong is returned for keys over 255 bytes.
	ErrIdempotencyKeyLong = errors.New("idempotency key is too long")
	// ErrIdempotencyKeyReused is returned when a key is sent again with a different request.
	ErrIdempotencyKeyReused = errors.New("idempotency key was used for a different request")
)

type storedResponse struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// fingerprint identifies a request by method, route and body.
func fingerprint(gctx *gin.Context, body []byte) string {
	h := sha256.New()
	h.Write([]byte(gctx.Request.Method + " " + gctx.FullPath() + "\n"))
	h.Write(body)

	return hex.EncodeToString(h.Sum(nil))
}

type bodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response of a request carrying an already seen
// Idempotency-Key. Keys are scoped by the authenticated user, so it must run after
// AuthMiddleware. Responses with status >= 500 are not stored, and a key sent
// with a different body is rejected with 422.
//
// While the first request is served the key holds an in-flight marker that expires
// after lockTTL, so a crashed process frees it. The marker is also released when
// the handler panics.
//
// When redis is unreachable the request is served without replay protection.
func Idempotency(client redis.Cmdable, ttl, lockTTL time.Duration) gin.HandlerFunc {
	if lockTTL <= 0 || lockTTL > ttl {
		lockTTL = ttl
	}

	return func(gctx *gin.Context) {
		key := gctx.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			gctx.Next()
			return
		}

		if len(key) > maxIdempotencyKey {
			gctx.AbortWithStatusJSON(http.StatusBadRequest, web.Error(ErrIdempotencyKeyLong))
			return
		}

		ctx := gctx.Request.Context()
		l := zerolog.Ctx(ctx)

		body, err := io.ReadAll(gctx.Request.Body)
		if err != nil {
			l.Error().Err(err).Msg("cannot read request body")
			gctx.AbortWithStatusJSON(http.StatusBadRequest, web.Error(err))

			return
		}

		gctx.Request.Body = io.NopCloser(bytes.NewReader(body))

		redisKey := idempotencyPrefix + Viewer(gctx).Username + ":" + key
		sum := fingerprint(gctx, body)

		acquired, err := client.SetNX(ctx, redisKey, idempotencyInFlight+sum, lockTTL).Result()
		if err != nil {
			l.Error().Err(err).Str("idempotency_key", key).Msg("idempotency store unavailable")
			gctx.Next()

			return
		}

		if !acquired {
			replay(gctx, client, redisKey, sum)
			return
		}

		// A new context keeps the bookkeeping alive when the client went away.
		store := context.WithoutCancel(ctx)

		release := func() {
			if err := client.Del(store, redisKey).Err(); err != nil {
				l.Error().Err(err).Str("idempotency_key", key).Msg("idempotency key not released")
			}
		}

		served := false

		defer func() {
			if !served {
				release()
			}
		}()

		w := bodyWriter{ResponseWriter: gctx.Writer, body: &bytes.Buffer{}}
		gctx.Writer = w

		gctx.Next()

		served = true

		status := w.Status()
		if status >= http.StatusInternalServerError {
			release()
			return
		}

		value, err := json.Marshal(storedResponse{
			Fingerprint: sum,
			Status:      status,
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.body.Bytes(),
		})
		if err != nil {
			l.Error().Err(err).Send()
			release()

			return
		}

		if err := client.Set(store, redisKey, value, ttl).Err(); err != nil {
			l.Error().Err(err).Str("idempotency_key", key).Msg("idempotent response not stored")
		}
	}
}

func replay(gctx *gin.Context, client redis.Cmdable, redisKey, sum string) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	value, err := client.Get(ctx, redisKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		l.Error().Err(err).Send()
		gctx.Next()

		return
	}

	// Nil means the in-flight holder failed and released the key in the meantime.
	if errors.Is(err, redis.Nil) {
		gctx.AbortWithStatusJSON(http.StatusConflict, web.Error(ErrIdempotencyInFlight))
		return
	}

	if held, ok := strings.CutPrefix(value, idempotencyInFlight); ok {
		if held != sum {
			gctx.AbortWithStatusJSON(http.StatusUnprocessableEntity, web.Error(ErrIdempotencyKeyReused))
			return
		}

		gctx.AbortWithStatusJSON(http.StatusConflict, web.Error(ErrIdempotencyInFlight))

		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(value), &stored); err != nil {
		l.Error().Err(err).Str("redis_key", redisKey).Msg("corrupt idempotent response")
		gctx.Next()

		return
	}

	if stored.Fingerprint != sum {
		gctx.AbortWithStatusJSON(http.StatusUnprocessableEntity, web.Error(ErrIdempotencyKeyReused))
		return
	}

	l.Info().Str("redis_key", redisKey).Msg("idempotent replay")

	gctx.Header(IdempotencyReplayedHeader, "true")
	gctx.Data(stored.Status, stored.ContentType, stored.Body)
	gctx.Abort()
}
