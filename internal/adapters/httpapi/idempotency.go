package httpapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/cercia-labs/cercia-core/internal/app/apperr"
	"github.com/cercia-labs/cercia-core/internal/ports/out/idempotency"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"

	codeIdempotencyKeyReuse = "IDEMPOTENCY_KEY_REUSE"
)

// idempotent wraps a create handler so a retried request carrying the same
// Idempotency-Key replays the first successful response instead of posting twice.
//
// Replay if same agent+key+route+bodyHash.
// Reject if same agent+key+route with a different bodyHash (409).
func (s *Server) idempotent(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
		if s.Idem == nil || key == "" {
			next(w, r)
			return
		}
		ctx := r.Context()

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, apperr.CodeValidation, "invalid request body", map[string]any{"body": err.Error()})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		sum := sha256.Sum256(body)
		bodyHash := hex.EncodeToString(sum[:])

		var subject string
		if agent, ok, err := s.Accounts.CachedAgent(ctx); err != nil {
			writeAppError(w, r, err)
			return
		} else if ok {
			subject = agent.Name
		}

		metaFP := idempotency.Fingerprint{
			Key:     idempotency.Key(key),
			Subject: subject,
			Route:   r.Method + " " + chi.RouteContext(ctx).RoutePattern(),
		}
		if meta, ok, err := s.Idem.Get(ctx, metaFP); err != nil {
			writeAppError(w, r, err)
			return
		} else if ok {
			if string(meta.Body) != bodyHash {
				writeError(w, r, http.StatusConflict, codeIdempotencyKeyReuse, "idempotency key reuse with different payload", nil)
				return
			}
		} else if err := s.Idem.Put(ctx, metaFP, idempotency.Record{
			ContentType: "text/plain",
			Body:        []byte(bodyHash),
			CreatedAt:   time.Now().UTC(),
		}); err != nil {
			writeAppError(w, r, err)
			return
		}

		respFP := metaFP
		respFP.BodyHash = bodyHash
		if rec, ok, err := s.Idem.Get(ctx, respFP); err != nil {
			writeAppError(w, r, err)
			return
		} else if ok && isSuccess(rec.StatusCode) {
			w.Header().Set("Content-Type", rec.ContentType)
			w.Header().Set(replayedHeader, "true")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.Body)
			return
		}

		var buf bytes.Buffer
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Tee(&buf)
		next(ww, r)

		// Store successful response for replay.
		if !isSuccess(ww.Status()) {
			return
		}
		if err := s.Idem.Put(ctx, respFP, idempotency.Record{
			StatusCode:  ww.Status(),
			ContentType: ww.Header().Get("Content-Type"),
			Body:        buf.Bytes(),
			CreatedAt:   time.Now().UTC(),
		}); err != nil {
			LoggerFromContext(ctx).Warn("store idempotent response", zap.Error(err))
		}
	}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
