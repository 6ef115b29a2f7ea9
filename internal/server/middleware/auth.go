package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/curvemarket/internal/crypto"
	"github.com/alanyoungcy/curvemarket/internal/domain"
)

// maxBodyBytes bounds the request body read for signature checks.
const maxBodyBytes = 1 << 20

// SignatureAuth authenticates mutating requests by their personal_sign
// signature over timestamp, method, path and body hash. The recovered
// signer must equal the claimed address and the timestamp must be within
// maxSkew of now. Each signed message is accepted once: replay remembers it
// for twice maxSkew, which outlives any timestamp the window admits. A nil
// replay disables that check. On success the caller is stored in the
// request context. Safe methods pass through unauthenticated.
func SignatureAuth(maxSkew time.Duration, replay domain.ReplayGuard, now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			addrHex := strings.TrimSpace(r.Header.Get(crypto.HeaderAddress))
			ts := strings.TrimSpace(r.Header.Get(crypto.HeaderTimestamp))
			sig := strings.TrimSpace(r.Header.Get(crypto.HeaderSignature))
			if addrHex == "" || ts == "" || sig == "" {
				writeUnauthorized(w, "missing signature headers")
				return
			}
			claimed, err := domain.ParseAddress(addrHex)
			if err != nil {
				writeUnauthorized(w, "invalid address")
				return
			}
			unix, err := strconv.ParseInt(ts, 10, 64)
			if err != nil {
				writeUnauthorized(w, "invalid timestamp")
				return
			}
			if skew := now().Sub(time.Unix(unix, 0)); skew > maxSkew || skew < -maxSkew {
				writeUnauthorized(w, "timestamp outside allowed window")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			if err != nil {
				writeUnauthorized(w, "unreadable body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			msg := crypto.RequestMessage(ts, r.Method, r.URL.Path, body)
			signer, err := crypto.RecoverSigner(msg, sig)
			if err != nil || signer != claimed {
				writeUnauthorized(w, "invalid signature")
				return
			}

			if replay != nil {
				// Keyed on signer and message, not the signature bytes, so a
				// re-encoded signature over the same request is still caught.
				fresh, err := replay.MarkSeen(r.Context(), requestFingerprint(claimed, msg), 2*maxSkew)
				if err != nil {
					w.Header().Set("Content-Type", "application/json; charset=utf-8")
					w.WriteHeader(http.StatusServiceUnavailable)
					w.Write([]byte(`{"error":"replay check unavailable"}`))
					return
				}
				if !fresh {
					writeUnauthorized(w, "request already used")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(domain.WithCaller(r.Context(), claimed)))
		})
	}
}

func requestFingerprint(signer domain.Address, msg []byte) string {
	h := sha256.New()
	h.Write(signer.Bytes())
	h.Write(msg)
	return hex.EncodeToString(h.Sum(nil))
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
