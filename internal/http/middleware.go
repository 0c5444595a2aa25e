package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/checkout"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ctxKey int

const (
	sessionKey ctxKey = iota
	responseModeKey
)

type SessionCookie struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// SessionMiddleware issues the anonymous session cookie the cart and pending payments hang off.
// Secure cookies are SameSite=None so that gateway and ACS cross-site posts still carry them.
func SessionMiddleware(cfg SessionCookie) func(http.Handler) http.Handler {
	if cfg.Name == "" {
		cfg.Name = "storefront_session"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := ""
			if c, err := r.Cookie(cfg.Name); err == nil {
				if _, err := uuid.Parse(c.Value); err == nil {
					sessionID = c.Value
				}
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			cookie := &http.Cookie{
				Name:     cfg.Name,
				Value:    sessionID,
				Path:     "/",
				HttpOnly: true,
				Secure:   cfg.Secure,
				SameSite: http.SameSiteLaxMode,
			}
			if cfg.Secure {
				cookie.SameSite = http.SameSiteNoneMode
			}
			if cfg.MaxAge > 0 {
				cookie.MaxAge = int(cfg.MaxAge.Seconds())
			}
			http.SetCookie(w, cookie)

			ctx := context.WithValue(r.Context(), sessionKey, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func SessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionKey).(string); ok {
		return id
	}
	return ""
}

// DetectResponseMode treats a request as an API call when it asks for JSON or carries an
// XHR or Inertia marker; everything else is a browser navigation.
func DetectResponseMode(r *http.Request) checkout.ResponseMode {
	if strings.Contains(strings.ToLower(r.Header.Get("Accept")), "application/json") ||
		strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest") ||
		r.Header.Get("X-Inertia") != "" {
		return checkout.ModeJSON
	}
	return checkout.ModeBrowser
}

func ResponseModeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), responseModeKey, DetectResponseMode(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ResponseMode(ctx context.Context) checkout.ResponseMode {
	if mode, ok := ctx.Value(responseModeKey).(checkout.ResponseMode); ok {
		return mode
	}
	return checkout.ModeBrowser
}

// RequestIDMiddleware echoes the chi request id back to the caller.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestID := middleware.GetReqID(r.Context()); requestID != "" {
			w.Header().Set("X-Request-ID", requestID)
		}
		next.ServeHTTP(w, r)
	})
}

// AccessLog writes one logrus line per request.
func AccessLog(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.WithFields(logrus.Fields{
					"request_id": middleware.GetReqID(r.Context()),
					"method":     r.Method,
					"path":       r.URL.Path,
					"status":     ww.Status(),
					"bytes":      ww.BytesWritten(),
					"duration":   time.Since(start).String(),
					"remote":     r.RemoteAddr,
				}).Info("request served")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
