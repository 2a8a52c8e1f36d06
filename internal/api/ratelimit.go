package api

import (
	"net"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/traildig/traildig-server/internal/errors"
	"github.com/traildig/traildig-server/internal/ratelimit"
)

const msgRateLimited = "Too many requests. Please try again later."

// rateLimit returns an operation middleware that throttles requests per client IP.
// Returns 429 Too Many Requests when limit is exceeded.
func (s *Server) rateLimit(limiter *ratelimit.KeyedRateLimiter) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if limiter == nil {
			next(ctx)
			return
		}

		key := clientIP(ctx.Header("X-Forwarded-For"), ctx.Header("X-Real-IP"), ctx.RemoteAddr())
		if !limiter.Allow(key) {
			s.logger.Warn("Rate limit exceeded",
				"ip", key,
				"path", ctx.URL().Path,
			)
			_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests, msgRateLimited, domainerrors.RateLimited(msgRateLimited))
			return
		}

		next(ctx)
	}
}

// clientIP extracts the client IP.
// Checks X-Forwarded-For and X-Real-IP headers before falling back to RemoteAddr.
func clientIP(xForwardedFor, xRealIP, remoteAddr string) string {
	// X-Forwarded-For may contain multiple IPs, first is client.
	if xForwardedFor != "" {
		first, _, _ := strings.Cut(xForwardedFor, ",")
		return strings.TrimSpace(first)
	}

	if xRealIP != "" {
		return strings.TrimSpace(xRealIP)
	}

	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
