package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Middleware returns HTTP middleware for request metrics.
func Middleware(next http.Handler) http.Handler {
	if !enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			duration := time.Since(start).Seconds()

			// Normalize path to avoid high cardinality from IDs
			path := normalizePath(r.URL.Path)

			httpRequestsTotal.WithLabelValues(
				r.Method,
				path,
				strconv.Itoa(rw.status),
			).Inc()

			httpDuration.WithLabelValues(
				r.Method,
				path,
			).Observe(duration)
		}()

		next.ServeHTTP(rw, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures status code.
func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// normalizePath converts dynamic path segments to placeholders to avoid
// high cardinality metrics. For example:
//
//	/api/v1/versions/1.3.0/chains/8453 -> /api/v1/versions/{version}/chains/{id}
//	/api/v1/runs/6f1c...-...           -> /api/v1/runs/{id}
func normalizePath(path string) string {
	switch path {
	case "/health", "/healthz", "/readyz", "/metrics":
		return path
	}

	if !strings.HasPrefix(path, "/api/v1/") {
		return path
	}

	parts := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	normalized := []string{"/api/v1"}
	for _, part := range parts {
		switch {
		case part == "":
			continue
		case isVersion(part):
			normalized = append(normalized, "{version}")
		case isLikelyID(part):
			normalized = append(normalized, "{id}")
		default:
			normalized = append(normalized, part)
		}
	}
	return strings.Join(normalized, "/")
}

// isVersion returns true for semver-looking segments such as 1.3.0 or v1.3.0
func isVersion(segment string) bool {
	s := strings.TrimPrefix(segment, "v")
	if strings.Count(s, ".") < 2 {
		return false
	}
	main, _, _ := strings.Cut(s, "-")
	for _, p := range strings.Split(main, ".") {
		if !isNumeric(p) {
			return false
		}
	}
	return true
}

// isLikelyID returns true if segment looks like an identifier
func isLikelyID(segment string) bool {
	// Contract addresses and hashes
	if strings.HasPrefix(segment, "0x") && len(segment) >= 42 && isHex(segment[2:]) {
		return true
	}
	// UUIDs with dashes
	if len(segment) == 36 && strings.Count(segment, "-") == 4 {
		return true
	}
	// Chain IDs
	if isNumeric(segment) {
		return true
	}
	return false
}

// isHex returns true if string is hexadecimal (supports both upper and lowercase)
func isHex(s string) bool {
	for _, c := range s {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return false
		}
	}
	return len(s) > 0
}

// isNumeric returns true if string contains only digits
func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}
