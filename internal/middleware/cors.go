package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string // empty or "*" allows any origin
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
	Logger           *slog.Logger
}

// CORS reflects allowed origins and answers preflight requests with 204.
// Disallowed origins get no Access-Control-Allow-Origin header.
func CORS(config CORSConfig) func(next http.Handler) http.Handler {
	methods := config.AllowedMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	}
	headers := config.AllowedHeaders
	if len(headers) == 0 {
		headers = []string{"Accept", "Content-Type", HeaderRequestID}
	}
	maxAge := config.MaxAge
	if maxAge == 0 {
		maxAge = 300
	}

	anyOrigin := len(config.AllowedOrigins) == 0
	origins := make(map[string]struct{}, len(config.AllowedOrigins))
	for _, o := range config.AllowedOrigins {
		if o == "*" {
			anyOrigin = true
		}
		origins[strings.ToLower(o)] = struct{}{}
	}

	allowMethods := strings.Join(methods, ", ")
	allowHeaders := strings.Join(headers, ", ")
	exposeHeaders := strings.Join(config.ExposedHeaders, ", ")
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()

			_, listed := origins[strings.ToLower(origin)]
			allowed := origin != "" && (anyOrigin || listed)
			if allowed {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				if config.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if exposeHeaders != "" {
					h.Set("Access-Control-Expose-Headers", exposeHeaders)
				}
			}
			h.Set("Access-Control-Allow-Methods", allowMethods)
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			h.Set("Access-Control-Max-Age", strconv.Itoa(maxAge))

			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			logger.DebugContext(r.Context(), "CORS preflight",
				slog.String("origin", origin),
				slog.String("requested_method", r.Header.Get("Access-Control-Request-Method")),
				slog.Bool("allowed", allowed))
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
