package shield

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS restricts cross-origin access to the given origins, read-only.
// An empty list allows no cross-origin callers.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Cache", "X-Request-ID"},
		MaxAge:         300,
	})
}
