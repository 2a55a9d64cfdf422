package shield

import (
	"fmt"
	"net/http"
)

// CacheControl sets Cache-Control on successful responses to a public
// max-age of seconds; error responses and seconds <= 0 are marked
// no-store.
func CacheControl(seconds int) func(http.Handler) http.Handler {
	value := "no-cache, no-store, must-revalidate"
	if seconds > 0 {
		value = fmt.Sprintf("public, max-age=%d", seconds)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(&cacheWriter{ResponseWriter: w, value: value}, r)
		})
	}
}

type cacheWriter struct {
	http.ResponseWriter
	value   string
	written bool
}

func (w *cacheWriter) WriteHeader(code int) {
	if !w.written {
		w.written = true
		if code >= 200 && code < 300 {
			w.Header().Set("Cache-Control", w.value)
		} else {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		}
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *cacheWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *cacheWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
