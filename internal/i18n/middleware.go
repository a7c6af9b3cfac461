package i18n

import (
	"net/http"
)

// Middleware extracts the Accept-Language header and injects a printer into the context
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag := MatchLanguage(r.Header.Get("Accept-Language"))
		ctx := WithPrinter(r.Context(), NewPrinter(tag))
		w.Header().Set("Content-Language", tag.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
