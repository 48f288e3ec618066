package requestid

import "net/http"

// Middleware attaches an identifier to the request. A valid incoming
// X-Request-ID is reused so upstream proxies keep their correlation;
// anything missing or malformed is replaced with a fresh UUID. The
// chosen identifier is echoed on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if !acceptable(id) {
			id = newID()
		}

		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(SetToContext(r.Context(), id)))
	})
}
