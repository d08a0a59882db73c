// Package api implements the skylabel REST API using chi.
package api

import (
	"context"
	"net/http"
	"strings"
)

// HolderHeader carries the annotator's holder id.
const HolderHeader = "X-Holder-ID"

const maxHolderLen = 128

type holderKey struct{}

// HolderMiddleware reads the caller's holder id from the X-Holder-ID header,
// falling back to the "holder" query parameter for clients that cannot set
// headers (EventSource, sendBeacon). It never rejects a request.
func HolderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HolderHeader))
		if id == "" {
			id = strings.TrimSpace(r.URL.Query().Get("holder"))
		}
		if id != "" {
			r = r.WithContext(context.WithValue(r.Context(), holderKey{}, id))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireHolder rejects requests that carry no usable holder id.
func RequireHolder(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := HolderFrom(r.Context())
		switch {
		case id == "":
			writeJSON(w, http.StatusBadRequest, errorBody("holder id required: set "+HolderHeader))
			return
		case len(id) > maxHolderLen:
			writeJSON(w, http.StatusBadRequest, errorBody("holder id too long"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HolderFrom returns the holder id stored by HolderMiddleware, or "".
func HolderFrom(ctx context.Context) string {
	id, _ := ctx.Value(holderKey{}).(string)
	return id
}
