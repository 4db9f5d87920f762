package http

import (
	"io"
	"net/http"
)

const routeNotFoundBody = "404 - Route not found"

// writeRouteNotFound answers every unmatched route and method. It runs
// outside the auth gate so the answer does not depend on the token.
func writeRouteNotFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = io.WriteString(w, routeNotFoundBody)
}
