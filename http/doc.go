// Package http exposes the docgate gateway over HTTP.
//
// # Routes
//
//	GET /download/{key...}               object body with its content type
//	GET /list[?prefix=&start=&limit=]    backend listing payload, passed through
//	GET /healthz                         "ok", no authentication
//
// Download and list require "Authorization: Bearer <token>" matching
// HandlerConfig.Token. A missing or wrong token gets 401 before anything
// is sent to object storage. An empty configured token gets 500 for every
// gated request.
//
// Any other path or method answers 404 with the plain body
// "404 - Route not found", whatever the Authorization header says.
//
// # Usage
//
//	handlerCfg := http.HandlerConfig{
//	    Token:    cfg.Server.Token,
//	    Recorder: m,
//	}
//	handler := http.NewHandler(&handlerCfg, gateway)
//	server := &nethttp.Server{Addr: ":8080", Handler: handler.Router()}
//
// # Errors
//
// Failures are written by HandleError as JSON:
//
//	{"error": "backend_error", "message": "...", "backend_status": 500, "detail": "..."}
//
// Backend 404 maps to 404, other backend statuses and credential, signing
// or token failures map to 502, outbound timeouts to 504 and configuration
// problems to 500. No credential material is ever written to a response.
package http
