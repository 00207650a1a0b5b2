package server

import (
	"net/http"

	"github.com/jonwraymond/inferstore/health"
)

// NewHTTPHandler serves the health endpoints and, when metrics is not nil,
// the metrics endpoint at /metrics.
func NewHTTPHandler(agg *health.Aggregator, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()
	health.RegisterHandlers(mux, agg)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	return mux
}
