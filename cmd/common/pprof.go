package common

import (
	"net/http"
	"net/http/pprof"
	"time"
)

// NewPprofServer returns a server exposing the runtime profiles on
// endpoint. The handlers are on a dedicated mux, not the default one
// net/http/pprof registers itself on.
func NewPprofServer(endpoint string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return &http.Server{
		Addr:        endpoint,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
		// CPU profiles stream for 30s by default.
		WriteTimeout: 60 * time.Second,
	}
}
