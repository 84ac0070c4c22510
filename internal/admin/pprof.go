package admin

import (
	"net/http/pprof"
	"runtime"

	"github.com/gorilla/mux"
)

// mountPprof exposes the runtime profiles under /debug/pprof. The routes
// sit behind the same auth and rate limit as the API.
func mountPprof(r *mux.Router) {
	d := r.PathPrefix("/debug/pprof").Subrouter()
	d.HandleFunc("/cmdline", pprof.Cmdline)
	d.HandleFunc("/profile", pprof.Profile)
	d.HandleFunc("/symbol", pprof.Symbol)
	d.HandleFunc("/trace", pprof.Trace)
	d.PathPrefix("/").HandlerFunc(pprof.Index)
}

// applyProfileRates updates the global profiling knobs. It runs even when
// the listener is disabled so a reload can switch them off.
func applyProfileRates(cfg Config) {
	runtime.SetBlockProfileRate(cfg.BlockProfileRate)
	runtime.SetMutexProfileFraction(cfg.MutexProfileFraction)
}
