package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"tempo/internal/housekeeping"
	"tempo/internal/storage"
	"tempo/pkg/frameloop"
	logx "tempo/pkg/logx"
	"tempo/pkg/tempo"
)

const (
	defaultJournalLimit = 20
	maxJournalLimit     = 500
	callTimeout         = 2 * time.Second
)

// Deps are the components the admin routes operate on. Journal and Jobs
// may be nil.
type Deps struct {
	Loop      *frameloop.Loop
	Scheduler *tempo.Scheduler
	Journal   storage.Store
	Jobs      *housekeeping.Service
}

type handler struct {
	d     Deps
	log   logx.Logger
	token func() string
	lim   *rate.Limiter
}

// NewHandler builds the router. token is read on every request; an empty
// token disables auth.
func NewHandler(d Deps, token func() string, log logx.Logger, withPprof bool) http.Handler {
	if token == nil {
		token = func() string { return "" }
	}
	h := &handler{d: d, log: log, token: token, lim: rate.NewLimiter(rate.Limit(20), 40)}

	r := mux.NewRouter()
	r.Use(h.recoverer, h.limit, h.auth)
	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/status", h.status).Methods(http.MethodGet)
	v1.HandleFunc("/{group:timers|transitions|all}/{action:pause|resume|cancel}", h.bulk).Methods(http.MethodPost)
	v1.HandleFunc("/cleanup", h.cleanup).Methods(http.MethodPost)
	v1.HandleFunc("/speed", h.speed).Methods(http.MethodPut)
	v1.HandleFunc("/journal", h.journal).Methods(http.MethodGet)
	v1.HandleFunc("/jobs", h.jobs).Methods(http.MethodGet)
	v1.HandleFunc("/jobs/{name}/run", h.runJob).Methods(http.MethodPost)
	if withPprof {
		mountPprof(r)
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("not found"))
	})
	return r
}

func (h *handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.log.Error("admin handler panic", logx.String("path", r.URL.Path), logx.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, errors.New("internal error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *handler) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.lim.Allow() {
			writeError(w, http.StatusTooManyRequests, errors.New("rate limited"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := h.token()
		if want != "" {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
				writeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// onLoop runs fn on the loop goroutine, bounded by callTimeout.
func (h *handler) onLoop(ctx context.Context, fn func()) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	return h.d.Loop.Do(ctx, fn)
}

type statusResponse struct {
	Snapshot tempo.Snapshot         `json:"scheduler"`
	Counts   map[tempo.State]int    `json:"counts"`
	Journal  []storage.Record       `json:"journal,omitempty"`
	Jobs     *housekeeping.Snapshot `json:"jobs,omitempty"`
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	var snap tempo.Snapshot
	if err := h.onLoop(r.Context(), func() { snap = h.d.Scheduler.Snapshot() }); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	resp := statusResponse{Snapshot: snap, Counts: snap.Counts()}
	if h.d.Journal != nil {
		recs, err := h.d.Journal.Recent(r.Context(), defaultJournalLimit)
		if err != nil {
			h.log.Warn("journal read failed", logx.Err(err))
		}
		resp.Journal = recs
	}
	if h.d.Jobs != nil {
		js := h.d.Jobs.Snapshot()
		resp.Jobs = &js
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) bulk(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	group, action := vars["group"], vars["action"]
	s := h.d.Scheduler

	var fn func()
	switch group + "/" + action {
	case "timers/pause":
		fn = s.PauseAllTimers
	case "timers/resume":
		fn = s.ResumeAllTimers
	case "timers/cancel":
		fn = s.CancelAllTimers
	case "transitions/pause":
		fn = s.PauseAllTransitions
	case "transitions/resume":
		fn = s.ResumeAllTransitions
	case "transitions/cancel":
		fn = s.CancelAllTransitions
	case "all/pause":
		fn = s.PauseAll
	case "all/resume":
		fn = s.ResumeAll
	default:
		fn = s.CancelAll
	}

	var counts map[tempo.State]int
	err := h.onLoop(r.Context(), func() {
		fn()
		counts = s.Snapshot().Counts()
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	h.log.Info("bulk operation", logx.String("group", group), logx.String("action", action))
	writeJSON(w, http.StatusOK, map[string]any{"group": group, "action": action, "counts": counts})
}

func (h *handler) cleanup(w http.ResponseWriter, r *http.Request) {
	var n int
	if err := h.onLoop(r.Context(), func() { n = h.d.Scheduler.Cleanup() }); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

type speedRequest struct {
	Speed string `json:"speed"`
}

func (h *handler) speed(w http.ResponseWriter, r *http.Request) {
	var req speedRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<12))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sp, err := tempo.ParseSpeed(req.Speed)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var cerr error
	if err := h.onLoop(r.Context(), func() { cerr = h.d.Scheduler.ChangeSpeed(sp) }); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	if cerr != nil {
		writeError(w, http.StatusBadRequest, cerr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"speed": sp.String()})
}

func (h *handler) journal(w http.ResponseWriter, r *http.Request) {
	if h.d.Journal == nil {
		writeError(w, http.StatusNotFound, storage.ErrDisabled)
		return
	}
	limit := defaultJournalLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = min(n, maxJournalLimit)
	}
	recs, err := h.d.Journal.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if recs == nil {
		recs = []storage.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *handler) jobs(w http.ResponseWriter, _ *http.Request) {
	if h.d.Jobs == nil {
		writeError(w, http.StatusNotFound, errors.New("housekeeping disabled"))
		return
	}
	writeJSON(w, http.StatusOK, h.d.Jobs.Snapshot())
}

func (h *handler) runJob(w http.ResponseWriter, r *http.Request) {
	if h.d.Jobs == nil {
		writeError(w, http.StatusNotFound, errors.New("housekeeping disabled"))
		return
	}
	name := mux.Vars(r)["name"]
	err := h.d.Jobs.Run(r.Context(), name)
	switch {
	case errors.Is(err, housekeeping.ErrUnknownJob):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"job": name, "status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
