package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"webinarsched/internal/config"
	"webinarsched/internal/ics"
	appLog "webinarsched/internal/log"
	"webinarsched/internal/model"
	"webinarsched/internal/refresh"
	"webinarsched/internal/schedule"
)

// maxLimit bounds the limit query parameter.
const maxLimit = 50

// Source supplies the current schedule snapshot. *refresh.Service
// implements it.
type Source interface {
	Current() refresh.Snapshot
}

// Server provides the HTTP API over the loaded schedule.
type Server struct {
	src Source
	mux *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(src Source) *Server {
	s := &Server{
		src: src,
		mux: http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	if auth := s.basicAuth(); auth != nil {
		appLog.Info("HTTP basic auth enabled", "user", auth.Username)
	}
	return s.basicAuthMiddleware(s.mux)
}

// basicAuth returns the configured credentials, or nil when disabled.
func (s *Server) basicAuth() *config.BasicAuthConfig {
	cfg := s.src.Current().Config
	if cfg == nil || cfg.BasicAuth == nil {
		return nil
	}
	// An empty username or password disables auth.
	if cfg.BasicAuth.Username == "" || cfg.BasicAuth.Password == "" {
		return nil
	}
	return cfg.BasicAuth
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
// Credentials come from the current snapshot, so a reload can turn auth on,
// off or change it.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := s.basicAuth()
		if auth == nil || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, auth.Username) || !secureCompare(p, auth.Password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="webinarsched", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves on listen until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, listen string, s *Server) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/dates", s.handleDates)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/schedule.ics", s.handleICS)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// datesResponse is the JSON response shape for /api/dates.
type datesResponse struct {
	Dates    []model.DateGroup `json:"dates"`
	IsOver   bool              `json:"is_over"`
	Timezone string            `json:"timezone"`
}

// handleDates returns the next open dates grouped by day.
//
// GET /api/dates?limit=2&date_format=l,%20F%20jS&time_format=g:ia%20&raw_time_format=H:i&zone_label=Eastern
//
// Every parameter is optional and defaults to the display section of the
// config. zone_label may be set to the empty string.
func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Current()
	q, err := queryFromRequest(r, snap.Config.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sched := snap.Schedule.Freeze()
	setRefreshHeader(w, sched)
	writeJSON(w, http.StatusOK, datesResponse{
		Dates:    sched.NextDates(q),
		IsOver:   sched.IsOver(),
		Timezone: sched.Timezone().String(),
	})
}

// statusResponse is the JSON response shape for /api/status.
type statusResponse struct {
	IsOver   bool   `json:"is_over"`
	Now      string `json:"now"`
	Timezone string `json:"timezone"`
	Mode     string `json:"mode"`
	// UntilNextSeconds is null when the schedule is over.
	UntilNextSeconds *int64    `json:"until_next_seconds"`
	OptinLeway       string    `json:"optin_leway"`
	LoadedAt         time.Time `json:"loaded_at"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.src.Current()
	sched := snap.Schedule.Freeze()

	resp := statusResponse{
		IsOver:     sched.IsOver(),
		Now:        sched.CurrentTimeInZone("c"),
		Timezone:   sched.Timezone().String(),
		Mode:       sched.Mode().Name(),
		OptinLeway: sched.OptinLeway().String(),
		LoadedAt:   snap.LoadedAt,
	}
	if d, ok := sched.UntilNext(); ok {
		secs := int64(math.Ceil(d.Seconds()))
		resp.UntilNextSeconds = &secs
	}

	setRefreshHeader(w, sched)
	writeJSON(w, http.StatusOK, resp)
}

// handleICS exports the next open dates as an iCalendar feed. It accepts the
// same limit parameter as /api/dates.
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Current()
	cfg := snap.Config

	limit, err := parseLimit(r.URL.Query().Get("limit"), cfg.Display.Limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	body := ics.Feed(snap.Schedule.Occurrences(), ics.FeedOptions{
		Title:         cfg.Feed.Title,
		SessionLength: cfg.SessionLength(),
		Limit:         limit,
		Stamp:         snap.LoadedAt,
		RegisterURL:   cfg.Feed.RegisterURL,
	})

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="schedule.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// setRefreshHeader asks browsers to reload when the next session starts.
// Nothing is set while a session is inside its grace window or when the
// schedule is over.
func setRefreshHeader(w http.ResponseWriter, sched *schedule.Schedule) {
	d, ok := sched.UntilNext()
	if !ok || d <= 0 {
		return
	}
	w.Header().Set("Refresh", strconv.FormatInt(int64(math.Ceil(d.Seconds())), 10))
}

func queryFromRequest(r *http.Request, def schedule.Query) (schedule.Query, error) {
	v := r.URL.Query()
	q := def

	limit, err := parseLimit(v.Get("limit"), def.Limit)
	if err != nil {
		return q, err
	}
	q.Limit = limit

	if v.Has("date_format") {
		q.DateFormat = v.Get("date_format")
	}
	if v.Has("time_format") {
		q.TimeFormat = v.Get("time_format")
	}
	if v.Has("raw_time_format") {
		q.RawTimeFormat = v.Get("raw_time_format")
	}
	if v.Has("zone_label") {
		q.ZoneLabel = v.Get("zone_label")
	}
	return q, nil
}

func parseLimit(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return min(n, maxLimit), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
