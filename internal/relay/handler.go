package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
)

// Status is the JSON body of GET /status.
type Status struct {
	WatchDir        string        `json:"watch_dir"`
	Destination     string        `json:"destination"`
	LastForwardedAt *time.Time    `json:"last_forwarded_at"`
	Retries         []LedgerEntry `json:"retries"`
}

// Handler exposes read-only engine state over HTTP using go-chi.
type Handler struct {
	mark        *Watermark
	ledger      *Ledger
	watchDir    string
	destination string
	log         *slog.Logger
}

// NewHandler returns a Handler reporting on mark and ledger. Only the scheme
// and host of destination are exposed; the path usually carries a stream key.
func NewHandler(mark *Watermark, ledger *Ledger, watchDir, destination string, log *slog.Logger) *Handler {
	return &Handler{mark: mark, ledger: ledger, watchDir: watchDir, destination: redactDestination(destination), log: log}
}

func redactDestination(dest string) string {
	u, err := url.Parse(dest)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// Routes mounts the handler's endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.Healthz)
	r.Get("/status", h.Status)
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Status handles GET /status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st := Status{
		WatchDir:    h.watchDir,
		Destination: h.destination,
		Retries:     h.ledger.Snapshot(),
	}
	if last := h.mark.Last(); !last.IsZero() {
		st.LastForwardedAt = &last
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(st); err != nil {
		h.log.Debug("write status failed", slog.String("error", err.Error()))
	}
}
