// Package status serves the HTTP side channel of novamemd: prometheus
// metrics, a table listing and an on-demand checkpoint.
package status

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unrolled/render"

	"github.com/tuannm99/novamem/internal/engine"
)

type statusHandler struct {
	db *engine.Database
	rd *render.Render
}

type versionInfo struct {
	Version         uint64 `json:"version"`
	Commits         uint64 `json:"commits"`
	Conflicts       uint64 `json:"conflicts"`
	BlockingRetries uint64 `json:"blocking_retries"`
}

// NewRouter builds the status routes over db.
func NewRouter(db *engine.Database) *mux.Router {
	h := &statusHandler{
		db: db,
		rd: render.New(render.Options{IndentJSON: true}),
	}

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/tables", h.Tables).Methods("GET")
	router.HandleFunc("/version", h.Version).Methods("GET")
	router.HandleFunc("/checkpoint", h.Checkpoint).Methods("POST")
	return router
}

func (h *statusHandler) Tables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.db.Tables(r.Context())
	if err != nil {
		h.rd.JSON(w, errStatus(err), err.Error())
		return
	}
	h.rd.JSON(w, http.StatusOK, tables)
}

func (h *statusHandler) Version(w http.ResponseWriter, _ *http.Request) {
	st := h.db.Stats()
	h.rd.JSON(w, http.StatusOK, versionInfo{
		Version:         h.db.Version(),
		Commits:         st.Commits,
		Conflicts:       st.Conflicts,
		BlockingRetries: st.BlockingRetries,
	})
}

func (h *statusHandler) Checkpoint(w http.ResponseWriter, r *http.Request) {
	info, err := h.db.Checkpoint(r.Context())
	if err != nil {
		h.rd.JSON(w, errStatus(err), err.Error())
		return
	}
	h.rd.JSON(w, http.StatusOK, info)
}

func errStatus(err error) int {
	if errors.Is(err, engine.ErrDatabaseClosed) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Serve runs the status API on ln until ctx is done.
func Serve(ctx context.Context, ln net.Listener, db *engine.Database, log *slog.Logger) error {
	srv := &http.Server{
		Handler:           NewRouter(db),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("status server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
