package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/intake-cli/internal/lock"
	"github.com/sells-group/intake-cli/internal/model"
	"github.com/sells-group/intake-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the intake HTTP API and optional poll loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		if interval := time.Duration(cfg.Batch.PollIntervalSecs) * time.Second; interval > 0 {
			g.Go(func() error {
				pollLoop(gctx, env, interval)
				return nil
			})
		}

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// pollLoop runs a batch every interval until ctx is done. A batch already
// running elsewhere is not an error.
func pollLoop(ctx context.Context, env *intakeEnv, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	zap.L().Info("poll loop started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := env.Pipeline.ProcessUnprocessed(ctx, "")
			switch {
			case errors.Is(err, lock.ErrHeld):
				zap.L().Debug("poll: batch already running")
			case err != nil:
				zap.L().Error("poll: batch failed", zap.Error(err))
			case res.Total() > 0:
				zap.L().Info("poll: batch complete",
					zap.Int("processed", res.Processed),
					zap.Int("skipped", res.Skipped),
					zap.Int("errors", res.Errors),
				)
			}
		}
	}
}

// newRouter builds the HTTP API over env.
func newRouter(env *intakeEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	h := &handlers{env: env}
	r.Get("/health", h.health)
	r.Post("/messages", h.createMessage)
	r.Get("/messages/{id}", h.getMessage)
	r.Post("/messages/{id}/process", h.processMessage)
	r.Get("/messages/{id}/audit", h.audit)
	r.Post("/batch", h.batch)
	return r
}

type handlers struct {
	env *intakeEnv
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok"}
	if h.env.Guard != nil {
		body["salesforce"] = h.env.Guard.State().String()
	}
	writeJSON(w, http.StatusOK, body)
}

type messageRequest struct {
	ProviderID string        `json:"provider_id"`
	ThreadID   string        `json:"thread_id"`
	From       model.Address `json:"from"`
	To         []string      `json:"to"`
	Subject    string        `json:"subject"`
	TextBody   string        `json:"text_body"`
	HTMLBody   string        `json:"html_body"`
	ReceivedAt *time.Time    `json:"received_at"`
}

func (h *handlers) createMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.From.Email == "" {
		writeError(w, http.StatusBadRequest, "from.email is required")
		return
	}

	msg := &model.InboundMessage{
		ProviderID: req.ProviderID,
		ThreadID:   req.ThreadID,
		From:       req.From,
		To:         req.To,
		Subject:    req.Subject,
		TextBody:   req.TextBody,
		HTMLBody:   req.HTMLBody,
	}
	if req.ReceivedAt != nil {
		msg.ReceivedAt = req.ReceivedAt.UTC()
	}

	if err := h.env.Store.InsertMessage(r.Context(), msg); err != nil {
		zap.L().Error("api: insert message failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "insert failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": msg.ID})
}

func (h *handlers) loadMessage(w http.ResponseWriter, r *http.Request) (*model.InboundMessage, bool) {
	msg, err := h.env.Store.GetMessage(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "message not found")
		return nil, false
	}
	if err != nil {
		zap.L().Error("api: load message failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "load failed")
		return nil, false
	}
	return msg, true
}

func (h *handlers) getMessage(w http.ResponseWriter, r *http.Request) {
	msg, ok := h.loadMessage(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *handlers) processMessage(w http.ResponseWriter, r *http.Request) {
	msg, ok := h.loadMessage(w, r)
	if !ok {
		return
	}

	routed, err := h.env.Pipeline.ProcessMessage(r.Context(), msg, r.URL.Query().Get("user"))
	if err != nil {
		zap.L().Error("api: process message failed", zap.String("message_id", msg.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "processing failed")
		return
	}

	trail, err := h.env.Store.ListAudit(r.Context(), msg.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load audit failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": msg.ID, "routed": routed, "audit": trail})
}

func (h *handlers) audit(w http.ResponseWriter, r *http.Request) {
	msg, ok := h.loadMessage(w, r)
	if !ok {
		return
	}
	trail, err := h.env.Store.ListAudit(r.Context(), msg.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load audit failed")
		return
	}
	if trail == nil {
		trail = model.AuditTrail{}
	}
	writeJSON(w, http.StatusOK, trail)
}

func (h *handlers) batch(w http.ResponseWriter, r *http.Request) {
	res, err := h.env.Pipeline.ProcessUnprocessed(r.Context(), r.URL.Query().Get("user"))
	if errors.Is(err, lock.ErrHeld) {
		writeError(w, http.StatusConflict, "batch already running")
		return
	}
	if err != nil {
		zap.L().Error("api: batch failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "batch failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
