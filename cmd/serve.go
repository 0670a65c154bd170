package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veridian-group/compliance-cli/internal/broker"
	"github.com/veridian-group/compliance-cli/internal/model"
	"github.com/veridian-group/compliance-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline worker and the release API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		if err := broker.EnsureTopics(ctx, cfg.Kafka.Brokers, broker.PipelineTopics...); err != nil {
			return err
		}
		producer, err := broker.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			return err
		}
		defer producer.Close()

		env, err := initPipeline(ctx, "serve", producer)
		if err != nil {
			return err
		}
		defer env.Close()

		consumer, err := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, env.Router)
		if err != nil {
			return err
		}
		defer consumer.Close()

		consumerErr := make(chan error, 1)
		go func() { consumerErr <- consumer.Run(ctx) }()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newAPIHandler(env),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		if err := <-consumerErr; err != nil {
			return eris.Wrap(err, "consumer stopped")
		}
		return nil
	},
}

// newAPIHandler builds the thin poll/health surface over the pipeline.
func newAPIHandler(env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", env.Metrics.Handler())

	r.Post("/releases", func(w http.ResponseWriter, req *http.Request) {
		file, header, err := req.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file is required")
			return
		}
		defer file.Close()

		documentID := req.FormValue("document_id")
		if documentID == "" {
			writeError(w, http.StatusBadRequest, "document_id is required")
			return
		}

		path, err := env.Files.Put(req.Context(), header.Filename, file)
		if err != nil {
			zap.L().Error("store upload failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not store file")
			return
		}

		release, err := env.Store.CreateRelease(req.Context(), documentID, path)
		if err != nil {
			zap.L().Error("create release failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not create release")
			return
		}

		if err := env.Orchestrator.Start(req.Context(), release.ID, ""); err != nil {
			zap.L().Error("queue release failed",
				zap.String("release_id", release.ID),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "could not queue release")
			return
		}

		writeJSON(w, http.StatusAccepted, release)
	})

	r.Get("/releases", func(w http.ResponseWriter, req *http.Request) {
		releases, err := env.Store.ListReleases(req.Context(), store.ReleaseFilter{
			DocumentID: req.URL.Query().Get("document_id"),
		})
		if err != nil {
			zap.L().Error("list releases failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not list releases")
			return
		}
		writeJSON(w, http.StatusOK, releases)
	})

	r.Get("/releases/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		release, err := env.Store.GetRelease(req.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, "release not found")
			return
		}
		state, err := env.Tracker.State(req.Context(), id)
		if err != nil {
			zap.L().Error("load run state failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not load run state")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"release": release,
			"state":   state,
		})
	})

	r.Get("/releases/{id}/status", func(w http.ResponseWriter, req *http.Request) {
		state, err := env.Tracker.State(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			zap.L().Error("load run state failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not load run state")
			return
		}
		if state == nil {
			state = &model.RunState{ReleaseID: chi.URLParam(req, "id"), Status: model.RunStatusPending}
		}
		writeJSON(w, http.StatusOK, state)
	})

	r.Delete("/releases/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		release, err := env.Store.GetRelease(req.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, "release not found")
			return
		}
		if err := env.Store.SoftDeleteRelease(req.Context(), id); err != nil {
			writeError(w, http.StatusNotFound, "release not found")
			return
		}
		// The release row is already gone from listings; a leftover file
		// only costs disk space, so failures here do not fail the request.
		if err := env.Files.Delete(req.Context(), release.FilePath); err != nil {
			zap.L().Warn("stored document delete failed",
				zap.String("release_id", id),
				zap.String("path", release.FilePath),
				zap.Error(err),
			)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
