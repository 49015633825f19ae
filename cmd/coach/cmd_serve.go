package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"sales-coach-go/internal/logger"
	"sales-coach-go/internal/types"
)

type entryLister func(ctx context.Context, limit int) ([]types.LogEntry, error)

func newServeCommand(build func() (*app, error)) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline over HTTP (/healthz, /process, /report)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build()
			if err != nil {
				return err
			}
			defer a.Close()
			if port == "" {
				port = a.cfg.Server.Port
			}

			addr := fmt.Sprintf(":%s", port)
			srv := &http.Server{
				Addr:         addr,
				Handler:      newMux(a.log, a.proc, a.entries),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Minute,
				IdleTimeout:  120 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()

			a.log.WithField("addr", addr).Info("listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server terminated: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (default from PORT, 8080)")
	return cmd
}

func newMux(log *logger.Logger, p pipeline, list entryLister) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		log.WithRequest(r).Debug("health check")
		fmt.Fprint(w, "ok")
	})

	// process one recording; the request blocks until the run ends
	mux.HandleFunc("/process", func(w http.ResponseWriter, r *http.Request) {
		reqLog := log.WithRequest(r).WithField("handler", "process")
		reqLog.Info("process request received")

		audioURL := r.URL.Query().Get("audio_url")
		if audioURL == "" {
			reqLog.Warn("missing audio_url")
			http.Error(w, "missing audio_url", http.StatusBadRequest)
			return
		}
		reqLog = reqLog.WithField("audio_url", audioURL)

		res := p.ProcessSingleURL(r.Context(), audioURL)
		reqLog.WithField("duration_ms", res.DurationMs).
			WithField("state", res.State.String()).
			Info("processor finished")

		status := http.StatusOK
		if !res.OK() {
			reqLog.WithField("error", res.Error).Warn("processor returned error")
			status = http.StatusBadGateway
		}
		writeJSON(w, status, res, reqLog)
	})

	mux.HandleFunc("/report", func(w http.ResponseWriter, r *http.Request) {
		reqLog := log.WithRequest(r).WithField("handler", "report")
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
				return
			}
			limit = n
		}
		entries, err := list(r.Context(), limit)
		if err != nil {
			reqLog.WithError(err).Error("loading call logs failed")
			http.Error(w, "call logs unavailable", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, buildReport(entries), reqLog)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any, log *logrus.Entry) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}
