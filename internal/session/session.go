// Package session uploads audio to the inference backend and waits until it is ready.
package session

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"sales-coach-go/internal/inference"
	"sales-coach-go/internal/logger"
)

// UploadError means the backend rejected the upload or failed to process it.
type UploadError struct {
	Reason string
	Err    error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload: %s: %v", e.Reason, e.Err)
	}
	return "upload: " + e.Reason
}

func (e *UploadError) Unwrap() error { return e.Err }

// TimeoutError means the asset did not become ready within MaxWait.
type TimeoutError struct {
	Asset  inference.Asset
	Waited time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("upload: %s still %s after %s", e.Asset.Name, e.Asset.State, e.Waited.Round(time.Millisecond))
}

// Manager uploads audio and waits for backend-side readiness.
type Manager struct {
	backend  inference.Backend
	interval time.Duration
	maxWait  time.Duration
	log      *logger.Logger
}

func NewManager(backend inference.Backend, interval, maxWait time.Duration, log *logger.Logger) *Manager {
	return &Manager{backend: backend, interval: interval, maxWait: maxWait, log: log.Component("session")}
}

// Upload submits localPath and polls every interval until the asset is READY.
// Whenever the returned asset has a Name the backend holds a copy, even on
// error, and the caller is responsible for deleting it.
func (m *Manager) Upload(ctx context.Context, localPath string) (inference.Asset, error) {
	log := m.log.WithField("path", localPath)
	log.Info("uploading audio")

	asset, err := m.backend.Upload(ctx, localPath, mimeType(localPath))
	if err != nil {
		return inference.Asset{}, &UploadError{Reason: "backend rejected upload", Err: err}
	}
	log = log.WithField("file", asset.Name)

	start := time.Now()
	for asset.State == inference.StateUploading || asset.State == inference.StateProcessing {
		waited := time.Since(start)
		if m.maxWait > 0 && waited >= m.maxWait {
			return asset, &TimeoutError{Asset: asset, Waited: waited}
		}
		log.WithField("state", asset.State.String()).Debug("waiting for audio file processing")

		t := time.NewTimer(m.interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return asset, &UploadError{Reason: "polling cancelled", Err: ctx.Err()}
		case <-t.C:
		}

		next, err := m.backend.Status(ctx, asset)
		if err != nil {
			log.WithError(err).Warn("polling failed")
			continue
		}
		asset = next
	}

	if asset.State == inference.StateFailed {
		ue := &UploadError{Reason: "remote processing failed"}
		log.WithFields(logrus.Fields{"backend_reason": asset.Reason}).Warn(ue.Error())
		return asset, ue
	}
	log.WithField("waited_ms", time.Since(start).Milliseconds()).Info("upload & processing complete")
	return asset, nil
}

func mimeType(path string) string {
	switch ext := filepath.Ext(path); ext {
	case ".mp3", "":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
		return "audio/mpeg"
	}
}
