// Package inference is the boundary to the remote generative backend: upload
// audio, poll its processing state, generate text against it, delete it.
package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AssetState is the backend-side processing state of an uploaded file.
type AssetState int

const (
	StateUploading AssetState = iota
	StateProcessing
	StateReady
	StateFailed
)

func (s AssetState) String() string {
	switch s {
	case StateUploading:
		return "UPLOADING"
	case StateProcessing:
		return "PROCESSING"
	case StateReady:
		return "READY"
	case StateFailed:
		return "FAILED"
	}
	return fmt.Sprintf("AssetState(%d)", int(s))
}

// Asset is a handle to uploaded content. It belongs to exactly one pipeline run.
type Asset struct {
	Name     string
	URI      string
	MimeType string
	State    AssetState
	Reason   string // backend error message when State == StateFailed
}

// GenerateRequest is one prompt evaluated against one asset.
type GenerateRequest struct {
	Prompt           string
	Asset            Asset
	ResponseMIMEType string // "application/json" asks for machine-parseable output
}

// Backend is the upload/poll/generate/delete contract.
type Backend interface {
	Upload(ctx context.Context, path, mimeType string) (Asset, error)
	Status(ctx context.Context, asset Asset) (Asset, error)
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	Delete(ctx context.Context, asset Asset) error
}

// APIError represents a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Status     string // e.g. RESOURCE_EXHAUSTED
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// ErrEmptyResponse is returned when generation yields no text.
var ErrEmptyResponse = errors.New("empty model output")

// IsQuota reports whether err is the rate-limit ("quota exceeded") class.
func IsQuota(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED" {
			return true
		}
		return strings.Contains(strings.ToLower(apiErr.Message), "quota")
	}
	return strings.Contains(strings.ToLower(err.Error()), "quota exceeded")
}
