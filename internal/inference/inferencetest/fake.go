// Package inferencetest provides an in-memory inference.Backend for tests.
package inferencetest

import (
	"context"
	"fmt"
	"sync"

	"sales-coach-go/internal/inference"
)

// GenerateFunc answers one Generate call. n is the 1-based call number.
type GenerateFunc func(n int, req inference.GenerateRequest) (string, error)

// Backend records every call. States is the sequence reported by Upload and
// then successive Status calls; the last state repeats once exhausted.
type Backend struct {
	mu sync.Mutex

	States     []inference.AssetState
	UploadErr  error
	StatusErr  error
	DeleteErr  error
	OnGenerate GenerateFunc

	Uploads   []string
	StatusN   int
	Generated []inference.GenerateRequest
	Deleted   []string
}

func (b *Backend) state(i int) inference.AssetState {
	if len(b.States) == 0 {
		return inference.StateReady
	}
	if i >= len(b.States) {
		return b.States[len(b.States)-1]
	}
	return b.States[i]
}

func (b *Backend) Upload(_ context.Context, path, mimeType string) (inference.Asset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Uploads = append(b.Uploads, path)
	if b.UploadErr != nil {
		return inference.Asset{}, b.UploadErr
	}
	name := fmt.Sprintf("files/fake-%d", len(b.Uploads))
	return inference.Asset{
		Name:     name,
		URI:      "https://backend.test/" + name,
		MimeType: mimeType,
		State:    b.state(0),
	}, nil
}

func (b *Backend) Status(_ context.Context, a inference.Asset) (inference.Asset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.StatusN++
	if b.StatusErr != nil {
		return a, b.StatusErr
	}
	a.State = b.state(b.StatusN)
	return a, nil
}

func (b *Backend) Generate(_ context.Context, req inference.GenerateRequest) (string, error) {
	b.mu.Lock()
	b.Generated = append(b.Generated, req)
	n := len(b.Generated)
	fn := b.OnGenerate
	b.mu.Unlock()
	if fn == nil {
		return "", inference.ErrEmptyResponse
	}
	return fn(n, req)
}

func (b *Backend) Delete(_ context.Context, a inference.Asset) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Deleted = append(b.Deleted, a.Name)
	return b.DeleteErr
}

// GenerateCalls returns the number of Generate calls so far.
func (b *Backend) GenerateCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Generated)
}

var _ inference.Backend = (*Backend)(nil)
