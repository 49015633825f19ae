// Package fetcher downloads call recordings into a scratch directory.
package fetcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"sales-coach-go/internal/logger"
)

const chunkSize = 8192

// FetchError is returned for transport failures and non-2xx responses.
type FetchError struct {
	URL        string
	StatusCode int // 0 for transport errors
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher downloads remote audio into a scratch directory.
type Fetcher struct {
	dir    string
	client *http.Client
	log    *logger.Logger
}

func New(scratchDir string, client *http.Client, log *logger.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Fetcher{dir: scratchDir, client: client, log: log.Component("fetcher")}
}

// Fetch streams url into a new file named after name and returns its path.
// On error no file is left behind; on success the caller owns the file.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, name string) (string, error) {
	log := f.log.WithField("audio_url", rawURL)
	log.Info("downloading audio")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	if name == "" {
		name = uuid.NewString()
	}
	dst := filepath.Join(f.dir, "temp_"+name+extension(rawURL))
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}

	w := bufio.NewWriterSize(out, chunkSize)
	n, copyErr := io.CopyBuffer(w, resp.Body, make([]byte, chunkSize))
	if copyErr == nil {
		copyErr = w.Flush()
	}
	closeErr := out.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		os.Remove(dst)
		return "", &FetchError{URL: rawURL, Err: copyErr}
	}

	log.WithField("bytes", n).WithField("path", dst).Info("download complete")
	return dst, nil
}

// extension keeps a short, sane extension from the URL path; defaults to .mp3.
func extension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".mp3"
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if len(ext) < 2 || len(ext) > 5 {
		return ".mp3"
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ".mp3"
		}
	}
	return ext
}
