package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"sales-coach-go/internal/logger"
)

// Client talks to the Gemini REST API (Files API + generateContent).
// It is constructed once from config and shared by every component.
type Client struct {
	baseURL      string
	apiKey       string
	model        string
	httpClient   *http.Client
	maxRetryTime time.Duration
	log          *logger.Logger
}

// Option configures Client behavior.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetryTime bounds transport-level retries (connection errors and 5xx).
// Zero disables them.
func WithMaxRetryTime(d time.Duration) Option {
	return func(c *Client) { c.maxRetryTime = d }
}

func NewClient(baseURL, apiKey, model string, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		model:        model,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		maxRetryTime: 20 * time.Second,
		log:          log.Component("gemini"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Backend = (*Client)(nil)

type fileResource struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	MimeType    string `json:"mimeType"`
	URI         string `json:"uri"`
	State       string `json:"state"`
	Error       *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (f fileResource) asset() Asset {
	a := Asset{Name: f.Name, URI: f.URI, MimeType: f.MimeType}
	switch f.State {
	case "ACTIVE":
		a.State = StateReady
	case "FAILED":
		a.State = StateFailed
	case "PROCESSING":
		a.State = StateProcessing
	default:
		a.State = StateUploading
	}
	if f.Error != nil {
		a.Reason = f.Error.Message
	}
	return a
}

type fileEnvelope struct {
	File fileResource `json:"file"`
}

// Upload sends the file with the resumable upload protocol: a start request
// returns an upload URL, then the bytes are streamed in one finalize request.
func (c *Client) Upload(ctx context.Context, path, mimeType string) (Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Asset{}, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return Asset{}, err
	}
	size := strconv.FormatInt(info.Size(), 10)

	meta, _ := json.Marshal(map[string]any{"file": map[string]string{"display_name": filepath.Base(path)}})
	var uploadURL string
	err = c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/v1beta/files", bytes.NewReader(meta))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Goog-Upload-Protocol", "resumable")
		req.Header.Set("X-Goog-Upload-Command", "start")
		req.Header.Set("X-Goog-Upload-Header-Content-Length", size)
		req.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)
		resp, err := c.send(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		uploadURL = resp.Header.Get("X-Goog-Upload-URL")
		if uploadURL == "" {
			return backoff.Permanent(fmt.Errorf("upload start: missing upload URL"))
		}
		return nil
	})
	if err != nil {
		return Asset{}, fmt.Errorf("upload start: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, f)
	if err != nil {
		return Asset{}, err
	}
	req.ContentLength = info.Size()
	req.Header.Set("X-Goog-Upload-Offset", "0")
	req.Header.Set("X-Goog-Upload-Command", "upload, finalize")
	resp, err := c.send(req)
	if err != nil {
		return Asset{}, fmt.Errorf("upload bytes: %w", err)
	}
	defer resp.Body.Close()
	var env fileEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return Asset{}, fmt.Errorf("upload bytes: decode: %w", err)
	}
	a := env.File.asset()
	c.log.WithField("file", a.Name).WithField("state", a.State.String()).Debug("file uploaded")
	return a, nil
}

// Status fetches the current processing state of the asset.
func (c *Client) Status(ctx context.Context, asset Asset) (Asset, error) {
	var fr fileResource
	if err := c.doJSON(ctx, http.MethodGet, "/v1beta/"+asset.Name, nil, &fr); err != nil {
		return asset, err
	}
	return fr.asset(), nil
}

// Delete removes the uploaded file from the backend.
func (c *Client) Delete(ctx context.Context, asset Asset) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1beta/"+asset.Name, nil, nil)
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"file_data,omitempty"`
}

type fileData struct {
	MimeType string `json:"mime_type"`
	FileURI  string `json:"file_uri"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

// Generate runs one generateContent call with the prompt followed by the audio.
func (c *Client) Generate(ctx context.Context, gr GenerateRequest) (string, error) {
	body := generateContentRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: gr.Prompt},
				{FileData: &fileData{MimeType: gr.Asset.MimeType, FileURI: gr.Asset.URI}},
			},
		}},
	}
	if gr.ResponseMIMEType != "" {
		body.GenerationConfig = &generationConfig{ResponseMimeType: gr.ResponseMIMEType}
	}

	var resp generateContentResponse
	path := "/v1beta/models/" + c.model + ":generateContent"
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			sb.WriteString(p.Text)
		}
		if sb.Len() > 0 {
			break
		}
	}
	if sb.Len() == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("generation blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

// doJSON sends one JSON request. Connection errors and 5xx are retried with
// exponential backoff; everything else (including 429) is returned as-is so
// callers own their retry policy.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return err
		}
	}
	return c.retry(ctx, func() error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.send(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, out); err != nil {
			return backoff.Permanent(fmt.Errorf("json decode error: %v body=%s", err, truncate(string(data), 512)))
		}
		return nil
	})
}

// send performs the request with auth and maps non-2xx responses to *APIError.
// 4xx errors are wrapped as permanent for the retry loop.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	req.Header.Set("x-goog-api-key", c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: truncate(string(data), 512)}
	var env struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &env) == nil && env.Error.Message != "" {
		apiErr.Message = env.Error.Message
		apiErr.Status = env.Error.Status
	}
	if resp.StatusCode >= 500 {
		return nil, apiErr
	}
	return nil, backoff.Permanent(apiErr)
}

func (c *Client) retry(ctx context.Context, op backoff.Operation) error {
	var b backoff.BackOff
	if c.maxRetryTime <= 0 {
		b = &backoff.StopBackOff{}
	} else {
		eb := backoff.NewExponentialBackOff()
		eb.MaxElapsedTime = c.maxRetryTime
		b = eb
	}
	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		c.log.WithError(err).WithField("wait", wait.String()).Warn("backend request failed, retrying")
	})
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
