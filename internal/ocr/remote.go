package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

const remoteAttempts = 3

// Remote recognizes text by forwarding work to a separate HTTP processing
// endpoint. It implements Engine for per-page recognition and additionally
// supports whole-document delegation via Forward. Authentication is a static
// bearer key; it is this client's concern alone.
type Remote struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewRemote(baseURL, apiKey string) *Remote {
	return &Remote{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (r *Remote) Name() string { return "remote" }

// Close releases idle connections.
func (r *Remote) Close() {
	r.httpClient.CloseIdleConnections()
}

type recognizeRequest struct {
	Image    string `json:"image"` // base64 PNG
	Language string `json:"language,omitempty"`
}

type recognizeResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Recognize POSTs one page image to the endpoint. Throttling and 5xx
// responses are retried with exponential backoff; terminal failures are
// reported as ErrRemote.
func (r *Remote) Recognize(ctx context.Context, image []byte, lang string) (string, error) {
	var text string
	err := retry.Do(
		func() error {
			t, err := r.recognizeOnce(ctx, image, lang)
			if err != nil {
				return err
			}
			text = t
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(remoteAttempts),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isTransient),
		retry.LastErrorOnly(true),
	)
	return text, err
}

func (r *Remote) recognizeOnce(ctx context.Context, image []byte, lang string) (string, error) {
	body, err := json.Marshal(recognizeRequest{
		Image:    base64.StdEncoding.EncodeToString(image),
		Language: lang,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := r.post(ctx, "/ocr", "application/json", body)
	if err != nil {
		return "", err
	}

	var resp recognizeResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrRemote, err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrRemote, resp.Error)
	}
	return strings.TrimSpace(resp.Text), nil
}

// ForwardResult is the structured response of a document-level delegation.
type ForwardResult struct {
	OCRText      string            `json:"ocrText"`
	Placeholders map[string]string `json:"placeholders"`
	CountFields  int               `json:"count_fields"`
}

type forwardResponse struct {
	OK     bool           `json:"ok"`
	Result *ForwardResult `json:"result"`
	Error  string         `json:"error,omitempty"`
}

// Forward POSTs a whole merged PDF and returns the endpoint's structured
// extraction result. Used when the service runs in document-delegation mode.
func (r *Remote) Forward(ctx context.Context, pdfBytes []byte) (*ForwardResult, error) {
	var out *ForwardResult
	err := retry.Do(
		func() error {
			respBody, err := r.post(ctx, "/process", "application/pdf", pdfBytes)
			if err != nil {
				return err
			}
			var resp forwardResponse
			if err := json.Unmarshal(respBody, &resp); err != nil {
				return fmt.Errorf("%w: decode response: %v", ErrRemote, err)
			}
			if !resp.OK || resp.Result == nil {
				return fmt.Errorf("%w: %s", ErrRemote, resp.Error)
			}
			out = resp.Result
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(remoteAttempts),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isTransient),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Remote) post(ctx context.Context, path, contentType string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, &transientError{err: fmt.Errorf("%w: %v", ErrRemote, err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrRemote, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &transientError{err: fmt.Errorf("%w: status %d: %s", ErrRemote, resp.StatusCode, truncate(respBody, 200))}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrRemote, resp.StatusCode, truncate(respBody, 200))
	}
	return respBody, nil
}

// transientError wraps failures worth retrying: connection errors,
// throttling, and 5xx responses.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
