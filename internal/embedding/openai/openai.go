// Package openai is an embeddings client for OpenAI-compatible endpoints,
// including Ollama's native /api/embeddings response shape.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"hybridrag/internal/errors"
)

// Config configures the client. APIKey is resolved by the caller.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	BatchSize  int
	MaxRetries int
	// Dimension, when set, is reported before the first call and enforced
	// on every response.
	Dimension int
	// RequestsPerSecond throttles outgoing requests; zero disables it.
	RequestsPerSecond float64
	Burst             int
}

// Client implements domain.Embedder over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	batchSize  int
	maxRetries int
	client     *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger

	mu        sync.RWMutex
	dimension int

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// errNoEmbedding marks a response that decoded but carried no vectors.
var errNoEmbedding = stderrors.New("no embedding returned")

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(1, cfg.Burst))
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		batchSize:  cfg.BatchSize,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		logger:     logger,
		dimension:  cfg.Dimension,
		sleep:      sleepCtx,
	}
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai" }

// Dimension is the configured size, or the size of the first vector seen.
func (c *Client) Dimension() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dimension
}

// IsAvailable probes the endpoint with a single, non-retried request.
func (c *Client) IsAvailable(ctx context.Context) bool {
	_, err := c.embed(ctx, []string{"ping"}, 0)
	return err == nil
}

// EmbedSingle returns an embedding vector for the given text.
func (c *Client) EmbedSingle(ctx context.Context, text string) ([]float64, error) {
	out, err := c.embed(ctx, []string{text}, c.maxRetries)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch sends texts in groups of BatchSize. If the endpoint answers a
// batch with the single-vector Ollama shape, texts are embedded one by one.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		vecs, err := c.embed(ctx, texts[start:end], c.maxRetries)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

type embedRequest struct {
	Input  any    `json:"input,omitempty"`
	Prompt string `json:"prompt,omitempty"`
	Model  string `json:"model"`
}

type openAIResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

type ollamaResponse struct {
	Embedding []float64 `json:"embedding"`
}

func (c *Client) embed(ctx context.Context, texts []string, maxRetries int) ([][]float64, error) {
	body := embedRequest{Model: c.model}
	if len(texts) == 1 {
		body.Input = texts[0]
		body.Prompt = texts[0]
	} else {
		body.Input = texts
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err)
	}
	url := c.baseURL + "/embeddings"

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("embed_retry",
				slog.Int("attempt", attempt),
				slog.String("error", lastErr.Error()))
		}
		if err := c.throttle(ctx); err != nil {
			return nil, err
		}
		payload, wait, err := c.post(ctx, url, data)
		if err == nil {
			var vecs [][]float64
			vecs, err = c.decode(payload, len(texts))
			if err == nil {
				return vecs, nil
			}
			if stderrors.Is(err, errNoEmbedding) && len(texts) > 1 {
				return c.embedEach(ctx, texts, maxRetries)
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("openai embeddings: %w", ctxErr)
		}
		var rerr *errors.RAGError
		if stderrors.As(err, &rerr) && !rerr.Retryable {
			return nil, err
		}
		lastErr = err
		if attempt == maxRetries {
			break
		}
		if wait == 0 {
			wait = retryDelay(attempt)
		}
		if err := c.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("openai embeddings: %w", err)
		}
	}
	return nil, errors.ModelUnavailable(c.model, lastErr)
}

func (c *Client) throttle(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return fmt.Errorf("openai embeddings: %w", err)
	}
	return nil
}

func (c *Client) embedEach(ctx context.Context, texts []string, maxRetries int) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, err := c.embed(ctx, []string{t}, maxRetries)
		if err != nil {
			return nil, err
		}
		out[i] = v[0]
	}
	return out, nil
}

// post returns the body of a 2xx response. For 429 and 5xx it returns a
// retryable error and the server's Retry-After hint, if any.
func (c *Client) post(ctx context.Context, url string, data []byte) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, 0, errors.Wrap(errors.ErrCodeInternal, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, errors.New(errors.ErrCodeNetworkTimeout, "embeddings request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		var wait time.Duration
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			wait = time.Duration(secs) * time.Second
		}
		return nil, wait, errors.New(errors.ErrCodeModelUnavailable,
			"openai embeddings failed: "+resp.Status, nil)
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, 0, errors.New(errors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("openai embeddings failed: %s: %s", resp.Status, bytes.TrimSpace(msg)), nil)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errors.New(errors.ErrCodeNetworkTimeout, "read embeddings response", err)
	}
	return payload, 0, nil
}

// decode accepts the OpenAI shape first, then Ollama's { "embedding": [...] }.
func (c *Client) decode(payload []byte, want int) ([][]float64, error) {
	var oa openAIResponse
	if err := json.Unmarshal(payload, &oa); err == nil && len(oa.Data) > 0 {
		if len(oa.Data) != want {
			return nil, errors.New(errors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("expected %d embeddings, got %d", want, len(oa.Data)), nil)
		}
		out := make([][]float64, want)
		for i, d := range oa.Data {
			idx := d.Index
			if idx < 0 || idx >= want || out[idx] != nil {
				idx = i
			}
			out[idx] = d.Embedding
		}
		return out, c.checkDimensions(out)
	}
	var ol ollamaResponse
	if err := json.Unmarshal(payload, &ol); err == nil && len(ol.Embedding) > 0 && want == 1 {
		out := [][]float64{ol.Embedding}
		return out, c.checkDimensions(out)
	}
	return nil, errNoEmbedding
}

func (c *Client) checkDimensions(vecs [][]float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range vecs {
		if len(v) == 0 {
			return errors.New(errors.ErrCodeEmbeddingFailed, "empty embedding returned", nil)
		}
		if c.dimension == 0 {
			c.dimension = len(v)
		}
		if len(v) != c.dimension {
			return errors.DimensionMismatch(c.dimension, len(v))
		}
	}
	return nil
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
