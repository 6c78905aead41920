// Package qdrant is a hybrid index backend on top of the Qdrant REST API.
//
// Qdrant ranks candidates by cosine similarity with the payload filter
// applied server side; the candidates are then re-scored locally with the
// same lexical overlap and fusion as the in-memory index.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"hybridrag/internal/domain"
	"hybridrag/internal/errors"
	"hybridrag/internal/ranking"
	"hybridrag/internal/tokenizer"
)

// Reserved payload keys; stripped from results.
const (
	keyRecordID = "_record_id"
	keyText     = "_text"
)

// pointNamespace derives stable point UUIDs from record ids, since Qdrant
// only accepts unsigned integers or UUIDs as point ids.
var pointNamespace = uuid.MustParse("6f0e3c1a-9a4e-4f8e-8d2b-6a1f2f3c4d5e")

// Config holds connection details for a Qdrant collection.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
	// CandidateMultiplier scales the number of vector candidates fetched
	// per requested result before lexical re-scoring. Defaults to 10.
	CandidateMultiplier int
}

// Storage is a domain.VectorStore backed by a Qdrant collection.
type Storage struct {
	url        string
	apiKey     string
	collection string
	candidates int
	client     *http.Client
	logger     *slog.Logger

	mu        sync.Mutex
	dimension int
}

var _ domain.VectorStore = (*Storage)(nil)

// NewStorage creates a client for the configured collection. The
// collection is created lazily on first upsert.
func NewStorage(cfg Config, logger *slog.Logger) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	mult := cfg.CandidateMultiplier
	if mult <= 0 {
		mult = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		candidates: mult,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// PointID maps a record id to its Qdrant point UUID.
func PointID(recordID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(recordID)).String()
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

// currentDimension returns the collection's vector size, or 0 if the
// collection does not exist yet. A collection created by an earlier process
// is picked up here.
func (s *Storage) currentDimension(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadDimensionLocked(ctx)
}

func (s *Storage) loadDimensionLocked(ctx context.Context) (int, error) {
	if s.dimension != 0 {
		return s.dimension, nil
	}
	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil, &info)
	if stderrors.Is(err, errors.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	s.dimension = info.Result.Config.Params.Vectors.Size
	return s.dimension, nil
}

// ensureCollection fixes the dimension and creates the collection once.
func (s *Storage) ensureCollection(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.loadDimensionLocked(ctx)
	if err != nil {
		return err
	}
	if current != 0 {
		if dimension != current {
			return errors.DimensionMismatch(current, dimension)
		}
		return nil
	}
	if dimension == 0 {
		return errors.Validationf("vector is required")
	}
	body := map[string]any{
		"vectors": map[string]any{"size": dimension, "distance": "Cosine"},
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil); err != nil {
		return err
	}
	s.dimension = dimension
	s.logger.Info("qdrant_collection_created",
		slog.String("collection", s.collection),
		slog.Int("dimension", dimension))
	return nil
}

// Upsert implements domain.VectorStore.
func (s *Storage) Upsert(ctx context.Context, record domain.VectorRecord) error {
	if record.ID == "" {
		return errors.Validationf("record id is required")
	}
	if err := s.ensureCollection(ctx, len(record.Vector)); err != nil {
		return err
	}
	payload := make(map[string]any, len(record.Payload)+2)
	for k, v := range record.Payload {
		payload[k] = v
	}
	payload[keyRecordID] = record.ID
	payload[keyText] = record.Text
	body := map[string]any{
		"points": []map[string]any{{
			"id":      PointID(record.ID),
			"vector":  record.Vector,
			"payload": payload,
		}},
	}
	return s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), body, nil)
}

// Delete implements domain.VectorStore.
func (s *Storage) Delete(ctx context.Context, id string) (bool, error) {
	if dim, err := s.currentDimension(ctx); err != nil || dim == 0 {
		return false, err
	}
	var got struct {
		Result []struct {
			ID string `json:"id"`
		} `json:"result"`
	}
	pid := PointID(id)
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points"),
		map[string]any{"ids": []string{pid}, "with_payload": false}, &got); err != nil {
		return false, err
	}
	if len(got.Result) == 0 {
		return false, nil
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL("/points/delete?wait=true"),
		map[string]any{"points": []string{pid}}, nil)
	return err == nil, err
}

// DeleteByDocument implements domain.VectorStore.
func (s *Storage) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	if dim, err := s.currentDimension(ctx); err != nil || dim == 0 {
		return 0, err
	}
	filter := buildFilter(map[string]any{domain.PayloadDocumentID: documentID})
	n, err := s.count(ctx, filter)
	if err != nil || n == 0 {
		return 0, err
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/delete?wait=true"),
		map[string]any{"filter": filter}, nil); err != nil {
		return 0, err
	}
	return n, nil
}

// Clear drops and forgets the collection; it is recreated on next upsert.
func (s *Storage) Clear(ctx context.Context) (int, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	if dim, _ := s.currentDimension(ctx); dim == 0 {
		return 0, nil
	}
	if err := s.do(ctx, http.MethodDelete, s.collectionURL(""), nil, nil); err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.dimension = 0
	s.mu.Unlock()
	return n, nil
}

// Count implements domain.VectorStore.
func (s *Storage) Count(ctx context.Context) (int, error) {
	if dim, err := s.currentDimension(ctx); err != nil || dim == 0 {
		return 0, err
	}
	return s.count(ctx, nil)
}

func (s *Storage) count(ctx context.Context, filter map[string]any) (int, error) {
	body := map[string]any{"exact": true}
	if filter != nil {
		body["filter"] = filter
	}
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/count"), body, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Search implements domain.VectorStore.
func (s *Storage) Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	dim, err := s.currentDimension(ctx)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return []domain.SearchResult{}, nil
	}
	if len(req.Vector) != dim {
		return nil, errors.DimensionMismatch(dim, len(req.Vector))
	}
	body := map[string]any{
		"vector":       req.Vector,
		"limit":        req.Limit * s.candidates,
		"with_payload": true,
	}
	if f := buildFilter(req.Filter); f != nil {
		body["filter"] = f
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), body, &resp); err != nil {
		return nil, err
	}

	queryTokens := tokenizer.Counts(req.Text)
	scored := make([]ranking.Scored, 0, len(resp.Result))
	payloads := make(map[string]map[string]any, len(resp.Result))
	for i, r := range resp.Result {
		id, _ := r.Payload[keyRecordID].(string)
		text, _ := r.Payload[keyText].(string)
		l := ranking.Lexical(queryTokens, tokenizer.Counts(text))
		scored = append(scored, ranking.Scored{
			Seq:     uint64(i),
			ID:      id,
			Vector:  r.Score,
			Lexical: l,
			Score:   ranking.Combine(req.HybridWeight, r.Score, l),
		})
		delete(r.Payload, keyRecordID)
		delete(r.Payload, keyText)
		payloads[id] = r.Payload
	}
	ranked := ranking.Rank(scored, req.ScoreThreshold, req.Limit)
	out := make([]domain.SearchResult, len(ranked))
	for i, r := range ranked {
		out[i] = domain.SearchResult{
			ID:           r.ID,
			Score:        r.Score,
			VectorScore:  r.Vector,
			LexicalScore: r.Lexical,
			Payload:      payloads[r.ID],
		}
	}
	return out, nil
}

// Close releases idle connections.
func (s *Storage) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// buildFilter turns strict per-field equality into a Qdrant "must" filter.
func buildFilter(conditions map[string]any) map[string]any {
	if len(conditions) == 0 {
		return nil
	}
	must := make([]map[string]any, 0, len(conditions))
	for k, v := range conditions {
		must = append(must, map[string]any{"key": k, "match": map[string]any{"value": v}})
	}
	return map[string]any{"must": must}
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return errors.New(errors.ErrCodeStorageFailed, fmt.Sprintf("qdrant %s %s", method, url), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errors.NotFound("qdrant resource", url)
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		s.logger.Warn("qdrant_request_failed",
			slog.String("method", method),
			slog.String("url", url),
			slog.Int("status", resp.StatusCode))
		return errors.New(errors.ErrCodeStorageFailed,
			fmt.Sprintf("qdrant %s %s failed: %s %s", method, url, resp.Status, bytes.TrimSpace(msg)), nil)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "decode qdrant response", err)
		}
	}
	return nil
}
