// Package http implements gasrag.VectorDatabase over the PostgREST API of a
// hosted Postgres database with the pgvector extension. Searches call the
// match_documents, hybrid_search and get_database_stats procedures.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/solracnyc/gasrag"
)

// DefaultTable is the table holding chunk rows.
const DefaultTable = "gas_chunks"

// DefaultTimeout bounds each HTTP request.
const DefaultTimeout = 30 * time.Second

// Ensure VectorDatabase implements gasrag.VectorDatabase at compile time.
var _ gasrag.VectorDatabase = (*VectorDatabase)(nil)

// VectorDatabase calls a PostgREST endpoint.
type VectorDatabase struct {
	client  *http.Client
	baseURL string
	key     string
	table   string
	timeout time.Duration
}

// Option configures a VectorDatabase.
type Option func(*VectorDatabase)

// WithTimeout sets the timeout for HTTP requests.
func WithTimeout(d time.Duration) Option {
	return func(db *VectorDatabase) {
		db.timeout = d
	}
}

// WithTable sets the chunk table name.
func WithTable(table string) Option {
	return func(db *VectorDatabase) {
		db.table = table
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(db *VectorDatabase) {
		db.client = c
	}
}

// NewVectorDatabase returns a client for the project at baseURL
// authenticated with the service key.
func NewVectorDatabase(baseURL, key string, opts ...Option) *VectorDatabase {
	db := &VectorDatabase{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		table:   DefaultTable,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.client == nil {
		db.client = &http.Client{Timeout: db.timeout}
	}
	return db
}

// apiError is the PostgREST error body.
type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// do sends a request and decodes a JSON response into out when non-nil.
// Non-2xx responses return *gasrag.StatusError.
func (db *VectorDatabase) do(ctx context.Context, method, path string, query url.Values, body any, prefer string, out any) error {
	u := db.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", db.key)
	req.Header.Set("Authorization", "Bearer "+db.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := db.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(data))
		var e apiError
		if json.Unmarshal(data, &e) == nil && e.Message != "" {
			msg = e.Message
			if e.Details != "" {
				msg += ": " + e.Details
			}
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &gasrag.StatusError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// row is a chunk row as written to the table.
type row struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id"`
	ChunkIndex int            `json:"chunk_index"`
	Content    string         `json:"content"`
	Embedding  []float32      `json:"embedding"`
	VectorNorm float64        `json:"vector_norm"`
	Tokens     int            `json:"tokens"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  *time.Time     `json:"created_at,omitempty"`
}

// UpsertChunks writes rows, merging on (document_id, chunk_index).
func (db *VectorDatabase) UpsertChunks(ctx context.Context, chunks []*gasrag.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]row, len(chunks))
	for i, c := range chunks {
		if err := c.Validate(); err != nil {
			return err
		}
		rows[i] = row{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			ChunkIndex: c.ChunkIndex,
			Content:    c.Content,
			Embedding:  c.Embedding,
			VectorNorm: c.VectorNorm,
			Tokens:     c.TokenEstimate,
			Metadata:   c.RecordMetadata(),
		}
		if !c.CreatedAt.IsZero() {
			t := c.CreatedAt.UTC()
			rows[i].CreatedAt = &t
		}
	}

	q := url.Values{"on_conflict": {"document_id,chunk_index"}}
	return db.do(ctx, http.MethodPost, "/rest/v1/"+db.table, q, rows,
		"resolution=merge-duplicates,return=minimal", nil)
}

// DeleteChunks removes rows by ID.
func (db *VectorDatabase) DeleteChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = strconv.Quote(id)
	}
	q := url.Values{"id": {"in.(" + strings.Join(quoted, ",") + ")"}}
	return db.do(ctx, http.MethodDelete, "/rest/v1/"+db.table, q, nil, "return=minimal", nil)
}

// resultRow is a row returned by the search procedures.
type resultRow struct {
	ID            any            `json:"id"`
	DocumentID    string         `json:"document_id"`
	ChunkIndex    int            `json:"chunk_index"`
	Content       string         `json:"content"`
	Similarity    float64        `json:"similarity"`
	CombinedScore float64        `json:"combined_score"`
	Metadata      map[string]any `json:"metadata"`
}

func (r resultRow) result() gasrag.SearchResult {
	return gasrag.SearchResult{
		ID:            fmt.Sprint(r.ID),
		DocumentID:    r.DocumentID,
		ChunkIndex:    r.ChunkIndex,
		Content:       r.Content,
		Similarity:    r.Similarity,
		CombinedScore: r.CombinedScore,
		Metadata:      r.Metadata,
	}
}

func results(rows []resultRow) []gasrag.SearchResult {
	out := make([]gasrag.SearchResult, len(rows))
	for i, r := range rows {
		out[i] = r.result()
	}
	return out
}

// MatchDocuments calls the match_documents procedure.
func (db *VectorDatabase) MatchDocuments(ctx context.Context, q gasrag.MatchQuery) ([]gasrag.SearchResult, error) {
	params := map[string]any{
		"query_embedding": q.Embedding,
		"match_threshold": q.Threshold,
		"match_count":     q.Count,
	}
	if len(q.Filter) > 0 {
		params["filter"] = q.Filter
	}
	var rows []resultRow
	if err := db.do(ctx, http.MethodPost, "/rest/v1/rpc/match_documents", nil, params, "", &rows); err != nil {
		return nil, err
	}
	return results(rows), nil
}

// HybridSearch calls the hybrid_search procedure.
func (db *VectorDatabase) HybridSearch(ctx context.Context, q gasrag.HybridQuery) ([]gasrag.SearchResult, error) {
	params := map[string]any{
		"query_text":      q.Text,
		"query_embedding": q.Embedding,
		"match_threshold": q.Threshold,
		"match_count":     q.Count,
		"vector_weight":   q.VectorWeight,
		"text_weight":     q.TextWeight,
	}
	var rows []resultRow
	if err := db.do(ctx, http.MethodPost, "/rest/v1/rpc/hybrid_search", nil, params, "", &rows); err != nil {
		return nil, err
	}
	return results(rows), nil
}

// storedRow is a table row as read back.
type storedRow struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id"`
	ChunkIndex int            `json:"chunk_index"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ChunksByDocument returns a document's rows ordered by chunk index.
// Embeddings are not transferred.
func (db *VectorDatabase) ChunksByDocument(ctx context.Context, documentID string) ([]*gasrag.StoredChunk, error) {
	q := url.Values{
		"select":      {"id,document_id,chunk_index,content,metadata,created_at"},
		"document_id": {"eq." + documentID},
		"order":       {"chunk_index.asc"},
	}
	var rows []storedRow
	if err := db.do(ctx, http.MethodGet, "/rest/v1/"+db.table, q, nil, "", &rows); err != nil {
		return nil, err
	}
	out := make([]*gasrag.StoredChunk, len(rows))
	for i, r := range rows {
		out[i] = &gasrag.StoredChunk{
			ID:         r.ID,
			DocumentID: r.DocumentID,
			ChunkIndex: r.ChunkIndex,
			Content:    r.Content,
			Metadata:   r.Metadata,
			CreatedAt:  r.CreatedAt,
		}
	}
	return out, nil
}

// DatabaseStats calls the get_database_stats procedure. Set-returning
// and scalar variants of the procedure are both accepted.
func (db *VectorDatabase) DatabaseStats(ctx context.Context) (*gasrag.DatabaseStats, error) {
	var raw json.RawMessage
	if err := db.do(ctx, http.MethodPost, "/rest/v1/rpc/get_database_stats", nil, map[string]any{}, "", &raw); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, gasrag.Errorf(gasrag.ENOTFOUND, "database stats unavailable")
	}
	if raw[0] == '[' {
		var rows []json.RawMessage
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, gasrag.Errorf(gasrag.ENOTFOUND, "database stats unavailable")
		}
		raw = rows[0]
	}
	var stats gasrag.DatabaseStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, fmt.Errorf("decode database stats: %w", err)
	}
	return &stats, nil
}
