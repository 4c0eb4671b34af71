package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"staff-arabia/domain"
	"staff-arabia/infrastructure"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []infrastructure.DocumentCreated
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev infrastructure.DocumentCreated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

// memoryCache is a ListingCache backed by a map, scoped by a generation counter.
type memoryCache struct {
	entries     map[string][]byte
	gen         int64
	invalidated int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (c *memoryCache) key(gen int64, filters infrastructure.Filters, limit int) string {
	return fmt.Sprintf("%d|%v|%d", gen, map[string]any(filters), limit)
}

func (c *memoryCache) Get(_ context.Context, filters infrastructure.Filters, limit int, dst any) (int64, error) {
	body, ok := c.entries[c.key(c.gen, filters, limit)]
	if !ok {
		return c.gen, infrastructure.ErrCacheMiss
	}
	return c.gen, json.Unmarshal(body, dst)
}

func (c *memoryCache) Set(_ context.Context, gen int64, filters infrastructure.Filters, limit int, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[c.key(gen, filters, limit)] = body
	return nil
}

func (c *memoryCache) Invalidate(context.Context) error {
	c.gen++
	c.invalidated++
	return nil
}

func (c *memoryCache) Close() error { return nil }

type testServer struct {
	router    *gin.Engine
	store     *infrastructure.DocumentStore
	publisher *recordingPublisher
	cache     *memoryCache
	cfg       *infrastructure.Config
}

func newTestConfig() *infrastructure.Config {
	return &infrastructure.Config{
		ServiceName:    "staff-arabia-test",
		DefaultLimit:   12,
		MaxLimit:       100,
		MetricsEnabled: true,
	}
}

func newTestServer(t *testing.T, connected bool) *testServer {
	t.Helper()
	cfg := newTestConfig()
	logger := zap.NewNop()

	store := infrastructure.NewDocumentStore(nil, logger, nil)
	if connected {
		cfg.DatabaseURL = "sqlite://" + filepath.Join(t.TempDir(), "staff.db")
		cfg.DatabaseName = "staff"
		db, err := infrastructure.OpenDatabase(context.Background(), cfg, logger)
		require.NoError(t, err)
		store = infrastructure.NewDocumentStore(db, logger, nil)
		require.NoError(t, store.Migrate(context.Background()))
		t.Cleanup(func() { _ = store.Close() })
	}

	ts := &testServer{
		store:     store,
		publisher: &recordingPublisher{},
		cache:     newMemoryCache(),
		cfg:       cfg,
	}
	ts.router = NewRouter(cfg, logger, infrastructure.NewMetrics(cfg))
	NewHTTPHandler(ts.router, &HTTPHandler{
		Store:  store,
		Events: ts.publisher,
		Cache:  ts.cache,
		Config: cfg,
		Logger: logger,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func listJobs(t *testing.T, ts *testServer, query string) []map[string]any {
	t.Helper()
	rec := ts.do(t, http.MethodGet, "/api/jobs"+query, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Items []map[string]any `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotNil(t, out.Items)
	return out.Items
}

func jobPayload(title, category, location, typ string) map[string]any {
	p := map[string]any{
		"title":    title,
		"company":  "Gulf Build Co.",
		"location": location,
		"category": category,
	}
	if typ != "" {
		p["type"] = typ
	}
	return p
}

func TestRootAndHello(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Staff Arabia API running", decodeBody(t, rec)["message"])

	rec = ts.do(t, http.MethodGet, "/api/hello", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello from Staff Arabia backend!", decodeBody(t, rec)["message"])
}

func TestCreateJobThenList(t *testing.T) {
	ts := newTestServer(t, true)

	payload := jobPayload("Site Engineer", "Construction", "Riyadh, Saudi Arabia", "Contract")
	payload["description"] = "High-rise project"
	payload["apply_url"] = "https://example.com/apply"

	rec := ts.do(t, http.MethodPost, "/api/jobs", payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	id, ok := decodeBody(t, rec)["id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, id)
	for _, v := range payload {
		assert.NotEqual(t, v, id)
	}

	items := listJobs(t, ts, "")
	require.Len(t, items, 1)
	item := items[0]
	assert.Equal(t, id, item["_id"])
	for k, v := range payload {
		assert.Equal(t, v, item[k], k)
	}
	assert.Contains(t, item, "created_at")
}

func TestCreateJob_DefaultType(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, http.MethodPost, "/api/jobs", jobPayload("Welder", "Construction", "Jeddah", ""))
	require.Equal(t, http.StatusOK, rec.Code)

	items := listJobs(t, ts, "")
	require.Len(t, items, 1)
	assert.Equal(t, "Full-time", items[0]["type"])
	assert.Nil(t, items[0]["description"])
}

func TestCreateJob_Invalid(t *testing.T) {
	ts := newTestServer(t, true)

	tests := []struct {
		name string
		body any
		loc  []any
	}{
		{name: "missing title", body: map[string]any{"company": "a", "location": "b", "category": "c"}, loc: []any{"body", "title"}},
		{name: "bad type", body: jobPayload("a", "b", "c", "Freelance"), loc: []any{"body", "type"}},
		{name: "malformed", body: `{"title":`, loc: []any{"body"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/jobs", tt.body)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

			detail, ok := decodeBody(t, rec)["detail"].([]any)
			require.True(t, ok)
			require.NotEmpty(t, detail)
			first := detail[0].(map[string]any)
			assert.Equal(t, tt.loc, first["loc"])
			assert.NotEmpty(t, first["msg"])
			assert.NotEmpty(t, first["type"])
		})
	}

	assert.Empty(t, listJobs(t, ts, ""))
	assert.Empty(t, ts.publisher.events)
}

func TestListJobs_FilterExactMatch(t *testing.T) {
	ts := newTestServer(t, true)

	for _, p := range []map[string]any{
		jobPayload("Welder", "Construction", "Jeddah", "Full-time"),
		jobPayload("Foreman", "Construction", "Riyadh", "Contract"),
		jobPayload("Mason", "Construction Services", "Jeddah", "Full-time"),
		jobPayload("Driller", "Oil & Gas", "Dammam", "Temporary"),
	} {
		require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/jobs", p).Code)
	}

	items := listJobs(t, ts, "?category=Construction")
	require.Len(t, items, 2)
	for _, item := range items {
		assert.Equal(t, "Construction", item["category"])
	}

	items = listJobs(t, ts, "?category=Oil+%26+Gas")
	require.Len(t, items, 1)
	assert.Equal(t, "Driller", items[0]["title"])

	items = listJobs(t, ts, "?location=Jeddah&type=Full-time")
	assert.Len(t, items, 2)

	assert.Empty(t, listJobs(t, ts, "?category=Constr"))
	assert.Len(t, listJobs(t, ts, "?category="), 4, "empty filter is ignored")
}

func TestListJobs_Empty(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
}

func TestListJobs_Limit(t *testing.T) {
	ts := newTestServer(t, true)

	for i := 0; i < 15; i++ {
		p := jobPayload(fmt.Sprintf("Welder %d", i), "Construction", "Jeddah", "")
		require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/jobs", p).Code)
	}

	assert.Len(t, listJobs(t, ts, ""), 12, "default limit")
	for _, n := range []int{1, 5, 14, 15, 50} {
		items := listJobs(t, ts, fmt.Sprintf("?limit=%d", n))
		assert.LessOrEqual(t, len(items), n)
	}
	assert.Len(t, listJobs(t, ts, "?limit=5"), 5)

	ts.cfg.MaxLimit = 3
	assert.Len(t, listJobs(t, ts, "?limit=10"), 3, "limit is clamped")
}

func TestListJobs_BadLimit(t *testing.T) {
	ts := newTestServer(t, true)

	for _, q := range []string{"?limit=abc", "?limit=0", "?limit=-4", "?limit=1.5"} {
		rec := ts.do(t, http.MethodGet, "/api/jobs"+q, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, q)

		detail, ok := decodeBody(t, rec)["detail"].([]any)
		require.True(t, ok, q)
		assert.Equal(t, []any{"query", "limit"}, detail[0].(map[string]any)["loc"])
	}
}

func TestListJobs_NotConnected(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodGet, "/api/jobs", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Database not connected", decodeBody(t, rec)["detail"])

	rec = ts.do(t, http.MethodPost, "/api/jobs", jobPayload("Welder", "Construction", "Jeddah", ""))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Database not connected", decodeBody(t, rec)["detail"])
}

func TestListJobs_Cache(t *testing.T) {
	ts := newTestServer(t, true)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/jobs", jobPayload("Welder", "Construction", "Jeddah", "")).Code)
	assert.Len(t, listJobs(t, ts, "?category=Construction"), 1)
	assert.Len(t, ts.cache.entries, 1)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/jobs", jobPayload("Foreman", "Construction", "Riyadh", "")).Code)
	assert.Equal(t, 2, ts.cache.invalidated)
	assert.Len(t, listJobs(t, ts, "?category=Construction"), 2, "insert invalidates cached listings")
	assert.Len(t, ts.cache.entries, 2)
}

func TestListJobs_ServesCachedListing(t *testing.T) {
	ts := newTestServer(t, true)

	cached := `{"items":[{"_id":"cached","title":"From cache"}]}`
	ts.cache.entries[ts.cache.key(0, infrastructure.Filters{}, 12)] = []byte(cached)

	items := listJobs(t, ts, "")
	require.Len(t, items, 1)
	assert.Equal(t, "From cache", items[0]["title"])
}

func TestSubmitContact(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, http.MethodPost, "/api/contact", map[string]any{
		"name":    "Sara",
		"email":   "sara@example.com",
		"phone":   "+966 55 000 0000",
		"message": "Looking for 20 welders",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, "received", body["status"])
	id, ok := body["id"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, id)

	docs, err := infrastructure.GetDocuments[domain.ContactMessage](context.Background(), ts.store, nil, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.NotNil(t, docs[0].Record.Source)
	assert.Equal(t, "website", *docs[0].Record.Source)

	require.Len(t, ts.publisher.events, 1)
	assert.Equal(t, "contactmessage", ts.publisher.events[0].Kind)
	assert.Equal(t, id, ts.publisher.events[0].ID)
}

func TestSubmitContact_InvalidEmail(t *testing.T) {
	ts := newTestServer(t, true)

	for _, email := range []string{"not-an-email", "sara@", "@example.com", ""} {
		rec := ts.do(t, http.MethodPost, "/api/contact", map[string]any{
			"name":    "Sara",
			"email":   email,
			"message": "Hi",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, email)

		body := decodeBody(t, rec)
		assert.NotContains(t, body, "id")
		detail := body["detail"].([]any)
		assert.Equal(t, []any{"body", "email"}, detail[0].(map[string]any)["loc"])
	}

	docs, err := infrastructure.GetDocuments[domain.ContactMessage](context.Background(), ts.store, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Empty(t, ts.publisher.events)
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	ts := newTestServer(t, true)
	ts.publisher.err = errors.New("broker down")

	rec := ts.do(t, http.MethodPost, "/api/jobs", jobPayload("Welder", "Construction", "Jeddah", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, listJobs(t, ts, ""), 1)
}

func TestDiagnostics_NoDatabase(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodGet, "/test", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "✅ Running", body["backend"])
	assert.Equal(t, "Not Connected", body["connection_status"])
	assert.Equal(t, "⚠️  Available but not initialized", body["database"])
	assert.Equal(t, "❌ Not Set", body["database_url"])
	assert.Equal(t, "❌ Not Set", body["database_name"])
	assert.Equal(t, []any{}, body["collections"])
}

func TestDiagnostics_Connected(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, http.MethodGet, "/test", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Connected", body["connection_status"])
	assert.Equal(t, "✅ Connected & Working", body["database"])
	assert.Equal(t, "✅ Set", body["database_url"])
	assert.Equal(t, "✅ Set", body["database_name"])
	assert.ElementsMatch(t, []any{"user", "product", "job", "contactmessage"}, body["collections"])
}

func TestSchema(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodGet, "/schema", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Kinds []domain.KindSchema `json:"kinds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Kinds, 4)
	assert.Equal(t, "job", out.Kinds[2].Collection)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, false)
	ts.do(t, http.MethodGet, "/api/hello", nil)

	rec := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/hello"`)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodGet, "/api/hello", nil)
	req.Header.Set("Origin", "https://staffarabia.example")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
