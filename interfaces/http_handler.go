package interfaces

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"staff-arabia/domain"
	"staff-arabia/infrastructure"
)

type HTTPHandler struct {
	Store  *infrastructure.DocumentStore
	Events infrastructure.EventPublisher
	Cache  infrastructure.ListingCache
	Config *infrastructure.Config
	Logger *zap.Logger
}

func NewHTTPHandler(router *gin.Engine, h *HTTPHandler) {
	router.GET("/", h.Root)
	router.GET("/api/hello", h.Hello)

	api := router.Group("/api")
	api.GET("/jobs", h.ListJobs)
	api.POST("/jobs", h.CreateJob)
	api.POST("/contact", h.SubmitContact)

	router.GET("/test", h.Diagnostics)
	router.GET("/schema", h.Schema)
}

// jobItem is a stored job as returned by GET /api/jobs.
type jobItem struct {
	ID string `json:"_id"`
	domain.Job
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type jobList struct {
	Items []jobItem `json:"items"`
}

// wireID is the transport form of a storage identifier.
func wireID(id infrastructure.ObjectID) string {
	return id.String()
}

func (h *HTTPHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Staff Arabia API running"})
}

func (h *HTTPHandler) Hello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hello from Staff Arabia backend!"})
}

// ListJobs returns up to limit jobs matching the category, location and type query parameters.
func (h *HTTPHandler) ListJobs(c *gin.Context) {
	limit, err := h.parseLimit(c.Query("limit"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}

	if !h.Store.Connected() {
		respondError(c, h.Logger, infrastructure.NotConnected())
		return
	}

	filters := infrastructure.Filters{}
	for _, key := range []string{"category", "location", "type"} {
		if v := c.Query(key); v != "" {
			filters[key] = v
		}
	}

	ctx := c.Request.Context()
	var cached jobList
	gen, err := h.Cache.Get(ctx, filters, limit, &cached)
	if err == nil {
		c.JSON(http.StatusOK, cached)
		return
	}
	cacheable := errors.Is(err, infrastructure.ErrCacheMiss)
	if !cacheable {
		h.Logger.Warn("job cache read failed", zap.Error(err))
	}

	docs, err := infrastructure.GetDocuments[domain.Job](ctx, h.Store, filters, limit)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}

	resp := jobList{Items: make([]jobItem, 0, len(docs))}
	for _, d := range docs {
		resp.Items = append(resp.Items, jobItem{
			ID:        wireID(d.ID),
			Job:       d.Record,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		})
	}

	if cacheable {
		if err := h.Cache.Set(ctx, gen, filters, limit, resp); err != nil {
			h.Logger.Warn("job cache write failed", zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, resp)
}

// CreateJob validates and stores a job posting.
func (h *HTTPHandler) CreateJob(c *gin.Context) {
	var job domain.Job
	if !h.decode(c, &job) {
		return
	}

	ctx := c.Request.Context()
	id, err := infrastructure.CreateDocument(ctx, h.Store, job)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}

	if err := h.Cache.Invalidate(ctx); err != nil {
		h.Logger.Warn("job cache invalidation failed", zap.Error(err))
	}
	h.publish(ctx, domain.KindJob, id, job)

	c.JSON(http.StatusOK, gin.H{"id": wireID(id)})
}

// SubmitContact validates and stores a contact form submission.
func (h *HTTPHandler) SubmitContact(c *gin.Context) {
	var msg domain.ContactMessage
	if !h.decode(c, &msg) {
		return
	}

	ctx := c.Request.Context()
	id, err := infrastructure.CreateDocument(ctx, h.Store, msg)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	h.publish(ctx, domain.KindContactMessage, id, msg)

	c.JSON(http.StatusOK, gin.H{"id": wireID(id), "status": "received"})
}

// Diagnostics reports backend, database and environment state. It always answers 200.
func (h *HTTPHandler) Diagnostics(c *gin.Context) {
	resp := gin.H{
		"backend":           "✅ Running",
		"database":          "❌ Not Available",
		"database_url":      nil,
		"database_name":     nil,
		"connection_status": "Not Connected",
		"collections":       []string{},
	}

	if h.Store.Connected() {
		resp["database"] = "✅ Available"
		resp["connection_status"] = "Connected"
		collections, err := h.Store.Collections(c.Request.Context())
		if err != nil {
			resp["database"] = "⚠️  Connected but Error: " + truncate(errorDetail(err), 50)
		} else {
			if len(collections) > 10 {
				collections = collections[:10]
			}
			resp["collections"] = collections
			resp["database"] = "✅ Connected & Working"
		}
	} else {
		resp["database"] = "⚠️  Available but not initialized"
	}

	resp["database_url"] = setOrNot(h.Config.DatabaseURL)
	resp["database_name"] = setOrNot(h.Config.DatabaseName)

	c.JSON(http.StatusOK, resp)
}

// Schema describes every record kind the API stores.
func (h *HTTPHandler) Schema(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"kinds": domain.Describe()})
}

func (h *HTTPHandler) decode(c *gin.Context, rec domain.Record) bool {
	raw, err := c.GetRawData()
	if err != nil {
		respondError(c, h.Logger, domain.InvalidInput("read request body", err))
		return false
	}
	if err := domain.Decode(raw, rec); err != nil {
		respondError(c, h.Logger, err)
		return false
	}
	return true
}

func (h *HTTPHandler) parseLimit(raw string) (int, error) {
	if raw == "" {
		return h.Config.DefaultLimit, nil
	}
	loc := []string{"query", "limit"}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.InvalidInput("invalid limit", &domain.ValidationError{Fields: []domain.FieldError{{
			Loc:  loc,
			Msg:  "Input should be a valid integer, unable to parse string as an integer",
			Type: "int_parsing",
		}}})
	}
	if n < 1 {
		return 0, domain.InvalidInput("invalid limit", &domain.ValidationError{Fields: []domain.FieldError{{
			Loc:  loc,
			Msg:  "Input should be greater than or equal to 1",
			Type: "greater_than_equal",
		}}})
	}
	if n > h.Config.MaxLimit {
		n = h.Config.MaxLimit
	}
	return n, nil
}

func (h *HTTPHandler) publish(ctx context.Context, kind domain.Kind, id infrastructure.ObjectID, rec any) {
	ev, err := infrastructure.NewDocumentCreated(string(kind), id, rec)
	if err == nil {
		err = h.Events.Publish(ctx, ev)
	}
	if err != nil {
		h.Logger.Warn("document event not published",
			zap.String("kind", string(kind)),
			zap.Stringer("id", id),
			zap.Error(err))
	}
}

func setOrNot(v string) string {
	if v != "" {
		return "✅ Set"
	}
	return "❌ Not Set"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
