package newsmon

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pevans/newsmon/newsfeed"
)

// Pagination bounds for GET /api/v1/items.
const (
	defaultPageLimit = 50
	maxPageLimit     = 1000
)

// RouteRegistrar mounts extra routes on the API router.
type RouteRegistrar interface {
	RegisterRoutes(r gin.IRouter)
}

// APIServer serves the ordered history and monitor controls over HTTP.
type APIServer struct {
	store      *newsfeed.HistoryStore
	monitor    *Monitor
	registrars []RouteRegistrar
}

// NewAPIServer creates an API server. monitor may be nil, in which case the
// status and refresh routes answer 503.
func NewAPIServer(store *newsfeed.HistoryStore, monitor *Monitor, registrars ...RouteRegistrar) *APIServer {
	return &APIServer{
		store:      store,
		monitor:    monitor,
		registrars: registrars,
	}
}

// SetupRouter configures the Gin router with all API routes.
func (s *APIServer) SetupRouter() *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	api := router.Group("/api/v1")
	api.GET("/items", s.HandleListItems)
	api.GET("/items/:id", s.HandleGetItem)
	api.GET("/status", s.HandleStatus)
	api.POST("/refresh", s.HandleRefresh)

	for _, r := range s.registrars {
		r.RegisterRoutes(router)
	}

	return router
}

// ListItemsResponse represents the response for GET /api/v1/items.
type ListItemsResponse struct {
	Items  []newsfeed.NewsRecord `json:"items"`
	Total  int                   `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// RefreshResponse represents the response for POST /api/v1/refresh.
type RefreshResponse struct {
	Accepted   int `json:"accepted"`
	Skipped    int `json:"skipped"`
	Enriched   int `json:"enriched"`
	Unresolved int `json:"unresolved"`
	Inserted   int `json:"inserted"`
	Updated    int `json:"updated"`
	Evicted    int `json:"evicted"`
	Total      int `json:"total"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// HandleListItems handles GET /api/v1/items. Items keep the history order:
// newest publication first, undated last.
func (s *APIServer) HandleListItems(c *gin.Context) {
	items := s.store.Snapshot()

	if datedParam := c.Query("dated"); datedParam != "" {
		dated, err := strconv.ParseBool(datedParam)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid_parameter", "Invalid dated parameter: must be true or false")
			return
		}
		items = filterByDated(items, dated)
	}

	if source := c.Query("source"); source != "" {
		items = filterBySource(items, source)
	}

	if since := c.Query("since"); since != "" {
		sinceTime, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid_parameter", "Invalid since parameter: must be ISO 8601 format")
			return
		}
		items = filterBySince(items, sinceTime)
	}

	total := len(items)

	limit := defaultPageLimit
	if limitParam := c.Query("limit"); limitParam != "" {
		parsedLimit, err := strconv.Atoi(limitParam)
		if err != nil || parsedLimit < 1 {
			writeError(c, http.StatusBadRequest, "invalid_parameter", "Invalid limit parameter")
			return
		}
		limit = min(parsedLimit, maxPageLimit)
	}

	offset := 0
	if offsetParam := c.Query("offset"); offsetParam != "" {
		parsedOffset, err := strconv.Atoi(offsetParam)
		if err != nil || parsedOffset < 0 {
			writeError(c, http.StatusBadRequest, "invalid_parameter", "Invalid offset parameter")
			return
		}
		offset = parsedOffset
	}

	c.JSON(http.StatusOK, ListItemsResponse{
		Items:  paginate(items, offset, limit),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func filterByDated(items []newsfeed.NewsRecord, dated bool) []newsfeed.NewsRecord {
	filtered := []newsfeed.NewsRecord{}
	for _, item := range items {
		if item.IsDated() == dated {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// filterBySource filters items by source name (exact match).
func filterBySource(items []newsfeed.NewsRecord, source string) []newsfeed.NewsRecord {
	filtered := []newsfeed.NewsRecord{}
	for _, item := range items {
		if item.SourceName == source {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// filterBySince keeps items published at or after since. Undated items are
// dropped.
func filterBySince(items []newsfeed.NewsRecord, since time.Time) []newsfeed.NewsRecord {
	filtered := []newsfeed.NewsRecord{}
	for _, item := range items {
		if item.PublishedAt != nil && !item.PublishedAt.Before(since) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func paginate(items []newsfeed.NewsRecord, offset, limit int) []newsfeed.NewsRecord {
	if offset >= len(items) {
		return []newsfeed.NewsRecord{}
	}

	end := min(offset+limit, len(items))

	return items[offset:end]
}

// HandleGetItem handles GET /api/v1/items/{id}.
func (s *APIServer) HandleGetItem(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_id", "Invalid item ID: "+err.Error())
		return
	}

	item, ok := s.store.GetByID(id)
	if !ok {
		writeError(c, http.StatusNotFound, "not_found", "News item with ID "+id.String()+" not found")
		return
	}

	c.JSON(http.StatusOK, item)
}

// HandleStatus handles GET /api/v1/status.
func (s *APIServer) HandleStatus(c *gin.Context) {
	if s.monitor == nil {
		writeError(c, http.StatusServiceUnavailable, "unavailable", "Monitor is not running")
		return
	}

	c.JSON(http.StatusOK, s.monitor.Status())
}

// HandleRefresh handles POST /api/v1/refresh by running one cycle now.
func (s *APIServer) HandleRefresh(c *gin.Context) {
	if s.monitor == nil {
		writeError(c, http.StatusServiceUnavailable, "unavailable", "Monitor is not running")
		return
	}

	result, err := s.monitor.Refresh(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusBadGateway, "refresh_failed", "Refresh failed: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, RefreshResponse{
		Accepted:   result.Accepted,
		Skipped:    result.Skipped,
		Enriched:   result.Enriched,
		Unresolved: result.Unresolved,
		Inserted:   result.Inserted,
		Updated:    result.Updated,
		Evicted:    result.Evicted,
		Total:      len(result.Records),
	})
}
