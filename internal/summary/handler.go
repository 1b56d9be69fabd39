package summary

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/healthlink/cdabridge/internal/platform/cdax"
)

// Handler provides the HTTP extraction endpoints.
type Handler struct {
	svc     *Service
	metrics Metrics
}

type nopMetrics struct{}

func (nopMetrics) DocumentParsed()   {}
func (nopMetrics) DocumentRejected() {}

// NewHandler creates a new extraction handler. metrics may be nil.
func NewHandler(svc *Service, metrics Metrics) *Handler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Handler{svc: svc, metrics: metrics}
}

// RegisterRoutes registers extraction endpoints on the provided route group.
//
//	POST /api/v1/documents/extract  - Extract topics from a CDA document
//	GET  /api/v1/topics             - List extractable topics
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/documents/extract", h.Extract)
	g.GET("/topics", h.Topics)
}

// Extract handles POST /api/v1/documents/extract.
// The body is the raw XML document; an optional "topics" query parameter
// holds a comma-separated topic subset.
func (h *Handler) Extract(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "failed to read request body",
		})
	}

	var topics []string
	if raw := c.QueryParam("topics"); raw != "" {
		known := map[string]bool{}
		for _, t := range AllTopics() {
			known[t] = true
		}
		for _, t := range strings.Split(raw, ",") {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if !known[t] {
				return c.JSON(http.StatusBadRequest, map[string]string{
					"error": "unknown topic: " + t,
				})
			}
			topics = append(topics, t)
		}
	}

	result, err := h.svc.Extract(c.Request().Context(), body, topics)
	if err != nil {
		h.metrics.DocumentRejected()
		if errors.Is(err, cdax.ErrMalformedDocument) {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "failed to parse document: " + err.Error(),
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}

	h.metrics.DocumentParsed()
	return c.JSON(http.StatusOK, result)
}

// Topics handles GET /api/v1/topics.
func (h *Handler) Topics(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{"topics": AllTopics()})
}
