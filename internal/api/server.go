// Package api exposes the tool catalogue and the dispatcher over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/dispatch"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/logger"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/ratelimit"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

// ToolSummary is one row of the tool listing.
type ToolSummary struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    types.Category  `json:"category"`
	Description string          `json:"description"`
	RiskLevel   types.RiskLevel `json:"risk_level"`
}

type Server struct {
	dispatcher *dispatch.Dispatcher
	limiter    *ratelimit.Keyed
	log        *logger.Logger
	version    string
	now        func() time.Time
}

// NewServer serves d. The dispatcher's console writer is replaced so HTTP
// runs never print metadata blocks.
func NewServer(d *dispatch.Dispatcher, limiter *ratelimit.Keyed, version string) *Server {
	copied := *d
	copied.Stderr = nil
	log := copied.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		dispatcher: &copied,
		limiter:    limiter,
		log:        log.WithComponent("api-server"),
		version:    version,
		now:        time.Now,
	}
}

// Router builds the gin engine with middleware and routes attached.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware(s.log))

	router.GET("/health", s.health)

	v1 := router.Group("/api/v1")
	if s.limiter != nil {
		v1.Use(RateLimitMiddleware(s.limiter, s.log))
	}
	{
		v1.GET("/tools", s.listTools)
		v1.GET("/tools/:id", s.getTool)
		v1.POST("/tools/:id/run", s.runTool)
		v1.GET("/session", s.sessionStatus)
	}

	links := router.Group("/s")
	if s.limiter != nil {
		links.Use(RateLimitMiddleware(s.limiter, s.log))
	}
	links.GET("/:alias", s.followShortLink)
	return router
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"healthy":   true,
		"tools":     len(s.dispatcher.Registry.IDs()),
		"timestamp": s.now().Unix(),
		"version":   s.version,
	})
}

func (s *Server) listTools(c *gin.Context) {
	reg := s.dispatcher.Registry
	var category types.Category
	if q := c.Query("category"); q != "" && !strings.EqualFold(q, "all") {
		cat, ok := types.ParseCategory(q)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category " + q})
			return
		}
		category = cat
	}

	tools := make([]ToolSummary, 0)
	for _, id := range reg.IDs() {
		meta, _ := reg.Metadata(id)
		if category != "" && meta.Category != category {
			continue
		}
		tools = append(tools, ToolSummary{
			ID:          id,
			Name:        meta.Name,
			Category:    meta.Category,
			Description: meta.Description,
			RiskLevel:   meta.RiskLevel,
		})
	}
	sort.SliceStable(tools, func(i, j int) bool { return tools[i].Category < tools[j].Category })
	c.JSON(http.StatusOK, gin.H{"tools": tools, "count": len(tools)})
}

func (s *Server) getTool(c *gin.Context) {
	id := c.Param("id")
	meta, ok := s.dispatcher.Registry.Metadata(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "tool " + id + " not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "metadata": meta})
}

func (s *Server) runTool(c *gin.Context) {
	id := c.Param("id")
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var raw params.Raw
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parameters: " + err.Error()})
			return
		}
	}
	if len(raw) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a non-empty JSON object of parameters"})
		return
	}

	out := s.dispatcher.Run(c.Request.Context(), id, raw)
	if out.NotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "tool " + id + " not found"})
		return
	}
	c.Header("X-Exit-Code", strconv.Itoa(out.ExitCode))
	c.JSON(statusFor(out.ExitCode), out.Envelope)
}

func (s *Server) sessionStatus(c *gin.Context) {
	if s.dispatcher.Session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no session"})
		return
	}
	c.JSON(http.StatusOK, s.dispatcher.Session.Status())
}

// statusFor maps a dispatcher exit code onto an HTTP status.
func statusFor(code int) int {
	switch code {
	case dispatch.ExitOK:
		return http.StatusOK
	case dispatch.ExitFailure:
		return http.StatusUnprocessableEntity
	case dispatch.ExitUsage:
		return http.StatusTooManyRequests
	case dispatch.ExitInterrupted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
