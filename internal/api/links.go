package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/tools/utilities"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

// followShortLink redirects a url-shorten alias to its original URL and
// records the click when tracking is enabled for the link.
func (s *Server) followShortLink(c *gin.Context) {
	cfg := s.dispatcher.Config
	if cfg == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "short links are not configured"})
		return
	}
	alias := c.Param("alias")

	store, err := utilities.OpenLinkStore(utilities.DatabasePath(cfg.OutputDir))
	if err != nil {
		s.log.Errorw("Failed to open shortener database", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "shortener database unavailable"})
		return
	}
	link, ok := store.Get(alias)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "short link " + alias + " not found"})
		return
	}

	if link.TrackingEnabled {
		click := utilities.Click{
			Timestamp: types.Timestamp(s.now()),
			Referrer:  c.Request.Referer(),
			IP:        c.ClientIP(),
		}
		if !store.TrackClick(alias, click) {
			s.log.Warnw("Failed to record click", "alias", alias)
		}
	}
	c.Redirect(http.StatusFound, link.OriginalURL)
}
