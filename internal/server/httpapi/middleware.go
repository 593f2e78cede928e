package httpapi

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/gin-gonic/gin"
)

const masterHeader = common.MasterPasswordHeaderName

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// authenticate requires a Bearer access token and stores its account id.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.abort(c, common.ErrInvalidToken)
			return
		}
		accountID, err := s.svc.Sessions.AccountID(token)
		if err != nil {
			s.abort(c, err)
			return
		}
		c.Set(common.AccountIDContextKey, accountID)
		c.Next()
	}
}

func accountID(c *gin.Context) string {
	return c.GetString(common.AccountIDContextKey)
}

// masterSecret prefers the header over a body field.
func masterSecret(c *gin.Context, fromBody string) string {
	if v := c.GetHeader(masterHeader); v != "" {
		return v
	}
	return fromBody
}
