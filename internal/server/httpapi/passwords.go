package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/gin-gonic/gin"
)

type listQuery struct {
	Search    string `form:"search"`
	Category  string `form:"category"`
	Favorite  string `form:"favorite"`
	Tags      string `form:"tags"`
	SortBy    string `form:"sortBy"`
	SortOrder string `form:"sortOrder"`
	Page      int    `form:"page"`
	Limit     int    `form:"limit"`
}

func (q listQuery) filter() models.CredentialFilter {
	f := models.CredentialFilter{
		Search:   q.Search,
		Category: models.Category(q.Category),
		SortBy:   q.SortBy,
		SortDesc: strings.EqualFold(q.SortOrder, "desc"),
		Page:     q.Page,
		Limit:    q.Limit,
	}
	if b, err := strconv.ParseBool(q.Favorite); err == nil {
		f.Favorite = &b
	}
	for _, t := range strings.Split(q.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			f.Tags = append(f.Tags, t)
		}
	}
	return f
}

type createRequest struct {
	models.CredentialInput
	MasterPassword string `json:"masterPassword"`
}

type updateRequest struct {
	models.CredentialPatch
	MasterPassword string `json:"masterPassword"`
}

type bulkUpdateRequest struct {
	IDs     []string         `json:"ids" binding:"required"`
	Updates models.BulkPatch `json:"updates"`
}

type bulkDeleteRequest struct {
	IDs            []string `json:"ids" binding:"required"`
	MasterPassword string   `json:"masterPassword"`
}

// unlock runs the master password gate for the caller. On failure the
// response is already written.
func (s *Server) unlock(c *gin.Context, fromBody string) (context.Context, bool) {
	ctx, err := s.svc.Gate.Require(c.Request.Context(), accountID(c), masterSecret(c, fromBody))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return ctx, true
}

func (s *Server) listPasswords(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	page, err := s.svc.Credentials.List(c.Request.Context(), accountID(c), q.filter())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) getPassword(c *gin.Context) {
	ctx, ok := s.unlock(c, "")
	if !ok {
		return
	}
	cred, err := s.svc.Credentials.GetDecrypted(ctx, accountID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cred)
}

func (s *Server) createPassword(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx, ok := s.unlock(c, req.MasterPassword)
	if !ok {
		return
	}
	cred, err := s.svc.Credentials.Create(ctx, accountID(c), req.CredentialInput)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cred)
}

func (s *Server) updatePassword(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx, ok := s.unlock(c, req.MasterPassword)
	if !ok {
		return
	}
	cred, err := s.svc.Credentials.Update(ctx, accountID(c), c.Param("id"), req.CredentialPatch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cred)
}

func (s *Server) deletePassword(c *gin.Context) {
	var req masterRequest
	_ = c.ShouldBindJSON(&req)
	ctx, ok := s.unlock(c, req.MasterPassword)
	if !ok {
		return
	}
	if err := s.svc.Credentials.Delete(ctx, accountID(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password deleted"})
}

func (s *Server) toggleFavorite(c *gin.Context) {
	cred, err := s.svc.Credentials.ToggleFavorite(c.Request.Context(), accountID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cred)
}

func (s *Server) passwordStats(c *gin.Context) {
	stats, err := s.svc.Credentials.Stats(c.Request.Context(), accountID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) passwordTags(c *gin.Context) {
	tags, err := s.svc.Credentials.Tags(c.Request.Context(), accountID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

func (s *Server) passwordCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": s.svc.Credentials.Categories()})
}

func (s *Server) bulkUpdatePasswords(c *gin.Context) {
	var req bulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := s.svc.Credentials.BulkUpdate(c.Request.Context(), accountID(c), req.IDs, req.Updates)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"modifiedCount": n})
}

func (s *Server) bulkDeletePasswords(c *gin.Context) {
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx, ok := s.unlock(c, req.MasterPassword)
	if !ok {
		return
	}
	n, err := s.svc.Credentials.BulkDelete(ctx, accountID(c), req.IDs)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deletedCount": n})
}
