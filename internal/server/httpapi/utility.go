package httpapi

import (
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/securepass/internal/passgen"
	"github.com/dmitrijs2005/securepass/internal/portable"
	"github.com/dmitrijs2005/securepass/internal/server/services"
	"github.com/gin-gonic/gin"
)

type exportRequest struct {
	Format         string `json:"format"`
	MasterPassword string `json:"masterPassword"`
}

type importRequest struct {
	Data           string                 `json:"data" binding:"required"`
	Format         string                 `json:"format"`
	Options        *services.ImportPolicy `json:"options"`
	MasterPassword string                 `json:"masterPassword"`
}

func (s *Server) generatePassword(c *gin.Context) {
	opts := passgen.DefaultOptions()
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			badRequest(c, err)
			return
		}
	}
	pw, err := passgen.Generate(opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"password": pw, "strength": passgen.CheckStrength(pw)})
}

func (s *Server) generatePassphrase(c *gin.Context) {
	opts := passgen.DefaultPassphraseOptions()
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			badRequest(c, err)
			return
		}
	}
	phrase, err := passgen.Passphrase(opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"passphrase": phrase, "strength": passgen.CheckStrength(phrase)})
}

func (s *Server) checkStrength(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, passgen.CheckStrength(req.Password))
}

func (s *Server) exportPasswords(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	format, err := portable.ParseFormat(req.Format)
	if err != nil {
		s.fail(c, err)
		return
	}
	out, err := s.svc.Transfer.Export(c.Request.Context(), accountID(c), masterSecret(c, req.MasterPassword), format)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	c.Data(http.StatusOK, out.ContentType, out.Data)
}

func (s *Server) importPasswords(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	format, err := portable.ParseFormat(req.Format)
	if err != nil {
		s.fail(c, err)
		return
	}
	policy := services.DefaultImportPolicy()
	if req.Options != nil {
		policy = *req.Options
	}
	res, err := s.svc.Transfer.Import(c.Request.Context(), accountID(c), masterSecret(c, req.MasterPassword), []byte(req.Data), format, policy)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
