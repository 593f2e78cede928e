package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/dmitrijs2005/securepass/internal/server/services"
	"github.com/gin-gonic/gin"
)

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

type changeMasterRequest struct {
	CurrentMasterPassword string `json:"currentMasterPassword"`
	NewMasterPassword     string `json:"newMasterPassword" binding:"required"`
}

type deleteAccountRequest struct {
	Password       string `json:"password" binding:"required"`
	MasterPassword string `json:"masterPassword"`
}

func (s *Server) profile(c *gin.Context) {
	s.me(c)
}

func (s *Server) updateProfile(c *gin.Context) {
	var req services.ProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	acc, err := s.svc.Accounts.UpdateProfile(c.Request.Context(), accountID(c), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewAccount(acc))
}

func (s *Server) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.svc.Accounts.ChangeLoginSecret(c.Request.Context(), accountID(c), req.CurrentPassword, req.NewPassword); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

func (s *Server) changeMasterPassword(c *gin.Context) {
	var req changeMasterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	current := masterSecret(c, req.CurrentMasterPassword)
	if err := s.svc.Accounts.ChangeMasterSecret(c.Request.Context(), accountID(c), current, req.NewMasterPassword); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Master password updated"})
}

func (s *Server) settings(c *gin.Context) {
	settings, err := s.svc.Accounts.Settings(c.Request.Context(), accountID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (s *Server) updateSettings(c *gin.Context) {
	var req models.AccountSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	settings, err := s.svc.Accounts.UpdateSettings(c.Request.Context(), accountID(c), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (s *Server) deleteAccount(c *gin.Context) {
	var req deleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	err := s.svc.Accounts.DeleteAccount(c.Request.Context(), accountID(c), req.Password, masterSecret(c, req.MasterPassword))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
}
