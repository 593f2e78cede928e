package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/dmitrijs2005/securepass/internal/server/services"
	"github.com/gin-gonic/gin"
)

type accountView struct {
	ID               string                 `json:"id"`
	Email            string                 `json:"email"`
	FirstName        string                 `json:"firstName"`
	LastName         string                 `json:"lastName"`
	IsEmailVerified  bool                   `json:"isEmailVerified"`
	TwoFactorEnabled bool                   `json:"twoFactorEnabled"`
	Settings         models.AccountSettings `json:"settings"`
	LastLogin        *time.Time             `json:"lastLogin,omitempty"`
	CreatedAt        time.Time              `json:"createdAt"`
}

func viewAccount(a *models.Account) accountView {
	return accountView{
		ID:               a.ID,
		Email:            a.Email,
		FirstName:        a.FirstName,
		LastName:         a.LastName,
		IsEmailVerified:  a.EmailVerified,
		TwoFactorEnabled: a.TwoFactorEnabled,
		Settings:         a.Settings,
		LastLogin:        a.LastLogin,
		CreatedAt:        a.CreatedAt,
	}
}

type sessionView struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
	User         accountView `json:"user"`
}

func viewSession(s *services.Session) sessionView {
	return sessionView{
		Token:        s.Tokens.AccessToken,
		RefreshToken: s.Tokens.RefreshToken,
		User:         viewAccount(s.Account),
	}
}

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

type codeRequest struct {
	Email string `json:"email" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	OTP      string `json:"otp"`
}

type resetRequest struct {
	Email       string `json:"email" binding:"required"`
	OTP         string `json:"otp" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type passwordRequest struct {
	Password string `json:"password" binding:"required"`
}

type masterRequest struct {
	MasterPassword string `json:"masterPassword"`
}

func (s *Server) register(c *gin.Context) {
	var req services.RegistrationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.svc.Identity.Initiate(c.Request.Context(), req); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Verification code sent to your email", "email": req.Email})
}

func (s *Server) resendVerification(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.svc.Identity.ResendRegistrationCode(c.Request.Context(), req.Email); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Verification code resent"})
}

func (s *Server) verifyRegistration(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	session, err := s.svc.Identity.Complete(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewSession(session))
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.svc.Identity.Authenticate(c.Request.Context(), req.Email, req.Password, req.OTP)
	if err != nil {
		s.fail(c, err)
		return
	}
	if res.ChallengePending {
		c.JSON(http.StatusOK, gin.H{"requiresTwoFactor": true, "message": "Verification code sent to your email"})
		return
	}
	c.JSON(http.StatusOK, viewSession(res.Session))
}

func (s *Server) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	pair, err := s.svc.Identity.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (s *Server) forgotPassword(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.svc.Identity.RequestReset(c.Request.Context(), req.Email); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "If an account exists, a reset code has been sent"})
}

func (s *Server) verifyOTP(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.svc.Identity.ConfirmCode(c.Request.Context(), req.Email, req.OTP); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Code verified"})
}

func (s *Server) resetPassword(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	session, err := s.svc.Identity.ApplyNewSecret(c.Request.Context(), req.Email, req.OTP, req.NewPassword)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewSession(session))
}

func (s *Server) me(c *gin.Context) {
	acc, err := s.svc.Accounts.Profile(c.Request.Context(), accountID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewAccount(acc))
}

func (s *Server) verifyMaster(c *gin.Context) {
	var req masterRequest
	_ = c.ShouldBindJSON(&req)
	if _, err := s.svc.Gate.Require(c.Request.Context(), accountID(c), masterSecret(c, req.MasterPassword)); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": true})
}

func (s *Server) enableTwoFactor(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.svc.Accounts.EnableTwoFactor(c.Request.Context(), accountID(c), req.Password); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Verification code sent to your email"})
}

func (s *Server) verifyTwoFactorSetup(c *gin.Context) {
	var req struct {
		OTP string `json:"otp" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.svc.Accounts.ConfirmTwoFactor(c.Request.Context(), accountID(c), req.OTP); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"twoFactorEnabled": true})
}

func (s *Server) disableTwoFactor(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.svc.Accounts.DisableTwoFactor(c.Request.Context(), accountID(c), req.Password); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"twoFactorEnabled": false})
}
