// Package httpapi exposes the SecurePass services as a JSON API on gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/securepass/internal/logging"
	"github.com/dmitrijs2005/securepass/internal/server/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Services groups what the handlers call.
type Services struct {
	Identity    *services.IdentityService
	Accounts    *services.AccountService
	Sessions    *services.SessionService
	Gate        *services.MasterKeyGate
	Credentials *services.CredentialService
	Transfer    *services.TransferService
}

type Server struct {
	address     string
	corsOrigins []string
	logger      logging.Logger
	svc         Services
	engine      *gin.Engine
	now         func() time.Time
}

func NewServer(address string, corsOrigins []string, l logging.Logger, svc Services) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		address:     address,
		corsOrigins: corsOrigins,
		logger:      l.With("module", "http_server"),
		svc:         svc,
		now:         time.Now,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.Use(cors.New(s.corsConfig()))

	api := r.Group("/api")
	api.GET("/health", s.health)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", s.register)
		authGroup.POST("/resend-verification", s.resendVerification)
		authGroup.POST("/verify-registration", s.verifyRegistration)
		authGroup.POST("/login", s.login)
		authGroup.POST("/refresh", s.refresh)
		authGroup.POST("/forgot-password", s.forgotPassword)
		authGroup.POST("/verify-otp", s.verifyOTP)
		authGroup.POST("/reset-password", s.resetPassword)

		secured := authGroup.Group("", s.authenticate())
		secured.GET("/me", s.me)
		secured.POST("/verify-master", s.verifyMaster)
		secured.POST("/enable-2fa", s.enableTwoFactor)
		secured.POST("/verify-2fa-setup", s.verifyTwoFactorSetup)
		secured.POST("/disable-2fa", s.disableTwoFactor)
	}

	passwords := api.Group("/passwords", s.authenticate())
	{
		passwords.GET("", s.listPasswords)
		passwords.POST("", s.createPassword)
		passwords.GET("/stats", s.passwordStats)
		passwords.GET("/tags", s.passwordTags)
		passwords.GET("/categories", s.passwordCategories)
		passwords.PUT("/bulk", s.bulkUpdatePasswords)
		passwords.DELETE("/bulk", s.bulkDeletePasswords)
		passwords.GET("/:id", s.getPassword)
		passwords.PUT("/:id", s.updatePassword)
		passwords.DELETE("/:id", s.deletePassword)
		passwords.PATCH("/:id/favorite", s.toggleFavorite)
	}

	user := api.Group("/user", s.authenticate())
	{
		user.GET("/profile", s.profile)
		user.PUT("/profile", s.updateProfile)
		user.PUT("/password", s.changePassword)
		user.PUT("/master-password", s.changeMasterPassword)
		user.GET("/settings", s.settings)
		user.PUT("/settings", s.updateSettings)
		user.DELETE("/account", s.deleteAccount)
	}

	utility := api.Group("/utility")
	{
		utility.POST("/generate-password", s.generatePassword)
		utility.POST("/generate-passphrase", s.generatePassphrase)
		utility.POST("/check-strength", s.checkStrength)

		vault := utility.Group("", s.authenticate())
		vault.POST("/export", s.exportPasswords)
		vault.POST("/import", s.importPasswords)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "route not found"})
	})
	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowOrigins:     s.corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", masterHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(s.corsOrigins) == 0 {
		cfg.AllowOrigins = nil
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	}
	return cfg
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK", "timestamp": s.now().UTC()})
}
