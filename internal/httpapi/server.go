package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/internboard/internal/accounts"
	"github.com/MarkoPoloResearchLab/internboard/internal/board"
	"github.com/MarkoPoloResearchLab/internboard/internal/resume"
	"github.com/MarkoPoloResearchLab/internboard/pkg/credits"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
)

const (
	claimsContextKey  = "auth_claims"
	accountContextKey = "account"
)

// ErrInvalidServerConfig reports missing server dependencies.
var ErrInvalidServerConfig = errors.New("invalid server config")

// Services bundles the domain services the handlers call.
type Services struct {
	Accounts *accounts.Service
	Board    *board.Service
	Credits  *credits.Service
	Resumes  *resume.Renderer
}

// Server serves the job-board HTTP API.
type Server struct {
	cfg    Config
	logger *zap.Logger
	router *gin.Engine
}

// NewServer validates the configuration and builds the router.
func NewServer(cfg Config, services Services, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if services.Accounts == nil || services.Board == nil || services.Credits == nil || services.Resumes == nil {
		return nil, fmt.Errorf("%w: every service is required", ErrInvalidServerConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := registerValidators(); err != nil {
		return nil, err
	}
	sessionValidator, err := sessionvalidator.New(sessionvalidator.Config{
		SigningKey: []byte(cfg.SessionSigningKey),
		Issuer:     cfg.SessionIssuer,
		CookieName: cfg.SessionCookieName,
	})
	if err != nil {
		return nil, fmt.Errorf("session validator: %w", err)
	}
	handler := &httpHandler{
		cfg:      cfg,
		logger:   logger,
		accounts: services.Accounts,
		board:    services.Board,
		credits:  services.Credits,
		resumes:  services.Resumes,
	}
	return &Server{cfg: cfg, logger: logger, router: setupRouter(cfg, handler, sessionValidator)}, nil
}

// Handler exposes the router for tests and embedding.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (server *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              server.cfg.ListenAddr,
		Handler:           server.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("internboard listening", zap.String("addr", server.cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.cfg.ShutdownTimeout)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			server.logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupRouter(cfg Config, handler *httpHandler, validator *sessionvalidator.Validator) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(handler.logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept"},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	public := router.Group("/api")
	public.POST("/register/student", handler.handleRegister(credits.RoleStudent))
	public.POST("/register/employer", handler.handleRegister(credits.RoleEmployer))
	public.POST("/verify-email", handler.handleVerifyEmail)
	public.POST("/login", handler.handleLogin)
	public.POST("/logout", handler.handleLogout)
	public.POST("/forgot-password", handler.handleForgotPassword)
	public.POST("/reset-password", handler.handleResetPassword)
	public.GET("/internships", handler.handleListInternships)
	public.GET("/internships/:id", handler.handleGetInternship)

	api := router.Group("/api")
	api.Use(validator.GinMiddleware(claimsContextKey))
	api.Use(handler.resolveAccount)

	api.GET("/users/me", handler.handleMe)
	api.GET("/credits", handler.handleCredits)
	api.GET("/credits/history", handler.handleCreditHistory)
	api.POST("/credits/top-up", handler.handleTopUp)

	api.GET("/students/me/profile", handler.handleStudentProfile)
	api.PUT("/students/me/profile", handler.handleUpdateStudentProfile)
	api.GET("/students/me/applications", handler.handleStudentApplications)
	api.POST("/students/me/resume", handler.handleResume)
	api.POST("/internships/:id/apply", handler.handleApply)

	api.GET("/employers/me/profile", handler.handleEmployerProfile)
	api.PUT("/employers/me/profile", handler.handleUpdateEmployerProfile)
	api.GET("/employers/me/internships", handler.handleEmployerInternships)
	api.POST("/internships", handler.handleCreateInternship)
	api.PUT("/internships/:id", handler.handleUpdateInternship)
	api.DELETE("/internships/:id", handler.handleDeleteInternship)
	api.GET("/internships/:id/applicants", handler.handleApplicants)
	api.PUT("/applications/:id/status", handler.handleUpdateApplicationStatus)
	api.GET("/hired-interns", handler.handleHiredInterns)
	api.GET("/applicants/:id/profile", handler.handleApplicantProfile)

	admin := api.Group("/admin")
	admin.GET("/users", handler.handleAdminListUsers)
	admin.GET("/users/:id", handler.handleAdminGetUser)
	admin.PUT("/users/:id", handler.handleAdminUpdateUser)
	admin.DELETE("/users/:id", handler.handleAdminDeleteUser)
	admin.GET("/internships", handler.handleAdminInternships)
	admin.DELETE("/internships/:id", handler.handleAdminDeleteInternship)

	return router
}

type httpHandler struct {
	cfg      Config
	logger   *zap.Logger
	accounts *accounts.Service
	board    *board.Service
	credits  *credits.Service
	resumes  *resume.Renderer
}
