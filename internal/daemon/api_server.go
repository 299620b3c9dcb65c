package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tinytales/internal/admin"
	"tinytales/internal/api"
	"tinytales/internal/config"
	"tinytales/internal/export"
	"tinytales/internal/logging"
	"tinytales/internal/services"
	"tinytales/internal/store"
	"tinytales/internal/story"
	"tinytales/internal/workflow"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	engine *gin.Engine

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logger,
		daemon: d,
	}
	srv.engine = srv.routes(cfg)
	return srv
}

func (s *apiServer) routes(cfg *config.Config) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())

	root := engine.Group("/api", originGuard(), bearerAuth(cfg.Paths.APIToken))
	root.GET("/health", s.handleHealth)
	root.GET("/status", s.handleStatus)
	root.GET("/events", s.handleEvents)

	root.POST("/stories", s.handleGenerate)
	root.GET("/stories", s.handleListStories)
	root.DELETE("/stories", s.handleClearStories)
	root.GET("/stories/:id", s.handleGetStory)
	root.DELETE("/stories/:id", s.handleDeleteStory)
	root.POST("/stories/:id/open", s.handleOpenStory)
	root.POST("/stories/:id/illustrate", s.withStory(s.handleIllustrate))
	root.POST("/stories/:id/export", s.withStory(s.handleExport))

	root.GET("/session", s.handleSession)
	root.POST("/session/illustrate", s.handleIllustrate)
	root.DELETE("/session/illustrate", s.handleStopIllustrate)
	root.POST("/session/export", s.handleExport)

	root.GET("/blog", s.handleListBlog)
	root.POST("/blog", s.handlePublish)
	root.GET("/blog/:id", s.handleGetPost)
	root.GET("/blog/:id/comments", s.handleListComments)
	root.POST("/blog/:id/comments", s.handleAddComment)
	root.POST("/blog/:id/like", s.handleLike)

	adm := root.Group("/admin", adminAuth(admin.NewGate(cfg.Admin.Password)))
	adm.GET("/users", s.handleListUsers)
	adm.POST("/users", s.handleCreateUser)
	adm.POST("/users/:id/approve", s.handleApproveUser)
	adm.POST("/users/:id/toggle", s.handleToggleUser)
	adm.PUT("/users/:id/access", s.handleUpdateAccess)
	adm.DELETE("/users/:id", s.handleDeleteUser)
	adm.GET("/limits", s.handleGetLimits)
	adm.PUT("/limits", s.handleSetLimits)
	adm.GET("/settings", s.handleGetSettings)
	adm.PUT("/settings", s.handleSetSettings)
	adm.DELETE("/blog/:id", s.handleDeletePost)
	adm.GET("/export/users.csv", s.handleUsersCSV)
	adm.GET("/export/stories.csv", s.handleStoriesCSV)
	adm.POST("/notifications/test", s.handleTestNotification)
	return engine
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		s.logger.Info("api server disabled (empty api_bind)")
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.stop()
	}()
	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// requestLogger tags each request with an ID and logs it at debug level.
func (s *apiServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Request = c.Request.WithContext(services.WithRequestID(c.Request.Context(), requestID))
		started := time.Now()
		c.Next()
		logging.WithContext(c.Request.Context(), s.logger).Debug("api request",
			logging.String("method", c.Request.Method),
			logging.String("path", c.FullPath()),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("elapsed", time.Since(started)),
		)
	}
}

func (s *apiServer) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.WithContext(c.Request.Context(), s.logger).Warn("api request failed",
			logging.String("path", c.FullPath()),
			logging.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, api.Error{Error: err.Error(), Kind: string(services.Classify(err))})
}

func statusFor(err error) int {
	if errors.Is(err, workflow.ErrBusy) {
		return http.StatusConflict
	}
	switch services.Classify(err) {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindDisabled:
		return http.StatusForbidden
	case services.KindRateLimited:
		return http.StatusTooManyRequests
	case services.KindCancelled:
		return http.StatusConflict
	case services.KindConfiguration:
		return http.StatusServiceUnavailable
	case services.KindProvider, services.KindPlayback, services.KindRecorderFatal:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func bind(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return services.Wrap(services.ErrValidation, "api", "decode", "invalid request body", err)
	}
	return nil
}

func (s *apiServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *apiServer) handleStatus(c *gin.Context) {
	status := s.daemon.Status(c.Request.Context())
	payload := api.FromStatusSummary(status.Workflow)
	payload.Running = status.Running
	payload.DatabasePath = status.DatabasePath
	for _, dep := range status.Dependencies {
		payload.Dependencies = append(payload.Dependencies, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	c.JSON(http.StatusOK, payload)
}

func (s *apiServer) handleEvents(c *gin.Context) {
	s.daemon.hub.serve(c.Writer, c.Request)
}

type generateBody struct {
	Prompt   string `json:"prompt"`
	Language string `json:"language"`
	UserID   string `json:"userId"`
}

func (s *apiServer) handleGenerate(c *gin.Context) {
	var body generateBody
	if err := bind(c, &body); err != nil {
		s.fail(c, err)
		return
	}
	lang, err := story.ParseLanguage(body.Language)
	if err != nil {
		s.fail(c, services.Wrap(services.ErrValidation, "api", "generate", "unsupported language", err))
		return
	}
	session, err := s.daemon.workflow.Generate(c.Request.Context(), workflow.GenerateRequest{
		Prompt:   body.Prompt,
		Language: lang,
		UserID:   body.UserID,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.FromSession(session))
}

func (s *apiServer) handleListStories(c *gin.Context) {
	var (
		records []store.StoryRecord
		err     error
	)
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		records, err = s.daemon.store.FindHistory(c.Request.Context(), q)
	} else {
		records, err = s.daemon.store.ListHistory(c.Request.Context())
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": api.FromStories(records)})
}

func (s *apiServer) handleClearStories(c *gin.Context) {
	removed, err := s.daemon.store.ClearHistory(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (s *apiServer) handleGetStory(c *gin.Context) {
	record, err := s.daemon.store.GetStory(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromStory(record))
}

func (s *apiServer) handleDeleteStory(c *gin.Context) {
	if err := s.daemon.store.DeleteStory(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *apiServer) handleOpenStory(c *gin.Context) {
	session, cached, err := s.daemon.workflow.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": api.FromSession(session), "cached": cached})
}

// withStory makes the story in the path the active session before next runs.
func (s *apiServer) withStory(next gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, _, err := s.daemon.workflow.Open(c.Request.Context(), c.Param("id")); err != nil {
			s.fail(c, err)
			return
		}
		next(c)
	}
}

func (s *apiServer) handleSession(c *gin.Context) {
	session, ok := s.daemon.workflow.Current()
	if !ok {
		s.fail(c, services.Wrap(services.ErrNotFound, "api", "session", "no active story", nil))
		return
	}
	c.JSON(http.StatusOK, api.FromSession(session))
}

type userBody struct {
	UserID string `json:"userId"`
}

func (s *apiServer) handleIllustrate(c *gin.Context) {
	var body userBody
	if c.Request.ContentLength > 0 {
		if err := bind(c, &body); err != nil {
			s.fail(c, err)
			return
		}
	}
	if err := s.daemon.StartIllustrations(body.UserID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "Generating illustrations..."})
}

func (s *apiServer) handleStopIllustrate(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stopped": s.daemon.StopIllustrations()})
}

type exportBody struct {
	Format string `json:"format"`
	UserID string `json:"userId"`
}

func (s *apiServer) handleExport(c *gin.Context) {
	var body exportBody
	if err := bind(c, &body); err != nil {
		s.fail(c, err)
		return
	}
	format, err := export.ParseFormat(body.Format)
	if err != nil {
		s.fail(c, err)
		return
	}
	artifact, err := s.daemon.workflow.Export(c.Request.Context(), workflow.ExportRequest{
		Format: format,
		UserID: body.UserID,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.FromArtifact(artifact))
}

func (s *apiServer) handleListBlog(c *gin.Context) {
	posts, err := s.daemon.store.ListBlog(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": api.FromStories(posts)})
}

type publishBody struct {
	StoryID string `json:"storyId"`
	Title   string `json:"title"`
}

func (s *apiServer) handlePublish(c *gin.Context) {
	var body publishBody
	if err := bind(c, &body); err != nil {
		s.fail(c, err)
		return
	}
	post, err := s.daemon.store.Publish(c.Request.Context(), body.StoryID, body.Title)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.FromStory(post))
}

func (s *apiServer) handleGetPost(c *gin.Context) {
	post, err := s.daemon.store.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromStory(post))
}

func (s *apiServer) handleDeletePost(c *gin.Context) {
	if err := s.daemon.store.DeletePost(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *apiServer) handleListComments(c *gin.Context) {
	comments, err := s.daemon.store.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]api.Comment, 0, len(comments))
	for _, comment := range comments {
		out = append(out, api.FromComment(comment))
	}
	c.JSON(http.StatusOK, gin.H{"comments": out})
}

type commentBody struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

func (s *apiServer) handleAddComment(c *gin.Context) {
	var body commentBody
	if err := bind(c, &body); err != nil {
		s.fail(c, err)
		return
	}
	comment, err := s.daemon.store.AddComment(c.Request.Context(), c.Param("id"), body.Author, body.Text)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.FromComment(comment))
}

func (s *apiServer) handleLike(c *gin.Context) {
	likes, err := s.daemon.store.Like(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"likes": likes})
}

func (s *apiServer) handleListUsers(c *gin.Context) {
	users, err := s.daemon.store.ListUsers(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": api.FromUsers(users)})
}

type createUserBody struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *apiServer) handleCreateUser(c *gin.Context) {
	var body createUserBody
	if err := bind(c, &body); err != nil {
		s.fail(c, err)
		return
	}
	user, err := s.daemon.store.CreateUser(c.Request.Context(), store.NewUser(body.Name, body.Email))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.FromUser(user))
}

func (s *apiServer) handleApproveUser(c *gin.Context) {
	user, err := s.daemon.store.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromUser(user))
}

func (s *apiServer) handleToggleUser(c *gin.Context) {
	user, err := s.daemon.store.ToggleApproval(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromUser(user))
}

func (s *apiServer) handleUpdateAccess(c *gin.Context) {
	var access store.Access
	if err := bind(c, &access); err != nil {
		s.fail(c, err)
		return
	}
	user, err := s.daemon.store.UpdateAccess(c.Request.Context(), c.Param("id"), access)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromUser(user))
}

func (s *apiServer) handleDeleteUser(c *gin.Context) {
	if err := s.daemon.store.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *apiServer) handleGetLimits(c *gin.Context) {
	limits, err := s.daemon.store.GetLimits(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, limits)
}

func (s *apiServer) handleSetLimits(c *gin.Context) {
	var limits store.Limits
	if err := bind(c, &limits); err != nil {
		s.fail(c, err)
		return
	}
	if err := s.daemon.store.SetLimits(c.Request.Context(), limits); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, limits)
}

func (s *apiServer) handleGetSettings(c *gin.Context) {
	settings, err := s.daemon.store.GetSiteSettings(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (s *apiServer) handleSetSettings(c *gin.Context) {
	var settings store.SiteSettings
	if err := bind(c, &settings); err != nil {
		s.fail(c, err)
		return
	}
	if err := s.daemon.store.SetSiteSettings(c.Request.Context(), settings); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (s *apiServer) handleUsersCSV(c *gin.Context) {
	users, err := s.daemon.store.ListUsers(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="users.csv"`)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	if err := admin.WriteUsersCSV(c.Writer, users); err != nil {
		s.logger.Warn("write users csv failed", logging.Error(err))
	}
}

func (s *apiServer) handleStoriesCSV(c *gin.Context) {
	records, err := s.daemon.store.ListHistory(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="stories.csv"`)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	if err := admin.WriteStoriesCSV(c.Writer, records); err != nil {
		s.logger.Warn("write stories csv failed", logging.Error(err))
	}
}

func (s *apiServer) handleTestNotification(c *gin.Context) {
	sent, detail, err := s.daemon.TestNotification(c.Request.Context())
	if err != nil {
		s.fail(c, services.Wrap(services.ErrProvider, "api", "test notification", detail, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": sent, "detail": detail})
}
