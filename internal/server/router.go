package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/memoflix/internal/gallery"
	"github.com/MarcoPoloResearchLab/memoflix/internal/gateway"
	"github.com/MarcoPoloResearchLab/memoflix/internal/memorial"
	"github.com/MarcoPoloResearchLab/memoflix/internal/session"
	"github.com/MarcoPoloResearchLab/memoflix/internal/social"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	loginPagePath   = "login.html"
	profilePagePath = "profile.html"
)

var (
	errMissingCatalog       = errors.New("server: catalog dependency required")
	errMissingAuthService   = errors.New("server: auth service dependency required")
	errMissingSocialService = errors.New("server: social service dependency required")
	errMissingSessionStore  = errors.New("server: session store dependency required")
	errMissingViewCtrl      = errors.New("server: view controller dependency required")
	errMissingDispatcher    = errors.New("server: event dispatcher dependency required")
)

// Dependencies bundles everything the HTTP surface needs.
type Dependencies struct {
	Catalog  *memorial.Catalog
	Auth     *gateway.Auth
	Gateway  *gateway.Client
	Social   *social.Service
	Sessions *session.Store
	View     *gallery.ViewController
	Hero     *gallery.HeroRotator
	Events   *EventDispatcher
	Logger   *zap.Logger
}

// NewHTTPHandler builds the gin router for the memorial page API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Catalog == nil {
		return nil, errMissingCatalog
	}
	if deps.Auth == nil {
		return nil, errMissingAuthService
	}
	if deps.Social == nil {
		return nil, errMissingSocialService
	}
	if deps.Sessions == nil {
		return nil, errMissingSessionStore
	}
	if deps.View == nil {
		return nil, errMissingViewCtrl
	}
	if deps.Events == nil {
		return nil, errMissingDispatcher
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		catalog:  deps.Catalog,
		auth:     deps.Auth,
		gateway:  deps.Gateway,
		social:   deps.Social,
		sessions: deps.Sessions,
		view:     deps.View,
		hero:     deps.Hero,
		events:   deps.Events,
		logger:   logger,
	}

	router.GET("/api/memorials", handler.handleListMemorials)
	router.GET("/api/memorials/:key/comments", handler.handleListComments)
	router.POST("/api/memorials/:key/comments", handler.handleSubmitComment)
	router.GET("/api/memorials/:key/like", handler.handleLikeState)
	router.POST("/api/memorials/:key/like", handler.handleToggleLike)

	router.POST("/api/auth/register", handler.handleRegister)
	router.POST("/api/auth/login", handler.handleLogin)
	router.POST("/api/auth/logout", handler.handleLogout)
	router.GET("/api/profile", handler.handleProfile)

	router.GET("/api/view", handler.handleViewSnapshot)
	router.GET("/api/view/events", handler.handleViewEvents)
	router.POST("/api/view/open", handler.handleViewOpen)
	router.POST("/api/view/close", handler.handleViewClose)
	router.POST("/api/view/image", handler.handleViewImage)
	router.POST("/api/view/scroll", handler.handleViewScroll)
	router.POST("/api/view/metrics", handler.handleViewMetrics)
	router.POST("/api/view/photo/tap", handler.handleViewTap)
	router.POST("/api/view/fullscreen/exit", handler.handleViewExitFullscreen)

	return router, nil
}

type httpHandler struct {
	catalog  *memorial.Catalog
	auth     *gateway.Auth
	gateway  *gateway.Client
	social   *social.Service
	sessions *session.Store
	view     *gallery.ViewController
	hero     *gallery.HeroRotator
	events   *EventDispatcher
	logger   *zap.Logger
}

func (h *httpHandler) handleListMemorials(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"items":    h.catalog.Items(),
		"timeline": h.catalog.Timeline(),
		"covers":   h.catalog.Covers(),
	})
}

func (h *httpHandler) handleListComments(c *gin.Context) {
	key := c.Param("key")
	if _, ok := h.catalog.ItemByKey(key); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown memorial"})
		return
	}
	_, authenticated := h.sessions.CurrentUser()
	result := h.social.FetchComments(c.Request.Context(), key)
	c.JSON(http.StatusOK, gin.H{
		"comments":    result.Comments,
		"source":      result.Source,
		"can_comment": authenticated,
	})
}

type commentRequestPayload struct {
	Content string `json:"content"`
}

func (h *httpHandler) handleSubmitComment(c *gin.Context) {
	key := c.Param("key")
	if _, ok := h.catalog.ItemByKey(key); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown memorial"})
		return
	}

	var request commentRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	result, err := h.social.SubmitComment(c.Request.Context(), key, request.Content)
	if err != nil {
		switch {
		case errors.Is(err, social.ErrEmptyContent):
			c.JSON(http.StatusBadRequest, gin.H{"error": "comment content is empty"})
		case errors.Is(err, social.ErrLoginRequired):
			h.loginRequired(c)
		default:
			h.logger.Error("comment submit failed", zap.String("memorial_key", key), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "comment_failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": result.Comments, "source": result.Source})
}

func (h *httpHandler) handleLikeState(c *gin.Context) {
	key := c.Param("key")
	if _, ok := h.catalog.ItemByKey(key); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown memorial"})
		return
	}
	state := h.social.LikeState(c.Request.Context(), key)
	c.JSON(http.StatusOK, gin.H{"state": state, "label": state.Label()})
}

func (h *httpHandler) handleToggleLike(c *gin.Context) {
	key := c.Param("key")
	if _, ok := h.catalog.ItemByKey(key); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown memorial"})
		return
	}

	state, err := h.social.ToggleLike(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, social.ErrLoginRequired) {
			h.loginRequired(c)
			return
		}
		h.logger.Error("like toggle failed", zap.String("memorial_key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "like_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state, "label": state.Label()})
}

type registerRequestPayload struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request registerRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	name := strings.TrimSpace(request.Name)
	email := normalizeEmail(request.Email)
	if len(name) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nama minimal 2 karakter."})
		return
	}
	if !strings.HasSuffix(email, "@gmail.com") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Gunakan alamat Gmail valid."})
		return
	}
	if len(request.Password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password minimal 6 karakter."})
		return
	}
	if request.Password != request.PasswordConfirm {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Verifikasi password tidak sama."})
		return
	}

	sessionCreated, err := h.auth.SignUp(c.Request.Context(), name, email, request.Password)
	if err != nil {
		h.authFailure(c, "Daftar gagal", err)
		return
	}
	if !sessionCreated {
		c.JSON(http.StatusOK, gin.H{
			"status":    "Akun dibuat. Cek email untuk verifikasi, lalu login.",
			"logged_in": false,
		})
		return
	}
	if err := h.auth.UpsertProfile(c.Request.Context()); err != nil {
		h.authFailure(c, "Daftar gagal", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "Akun berhasil dibuat dan kamu sudah login.",
		"logged_in": true,
		"redirect":  profilePagePath,
	})
}

type loginRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	sess, err := h.auth.SignIn(c.Request.Context(), normalizeEmail(request.Email), request.Password)
	if err != nil {
		h.authFailure(c, "Login gagal", err)
		return
	}
	if err := h.auth.UpsertProfile(c.Request.Context()); err != nil {
		h.authFailure(c, "Login gagal", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "Login berhasil.",
		"redirect": profilePagePath,
		"user": gin.H{
			"id":    sess.User.ID,
			"email": sess.User.Email,
			"name":  sess.User.DisplayName(),
		},
	})
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	if err := h.auth.SignOut(c.Request.Context()); err != nil {
		h.logger.Error("logout failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Status: kamu sudah logout."})
}

// handleProfile returns the current identity plus activity counts. A failed
// count query degrades to a response without stats, mirroring the page's
// dash placeholders.
func (h *httpHandler) handleProfile(c *gin.Context) {
	user, ok := h.sessions.CurrentUser()
	if !ok || h.gateway == nil || !h.gateway.Enabled() {
		h.loginRequired(c)
		return
	}

	response := gin.H{"name": user.Name, "email": user.Email}
	token := h.sessions.AccessToken()
	stats := gin.H{}
	counts := []struct {
		field  string
		table  string
		column string
	}{
		{field: "comments", table: "memorial_comments", column: "user_id"},
		{field: "likes", table: "memorial_likes", column: "user_id"},
		{field: "messages", table: "secret_messages", column: "sender_user_id"},
	}
	for _, count := range counts {
		total, err := h.gateway.CountRows(c.Request.Context(), count.table, count.column, user.ID, token)
		if err != nil {
			h.logger.Warn("profile stat query failed",
				zap.String("table", count.table), zap.Error(err))
			c.JSON(http.StatusOK, response)
			return
		}
		stats[count.field] = total
	}
	response["stats"] = stats
	c.JSON(http.StatusOK, response)
}

type viewOpenPayload struct {
	Key         string `json:"key"`
	PageScrollY int    `json:"page_scroll_y"`
}

// handleViewOpen opens the story and refreshes the social state for the new
// key in one round trip, the way opening the modal fetches comments and the
// like button state together.
func (h *httpHandler) handleViewOpen(c *gin.Context) {
	var request viewOpenPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	item, ok := h.catalog.ItemByKey(request.Key)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown memorial"})
		return
	}
	h.view.OpenStory(item, request.PageScrollY)

	key := item.Key()
	comments := h.social.FetchComments(c.Request.Context(), key)
	state := h.social.LikeState(c.Request.Context(), key)
	c.JSON(http.StatusOK, gin.H{
		"view":            h.view.Snapshot(),
		"comments":        comments.Comments,
		"comments_source": comments.Source,
		"like":            gin.H{"state": state, "label": state.Label()},
	})
}

type viewClosePayload struct {
	CurrentScrollY int `json:"current_scroll_y"`
}

func (h *httpHandler) handleViewClose(c *gin.Context) {
	var request viewClosePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	target, restore := h.view.ScrollRestoreTarget(request.CurrentScrollY)
	h.view.CloseStory()
	c.JSON(http.StatusOK, gin.H{
		"view":      h.view.Snapshot(),
		"scroll_to": target,
		"restore":   restore,
	})
}

type viewImagePayload struct {
	Index int `json:"index"`
}

func (h *httpHandler) handleViewImage(c *gin.Context) {
	var request viewImagePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	h.view.SelectImage(request.Index)
	c.JSON(http.StatusOK, gin.H{"view": h.view.Snapshot()})
}

type viewScrollPayload struct {
	ScrollTop int `json:"scroll_top"`
}

func (h *httpHandler) handleViewScroll(c *gin.Context) {
	var request viewScrollPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	h.view.HandleStoryScroll(request.ScrollTop)
	c.JSON(http.StatusOK, gin.H{"view": h.view.Snapshot()})
}

type viewMetricsPayload struct {
	TextLength      int `json:"text_length"`
	RenderedHeight  int `json:"rendered_height"`
	ContainerHeight int `json:"container_height"`
}

func (h *httpHandler) handleViewMetrics(c *gin.Context) {
	var request viewMetricsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	h.view.ReportStoryMetrics(request.TextLength, request.RenderedHeight, request.ContainerHeight)
	c.JSON(http.StatusOK, gin.H{"view": h.view.Snapshot()})
}

func (h *httpHandler) handleViewTap(c *gin.Context) {
	h.view.TapPhoto()
	c.JSON(http.StatusOK, gin.H{"view": h.view.Snapshot()})
}

func (h *httpHandler) handleViewExitFullscreen(c *gin.Context) {
	h.view.ExitFullscreen()
	c.JSON(http.StatusOK, gin.H{"view": h.view.Snapshot()})
}

func (h *httpHandler) handleViewSnapshot(c *gin.Context) {
	response := gin.H{
		"view":       h.view.Snapshot(),
		"login_link": h.loginLink(),
	}
	if h.hero != nil {
		response["hero_cover"] = h.hero.Current()
	}
	// session freshness, when the access token carries a readable expiry
	if sess, ok := h.sessions.Read(); ok {
		if expiresAt, hasExpiry := sess.TokenExpiry(); hasExpiry {
			response["session"] = gin.H{
				"expires_at": expiresAt.UTC(),
				"expired":    expiresAt.Before(time.Now()),
			}
		}
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleViewEvents(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	stream, cancel := h.events.Subscribe(c.Request.Context())
	defer cancel()

	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	for {
		select {
		case event, open := <-stream:
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("event encode failed", zap.Error(err))
				continue
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event.Type, payload)
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

// loginLink derives the nav link from the session: logged-in users are sent
// to the profile page, everyone else to the login page.
func (h *httpHandler) loginLink() gin.H {
	if _, ok := h.sessions.CurrentUser(); ok {
		return gin.H{"label": "Profile", "href": profilePagePath}
	}
	return gin.H{"label": "Login", "href": loginPagePath}
}

func (h *httpHandler) loginRequired(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "login_required", "login_href": loginPagePath})
}

// authFailure maps auth flow errors onto responses: a missing cloud
// configuration is a 503, backend rejections keep their client status, and
// anything else is a bad gateway. The message format matches the page's
// status line.
func (h *httpHandler) authFailure(c *gin.Context, prefix string, err error) {
	if errors.Is(err, gateway.ErrNotConfigured) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cloud backend not configured"})
		return
	}

	status := http.StatusBadGateway
	message := err.Error()
	var requestErr *gateway.RequestError
	if errors.As(err, &requestErr) {
		message = requestErr.Message
		if requestErr.Status >= 400 && requestErr.Status < 500 {
			status = requestErr.Status
		}
	}
	h.logger.Warn("auth flow failed", zap.String("flow", prefix), zap.Error(err))
	c.JSON(status, gin.H{"error": fmt.Sprintf("%s: %s", prefix, message)})
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
