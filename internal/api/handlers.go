package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cyberchat/internal/auth"
	"cyberchat/internal/models"
	"cyberchat/internal/service/account"
	"cyberchat/internal/service/chat"
	"cyberchat/internal/store"
)

// Handler wires HTTP routes to the account and chat services.
type Handler struct {
	accounts *account.Service
	relay    *chat.Relay
	auth     *auth.Service
	limiter  *RateLimiter
}

// NewHandler constructs a Handler instance.
func NewHandler(accounts *account.Service, relay *chat.Relay, authService *auth.Service, limiter *RateLimiter) *Handler {
	return &Handler{
		accounts: accounts,
		relay:    relay,
		auth:     authService,
		limiter:  limiter,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	if h.limiter != nil {
		api.Use(h.limiter.Middleware())
	}
	api.POST("/register", h.register)
	api.POST("/verify", h.verify)
	api.POST("/login", h.login)

	authed := api.Group("")
	authed.Use(h.auth.Middleware(), h.auth.CSRFMiddleware())
	authed.POST("/logout", h.logout)
	authed.GET("/user", h.currentUser)
	authed.GET("/conversations", h.listConversations)
	authed.POST("/chat", h.sendChat)
}

func (h *Handler) authorizedAccountID(c *gin.Context) (int64, bool) {
	accountID, ok := auth.AccountIDFromContext(c)
	if !ok || accountID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return 0, false
	}
	return accountID, true
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	_, err := h.accounts.Register(c.Request.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrEmailTaken):
			c.JSON(http.StatusBadRequest, gin.H{"error": "email already registered"})
		case errors.Is(err, account.ErrEmailDelivery):
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful. Please check your email for verification code.",
	})
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (h *Handler) verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	acc, err := h.accounts.Verify(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// A successful verification logs the account in directly.
	if err := h.establishSession(c, acc.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email verified successfully"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	acc, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) || errors.Is(err, account.ErrEmailNotVerified) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	authToken, err := h.auth.IssueToken(c.Request.Context(), acc.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	csrfToken, err := h.auth.NewCSRFToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	h.setAuthCookies(c, authToken, csrfToken)
	c.JSON(http.StatusOK, gin.H{
		"id":         acc.ID,
		"email":      acc.Email,
		"username":   acc.Username,
		"created_at": acc.CreatedAt,
		"auth_token": authToken,
	})
}

func (h *Handler) logout(c *gin.Context) {
	if _, ok := h.authorizedAccountID(c); !ok {
		return
	}
	if authToken, ok := auth.AuthTokenFromContext(c); ok {
		_ = h.auth.RevokeToken(c.Request.Context(), authToken)
	}
	h.clearAuthCookies(c)
	c.Status(http.StatusOK)
}

func (h *Handler) currentUser(c *gin.Context) {
	accountID, ok := h.authorizedAccountID(c)
	if !ok {
		return
	}
	acc, err := h.accounts.AccountByID(c.Request.Context(), accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "account not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         acc.ID,
		"email":      acc.Email,
		"username":   acc.Username,
		"verified":   acc.Verified,
		"created_at": acc.CreatedAt,
	})
}

func (h *Handler) listConversations(c *gin.Context) {
	accountID, ok := h.authorizedAccountID(c)
	if !ok {
		return
	}
	turns, err := h.relay.History(c.Request.Context(), accountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if turns == nil {
		turns = make([]models.ConversationTurn, 0)
	}
	c.JSON(http.StatusOK, turns)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *Handler) sendChat(c *gin.Context) {
	accountID, ok := h.authorizedAccountID(c)
	if !ok {
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	turn, err := h.relay.Respond(c.Request.Context(), accountID, req.Message)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp := gin.H{
		"content":                turn.Response,
		"isCyberSecurityRelated": turn.IsCyberSecurityRelated,
	}
	if len(turn.SuggestedTopics) > 0 {
		resp["suggestedTopics"] = turn.SuggestedTopics
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) establishSession(c *gin.Context, accountID int64) error {
	authToken, err := h.auth.IssueToken(c.Request.Context(), accountID)
	if err != nil {
		return err
	}
	csrfToken, err := h.auth.NewCSRFToken()
	if err != nil {
		return err
	}
	h.setAuthCookies(c, authToken, csrfToken)
	return nil
}

func (h *Handler) setAuthCookies(c *gin.Context, authToken, csrfToken string) {
	ttl := int(h.auth.TokenTTL().Seconds())
	if ttl <= 0 {
		ttl = 3600
	}
	secure := gin.Mode() == gin.ReleaseMode
	setCookie(c, &http.Cookie{
		Name:     h.auth.AuthCookieName(),
		Value:    authToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	setCookie(c, &http.Cookie{
		Name:     h.auth.CSRFCookieName(),
		Value:    csrfToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	for _, name := range []string{h.auth.AuthCookieName(), h.auth.CSRFCookieName()} {
		setCookie(c, &http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			Path:     "/",
			Secure:   gin.Mode() == gin.ReleaseMode,
			HttpOnly: name == h.auth.AuthCookieName(),
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func setCookie(c *gin.Context, ck *http.Cookie) {
	if ck == nil {
		return
	}
	http.SetCookie(c.Writer, ck)
}
