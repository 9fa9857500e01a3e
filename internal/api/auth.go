package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ronittamrakar/xordon/internal/apperr"
	"github.com/ronittamrakar/xordon/internal/auth"
	"github.com/ronittamrakar/xordon/internal/middleware"
	"github.com/ronittamrakar/xordon/internal/models"
	"github.com/ronittamrakar/xordon/internal/repository"
	"github.com/ronittamrakar/xordon/internal/tasks"
	"github.com/ronittamrakar/xordon/internal/tenant"
)

// TaskTypeWelcome is enqueued once per signup; the worker owns delivery.
const TaskTypeWelcome = "user.welcome"

// AuthHandler serves the credential lifecycle. Signup and login are the
// only public endpoints; logout variants run behind the auth middleware
// because they act on a presented credential.
type AuthHandler struct {
	users         repository.UserStore
	authenticator *auth.Authenticator
	resolver      *tenant.Resolver
	queue         *tasks.Queue
	log           *zap.Logger
}

func NewAuthHandler(
	users repository.UserStore,
	authenticator *auth.Authenticator,
	resolver *tenant.Resolver,
	queue *tasks.Queue,
	log *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:         users,
		authenticator: authenticator,
		resolver:      resolver,
		queue:         queue,
		log:           log,
	}
}

type signupRequest struct {
	Email         string `json:"email" binding:"required,email"`
	Password      string `json:"password" binding:"required,min=8"`
	Name          string `json:"name" binding:"required"`
	WorkspaceName string `json:"workspace_name"`
	WorkspaceSlug string `json:"workspace_slug"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Remember bool   `json:"remember"`
}

type authResponse struct {
	Token     string             `json:"token"`
	User      *models.User       `json:"user"`
	Workspace *models.Membership `json:"workspace,omitempty"`
}

// Signup handles POST /v1/auth/signup: create the user, provision their
// workspace, and issue a session token in one request.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	ctx := c.Request.Context()

	existing, err := h.users.GetByEmail(ctx, req.Email)
	if err != nil {
		respondError(c, h.log, fmt.Errorf("check existing user: %w", err))
		return
	}
	if existing != nil {
		respondError(c, h.log, fmt.Errorf("%w: email already registered", apperr.ErrConflict))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, h.log, fmt.Errorf("hash password: %w", err))
		return
	}

	user, err := h.users.Create(ctx, req.Email, req.Name, string(hash))
	if err != nil {
		respondError(c, h.log, fmt.Errorf("create user: %w", err))
		return
	}

	membership, err := h.resolver.EnsureWorkspace(ctx, user.ID, req.WorkspaceName, req.WorkspaceSlug)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	token, err := h.authenticator.Issue(ctx, user.ID, false)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	// Best effort: a broken queue must not fail the signup itself.
	payload, _ := json.Marshal(map[string]any{
		"user_id":      user.ID,
		"workspace_id": membership.WorkspaceID,
	})
	if _, err := h.queue.Enqueue(ctx, TaskTypeWelcome, payload, 0); err != nil {
		h.log.Warn("failed to enqueue welcome task",
			zap.Int64("user_id", user.ID),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusCreated, authResponse{
		Token:     token,
		User:      user,
		Workspace: membership,
	})
}

// Login handles POST /v1/auth/login. The error text never distinguishes
// an unknown email from a wrong password.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	ctx := c.Request.Context()

	user, err := h.users.GetByEmail(ctx, req.Email)
	if err != nil {
		respondError(c, h.log, fmt.Errorf("find user: %w", err))
		return
	}
	if user == nil {
		respondError(c, h.log, fmt.Errorf("%w: invalid email or password", apperr.ErrUnauthorized))
		return
	}
	if user.Status != models.UserStatusActive {
		respondError(c, h.log, fmt.Errorf("%w: account is not active", apperr.ErrForbidden))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		respondError(c, h.log, fmt.Errorf("%w: invalid email or password", apperr.ErrUnauthorized))
		return
	}

	token, err := h.authenticator.Issue(ctx, user.ID, req.Remember)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, authResponse{Token: token, User: user})
}

// Logout handles POST /v1/auth/logout: revoke the presented token.
// Revoking an already-gone token still succeeds; logout is idempotent
// from the client's point of view.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := middleware.GetToken(c)
	if _, err := h.authenticator.Revoke(c.Request.Context(), token); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

// LogoutAll handles POST /v1/auth/logout-all: revoke every session the
// user has, on every device.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	revoked, err := h.authenticator.RevokeAll(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out", "sessions_revoked": revoked})
}
