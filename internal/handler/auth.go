package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/credit-repair-auth/internal/apperr"
	"github.com/iliyamo/credit-repair-auth/internal/audit"
	"github.com/iliyamo/credit-repair-auth/internal/middleware"
	"github.com/iliyamo/credit-repair-auth/internal/model"
	"github.com/iliyamo/credit-repair-auth/internal/service"
	"github.com/iliyamo/credit-repair-auth/internal/token"
)

// Purger runs one storage clean-up pass.
type Purger interface {
	Purge(ctx context.Context) (service.PurgeResult, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth    *service.AuthService
	Janitor Purger
	Log     *zap.Logger
	Audit   audit.Recorder
}

func NewAuthHandler(auth *service.AuthService, janitor Purger, log *zap.Logger, rec audit.Recorder) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = audit.Nop{}
	}
	return &AuthHandler{Auth: auth, Janitor: janitor, Log: log, Audit: rec}
}

// ----- DTOs -----

type registerReq struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"` // optional; defaults to "user"
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}
type forgotReq struct {
	Email string `json:"email"`
}
type resetReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}
type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type userPart struct {
	ID        uint64     `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Role      model.Role `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
}
type profilePart struct {
	userPart
	LastLogin *time.Time `json:"lastLogin"`
	IsActive  bool       `json:"isActive"`
}
type authResp struct {
	Message      string             `json:"message"`
	User         userPart           `json:"user"`
	Token        token.AccessToken  `json:"token"`
	RefreshToken token.RefreshToken `json:"refreshToken"`
	ExpiresAt    time.Time          `json:"expiresAt"`
}

func toUserPart(u model.User) userPart {
	return userPart{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName, Role: u.Role, CreatedAt: u.CreatedAt}
}

func toAuthResp(msg string, s service.Session) authResp {
	return authResp{
		Message:      msg,
		User:         toUserPart(s.User),
		Token:        s.Tokens.Access,
		RefreshToken: s.Tokens.Refresh,
		ExpiresAt:    s.Tokens.AccessExpires,
	}
}

func meta(c echo.Context) service.RequestMeta {
	return service.RequestMeta{IP: c.RealIP(), UserAgent: c.Request().UserAgent()}
}

var errBadBody = func() *apperr.Error {
	e := apperr.New(apperr.ValidationFailed, "One or more fields are invalid")
	e.Details = []apperr.FieldError{{Field: "body", Message: "Request body must be a JSON object"}}
	return e
}()

// Register: create user and return tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return middleware.RespondError(c, errBadBody)
	}
	s, err := h.Auth.Register(c.Request().Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      model.Role(strings.ToLower(strings.TrimSpace(req.Role))),
	}, meta(c))
	if err != nil {
		return middleware.RespondError(c, err)
	}
	return c.JSON(http.StatusCreated, toAuthResp("User registered successfully", s))
}

// Login: verify credentials and return a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return middleware.RespondError(c, errBadBody)
	}
	s, err := h.Auth.Login(c.Request().Context(), service.LoginInput{Email: req.Email, Password: req.Password}, meta(c))
	if err != nil {
		return middleware.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, toAuthResp("Login successful", s))
}

// Refresh: rotate the refresh token and return a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return middleware.RespondError(c, errBadBody)
	}
	s, err := h.Auth.Refresh(c.Request().Context(), token.RefreshToken(req.RefreshToken), meta(c))
	if err != nil {
		return middleware.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, toAuthResp("Token refreshed successfully", s))
}

// Logout: blacklist the presented access token and drop every refresh
// token of the user (protected).
func (h *AuthHandler) Logout(c echo.Context) error {
	ac, ok := middleware.AuthFrom(c)
	raw, hasRaw := middleware.AccessTokenFrom(c)
	claims, hasClaims := middleware.ClaimsFrom(c)
	if !ok || !hasRaw || !hasClaims || claims.ExpiresAt == nil {
		return middleware.RespondError(c, apperr.New(apperr.MissingToken, "Please provide a valid authentication token"))
	}
	if err := h.Auth.Logout(c.Request().Context(), ac, raw, claims.ExpiresAt.Time, meta(c)); err != nil {
		return middleware.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Logout successful"})
}

// Me: the live profile of the caller (protected).
func (h *AuthHandler) Me(c echo.Context) error {
	ac, ok := middleware.AuthFrom(c)
	if !ok {
		return middleware.RespondError(c, apperr.New(apperr.MissingToken, "Please provide a valid authentication token"))
	}
	u, err := h.Auth.Me(c.Request().Context(), ac)
	if err != nil {
		return middleware.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user": profilePart{userPart: toUserPart(u), LastLogin: u.LastLogin, IsActive: u.IsActive},
	})
}

// Status reports whether the request carries a valid session. Routed
// behind optional authentication, so it never answers 401.
func (h *AuthHandler) Status(c echo.Context) error {
	ac, ok := middleware.AuthFrom(c)
	if !ok {
		return c.JSON(http.StatusOK, echo.Map{"authenticated": false})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"authenticated": true,
		"user": echo.Map{
			"id":        ac.UserID,
			"email":     ac.Email,
			"firstName": ac.FirstName,
			"lastName":  ac.LastName,
			"role":      ac.Role,
		},
	})
}

// ForgotPassword answers the same way for known and unknown addresses.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := c.Bind(&req); err != nil {
		return middleware.RespondError(c, errBadBody)
	}
	msg, err := h.Auth.ForgotPassword(c.Request().Context(), req.Email, meta(c))
	if err != nil {
		return middleware.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msg})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil {
		return middleware.RespondError(c, errBadBody)
	}
	if err := h.Auth.ResetPassword(c.Request().Context(), req.Token, req.Password, meta(c)); err != nil {
		return middleware.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password reset successful. Please log in with your new password."})
}

// ChangePassword (protected) ends every refresh session; the access token
// in use stays valid until it expires or the caller logs out.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	ac, ok := middleware.AuthFrom(c)
	if !ok {
		return middleware.RespondError(c, apperr.New(apperr.MissingToken, "Please provide a valid authentication token"))
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return middleware.RespondError(c, errBadBody)
	}
	if err := h.Auth.ChangePassword(c.Request().Context(), ac, req.CurrentPassword, req.NewPassword, meta(c)); err != nil {
		return middleware.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password changed successfully. Please log in again on your other devices."})
}

// Purge deletes expired blacklist entries and refresh tokens (admin only).
func (h *AuthHandler) Purge(c echo.Context) error {
	res, err := h.Janitor.Purge(c.Request().Context())
	if err != nil {
		h.Log.Error("manual purge failed", zap.Error(err))
		return middleware.RespondError(c, apperr.Store(err, "purge expired"))
	}
	ev := audit.Event{
		Name: audit.EventStoragePurged, IP: c.RealIP(), Success: true,
		Metadata: map[string]string{"trigger": "manual"},
	}
	if ac, ok := middleware.AuthFrom(c); ok {
		ev.UserID, ev.Email = ac.UserID, ac.Email
	}
	h.Audit.Record(c.Request().Context(), ev)
	return c.JSON(http.StatusOK, echo.Map{"message": "Expired tokens purged", "purged": res})
}
