package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/apperr"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/config"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/middleware"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/model"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/repository"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/session"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Sessions *session.Manager
	Users    session.UserStore
	Log      *slog.Logger
}

func NewAuthHandler(cfg config.Config, sessions *session.Manager, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{Cfg: cfg, Sessions: sessions, Users: sessions.Users(), Log: log}
}

// ----- DTOs -----

var (
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	userNameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)
)

const minPasswordBytes = 8

func checkNewPassword(field, pw string) error {
	if pw == "" {
		return apperr.Validation(field + " is required")
	}
	if len(pw) < minPasswordBytes || len(pw) > utils.MaxPasswordBytes {
		return apperr.Validation(field + " must be between 8 and 72 bytes")
	}
	return nil
}

type signupReq struct {
	UserName string `json:"userName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *signupReq) Validate() error {
	r.UserName = strings.TrimSpace(r.UserName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.UserName == "" || r.Email == "" || r.Password == "" {
		return apperr.Validation("userName, email and password are required")
	}
	if !userNameRe.MatchString(r.UserName) {
		return apperr.Validation("userName must be 3-32 letters, digits, '_', '.' or '-'")
	}
	if !emailRe.MatchString(r.Email) {
		return apperr.Validation("Invalid email format")
	}
	return checkNewPassword("password", r.Password)
}

type loginReq struct {
	EmailOrUserName string `json:"emailOrUserName"`
	Password        string `json:"password"`
}

func (r *loginReq) Validate() error {
	r.EmailOrUserName = strings.TrimSpace(r.EmailOrUserName)
	if r.EmailOrUserName == "" || r.Password == "" {
		return apperr.Validation("emailOrUserName and password are required")
	}
	return nil
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (r *changePasswordReq) Validate() error {
	if r.CurrentPassword == "" {
		return apperr.Validation("currentPassword is required")
	}
	if err := checkNewPassword("newPassword", r.NewPassword); err != nil {
		return err
	}
	if r.NewPassword == r.CurrentPassword {
		return apperr.Validation("newPassword must differ from currentPassword")
	}
	return nil
}

type userPart struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
	Email    string `json:"email"`
}

type userResp struct {
	User userPart `json:"user"`
}

type messageResp struct {
	Message string `json:"message"`
}

func userOf(u model.User) userResp {
	return userResp{User: userPart{ID: u.ID.Hex(), UserName: u.UserName, Email: u.Email}}
}

func principalResp(p session.Principal) userResp {
	return userResp{User: userPart{ID: p.UserID, UserName: p.UserName, Email: p.Email}}
}

func (h *AuthHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

func setCookies(c echo.Context, cookies []*http.Cookie) {
	for _, ck := range cookies {
		c.SetCookie(ck)
	}
}

func cookieValue(c echo.Context, name string) string {
	if ck, err := c.Cookie(name); err == nil {
		return ck.Value
	}
	return ""
}

// Signup: create the account, sign the caller in.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	taken, err := h.Users.ExistsByEmailOrUserName(ctx, req.Email, req.UserName)
	if err != nil {
		return apperr.Internal("check user uniqueness", err)
	}
	if taken {
		return apperr.Conflict("User with this email or username already exists")
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return apperr.Internal("hash password", err)
	}
	u := model.User{UserName: req.UserName, Email: req.Email, PasswordHash: hash}
	if err := h.Users.Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return apperr.Conflict("User with this email or username already exists")
		}
		return apperr.Internal("create user", err)
	}

	tokens, err := h.Sessions.Issue(ctx, u)
	if err != nil {
		return err
	}
	setCookies(c, h.Sessions.Cookies(tokens))
	h.Sessions.Publish(ctx, session.Event{Type: session.EventSignedUp, UserID: u.ID.Hex(), UserName: u.UserName})
	return c.JSON(http.StatusCreated, userOf(u))
}

// Login: verify credentials, issue a new pair. Unknown account and wrong
// password produce the same response.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	u, err := h.Users.FindByCredential(ctx, req.EmailOrUserName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.BurnPasswordCheck(req.Password, h.Cfg.BcryptCost)
			return apperr.InvalidCredentials()
		}
		return apperr.Internal("find user", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return apperr.InvalidCredentials()
	}

	tokens, err := h.Sessions.Issue(ctx, u)
	if err != nil {
		return err
	}
	setCookies(c, h.Sessions.Cookies(tokens))
	h.Sessions.Publish(ctx, session.Event{Type: session.EventLoggedIn, UserID: u.ID.Hex(), UserName: u.UserName})
	return c.JSON(http.StatusOK, userOf(u))
}

// Logout: best-effort server cleanup, unconditional cookie clearing.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	if raw := cookieValue(c, session.RefreshCookie); raw != "" {
		uid, err := h.Sessions.Revoke(ctx, raw)
		if err != nil {
			h.Log.WarnContext(ctx, "logout: refresh token cleanup failed", "user_id", uid, "err", err)
		}
		if uid != "" {
			h.Sessions.Publish(ctx, session.Event{Type: session.EventLoggedOut, UserID: uid})
		}
	}

	setCookies(c, h.Sessions.ClearedCookies())
	return c.JSON(http.StatusOK, messageResp{Message: "Logged out successfully"})
}

// Check: read-only session probe.
func (h *AuthHandler) Check(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	p, err := h.Sessions.Check(ctx, cookieValue(c, session.AccessCookie), cookieValue(c, session.RefreshCookie))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, principalResp(p))
}

// Refresh: rotate the refresh token cookie and reissue the access token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	u, tokens, err := h.Sessions.Refresh(ctx, cookieValue(c, session.RefreshCookie))
	if err != nil {
		return err
	}
	setCookies(c, h.Sessions.Cookies(tokens))
	return c.JSON(http.StatusOK, userOf(u))
}

// ChangePassword: protected. Replaces the hash and revokes every refresh
// token of the user, so every device has to sign in again.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return apperr.Unauthorized("Not authenticated")
	}
	var req changePasswordReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	u, err := h.Users.FindByID(ctx, p.UserID)
	switch {
	case errors.Is(err, repository.ErrInvalidID):
		return apperr.Validation("Invalid user id")
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("User not found")
	case err != nil:
		return apperr.Internal("find user", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.CurrentPassword) {
		return apperr.InvalidCredentials()
	}

	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return apperr.Internal("hash password", err)
	}
	if err := h.Users.UpdatePassword(ctx, p.UserID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("User not found")
		}
		return apperr.Internal("update password", err)
	}
	if err := h.Sessions.RevokeAll(ctx, p.UserID); err != nil {
		return apperr.Internal("revoke refresh tokens", err)
	}

	setCookies(c, h.Sessions.ClearedCookies())
	h.Sessions.Publish(ctx, session.Event{Type: session.EventPasswordChange, UserID: p.UserID, UserName: u.UserName})
	return c.JSON(http.StatusOK, messageResp{Message: "Password updated, please log in again"})
}

// Me: simple protected endpoint.
func (h *AuthHandler) Me(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return apperr.Unauthorized("Not authenticated")
	}
	return c.JSON(http.StatusOK, principalResp(p))
}
