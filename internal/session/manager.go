// Package session owns the authentication token lifecycle: issuing token
// pairs, deciding per request whether a caller is admitted, denied or
// silently refreshed, and revoking refresh tokens on logout or password
// change.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/apperr"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/model"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/repository"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/utils"
)

// reuseGrace separates a benign race (two parallel requests refreshing the
// same token) from replay of a token that was rotated a while ago.
const reuseGrace = 30 * time.Second

// errDenied is the single user-facing failure for any rejected session.
// Callers never learn which check failed.
func errDenied() *apperr.Error { return apperr.Unauthorized("Not authenticated") }

// Principal is the caller identity of an admitted request.
type Principal struct {
	UserID   string
	Email    string
	UserName string
}

func principalOf(u model.User) Principal {
	return Principal{UserID: u.ID.Hex(), Email: u.Email, UserName: u.UserName}
}

// Tokens is a freshly minted credential set. Refresh is nil when only the
// access token was reissued.
type Tokens struct {
	Access  utils.AccessToken
	Refresh *utils.RefreshToken
}

// Options configures a Manager.
type Options struct {
	// RotateOnRefresh makes the middleware refresh path rotate the refresh
	// token as well. The explicit Refresh operation always rotates.
	RotateOnRefresh bool
	// Secure sets the Secure attribute on cookies.
	Secure bool
	Logger *slog.Logger
	Events EventSink
	// Now defaults to time.Now.
	Now func() time.Time
}

// Manager ties the token codec to the credential store. It holds no
// per-request state and is safe for concurrent use.
type Manager struct {
	codec  *utils.TokenCodec
	users  UserStore
	tokens TokenStore
	rotate bool
	secure bool
	log    *slog.Logger
	events EventSink
	now    func() time.Time
}

func NewManager(codec *utils.TokenCodec, users UserStore, tokens TokenStore, opts Options) *Manager {
	m := &Manager{
		codec:  codec,
		users:  users,
		tokens: tokens,
		rotate: opts.RotateOnRefresh,
		secure: opts.Secure,
		log:    opts.Logger,
		events: opts.Events,
		now:    opts.Now,
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.events == nil {
		m.events = nopSink{}
	}
	return m
}

// Users exposes the account store to handlers.
func (m *Manager) Users() UserStore { return m.users }

// Issue mints an access/refresh pair for u and persists the refresh record.
func (m *Manager) Issue(ctx context.Context, u model.User) (Tokens, error) {
	return m.mint(ctx, u, nil)
}

func (m *Manager) mint(ctx context.Context, u model.User, previous *model.RefreshToken) (Tokens, error) {
	uid := u.ID.Hex()
	access, err := m.codec.IssueAccessToken(uid, u.Email, u.UserName)
	if err != nil {
		return Tokens{}, apperr.Internal("issue access token", err)
	}
	refresh, err := m.codec.IssueRefreshToken(uid)
	if err != nil {
		return Tokens{}, apperr.Internal("issue refresh token", err)
	}
	rec := model.RefreshToken{
		UserID:    u.ID,
		TokenHash: refresh.Hash,
		IsValid:   true,
		ExpiresAt: refresh.Exp,
	}
	if err := m.tokens.Insert(ctx, &rec); err != nil {
		return Tokens{}, apperr.Internal("store refresh token", err)
	}
	if previous != nil {
		if err := m.tokens.SetReplacedBy(ctx, previous.ID.Hex(), rec.ID.Hex()); err != nil {
			m.log.WarnContext(ctx, "link rotated refresh token", "user_id", uid, "err", err)
		}
	}
	return Tokens{Access: access, Refresh: &refresh}, nil
}

// reissueAccess mints only a new access token.
func (m *Manager) reissueAccess(u model.User) (Tokens, error) {
	access, err := m.codec.IssueAccessToken(u.ID.Hex(), u.Email, u.UserName)
	if err != nil {
		return Tokens{}, apperr.Internal("issue access token", err)
	}
	return Tokens{Access: access}, nil
}

// redeem verifies a refresh token and checks it against the store. With
// consume set the record is invalidated in the same atomic operation that
// finds it. Rejections are errDenied; store failures are internal.
func (m *Manager) redeem(ctx context.Context, raw string, consume bool) (model.User, model.RefreshToken, error) {
	claims, err := m.codec.Verify(raw, utils.KindRefresh)
	if err != nil {
		return model.User{}, model.RefreshToken{}, errDenied()
	}
	hash := utils.HashRefreshRaw(raw)

	var rec model.RefreshToken
	if consume {
		rec, err = m.tokens.ConsumeValid(ctx, hash, claims.UserID)
	} else {
		rec, err = m.tokens.FindValid(ctx, hash, claims.UserID)
	}
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrInvalidID):
		m.detectReuse(ctx, hash, claims.UserID)
		return model.User{}, model.RefreshToken{}, errDenied()
	case err != nil:
		return model.User{}, model.RefreshToken{}, apperr.Internal("lookup refresh token", err)
	}

	u, err := m.users.FindByID(ctx, claims.UserID)
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrInvalidID):
		return model.User{}, model.RefreshToken{}, errDenied()
	case err != nil:
		return model.User{}, model.RefreshToken{}, apperr.Internal("load user", err)
	}
	return u, rec, nil
}

// detectReuse reacts to a well-signed refresh token whose record was
// rotated away earlier: every session of the owner is revoked.
func (m *Manager) detectReuse(ctx context.Context, hash, userID string) {
	rec, err := m.tokens.FindByHash(ctx, hash)
	if err != nil || rec.ReplacedBy == nil || rec.RevokedAt == nil {
		return
	}
	if m.now().Sub(*rec.RevokedAt) < reuseGrace {
		return
	}
	m.log.WarnContext(ctx, "rotated refresh token presented again", "user_id", userID)
	if err := m.tokens.InvalidateAllForUser(ctx, userID); err != nil {
		m.log.ErrorContext(ctx, "revoke sessions after reuse", "user_id", userID, "err", err)
	}
	m.events.Publish(ctx, Event{Type: EventReuseDetected, UserID: userID})
}

// Refresh redeems raw, rotates it and returns the owner with the new pair.
func (m *Manager) Refresh(ctx context.Context, raw string) (model.User, Tokens, error) {
	if raw == "" {
		return model.User{}, Tokens{}, errDenied()
	}
	u, rec, err := m.redeem(ctx, raw, true)
	if err != nil {
		return model.User{}, Tokens{}, err
	}
	t, err := m.mint(ctx, u, &rec)
	if err != nil {
		return model.User{}, Tokens{}, err
	}
	return u, t, nil
}

// Check resolves the caller without writing anything: the access token
// first, then the refresh token validated against the store.
func (m *Manager) Check(ctx context.Context, accessRaw, refreshRaw string) (Principal, error) {
	if accessRaw != "" {
		if c, err := m.codec.Verify(accessRaw, utils.KindAccess); err == nil {
			return Principal{UserID: c.UserID, Email: c.Email, UserName: c.UserName}, nil
		}
	}
	if refreshRaw == "" {
		return Principal{}, errDenied()
	}
	u, _, err := m.redeem(ctx, refreshRaw, false)
	if err != nil {
		return Principal{}, err
	}
	return principalOf(u), nil
}

// Revoke removes the refresh records behind raw: all of its owner's when
// the token still decodes, otherwise the single record with its digest.
// It returns the owner id when known.
func (m *Manager) Revoke(ctx context.Context, raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	if c, err := m.codec.Verify(raw, utils.KindRefresh); err == nil {
		if err := m.tokens.DeleteAllForUser(ctx, c.UserID); err != nil {
			return c.UserID, err
		}
		return c.UserID, nil
	}
	return "", m.tokens.DeleteByHash(ctx, utils.HashRefreshRaw(raw))
}

// RevokeAll invalidates every outstanding refresh token of userID.
func (m *Manager) RevokeAll(ctx context.Context, userID string) error {
	return m.tokens.InvalidateAllForUser(ctx, userID)
}

// Publish forwards ev to the configured sink.
func (m *Manager) Publish(ctx context.Context, ev Event) { m.events.Publish(ctx, ev) }
