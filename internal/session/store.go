package session

import (
	"context"

	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/model"
)

// UserStore is the part of the credential store that holds accounts.
// Implementations report misses with repository.ErrNotFound, malformed ids
// with repository.ErrInvalidID and unique-index violations with
// repository.ErrConflict.
type UserStore interface {
	FindByCredential(ctx context.Context, emailOrUserName string) (model.User, error)
	FindByID(ctx context.Context, id string) (model.User, error)
	ExistsByEmailOrUserName(ctx context.Context, email, userName string) (bool, error)
	Create(ctx context.Context, u *model.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// TokenStore is the part of the credential store that holds refresh token
// records. It is the sole authority on whether a refresh token is honored.
type TokenStore interface {
	Insert(ctx context.Context, t *model.RefreshToken) error
	FindValid(ctx context.Context, tokenHash, userID string) (model.RefreshToken, error)
	ConsumeValid(ctx context.Context, tokenHash, userID string) (model.RefreshToken, error)
	FindByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error)
	SetReplacedBy(ctx context.Context, id, successorID string) error
	InvalidateAllForUser(ctx context.Context, userID string) error
	DeleteAllForUser(ctx context.Context, userID string) error
	DeleteByHash(ctx context.Context, tokenHash string) error
}

// EventSink receives security events. Publishing is best-effort.
type EventSink interface {
	Publish(ctx context.Context, ev Event)
}

// Event is a security-relevant occurrence.
type Event struct {
	Type     string
	UserID   string
	UserName string
}

const (
	EventSignedUp       = "user.signed_up"
	EventLoggedIn       = "user.logged_in"
	EventLoggedOut      = "user.logged_out"
	EventPasswordChange = "password.changed"
	EventReuseDetected  = "refresh.reuse_detected"
)

type nopSink struct{}

func (nopSink) Publish(context.Context, Event) {}
