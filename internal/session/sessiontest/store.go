// Package sessiontest provides an in-memory credential store with the same
// observable semantics as the MongoDB repositories, for use in tests.
package sessiontest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/model"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/repository"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/session"
)

// Store implements session.UserStore and session.TokenStore. Fail, when
// set, is returned by every method to simulate an unavailable database.
type Store struct {
	mu     sync.Mutex
	users  map[bson.ObjectID]model.User
	tokens map[bson.ObjectID]model.RefreshToken
	Now    func() time.Time
	Fail   error
}

var (
	_ session.UserStore  = (*Store)(nil)
	_ session.TokenStore = (*Store)(nil)
)

func New() *Store {
	return &Store{
		users:  map[bson.ObjectID]model.User{},
		tokens: map[bson.ObjectID]model.RefreshToken{},
		Now:    time.Now,
	}
}

func (s *Store) now() time.Time { return s.Now().UTC() }

func parseID(id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return bson.ObjectID{}, fmt.Errorf("%w: %q", repository.ErrInvalidID, id)
	}
	return oid, nil
}

func (s *Store) FindByCredential(_ context.Context, emailOrUserName string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return model.User{}, s.Fail
	}
	v := strings.TrimSpace(emailOrUserName)
	if v == "" {
		return model.User{}, repository.ErrNotFound
	}
	for _, u := range s.users {
		if u.Email == strings.ToLower(v) || u.UserName == v {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *Store) FindByID(_ context.Context, id string) (model.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return model.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return model.User{}, s.Fail
	}
	u, ok := s.users[oid]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (s *Store) ExistsByEmailOrUserName(_ context.Context, email, userName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return false, s.Fail
	}
	return s.existsLocked(strings.ToLower(strings.TrimSpace(email)), strings.TrimSpace(userName)), nil
}

func (s *Store) existsLocked(email, userName string) bool {
	for _, u := range s.users {
		if u.Email == email || u.UserName == userName {
			return true
		}
	}
	return false
}

func (s *Store) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if s.existsLocked(u.Email, u.UserName) {
		return repository.ErrConflict
	}
	if u.ID.IsZero() {
		u.ID = bson.NewObjectID()
	}
	u.CreatedAt, u.UpdatedAt = s.now(), s.now()
	s.users[u.ID] = *u
	return nil
}

func (s *Store) UpdatePassword(_ context.Context, id, passwordHash string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	u, ok := s.users[oid]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = s.now()
	s.users[oid] = u
	return nil
}

func (s *Store) Insert(_ context.Context, t *model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	for _, existing := range s.tokens {
		if existing.TokenHash == t.TokenHash {
			return repository.ErrConflict
		}
	}
	if t.ID.IsZero() {
		t.ID = bson.NewObjectID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	s.tokens[t.ID] = *t
	return nil
}

func (s *Store) findValidLocked(tokenHash string, owner bson.ObjectID) (model.RefreshToken, bool) {
	now := s.now()
	for _, t := range s.tokens {
		if t.TokenHash == tokenHash && t.UserID == owner && t.IsValid && t.ExpiresAt.After(now) {
			return t, true
		}
	}
	return model.RefreshToken{}, false
}

func (s *Store) FindValid(_ context.Context, tokenHash, userID string) (model.RefreshToken, error) {
	owner, err := parseID(userID)
	if err != nil {
		return model.RefreshToken{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return model.RefreshToken{}, s.Fail
	}
	t, ok := s.findValidLocked(tokenHash, owner)
	if !ok {
		return model.RefreshToken{}, repository.ErrNotFound
	}
	return t, nil
}

func (s *Store) ConsumeValid(_ context.Context, tokenHash, userID string) (model.RefreshToken, error) {
	owner, err := parseID(userID)
	if err != nil {
		return model.RefreshToken{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return model.RefreshToken{}, s.Fail
	}
	t, ok := s.findValidLocked(tokenHash, owner)
	if !ok {
		return model.RefreshToken{}, repository.ErrNotFound
	}
	before := t
	now := s.now()
	t.IsValid = false
	t.RevokedAt = &now
	s.tokens[t.ID] = t
	return before, nil
}

func (s *Store) FindByHash(_ context.Context, tokenHash string) (model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return model.RefreshToken{}, s.Fail
	}
	for _, t := range s.tokens {
		if t.TokenHash == tokenHash {
			return t, nil
		}
	}
	return model.RefreshToken{}, repository.ErrNotFound
}

func (s *Store) SetReplacedBy(_ context.Context, id, successorID string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	next, err := parseID(successorID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	if t, ok := s.tokens[oid]; ok {
		t.ReplacedBy = &next
		s.tokens[oid] = t
	}
	return nil
}

func (s *Store) InvalidateAllForUser(_ context.Context, userID string) error {
	owner, err := parseID(userID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	now := s.now()
	for id, t := range s.tokens {
		if t.UserID == owner && t.IsValid {
			t.IsValid = false
			t.RevokedAt = &now
			s.tokens[id] = t
		}
	}
	return nil
}

func (s *Store) DeleteAllForUser(_ context.Context, userID string) error {
	owner, err := parseID(userID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	for id, t := range s.tokens {
		if t.UserID == owner {
			delete(s.tokens, id)
		}
	}
	return nil
}

func (s *Store) DeleteByHash(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	for id, t := range s.tokens {
		if t.TokenHash == tokenHash {
			delete(s.tokens, id)
		}
	}
	return nil
}

// Tokens returns a snapshot of every stored refresh record.
func (s *Store) Tokens() []model.RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.RefreshToken, 0, len(s.tokens))
	for _, t := range s.tokens {
		out = append(out, t)
	}
	return out
}

// Age shifts RevokedAt of every revoked record d into the past.
func (s *Store) Age(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tokens {
		if t.RevokedAt != nil {
			at := t.RevokedAt.Add(-d)
			t.RevokedAt = &at
			s.tokens[id] = t
		}
	}
}

// Recorder is a session.EventSink that keeps every event.
type Recorder struct {
	mu     sync.Mutex
	Events []session.Event
}

func (r *Recorder) Publish(_ context.Context, ev session.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, ev)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Events))
	for i, ev := range r.Events {
		out[i] = ev.Type
	}
	return out
}
