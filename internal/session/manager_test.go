package session_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/apperr"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/model"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/session"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/session/sessiontest"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/utils"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	clock  *clock
	store  *sessiontest.Store
	events *sessiontest.Recorder
	mgr    *session.Manager
	user   model.User
}

func newFixture(t *testing.T, rotate bool) *fixture {
	t.Helper()
	clk := &clock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	codec, err := utils.NewTokenCodec("access-secret", "refresh-secret", time.Hour, 7*24*time.Hour)
	require.NoError(t, err)
	codec = codec.WithClock(clk.Now)

	store := sessiontest.New()
	store.Now = clk.Now
	events := &sessiontest.Recorder{}
	mgr := session.NewManager(codec, store, store, session.Options{
		RotateOnRefresh: rotate,
		Events:          events,
		Now:             clk.Now,
	})

	u := model.User{UserName: "alice", Email: "a@x.com", PasswordHash: "x"}
	require.NoError(t, store.Create(context.Background(), &u))
	return &fixture{clock: clk, store: store, events: events, mgr: mgr, user: u}
}

func (f *fixture) issue(t *testing.T) session.Tokens {
	t.Helper()
	tok, err := f.mgr.Issue(context.Background(), f.user)
	require.NoError(t, err)
	require.NotNil(t, tok.Refresh)
	return tok
}

func validCount(s *sessiontest.Store) int {
	n := 0
	for _, t := range s.Tokens() {
		if t.IsValid {
			n++
		}
	}
	return n
}

func TestIssue_PersistsRefreshRecord(t *testing.T) {
	f := newFixture(t, true)
	tok := f.issue(t)

	recs := f.store.Tokens()
	require.Len(t, recs, 1)
	assert.Equal(t, tok.Refresh.Hash, recs[0].TokenHash)
	assert.Equal(t, f.user.ID, recs[0].UserID)
	assert.True(t, recs[0].IsValid)
	assert.Equal(t, f.clock.Now().Add(7*24*time.Hour), recs[0].ExpiresAt)
}

func TestAdmit_NoTokens(t *testing.T) {
	f := newFixture(t, true)
	out := f.mgr.Admit(context.Background(), "", "")

	assert.Equal(t, session.StateDenied, out.State)
	assert.Equal(t, []session.State{session.StateReceived, session.StateNoTokens, session.StateDenied}, out.Path)
	assert.Nil(t, out.Issued)
	assert.NoError(t, out.Err)
}

func TestAdmit_AccessValid(t *testing.T) {
	f := newFixture(t, true)
	tok := f.issue(t)

	out := f.mgr.Admit(context.Background(), tok.Access.Token, tok.Refresh.Token)
	assert.Equal(t, session.StateAdmitted, out.State)
	assert.Equal(t, []session.State{session.StateReceived, session.StateAccessValid, session.StateAdmitted}, out.Path)
	assert.Equal(t, f.user.ID.Hex(), out.Principal.UserID)
	assert.Equal(t, "alice", out.Principal.UserName)
	assert.Nil(t, out.Issued, "pass-through must not touch cookies")
}

func TestAdmit_ExpiredAccessRefreshesWithRotation(t *testing.T) {
	f := newFixture(t, true)
	tok := f.issue(t)
	f.clock.Advance(2 * time.Hour)

	out := f.mgr.Admit(context.Background(), tok.Access.Token, tok.Refresh.Token)
	require.Equal(t, session.StateAdmitted, out.State)
	assert.Equal(t, []session.State{
		session.StateReceived,
		session.StateAccessInvalidRefreshPresent,
		session.StateRefreshValid,
		session.StateAdmitted,
	}, out.Path)
	require.NotNil(t, out.Issued)
	require.NotNil(t, out.Issued.Refresh)
	assert.NotEqual(t, tok.Access.Token, out.Issued.Access.Token)
	assert.Equal(t, f.user.ID.Hex(), out.Principal.UserID)

	// the presented token is spent, its successor is the only valid one
	assert.Equal(t, 1, validCount(f.store))
	old, err := f.store.FindByHash(context.Background(), tok.Refresh.Hash)
	require.NoError(t, err)
	assert.False(t, old.IsValid)
	require.NotNil(t, old.ReplacedBy)

	again := f.mgr.Admit(context.Background(), "", tok.Refresh.Token)
	assert.Equal(t, session.StateDenied, again.State)
}

func TestAdmit_ExpiredAccessRefreshesWithoutRotation(t *testing.T) {
	f := newFixture(t, false)
	tok := f.issue(t)
	f.clock.Advance(2 * time.Hour)

	out := f.mgr.Admit(context.Background(), tok.Access.Token, tok.Refresh.Token)
	require.Equal(t, session.StateAdmitted, out.State)
	require.NotNil(t, out.Issued)
	assert.Nil(t, out.Issued.Refresh)

	// the refresh token stays usable
	again := f.mgr.Admit(context.Background(), "", tok.Refresh.Token)
	assert.Equal(t, session.StateAdmitted, again.State)
	assert.Equal(t, 1, validCount(f.store))
}

func TestAdmit_InvalidAccessWithoutRefresh(t *testing.T) {
	f := newFixture(t, true)
	out := f.mgr.Admit(context.Background(), "garbage", "")
	assert.Equal(t, session.StateDenied, out.State)
	assert.Equal(t, []session.State{session.StateReceived, session.StateDenied}, out.Path)
}

func TestAdmit_RefreshRejected(t *testing.T) {
	cases := map[string]func(t *testing.T, f *fixture, tok session.Tokens) string{
		"bad signature": func(t *testing.T, f *fixture, tok session.Tokens) string {
			return tok.Refresh.Token + "x"
		},
		"access token in refresh slot": func(t *testing.T, f *fixture, tok session.Tokens) string {
			return tok.Access.Token
		},
		"revoked in store": func(t *testing.T, f *fixture, tok session.Tokens) string {
			require.NoError(t, f.mgr.RevokeAll(context.Background(), f.user.ID.Hex()))
			return tok.Refresh.Token
		},
		"deleted from store": func(t *testing.T, f *fixture, tok session.Tokens) string {
			_, err := f.mgr.Revoke(context.Background(), tok.Refresh.Token)
			require.NoError(t, err)
			return tok.Refresh.Token
		},
		"expired": func(t *testing.T, f *fixture, tok session.Tokens) string {
			f.clock.Advance(8 * 24 * time.Hour)
			return tok.Refresh.Token
		},
	}
	for name, prepare := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, true)
			tok := f.issue(t)
			refresh := prepare(t, f, tok)

			out := f.mgr.Admit(context.Background(), "", refresh)
			assert.Equal(t, session.StateDenied, out.State)
			assert.Contains(t, out.Path, session.StateRefreshInvalid)
			assert.Nil(t, out.Issued)
			assert.NoError(t, out.Err)
		})
	}
}

func TestAdmit_StoreFailureIsInternal(t *testing.T) {
	f := newFixture(t, true)
	tok := f.issue(t)
	f.store.Fail = errors.New("db down")

	out := f.mgr.Admit(context.Background(), "", tok.Refresh.Token)
	assert.Equal(t, session.StateDenied, out.State)
	require.Error(t, out.Err)
	assert.True(t, apperr.Is(out.Err, apperr.KindInternal))
}

func TestRefresh_RotatesAndBlocksReplay(t *testing.T) {
	f := newFixture(t, true)
	tok := f.issue(t)

	u, next, err := f.mgr.Refresh(context.Background(), tok.Refresh.Token)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, u.ID)
	require.NotNil(t, next.Refresh)
	assert.NotEqual(t, tok.Refresh.Token, next.Refresh.Token)

	_, _, err = f.mgr.Refresh(context.Background(), tok.Refresh.Token)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, _, err = f.mgr.Refresh(context.Background(), next.Refresh.Token)
	assert.NoError(t, err)

	_, _, err = f.mgr.Refresh(context.Background(), "")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestRefresh_ConcurrentUseHasOneWinner(t *testing.T) {
	f := newFixture(t, true)
	tok := f.issue(t)

	const n = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := f.mgr.Refresh(context.Background(), tok.Refresh.Token); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Empty(t, f.events.Types(), "a race inside the grace window is not reuse")
}

func TestRefresh_ReuseRevokesEverySession(t *testing.T) {
	f := newFixture(t, true)
	stolen := f.issue(t)
	other := f.issue(t)

	_, rotated, err := f.mgr.Refresh(context.Background(), stolen.Refresh.Token)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	_, _, err = f.mgr.Refresh(context.Background(), stolen.Refresh.Token)
	require.Error(t, err)

	assert.Equal(t, []string{session.EventReuseDetected}, f.events.Types())
	assert.Equal(t, 0, validCount(f.store))
	_, _, err = f.mgr.Refresh(context.Background(), rotated.Refresh.Token)
	assert.Error(t, err)
	_, _, err = f.mgr.Refresh(context.Background(), other.Refresh.Token)
	assert.Error(t, err)
}

func TestCheck_IsReadOnly(t *testing.T) {
	f := newFixture(t, true)
	tok := f.issue(t)

	p, err := f.mgr.Check(context.Background(), tok.Access.Token, "")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.UserName)

	f.clock.Advance(2 * time.Hour)
	p, err = f.mgr.Check(context.Background(), tok.Access.Token, tok.Refresh.Token)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID.Hex(), p.UserID)
	assert.Equal(t, "a@x.com", p.Email)

	recs := f.store.Tokens()
	require.Len(t, recs, 1)
	assert.True(t, recs[0].IsValid, "check must not consume the refresh token")

	_, err = f.mgr.Check(context.Background(), tok.Access.Token, "")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	_, err = f.mgr.Check(context.Background(), "", "")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestRevoke(t *testing.T) {
	f := newFixture(t, true)
	a := f.issue(t)
	f.issue(t)

	uid, err := f.mgr.Revoke(context.Background(), a.Refresh.Token)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID.Hex(), uid)
	assert.Empty(t, f.store.Tokens())

	// signature still verifies but the store no longer honors it
	_, err = f.store.FindValid(context.Background(), a.Refresh.Hash, f.user.ID.Hex())
	assert.Error(t, err)

	uid, err = f.mgr.Revoke(context.Background(), "")
	assert.NoError(t, err)
	assert.Empty(t, uid)
}

func TestRevoke_UndecodableFallsBackToDigest(t *testing.T) {
	f := newFixture(t, true)
	a := f.issue(t)
	b := f.issue(t)

	f.clock.Advance(8 * 24 * time.Hour)
	uid, err := f.mgr.Revoke(context.Background(), a.Refresh.Token)
	require.NoError(t, err)
	assert.Empty(t, uid)

	recs := f.store.Tokens()
	require.Len(t, recs, 1)
	assert.Equal(t, b.Refresh.Hash, recs[0].TokenHash)
}

func TestCookies(t *testing.T) {
	f := newFixture(t, true)
	tok := f.issue(t)

	cookies := f.mgr.Cookies(tok)
	require.Len(t, cookies, 2)
	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
		assert.True(t, c.HttpOnly)
		assert.Equal(t, "/", c.Path)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		assert.False(t, c.Secure)
	}
	assert.Equal(t, 3600, byName[session.AccessCookie].MaxAge)
	assert.Equal(t, 604800, byName[session.RefreshCookie].MaxAge)
	assert.Equal(t, tok.Refresh.Token, byName[session.RefreshCookie].Value)

	cleared := f.mgr.ClearedCookies()
	require.Len(t, cleared, 2)
	for _, c := range cleared {
		assert.Empty(t, c.Value)
		assert.Equal(t, -1, c.MaxAge)
		assert.True(t, c.Expires.Before(f.clock.Now()))
	}

	accessOnly := f.mgr.Cookies(session.Tokens{Access: tok.Access})
	assert.Len(t, accessOnly, 1)
}

func TestCookies_SecureInProduction(t *testing.T) {
	codec, err := utils.NewTokenCodec("a", "b", time.Hour, time.Hour)
	require.NoError(t, err)
	store := sessiontest.New()
	mgr := session.NewManager(codec, store, store, session.Options{Secure: true})
	for _, c := range append(mgr.Cookies(session.Tokens{}), mgr.ClearedCookies()...) {
		assert.True(t, c.Secure, c.Name)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "AccessInvalidRefreshPresent", session.StateAccessInvalidRefreshPresent.String())
	assert.Equal(t, "Unknown", session.State(99).String())
	assert.True(t, session.StateDenied.Terminal())
	assert.False(t, session.StateRefreshValid.Terminal())
}
