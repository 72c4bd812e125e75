package session

import (
	"context"
	"errors"

	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/apperr"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/utils"
)

// State is a node of the per-request admission state machine.
type State int

const (
	StateReceived State = iota
	StateNoTokens
	StateAccessValid
	StateAccessInvalidRefreshPresent
	StateRefreshValid
	StateRefreshInvalid
	StateAdmitted
	StateDenied
)

var stateNames = [...]string{
	StateReceived:                    "Received",
	StateNoTokens:                    "NoTokens",
	StateAccessValid:                 "AccessValid",
	StateAccessInvalidRefreshPresent: "AccessInvalidRefreshPresent",
	StateRefreshValid:                "RefreshValid",
	StateRefreshInvalid:              "RefreshInvalid",
	StateAdmitted:                    "Admitted",
	StateDenied:                      "Denied",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// Terminal reports whether s ends the machine.
func (s State) Terminal() bool { return s == StateAdmitted || s == StateDenied }

// maxTransitions bounds the loop in Admit. The longest legal path is
// Received → AccessInvalidRefreshPresent → RefreshValid → Admitted.
const maxTransitions = 6

// Outcome is the result of one admission decision.
type Outcome struct {
	State     State
	Principal Principal
	// Issued holds tokens minted on the refresh path; the caller must
	// write them out as cookies. Nil on every other path.
	Issued *Tokens
	// Err is set when the decision was Denied because of an internal
	// failure rather than a bad credential.
	Err error
	// Path lists every state visited, Received first.
	Path []State
}

// Admit decides whether a request carrying the given cookie values may
// proceed. A refresh happens inside this single pass; the caller continues
// the original request with the outcome and never re-runs Admit.
func (m *Manager) Admit(ctx context.Context, accessRaw, refreshRaw string) Outcome {
	out := Outcome{State: StateReceived}
	for i := 0; !out.State.Terminal(); i++ {
		out.Path = append(out.Path, out.State)
		if i == maxTransitions {
			out.State = StateDenied
			out.Err = apperr.Internal("admit", errors.New("admission did not terminate"))
			break
		}
		m.step(ctx, &out, accessRaw, refreshRaw)
	}
	out.Path = append(out.Path, out.State)
	return out
}

func (m *Manager) step(ctx context.Context, out *Outcome, accessRaw, refreshRaw string) {
	switch out.State {
	case StateReceived:
		switch {
		case accessRaw == "" && refreshRaw == "":
			out.State = StateNoTokens
		case accessRaw != "":
			// Any codec failure is treated alike.
			if c, err := m.codec.Verify(accessRaw, utils.KindAccess); err == nil {
				out.Principal = Principal{UserID: c.UserID, Email: c.Email, UserName: c.UserName}
				out.State = StateAccessValid
				return
			}
			if refreshRaw == "" {
				out.State = StateDenied
				return
			}
			out.State = StateAccessInvalidRefreshPresent
		default:
			out.State = StateAccessInvalidRefreshPresent
		}

	case StateNoTokens:
		out.State = StateDenied

	case StateAccessValid, StateRefreshValid:
		out.State = StateAdmitted

	case StateAccessInvalidRefreshPresent:
		u, rec, err := m.redeem(ctx, refreshRaw, m.rotate)
		if err != nil {
			if apperr.Is(err, apperr.KindInternal) {
				out.Err = err
			}
			out.State = StateRefreshInvalid
			return
		}
		var t Tokens
		if m.rotate {
			t, err = m.mint(ctx, u, &rec)
		} else {
			t, err = m.reissueAccess(u)
		}
		if err != nil {
			out.Err = err
			out.State = StateRefreshInvalid
			return
		}
		out.Principal = principalOf(u)
		out.Issued = &t
		out.State = StateRefreshValid

	case StateRefreshInvalid:
		out.State = StateDenied

	default:
		out.State = StateDenied
	}
}
