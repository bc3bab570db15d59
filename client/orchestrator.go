package client

import (
	"context"
	"sync"

	"github.com/goliatone/go-errors"

	tgauth "github.com/taktarovg/3gis-auth"
	"github.com/taktarovg/3gis-auth/detect"
)

const (
	textCodeInvalidTransition = "AUTH_INVALID_STATE_TRANSITION"
)

// ErrInvalidTransition is returned when a requested state change is not
// allowed from the current state.
var ErrInvalidTransition = errors.New("invalid auth state transition", errors.CategoryConflict).
	WithTextCode(textCodeInvalidTransition).
	WithCode(errors.CodeConflict)

// State is one node of the orchestrator state machine.
type State string

const (
	StateIdle            State = "idle"
	StateLoading         State = "loading"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
	StateError           State = "error"
)

// TransitionFunc observes state changes.
type TransitionFunc func(from, to State)

// Orchestrator sequences the two session-issuing paths so that exactly one
// runs per page load: the cached-token path always precedes a fresh
// Telegram auth attempt, and the two are never in flight together. It is
// the single writer of the TokenStore.
type Orchestrator struct {
	api   APIClient
	store TokenStore

	mu      sync.Mutex
	state   State
	user    *tgauth.User
	lastErr error

	transitions map[State]map[State]struct{}
	onChange    TransitionFunc
	logger      tgauth.Logger
}

// OrchestratorOption customizes Orchestrator construction.
type OrchestratorOption func(*Orchestrator)

// WithOnTransition installs a state-change observer.
func WithOnTransition(fn TransitionFunc) OrchestratorOption {
	return func(o *Orchestrator) {
		o.onChange = fn
	}
}

// WithOrchestratorLogger overrides the logger.
func WithOrchestratorLogger(logger tgauth.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOrchestrator builds an Orchestrator in the Idle state.
func NewOrchestrator(api APIClient, store TokenStore, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		api:   api,
		store: store,
		state: StateIdle,
		transitions: map[State]map[State]struct{}{
			StateIdle: {
				StateLoading: {},
			},
			StateLoading: {
				StateAuthenticated:   {},
				StateUnauthenticated: {},
				StateError:           {},
			},
			StateAuthenticated: {
				StateIdle: {},
			},
			// A later classification upgrade (browser -> telegram) or a
			// manual retry re-enters Loading.
			StateUnauthenticated: {
				StateLoading: {},
			},
			StateError: {
				StateLoading: {},
			},
		},
		logger: noopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// User returns the authenticated user, if any.
func (o *Orchestrator) User() *tgauth.User {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.user
}

// Err returns the error that drove the machine to StateError.
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Run executes one authentication pass for the given classification and
// init-data bundle. The cached-token path runs first; only when it yields
// nothing does the Telegram path run. Both suspend on the network, and a
// cancelled ctx discards pending results without mutating state.
func (o *Orchestrator) Run(ctx context.Context, env detect.Result, initData string) (State, error) {
	if err := o.transition(StateLoading); err != nil {
		return o.State(), err
	}

	// Cached-token path.
	creds, cached := o.store.Load()
	if cached {
		user, err := o.api.WhoAmI(ctx, creds.Token)
		if ctx.Err() != nil {
			return o.State(), ctx.Err()
		}
		if err == nil {
			o.setAuthenticated(user)
			return StateAuthenticated, nil
		}
		if !errors.Is(err, ErrUnauthorized) {
			o.setError(err)
			return StateError, err
		}
		// Stale token: discard and fall through to the fresh path.
		o.store.Clear()
	}

	// Fresh Telegram path, only inside a Mini App host with a bundle.
	if env.Classification == detect.ClassTelegram && initData != "" {
		resp, err := o.api.AuthenticateTelegram(ctx, initData)
		if ctx.Err() != nil {
			return o.State(), ctx.Err()
		}
		if err != nil {
			o.setError(err)
			return StateError, err
		}
		o.store.Save(Credentials{Token: resp.Token, User: resp.User})
		o.setAuthenticated(resp.User)
		return StateAuthenticated, nil
	}

	// Nothing to authenticate against.
	if err := o.transition(StateUnauthenticated); err != nil {
		return o.State(), err
	}
	return StateUnauthenticated, nil
}

// Retry re-runs authentication after a failure. Only valid from StateError.
func (o *Orchestrator) Retry(ctx context.Context, env detect.Result, initData string) (State, error) {
	if o.State() != StateError {
		return o.State(), withMeta(ErrInvalidTransition, map[string]any{
			"from": string(o.State()),
			"to":   string(StateLoading),
		})
	}
	return o.Run(ctx, env, initData)
}

// Logout clears the persisted credentials and returns to Idle.
func (o *Orchestrator) Logout() error {
	if err := o.transition(StateIdle); err != nil {
		return err
	}
	o.store.Clear()
	o.mu.Lock()
	o.user = nil
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) setAuthenticated(user *tgauth.User) {
	o.mu.Lock()
	from := o.state
	o.state = StateAuthenticated
	o.user = user
	o.lastErr = nil
	o.mu.Unlock()
	o.notify(from, StateAuthenticated)
}

func (o *Orchestrator) setError(err error) {
	o.mu.Lock()
	from := o.state
	o.state = StateError
	o.lastErr = err
	o.mu.Unlock()
	o.logger.Warn("auth pass failed", "error", err)
	o.notify(from, StateError)
}

func (o *Orchestrator) transition(to State) error {
	o.mu.Lock()
	from := o.state
	if from == to {
		o.mu.Unlock()
		return nil
	}
	if allowed, ok := o.transitions[from]; ok {
		if _, exists := allowed[to]; !exists {
			o.mu.Unlock()
			return withMeta(ErrInvalidTransition, map[string]any{
				"from": string(from),
				"to":   string(to),
			})
		}
	}
	o.state = to
	o.mu.Unlock()
	o.notify(from, to)
	return nil
}

func (o *Orchestrator) notify(from, to State) {
	if o.onChange != nil && from != to {
		o.onChange(from, to)
	}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
