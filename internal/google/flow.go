// File: internal/google/flow.go
package google

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// State is the consent flow's lifecycle position.
type State int

const (
	// StateIdle means no consent surface is open.
	StateIdle State = iota
	// StateAwaitingConsent means a consent surface is open and no terminal
	// event has occurred yet.
	StateAwaitingConsent
	// StateArtifactReceived is the transient position between receiving the
	// authorization artifact and delivering it to the callback.
	StateArtifactReceived
)

// ErrConsentAbandoned is returned by providers when the user walks away from
// the consent surface. Abandonment is a user decision, not a failure, and is
// never surfaced to callers as an error.
var ErrConsentAbandoned = errors.New("consent flow abandoned")

// ConsentProvider is the injected capability that drives the identity
// provider's consent surface. RequestCode blocks until an authorization
// artifact is produced or the flow is abandoned.
type ConsentProvider interface {
	RequestCode(ctx context.Context) (string, error)
}

// Flow drives one consent exchange at a time. Per invocation exactly one of
// two terminal events occurs: the artifact callback fires once, or the flow
// is silently abandoned and the state returns to Idle.
type Flow struct {
	provider ConsentProvider
	logger   *zap.Logger

	mu      sync.Mutex
	state   State
	pending chan struct{}
}

// NewFlow creates a federation flow around the given provider.
func NewFlow(provider ConsentProvider, logger *zap.Logger) *Flow {
	return &Flow{
		provider: provider,
		logger:   logger.Named("GoogleFlow"),
		state:    StateIdle,
	}
}

// State returns the current flow state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Initiate opens the provider's consent surface and invokes onArtifact once
// if an artifact is received. The returned channel closes when the
// invocation reaches its terminal event, whichever of the two it is, so
// callers can wait without being told about abandonment as an error.
// Calling Initiate while a flow is already awaiting consent is a no-op: the
// pending flow is reused rather than a second consent surface opened, only
// the pending callback can fire, and the pending flow's channel is returned.
func (f *Flow) Initiate(ctx context.Context, onArtifact func(artifact string)) <-chan struct{} {
	f.mu.Lock()
	if f.state == StateAwaitingConsent {
		pending := f.pending
		f.mu.Unlock()
		f.logger.Debug("Consent flow already pending, reusing it")
		return pending
	}
	f.state = StateAwaitingConsent
	f.pending = make(chan struct{})
	done := f.pending
	f.mu.Unlock()

	go f.run(ctx, onArtifact, done)
	return done
}

func (f *Flow) run(ctx context.Context, onArtifact func(artifact string), done chan struct{}) {
	defer close(done)

	artifact, err := f.provider.RequestCode(ctx)
	if err != nil {
		f.setState(StateIdle)
		if errors.Is(err, ErrConsentAbandoned) || errors.Is(err, context.Canceled) {
			f.logger.Info("Consent flow abandoned by user")
			return
		}
		// Provider breakage (browser failed to open, listener died) also
		// terminates without a callback; it is logged loudly because unlike
		// abandonment it is actionable.
		f.logger.Error("Consent provider failed", zap.Error(err))
		return
	}

	f.setState(StateArtifactReceived)
	onArtifact(artifact)
	f.setState(StateIdle)
}

func (f *Flow) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}
