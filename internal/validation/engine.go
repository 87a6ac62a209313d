// File: internal/validation/engine.go
package validation

import (
	"context"
	"sync"
	"time"
	"unicode"

	"servicebook_client/internal/api"
	"servicebook_client/internal/config"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// FieldKey identifies a uniqueness-checked form field.
type FieldKey string

const (
	FieldEmail FieldKey = "email"
	FieldPhone FieldKey = "phone"
)

// Result is a field's published validation state.
type Result struct {
	Exists      bool
	FormatValid bool
}

// Checker performs the remote uniqueness checks. *api.Client satisfies it.
type Checker interface {
	CheckEmail(ctx context.Context, email string) (*api.ValidationResult, error)
	CheckPhone(ctx context.Context, phone string) (*api.ValidationResult, error)
}

// fieldState tracks one field. The generation counter is the engine's only
// concurrency control: a completed check is applied only if its generation
// still equals the field's latest, so the freshest result always wins
// regardless of network completion order.
type fieldState struct {
	generation uint64
	timer      *time.Timer
	result     *Result
}

// Engine debounces keystrokes per field and issues at most one fresh
// uniqueness check per quiet period. It never touches session state.
type Engine struct {
	checker  Checker
	logger   *zap.Logger
	validate *validator.Validate
	delays   map[FieldKey]time.Duration

	mu       sync.Mutex
	fields   map[FieldKey]*fieldState
	onResult func(FieldKey, Result)
}

// NewEngine creates a validation engine with the configured per-field
// debounce windows.
func NewEngine(cfg *config.Config, checker Checker, logger *zap.Logger) *Engine {
	return &Engine{
		checker:  checker,
		logger:   logger.Named("ValidationEngine"),
		validate: validator.New(),
		delays: map[FieldKey]time.Duration{
			FieldEmail: cfg.EmailCheckDebounce,
			FieldPhone: cfg.PhoneCheckDebounce,
		},
		fields: map[FieldKey]*fieldState{
			FieldEmail: {},
			FieldPhone: {},
		},
	}
}

// Subscribe registers the single consumer of published validation results.
// Must be called before the first SetValue.
func (e *Engine) Subscribe(fn func(FieldKey, Result)) {
	e.mu.Lock()
	e.onResult = fn
	e.mu.Unlock()
}

// SetValue records a new input value for the field: it bumps the field's
// generation, cancels the pending debounce timer and schedules a fresh one.
func (e *Engine) SetValue(field FieldKey, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.fields[field]
	if !ok {
		e.logger.Warn("SetValue for unknown field", zap.String("field", string(field)))
		return
	}

	st.generation++
	gen := st.generation

	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = time.AfterFunc(e.delays[field], func() {
		e.fire(field, value, gen)
	})
}

// Result returns the field's last published validation state.
func (e *Engine) Result(field FieldKey) (Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.fields[field]
	if !ok || st.result == nil {
		return Result{}, false
	}
	return *st.result, true
}

// Close cancels all pending debounce timers. In-flight network checks are
// not interrupted; their results are discarded by the generation guard.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, st := range e.fields {
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
	}
}

// fire runs after the quiet period. It re-checks the generation (AfterFunc
// can race a concurrent Stop), applies the cheap local shape check, and only
// then spends a network round trip.
func (e *Engine) fire(field FieldKey, value string, gen uint64) {
	e.mu.Lock()
	st := e.fields[field]
	if st.generation != gen {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	if !e.locallyPlausible(field, value) {
		return
	}

	remote, err := e.check(field, value)
	if err != nil {
		e.logger.Warn("Uniqueness check failed",
			zap.String("field", string(field)), zap.Error(err))
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if st.generation != gen {
		// Stale completion: the user typed again while this check was in
		// flight. Dropped silently.
		return
	}
	result := Result{Exists: remote.Exists, FormatValid: remote.Valid}
	st.result = &result
	if e.onResult != nil {
		e.onResult(field, result)
	}
}

func (e *Engine) check(field FieldKey, value string) (*api.ValidationResult, error) {
	ctx := context.Background()
	if field == FieldPhone {
		return e.checker.CheckPhone(ctx, value)
	}
	return e.checker.CheckEmail(ctx, value)
}

// locallyPlausible is the pre-network shape gate: empty values and values
// that cannot possibly be valid are never sent to the backend.
func (e *Engine) locallyPlausible(field FieldKey, value string) bool {
	if value == "" {
		return false
	}
	switch field {
	case FieldEmail:
		return e.validate.Var(value, "email") == nil
	case FieldPhone:
		return digitCount(value) >= 8
	}
	return false
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
