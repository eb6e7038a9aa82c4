// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

package auth

import (
	"context"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
)

// Operation names a state transition gated by pre-transition hooks.
type Operation string

// Hooked operations. Authentication runs no hook.
const (
	OpRegister   Operation = "register"
	OpUnregister Operation = "unregister"
)

// PreCheck is a synchronous pre-transition hook. Returning false vetoes
// the operation before any state change.
type PreCheck func(op Operation, playerID string) bool

// Authorizer gates delegated operations. The engine treats it as an
// opaque predicate over (principal, permission string).
type Authorizer interface {
	Check(principal, permission string) bool
}

// Enrollment produces the enrollment link for an asynchronously enrolled
// credential. It performs outbound network calls and must not be invoked
// while holding engine state.
type Enrollment interface {
	Link(ctx context.Context, playerID, secret string) (string, error)
}

// Notifier receives the final outcome of an asynchronous enrollment once
// the completion has re-entered the engine.
type Notifier interface {
	EnrollmentFinished(playerID string, outcome Outcome, url string)
}

// Permission strings consumed through the Authorizer.
const (
	PermRegisterOther   = "auth:register:other"
	PermUnregisterOther = "auth:unregister:other"
)

// SystemPrincipal is the internal requester identity for server-side
// delegated operations. It is not a player: it carries no record and
// must never be bound to a connection.
const SystemPrincipal = "system"

// Engine turns external requests into state transitions against the
// record store. All operations are serialized through a single mutex so
// no two transitions for the same player run concurrently; background
// enrollment computes off-lock and re-enters through finishEnrollment.
type Engine struct {
	mu       sync.Mutex
	store    RecordStore
	methods  *Registry
	enabled  map[string]bool
	hooks    []PreCheck
	authz    Authorizer
	enroll   Enrollment
	notifier Notifier
	metrics  MetricsRecorder
	wg       sync.WaitGroup
}

// EngineConfig carries the engine's collaborators. Store and Methods are
// required; everything else has a permissive default.
type EngineConfig struct {
	Store   RecordStore
	Methods *Registry

	// Enabled maps method names to their config gate. Methods absent
	// from the map are enabled.
	Enabled map[string]bool

	// Hooks run synchronously before register and unregister.
	Hooks []PreCheck

	// Authz gates delegated operations; nil denies all delegation.
	Authz Authorizer

	// Enroll produces enrollment links; nil disables the asynchronous
	// phase and asynchronous methods fail with ExternalCallFailed.
	Enroll Enrollment

	// Metrics receives operation outcomes; nil means no recording.
	Metrics MetricsRecorder
}

// NewEngine creates an authentication engine.
func NewEngine(cfg EngineConfig) *Engine {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NopMetrics{}
	}
	enabled := make(map[string]bool, len(cfg.Enabled))
	for name, on := range cfg.Enabled {
		enabled[Key(name)] = on
	}
	return &Engine{
		store:   cfg.Store,
		methods: cfg.Methods,
		enabled: enabled,
		hooks:   cfg.Hooks,
		authz:   cfg.Authz,
		enroll:  cfg.Enroll,
		metrics: metrics,
	}
}

// SetNotifier wires the enrollment notifier. Called once during startup,
// after the outer surface that implements it has been constructed.
func (e *Engine) SetNotifier(n Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifier = n
}

// Wait blocks until all in-flight enrollment goroutines have completed.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Register enrolls a credential method for the player themselves.
// For enrollable methods the returned Success means the registration was
// accepted; the final outcome arrives through the Notifier.
func (e *Engine) Register(ctx context.Context, playerID, address, methodName string, args []string) (out Outcome) {
	defer e.recovered("register", playerID, &out)

	if !e.allowed(OpRegister, playerID) {
		return e.observeRegister(methodName, Canceled)
	}

	method := e.methods.Resolve(methodName)
	if method == nil {
		return e.observeRegister(methodName, InvalidMethod)
	}
	if !e.methodEnabled(method) {
		return e.observeRegister(methodName, Disabled)
	}

	e.mu.Lock()
	out = e.store.Add(playerID, address, method, args)
	var secret string
	_, enrollable := method.(Enrollable)
	if out == Success && enrollable {
		if rec, ok := e.store.Get(playerID); ok {
			secret = rec.Secret
		}
	}
	e.mu.Unlock()

	if out == Success && enrollable {
		e.startEnrollment(ctx, playerID, secret)
	}
	return e.observeRegister(methodName, out)
}

// RegisterFor enrolls a credential method on another player's behalf.
// The method must allow delegation, and the requester must hold the
// delegated-registration permission and have an authenticated session
// of their own.
func (e *Engine) RegisterFor(ctx context.Context, requester, playerID, methodName string, args []string) (out Outcome) {
	defer e.recovered("register-other", playerID, &out)

	if !e.authorized(requester, PermRegisterOther) {
		return e.observeRegister(methodName, Canceled)
	}
	if !e.requesterVerified(requester) {
		return e.observeRegister(methodName, NeedAuthentication)
	}
	if !e.allowed(OpRegister, playerID) {
		return e.observeRegister(methodName, Canceled)
	}

	method := e.methods.Resolve(methodName)
	if method == nil || !method.AllowsDelegated() {
		return e.observeRegister(methodName, InvalidMethod)
	}
	if !e.methodEnabled(method) {
		return e.observeRegister(methodName, Disabled)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// The target may be offline, so no source address is recorded.
	return e.observeRegister(methodName, e.store.Add(playerID, "", method, args))
}

// Authenticate verifies presented proof for a registered player. On
// success the engine persists the store; the store's authenticate path
// deliberately does not.
func (e *Engine) Authenticate(ctx context.Context, playerID string, args []string) (out Outcome) {
	defer e.recovered("authenticate", playerID, &out)
	_ = ctx

	e.mu.Lock()
	defer e.mu.Unlock()

	out = e.store.Authenticate(playerID, args)
	if out == Success {
		if err := e.store.Save(); err != nil {
			slog.Error("failed to persist after authentication", "player", playerID, "error", err)
		}
	}
	e.metrics.ObserveAuthenticate(e.methodName(playerID), out)
	return out
}

// Unregister removes the player's own registration. Requires the current
// session to be authenticated.
func (e *Engine) Unregister(ctx context.Context, playerID string) (out Outcome) {
	defer e.recovered("unregister", playerID, &out)
	_ = ctx

	if !e.allowed(OpUnregister, playerID) {
		return e.observeUnregister(Canceled)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.observeUnregister(e.store.Remove(playerID, true))
}

// UnregisterFor removes another player's registration. The delegated
// path bypasses the target's authentication precondition, but the
// requester must be authorized and authenticated themselves.
func (e *Engine) UnregisterFor(ctx context.Context, requester, playerID string) (out Outcome) {
	defer e.recovered("unregister-other", playerID, &out)
	_ = ctx

	if !e.authorized(requester, PermUnregisterOther) {
		return e.observeUnregister(Canceled)
	}
	if !e.requesterVerified(requester) {
		return e.observeUnregister(NeedAuthentication)
	}
	if !e.allowed(OpUnregister, playerID) {
		return e.observeUnregister(Canceled)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.observeUnregister(e.store.Remove(playerID, false))
}

// startEnrollment runs the blocking enrollment-link call on a background
// goroutine. The goroutine touches no shared state; the result re-enters
// the engine in finishEnrollment. The original request context may end
// with the caller's connection, so cancellation is stripped.
func (e *Engine) startEnrollment(ctx context.Context, playerID, secret string) {
	taskID := ulid.Make()
	slog.Info("enrollment started", "player", playerID, "task", taskID)

	bgCtx := context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		var url string
		var err error
		if e.enroll == nil {
			err = errNoEnrollment
		} else {
			url, err = e.enroll.Link(bgCtx, playerID, secret)
		}
		e.finishEnrollment(playerID, taskID, url, err)
	}()
}

// finishEnrollment completes the two-phase registration on the mutation
// path: a failed enrollment rolls the provisional record back.
func (e *Engine) finishEnrollment(playerID string, taskID ulid.ULID, url string, err error) {
	out := Success
	if err != nil {
		slog.Error("enrollment failed, rolling back registration",
			"player", playerID, "task", taskID, "error", err)
		out = ExternalCallFailed
	}

	e.mu.Lock()
	if err != nil {
		e.store.Remove(playerID, false)
	}
	notifier := e.notifier
	e.mu.Unlock()

	e.metrics.ObserveEnrollment(out)
	if notifier != nil {
		notifier.EnrollmentFinished(playerID, out, url)
	}
}

// allowed runs the synchronous pre-transition hooks.
func (e *Engine) allowed(op Operation, playerID string) bool {
	for _, hook := range e.hooks {
		if !hook(op, playerID) {
			slog.Info("operation vetoed by listener", "op", op, "player", playerID)
			return false
		}
	}
	return true
}

func (e *Engine) authorized(principal, permission string) bool {
	return e.authz != nil && e.authz.Check(principal, permission)
}

// requesterVerified requires the requester's own session to be
// authenticated before a delegated operation is honored. The system
// principal is internal and has no record to verify.
func (e *Engine) requesterVerified(requester string) bool {
	if Key(requester) == SystemPrincipal {
		return true
	}
	rec, ok := e.store.Get(requester)
	return ok && rec.Authenticated
}

func (e *Engine) methodEnabled(m Method) bool {
	on, present := e.enabled[Key(m.Name())]
	return !present || on
}

// methodName reads the record's method for metric labeling; "none" when
// there is no record.
func (e *Engine) methodName(playerID string) string {
	if rec, ok := e.store.Get(playerID); ok {
		return rec.Method
	}
	return "none"
}

func (e *Engine) observeRegister(method string, out Outcome) Outcome {
	e.metrics.ObserveRegister(Key(method), out)
	return out
}

func (e *Engine) observeUnregister(out Outcome) Outcome {
	e.metrics.ObserveUnregister(out)
	return out
}

// recovered converts panics escaping an operation into Unknown. Nothing
// unexpected may propagate past the engine boundary.
func (e *Engine) recovered(op, playerID string, out *Outcome) {
	if r := recover(); r != nil {
		slog.Error("panic in engine operation", "op", op, "player", playerID, "panic", r)
		*out = Unknown
	}
}
