package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Identity is the signed-in caller as the orchestrator sees it.
type Identity interface {
	BearerToken() (string, bool)
	Profile() (name, email string)
	IdentityKey() string
}

// Backend is the credits and payments API.
type Backend interface {
	FetchBalance(ctx context.Context, token string) (Balance, error)
	CreateOrder(ctx context.Context, token string, req OrderRequest) (Order, error)
}

// Recorder receives operational counters.
type Recorder interface {
	ObserveCreditsFetch(err error)
	ObserveOrder(err error)
	ObserveCheckout(outcome string)
}

// Publisher emits checkout outcomes to interested services.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// AttemptStatus tracks a checkout attempt from order to outcome.
type AttemptStatus string

const (
	StatusPending   AttemptStatus = "pending"
	StatusSucceeded AttemptStatus = "succeeded"
	StatusFailed    AttemptStatus = "failed"
	StatusCancelled AttemptStatus = "cancelled"
)

// Attempt is one checkout: one order, one widget session, one outcome.
type Attempt struct {
	ID            string
	OwnerKey      string
	Order         Order
	Selection     Selection
	Options       WidgetOptions
	Status        AttemptStatus
	FailureReason string
	PaymentID     string
	CreatedAt     time.Time
	ResolvedAt    time.Time
}

// CheckoutOutcome is published once per resolved attempt.
type CheckoutOutcome struct {
	AttemptID  string        `json:"attemptId"`
	OrderID    string        `json:"orderId"`
	PaymentID  string        `json:"paymentId,omitempty"`
	PlanID     string        `json:"planId"`
	Amount     int64         `json:"amount"`
	Currency   string        `json:"currency"`
	Credits    Credits       `json:"credits"`
	Status     AttemptStatus `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	OccurredAt time.Time     `json:"occurredAt"`
}

// SubjectPrefix namespaces published checkout outcomes.
const SubjectPrefix = "stealthbuddy.checkout."

type attemptEntry struct {
	Attempt
	onSuccess func()
	onFailure func(string)
}

// Orchestrator runs credit lookups and checkout attempts. One pending attempt
// is allowed per identity and every attempt resolves its callbacks exactly once.
type Orchestrator struct {
	backend     Backend
	productName string
	themeColor  string
	attemptTTL  time.Duration
	recorder    Recorder
	publisher   Publisher
	logger      *slog.Logger
	now         func() time.Time

	mu       sync.Mutex
	attempts map[string]*attemptEntry
	pending  map[string]string
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithThemeColor sets the widget accent colour.
func WithThemeColor(color string) OrchestratorOption {
	return func(o *Orchestrator) {
		if color != "" {
			o.themeColor = color
		}
	}
}

// WithAttemptTTL bounds how long a pending attempt blocks a new checkout.
func WithAttemptTTL(ttl time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if ttl > 0 {
			o.attemptTTL = ttl
		}
	}
}

// WithRecorder wires operational counters.
func WithRecorder(r Recorder) OrchestratorOption {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithPublisher wires outcome publication.
func WithPublisher(p Publisher) OrchestratorOption {
	return func(o *Orchestrator) {
		if p != nil {
			o.publisher = p
		}
	}
}

// WithOrchestratorLogger sets the logger.
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithOrchestratorClock overrides the time source.
func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator constructs an Orchestrator over the given backend.
func NewOrchestrator(backend Backend, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		backend:     backend,
		productName: "StealthBuddy Credits",
		themeColor:  "#3B82F6",
		attemptTTL:  30 * time.Minute,
		recorder:    nopRecorder{},
		publisher:   nopPublisher{},
		logger:      slog.Default(),
		now:         time.Now,
		attempts:    make(map[string]*attemptEntry),
		pending:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// FetchCredits returns the identity's current balance from the backend. No
// request is made when the identity holds no valid token.
func (o *Orchestrator) FetchCredits(ctx context.Context, id Identity) (Credits, error) {
	token, ok := bearerToken(id)
	if !ok {
		return Credits{}, ErrUnauthenticated
	}

	balance, err := o.backend.FetchBalance(ctx, token)
	o.recorder.ObserveCreditsFetch(err)
	if err != nil {
		return Credits{}, fmt.Errorf("fetch credits: %w", err)
	}
	return balance.Credits, nil
}

// CreateOrder asks the backend for an order. Unlimited is sent as -1.
func (o *Orchestrator) CreateOrder(ctx context.Context, id Identity, amount int, credits Credits) (Order, error) {
	token, ok := bearerToken(id)
	if !ok {
		return Order{}, fmt.Errorf("%w: %w", ErrOrderCreationFailed, ErrUnauthenticated)
	}

	order, err := o.backend.CreateOrder(ctx, token, OrderRequest{Amount: amount, Credits: credits.Int()})
	o.recorder.ObserveOrder(err)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %w", ErrOrderCreationFailed, err)
	}
	return order, nil
}

// InitiateCheckout creates an order and registers a pending attempt whose
// widget options the caller renders. onFailure fires once if the order cannot
// be created. Otherwise the attempt waits for Resolve.
func (o *Orchestrator) InitiateCheckout(ctx context.Context, id Identity, sel Selection, onSuccess func(), onFailure func(string)) (*Attempt, error) {
	if onSuccess == nil {
		onSuccess = func() {}
	}
	if onFailure == nil {
		onFailure = func(string) {}
	}

	if _, ok := bearerToken(id); !ok {
		onFailure(MessageNotAuthenticated)
		return nil, fmt.Errorf("%w: %w", ErrOrderCreationFailed, ErrUnauthenticated)
	}

	entry, stale, err := o.reserve(id, sel, onSuccess, onFailure)
	for _, s := range stale {
		o.settled(ctx, s, MessageCancelled)
	}
	if err != nil {
		return nil, err
	}

	order, err := o.CreateOrder(ctx, id, sel.Amount, sel.Credits)
	if err != nil {
		o.mu.Lock()
		if entry.Status != StatusPending {
			o.mu.Unlock()
			return nil, err
		}
		entry.Status = StatusFailed
		entry.FailureReason = FailureMessage(err)
		entry.ResolvedAt = o.now()
		delete(o.pending, entry.OwnerKey)
		snapshot := *entry
		o.mu.Unlock()

		o.logger.Warn("checkout order failed", "attempt_id", entry.ID, "error", err)
		o.settled(ctx, &snapshot, snapshot.FailureReason)
		return nil, err
	}

	name, email := id.Profile()
	o.mu.Lock()
	if entry.Status != StatusPending {
		o.mu.Unlock()
		return nil, ErrAttemptResolved
	}
	entry.Order = order
	entry.Options = WidgetOptions{
		Key:         order.KeyID,
		Amount:      order.Amount,
		Currency:    order.Currency,
		Name:        o.productName,
		Description: "Purchase " + sel.Name,
		OrderID:     order.OrderID,
		Prefill:     WidgetPrefill{Name: name, Email: email},
		Theme:       WidgetTheme{Color: o.themeColor},
	}
	attempt := entry.Attempt
	o.mu.Unlock()

	o.logger.Info("checkout started", "attempt_id", attempt.ID, "order_id", order.OrderID, "plan", sel.PlanID)
	return &attempt, nil
}

// reserve registers a pending attempt for the identity, abandoning stale ones.
func (o *Orchestrator) reserve(id Identity, sel Selection, onSuccess func(), onFailure func(string)) (*attemptEntry, []*attemptEntry, error) {
	key := identityKey(id)
	now := o.now()

	o.mu.Lock()
	defer o.mu.Unlock()

	var stale []*attemptEntry
	for attemptID, entry := range o.attempts {
		if now.Sub(entry.CreatedAt) < o.attemptTTL {
			continue
		}
		if entry.Status == StatusPending && entry.Order.OrderID == "" {
			// Its order request is still in flight; InitiateCheckout settles it.
			continue
		}
		if entry.Status == StatusPending {
			entry.Status = StatusCancelled
			entry.FailureReason = MessageCancelled
			entry.ResolvedAt = now
			delete(o.pending, entry.OwnerKey)
			snapshot := *entry
			stale = append(stale, &snapshot)
		}
		delete(o.attempts, attemptID)
	}

	if _, busy := o.pending[key]; busy {
		return nil, stale, ErrCheckoutInProgress
	}

	entry := &attemptEntry{
		Attempt: Attempt{
			ID:        uuid.NewString(),
			OwnerKey:  key,
			Selection: sel,
			Status:    StatusPending,
			CreatedAt: now,
		},
		onSuccess: onSuccess,
		onFailure: onFailure,
	}
	o.attempts[entry.ID] = entry
	o.pending[key] = entry.ID
	return entry, stale, nil
}

// Resolve applies the widget outcome to a pending attempt and fires exactly
// one of its callbacks.
func (o *Orchestrator) Resolve(ctx context.Context, id Identity, attemptID string, ev Event) error {
	outcome := OutcomeError(ev)
	if errors.Is(outcome, ErrUnknownEvent) {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Kind)
	}

	o.mu.Lock()
	entry, ok := o.attempts[attemptID]
	if !ok || entry.OwnerKey != identityKey(id) {
		o.mu.Unlock()
		return ErrAttemptNotFound
	}
	if entry.Status != StatusPending {
		o.mu.Unlock()
		return ErrAttemptResolved
	}
	if entry.Order.OrderID == "" {
		// Order creation has not returned yet.
		o.mu.Unlock()
		return ErrAttemptNotFound
	}
	if ev.Kind == EventPaymentSuccess && ev.OrderID != entry.Order.OrderID {
		o.mu.Unlock()
		return ErrOrderMismatch
	}

	entry.ResolvedAt = o.now()
	entry.PaymentID = ev.PaymentID
	switch {
	case outcome == nil:
		entry.Status = StatusSucceeded
	case errors.Is(outcome, ErrUserCancelled):
		entry.Status = StatusCancelled
		entry.FailureReason = ev.failureMessage()
	default:
		entry.Status = StatusFailed
		entry.FailureReason = ev.failureMessage()
	}
	delete(o.pending, entry.OwnerKey)
	snapshot := *entry
	o.mu.Unlock()

	o.logger.Info("checkout resolved", "attempt_id", snapshot.ID, "order_id", snapshot.Order.OrderID, "status", snapshot.Status)
	o.settled(ctx, &snapshot, snapshot.FailureReason)
	return nil
}

// settled fires the attempt's callback and reports the outcome. Callers
// guarantee it runs once per attempt.
func (o *Orchestrator) settled(ctx context.Context, entry *attemptEntry, reason string) {
	if entry.Status == StatusSucceeded {
		entry.onSuccess()
	} else {
		entry.onFailure(reason)
	}

	o.recorder.ObserveCheckout(string(entry.Status))

	outcome := CheckoutOutcome{
		AttemptID:  entry.ID,
		OrderID:    entry.Order.OrderID,
		PaymentID:  entry.PaymentID,
		PlanID:     entry.Selection.PlanID,
		Amount:     entry.Order.Amount,
		Currency:   entry.Order.Currency,
		Credits:    entry.Selection.Credits,
		Status:     entry.Status,
		Reason:     reason,
		OccurredAt: entry.ResolvedAt,
	}
	if err := o.publisher.Publish(ctx, SubjectPrefix+string(entry.Status), outcome); err != nil {
		o.logger.Warn("failed to publish checkout outcome", "attempt_id", entry.ID, "error", err)
	}
}

// Attempt returns a snapshot of the identity's attempt.
func (o *Orchestrator) Attempt(id Identity, attemptID string) (Attempt, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	entry, ok := o.attempts[attemptID]
	if !ok || entry.OwnerKey != identityKey(id) {
		return Attempt{}, ErrAttemptNotFound
	}
	return entry.Attempt, nil
}

// Pending reports whether the identity has a checkout awaiting its outcome.
func (o *Orchestrator) Pending(id Identity) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.pending[identityKey(id)]
	return ok
}

func bearerToken(id Identity) (string, bool) {
	if id == nil {
		return "", false
	}
	token, ok := id.BearerToken()
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func identityKey(id Identity) string {
	if id == nil {
		return ""
	}
	return id.IdentityKey()
}

type nopRecorder struct{}

func (nopRecorder) ObserveCreditsFetch(error) {}
func (nopRecorder) ObserveOrder(error)        {}
func (nopRecorder) ObserveCheckout(string)    {}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, any) error { return nil }
