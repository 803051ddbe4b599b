package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"folioAPI/internal/types/subscription"
)

// Engine reconciles verified provider webhooks into the subscriptions table.
// It holds no per-request state and is safe for concurrent use.
type Engine struct {
	store     Store
	recorder  Recorder
	providers map[subscription.Provider]Provider
	now       func() time.Time
}

// NewEngine wires the engine. recorder may be nil.
func NewEngine(store Store, recorder Recorder, providers ...Provider) *Engine {
	e := &Engine{
		store:     store,
		recorder:  recorder,
		providers: make(map[subscription.Provider]Provider, len(providers)),
		now:       time.Now,
	}
	for _, p := range providers {
		e.providers[p.Name()] = p
	}
	return e
}

// Provider returns the adapter registered under name.
func (e *Engine) Provider(name subscription.Provider) (Provider, bool) {
	p, ok := e.providers[name]
	return p, ok
}

// HandleWebhook verifies, parses and applies one delivery. It returns the
// normalized event when the signature was valid, an *AuthenticationError when
// it was not, and a *ProcessingError for parse or store failures. Events that
// cannot be joined to a local row are logged and acknowledged.
func (e *Engine) HandleWebhook(ctx context.Context, provider subscription.Provider, body []byte, signature string) (*Event, error) {
	p, ok := e.providers[provider]
	if !ok {
		return nil, &ProcessingError{Provider: provider, Err: ErrUnknownProvider}
	}

	// Unauthenticated deliveries are never persisted, not even to the audit trail.
	if err := p.VerifySignature(body, signature); err != nil {
		return nil, err
	}

	ev, err := p.ParsePayload(body)
	if err != nil {
		perr := &ProcessingError{Provider: provider, Err: err}
		e.record(ctx, WebhookRecord{Provider: provider, Payload: body, SignatureValid: true, Error: perr.Error()})
		return nil, perr
	}

	logger := log.Ctx(ctx).With().
		Str("provider", string(provider)).
		Str("event", ev.ProviderEvent).
		Str("user_id", ev.UserID).
		Str("subscription_id", ev.SubscriptionID).
		Logger()
	ctx = logger.WithContext(ctx)

	err = e.dispatch(ctx, ev)

	rec := WebhookRecord{Provider: provider, EventName: ev.ProviderEvent, Payload: body, SignatureValid: true}
	if err != nil {
		rec.Error = err.Error()
	}
	e.record(ctx, rec)

	if err != nil {
		return ev, &ProcessingError{Provider: provider, Event: ev.ProviderEvent, Err: err}
	}
	return ev, nil
}

// Apply runs the transition for an already verified and normalized event.
func (e *Engine) Apply(ctx context.Context, ev *Event) error {
	return e.dispatch(ctx, ev)
}

func (e *Engine) dispatch(ctx context.Context, ev *Event) error {
	var err error
	switch ev.Name {
	case EventOrderCreated:
		err = e.handleOrderCreated(ctx, ev)
	case EventSubscriptionCreated:
		err = e.handleSubscriptionCreated(ctx, ev)
	case EventSubscriptionUpdated:
		err = e.handleSubscriptionUpdated(ctx, ev)
	case EventSubscriptionCancelled:
		err = e.handleSubscriptionCancelled(ctx, ev)
	case EventPaymentSuccess:
		err = e.handlePaymentSuccess(ctx, ev)
	case EventPaymentFailed, EventSubscriptionPastDue:
		err = e.handlePastDue(ctx, ev)
	default:
		log.Ctx(ctx).Info().Msg("Ignoring unhandled webhook event")
		return nil
	}

	if errors.Is(err, ErrMissingJoinKey) {
		log.Ctx(ctx).Warn().Err(err).Str("email", ev.UserEmail).Msg("Webhook event cannot be matched to a user, skipping")
		return nil
	}
	return err
}

func (e *Engine) handleOrderCreated(ctx context.Context, ev *Event) error {
	if ev.PlanType != subscription.PlanProLifetime {
		log.Ctx(ctx).Debug().Str("plan", string(ev.PlanType)).Msg("Order is not a lifetime purchase, waiting for subscription event")
		return nil
	}

	userID, err := e.resolveUserID(ctx, ev)
	if err != nil {
		return err
	}

	now := e.now()
	sub := &subscription.Subscription{
		UserID:             userID,
		PlanType:           subscription.PlanProLifetime,
		Status:             subscription.StatusActive,
		IsLifetime:         true,
		IsFirstMonth:       false,
		StartDate:          now,
		EndDate:            nil,
		Provider:           ev.Provider,
		ProviderCustomerID: ev.CustomerID,
		ProviderOrderID:    ev.OrderID,
		UpdatedAt:          now,
	}
	if err := e.store.UpsertSubscription(ctx, sub); err != nil {
		return fmt.Errorf("upsert lifetime subscription: %w", err)
	}

	log.Ctx(ctx).Info().Str("resolved_user_id", userID).Msg("Lifetime purchase recorded")
	return nil
}

func (e *Engine) handleSubscriptionCreated(ctx context.Context, ev *Event) error {
	userID, err := e.resolveUserID(ctx, ev)
	if err != nil {
		return err
	}

	now := e.now()
	sub := &subscription.Subscription{
		UserID:                 userID,
		PlanType:               ev.PlanType,
		Status:                 subscription.StatusActive,
		IsLifetime:             false,
		IsFirstMonth:           true,
		StartDate:              now,
		Provider:               ev.Provider,
		ProviderCustomerID:     ev.CustomerID,
		ProviderSubscriptionID: ev.SubscriptionID,
		ProviderOrderID:        ev.OrderID,
		UpdatedAt:              now,
	}
	if err := e.store.UpsertSubscription(ctx, sub); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}

	log.Ctx(ctx).Info().Str("resolved_user_id", userID).Str("plan", string(ev.PlanType)).Msg("Subscription created")
	return nil
}

// handleSubscriptionUpdated treats any active update as past the first
// billing cycle. Calendar-based logic can replace this using e.now.
func (e *Engine) handleSubscriptionUpdated(ctx context.Context, ev *Event) error {
	filter, err := e.target(ctx, ev)
	if err != nil {
		return err
	}

	var patch Patch
	if ev.PlanType != "" {
		patch.PlanType = ptr(ev.PlanType)
	}
	switch ev.Status {
	case subscription.StatusActive:
		patch.Status = ptr(ev.Status)
		patch.IsFirstMonth = ptr(false)
		patch.ClearEndDate = true
	case subscription.StatusCancelled:
		patch.Status = ptr(ev.Status)
		patch.EndDate = ptr(e.now())
		filter.ExcludeLifetime = true
	case subscription.StatusPastDue:
		patch.Status = ptr(ev.Status)
	}

	return e.update(ctx, filter, patch, "Subscription updated")
}

func (e *Engine) handleSubscriptionCancelled(ctx context.Context, ev *Event) error {
	filter, err := e.target(ctx, ev)
	if err != nil {
		return err
	}
	filter.ExcludeLifetime = true

	patch := Patch{
		Status:  ptr(subscription.StatusCancelled),
		EndDate: ptr(e.now()),
	}
	return e.update(ctx, filter, patch, "Subscription cancelled")
}

func (e *Engine) handlePaymentSuccess(ctx context.Context, ev *Event) error {
	filter, err := e.target(ctx, ev)
	if err != nil {
		return err
	}

	patch := Patch{
		Status:       ptr(subscription.StatusActive),
		ClearEndDate: true,
	}
	if ev.PlanType != "" {
		patch.PlanType = ptr(ev.PlanType)
	}
	if ev.CustomerID != "" {
		patch.CustomerID = ptr(ev.CustomerID)
	}
	if ev.Renewal {
		patch.IsFirstMonth = ptr(false)
	}
	return e.update(ctx, filter, patch, "Subscription payment succeeded")
}

// handlePastDue keeps entitlement during the provider's dunning period.
func (e *Engine) handlePastDue(ctx context.Context, ev *Event) error {
	filter, err := e.target(ctx, ev)
	if err != nil {
		return err
	}
	patch := Patch{Status: ptr(subscription.StatusPastDue)}
	return e.update(ctx, filter, patch, "Subscription marked past due")
}

func (e *Engine) update(ctx context.Context, filter Filter, patch Patch, msg string) error {
	n, err := e.store.UpdateSubscription(ctx, filter, patch)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if n == 0 {
		log.Ctx(ctx).Info().Msg("No subscription row matched, nothing to update")
		return nil
	}
	log.Ctx(ctx).Info().Int64("rows", n).Msg(msg)
	return nil
}

// resolveUserID returns the local user id from custom data, falling back to an
// email lookup. It never invents a user.
func (e *Engine) resolveUserID(ctx context.Context, ev *Event) (string, error) {
	if ev.UserID != "" {
		return ev.UserID, nil
	}
	if ev.UserEmail == "" {
		return "", ErrMissingJoinKey
	}

	userID, err := e.store.FindUserIDByEmail(ctx, ev.UserEmail)
	if errors.Is(err, ErrUserNotFound) {
		return "", ErrMissingJoinKey
	}
	if err != nil {
		return "", fmt.Errorf("lookup user by email: %w", err)
	}
	log.Ctx(ctx).Info().Str("resolved_user_id", userID).Msg("Resolved webhook user by email")
	return userID, nil
}

// target picks the row filter for update handlers: the user when resolvable,
// otherwise the provider subscription id.
func (e *Engine) target(ctx context.Context, ev *Event) (Filter, error) {
	userID, err := e.resolveUserID(ctx, ev)
	switch {
	case err == nil:
		return Filter{UserID: userID}, nil
	case !errors.Is(err, ErrMissingJoinKey):
		return Filter{}, err
	case ev.SubscriptionID != "":
		return Filter{Provider: ev.Provider, SubscriptionID: ev.SubscriptionID}, nil
	}
	return Filter{}, ErrMissingJoinKey
}

func (e *Engine) record(ctx context.Context, rec WebhookRecord) {
	if e.recorder == nil {
		return
	}
	rec.ReceivedAt = e.now()
	if err := e.recorder.RecordWebhook(ctx, rec); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Failed to record webhook delivery")
	}
}
