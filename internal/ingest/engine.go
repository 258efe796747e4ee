package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PratikDhanave/showmojo-webhook-service/internal/logging"
	"github.com/PratikDhanave/showmojo-webhook-service/internal/metrics"
)

// Engine applies normalized webhook payloads to the entity store.
//
// Each call is one unit of work: the event row, the showing row and the
// listing/prospect aggregates commit together or not at all. Concurrency is
// left to the store's unique constraints and row locks; a lost insert race or
// a deadlock is retried once and then reported as a ConflictError.
type Engine struct {
	store Store
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock used for received_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an Engine writing through store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{store: store, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ingest normalizes raw and applies it. Validation errors are returned before
// any write is attempted.
func (e *Engine) Ingest(ctx context.Context, raw []byte) (ApplyResult, error) {
	start := time.Now()

	ev, sh, err := Normalize(raw, e.now())
	if err != nil {
		metrics.RecordIngestError("validation", time.Since(start))
		logging.Ctx(ctx).Warn().Err(err).Msg("webhook payload rejected")
		return ApplyResult{}, err
	}

	res, err := e.Apply(ctx, ev, sh)
	if err != nil {
		metrics.RecordIngestError(errorKind(err), time.Since(start))
		return res, err
	}
	metrics.RecordIngest(string(res.EventStatus), string(res.ShowingStatus), time.Since(start))
	return res, nil
}

// Apply writes one event and its optional showing.
func (e *Engine) Apply(ctx context.Context, ev EventRecord, sh *ShowingRecord) (ApplyResult, error) {
	log := logging.Ctx(ctx).With().Str("event_id", ev.EventID).Str("action", ev.Action).Logger()

	res, err := e.applyOnce(ctx, ev, sh)
	if retryable(err) {
		metrics.WebhookIngestRetries.Inc()
		log.Debug().Err(err).Msg("lost a concurrent write, retrying once")
		res, err = e.applyOnce(ctx, ev, sh)
		if retryable(err) {
			err = &ConflictError{EventID: ev.EventID, Err: err}
		}
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to apply webhook event")
		return ApplyResult{}, err
	}

	log.Info().
		Str("event_status", string(res.EventStatus)).
		Str("showing_status", string(res.ShowingStatus)).
		Str("showing_uid", res.ShowingUID).
		Msg("webhook event applied")
	return res, nil
}

func (e *Engine) applyOnce(ctx context.Context, ev EventRecord, sh *ShowingRecord) (ApplyResult, error) {
	var res ApplyResult
	err := e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		res, err = e.apply(ctx, tx, ev, sh)
		return err
	})
	return res, err
}

func (e *Engine) apply(ctx context.Context, tx Tx, ev EventRecord, sh *ShowingRecord) (ApplyResult, error) {
	res := ApplyResult{
		EventID:       ev.EventID,
		EventStatus:   EventNew,
		ShowingStatus: ShowingNone,
	}

	inserted, err := tx.InsertEvent(ctx, ev.model())
	if err != nil {
		return res, fmt.Errorf("insert event %s: %w", ev.EventID, err)
	}
	if !inserted {
		// Event dedup and showing dedup are independent: a resent event may
		// still carry corrected showing fields.
		res.EventStatus = EventDuplicate
	}
	if sh == nil {
		return res, nil
	}
	res.ShowingUID = sh.UID

	now := e.now().UTC()
	observedAt := ev.CreatedAt

	existing, err := tx.GetShowing(ctx, sh.UID)
	if err != nil {
		return res, fmt.Errorf("get showing %s: %w", sh.UID, err)
	}

	if existing == nil {
		row := sh.newShowing(ev.EventID, now)
		if err := tx.InsertShowing(ctx, row); err != nil {
			return res, fmt.Errorf("insert showing %s: %w", sh.UID, err)
		}
		res.ShowingStatus = ShowingCreated
		return res, syncAggregates(ctx, tx, nil, row, observedAt)
	}

	before := *existing
	after := *existing
	sh.mergeInto(&after)
	after.EventID = ev.EventID
	after.UpdatedAt = now
	if err := tx.UpdateShowing(ctx, after); err != nil {
		return res, fmt.Errorf("update showing %s: %w", sh.UID, err)
	}
	res.ShowingStatus = ShowingUpdated
	return res, syncAggregates(ctx, tx, &before, after, observedAt)
}

func errorKind(err error) string {
	switch {
	case IsValidation(err):
		return "validation"
	case IsConflict(err):
		return "conflict"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "internal"
	}
}
