package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/PratikDhanave/showmojo-webhook-service/internal/models"
)

// total_showings counts distinct showings referencing a listing or prospect,
// not events. It moves by one only when a showing starts or stops referencing
// the key; a plain showing update refreshes timestamps and nothing else.

func newListing(uid, address string, observedAt time.Time) models.Listing {
	return models.Listing{
		UID:           uid,
		FullAddress:   address,
		FirstSeenAt:   observedAt,
		LastSeenAt:    observedAt,
		TotalShowings: 1,
	}
}

func advanceListing(l models.Listing, address string, observedAt time.Time, increment bool) models.Listing {
	if address != "" {
		l.FullAddress = address
	}
	l.FirstSeenAt, l.LastSeenAt = widen(l.FirstSeenAt, l.LastSeenAt, observedAt)
	if increment {
		l.TotalShowings++
	}
	return l
}

func newProspect(email string, name, phone *string, observedAt time.Time) models.Prospect {
	return models.Prospect{
		Email:          email,
		Name:           nonBlank(name),
		Phone:          nonBlank(phone),
		FirstContactAt: observedAt,
		LastContactAt:  observedAt,
		TotalShowings:  1,
	}
}

func advanceProspect(p models.Prospect, name, phone *string, observedAt time.Time, increment bool) models.Prospect {
	if n := nonBlank(name); n != nil {
		p.Name = n
	}
	if ph := nonBlank(phone); ph != nil {
		p.Phone = ph
	}
	p.FirstContactAt, p.LastContactAt = widen(p.FirstContactAt, p.LastContactAt, observedAt)
	if increment {
		p.TotalShowings++
	}
	return p
}

// widen stretches [first, last] to include t, keeping last >= first even when
// events arrive out of order.
func widen(first, last, t time.Time) (time.Time, time.Time) {
	if t.Before(first) {
		first = t
	}
	if t.After(last) {
		last = t
	}
	if last.Before(first) {
		last = first
	}
	return first, last
}

func decrement(n int) int {
	if n <= 0 {
		return 0
	}
	return n - 1
}

func nonBlank(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// touchListing creates the listing or refreshes it; increment is true only
// when the showing newly references uid.
func touchListing(ctx context.Context, tx Tx, uid, address string, observedAt time.Time, increment bool) error {
	cur, err := tx.GetListing(ctx, uid)
	if err != nil {
		return fmt.Errorf("get listing %s: %w", uid, err)
	}
	if cur == nil {
		if err := tx.InsertListing(ctx, newListing(uid, address, observedAt)); err != nil {
			return fmt.Errorf("insert listing %s: %w", uid, err)
		}
		return nil
	}
	if err := tx.UpdateListing(ctx, advanceListing(*cur, address, observedAt, increment)); err != nil {
		return fmt.Errorf("update listing %s: %w", uid, err)
	}
	return nil
}

// releaseListing drops one showing from the listing's count.
func releaseListing(ctx context.Context, tx Tx, uid string) error {
	cur, err := tx.GetListing(ctx, uid)
	if err != nil {
		return fmt.Errorf("get listing %s: %w", uid, err)
	}
	if cur == nil {
		return nil
	}
	cur.TotalShowings = decrement(cur.TotalShowings)
	if err := tx.UpdateListing(ctx, *cur); err != nil {
		return fmt.Errorf("update listing %s: %w", uid, err)
	}
	return nil
}

func touchProspect(ctx context.Context, tx Tx, email string, name, phone *string, observedAt time.Time, increment bool) error {
	cur, err := tx.GetProspect(ctx, email)
	if err != nil {
		return fmt.Errorf("get prospect %s: %w", email, err)
	}
	if cur == nil {
		if err := tx.InsertProspect(ctx, newProspect(email, name, phone, observedAt)); err != nil {
			return fmt.Errorf("insert prospect %s: %w", email, err)
		}
		return nil
	}
	if err := tx.UpdateProspect(ctx, advanceProspect(*cur, name, phone, observedAt, increment)); err != nil {
		return fmt.Errorf("update prospect %s: %w", email, err)
	}
	return nil
}

func releaseProspect(ctx context.Context, tx Tx, email string) error {
	cur, err := tx.GetProspect(ctx, email)
	if err != nil {
		return fmt.Errorf("get prospect %s: %w", email, err)
	}
	if cur == nil {
		return nil
	}
	cur.TotalShowings = decrement(cur.TotalShowings)
	if err := tx.UpdateProspect(ctx, *cur); err != nil {
		return fmt.Errorf("update prospect %s: %w", email, err)
	}
	return nil
}

// transition is how a showing's reference to one aggregate key changed.
type transition int

const (
	refNone     transition = iota // no key after the write
	refAdded                      // key newly referenced: increment
	refKept                       // same key as before: touch only
	refMoved                      // key changed: release old, increment new
)

func classify(before *models.Showing, beforeKey, afterKey string) transition {
	switch {
	case afterKey == "":
		return refNone
	case before == nil || beforeKey == "":
		return refAdded
	case beforeKey == afterKey:
		return refKept
	default:
		return refMoved
	}
}

// syncAggregates applies the listing and prospect side effects of one showing
// write. before is nil when the showing was just created.
func syncAggregates(ctx context.Context, tx Tx, before *models.Showing, after models.Showing, observedAt time.Time) error {
	var oldListing, oldEmail string
	if before != nil {
		oldListing, oldEmail = deref(before.ListingUID), deref(before.Email)
	}
	newListingUID, newEmail := deref(after.ListingUID), deref(after.Email)
	address := deref(after.ListingFullAddress)

	switch classify(before, oldListing, newListingUID) {
	case refAdded:
		if err := touchListing(ctx, tx, newListingUID, address, observedAt, true); err != nil {
			return err
		}
	case refKept:
		if err := touchListing(ctx, tx, newListingUID, address, observedAt, false); err != nil {
			return err
		}
	case refMoved:
		if err := releaseListing(ctx, tx, oldListing); err != nil {
			return err
		}
		if err := touchListing(ctx, tx, newListingUID, address, observedAt, true); err != nil {
			return err
		}
	}

	switch classify(before, oldEmail, newEmail) {
	case refAdded:
		return touchProspect(ctx, tx, newEmail, after.Name, after.Phone, observedAt, true)
	case refKept:
		return touchProspect(ctx, tx, newEmail, after.Name, after.Phone, observedAt, false)
	case refMoved:
		if err := releaseProspect(ctx, tx, oldEmail); err != nil {
			return err
		}
		return touchProspect(ctx, tx, newEmail, after.Name, after.Phone, observedAt, true)
	}
	return nil
}
