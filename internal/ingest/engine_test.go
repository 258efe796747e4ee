package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/showmojo-webhook-service/internal/models"
)

// tickingClock returns a clock that advances one second per call.
func tickingClock() func() time.Time {
	t := time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestEngine() (*Engine, *memStore) {
	st := newMemStore()
	return NewEngine(st, WithClock(tickingClock())), st
}

// payload builds a webhook body; showing fields are raw JSON fragments so
// tests control exactly which keys are present.
func payload(eventID, createdAt string, showing ...string) []byte {
	body := fmt.Sprintf(`{"event":{"id":%q,"action":"lead_created","actor":"prospect","created_at":%q`, eventID, createdAt)
	if len(showing) > 0 {
		body += `,"showing":{` + strings.Join(showing, ",") + `}`
	}
	return []byte(body + `}}`)
}

func mustIngest(t *testing.T, e *Engine, raw []byte) ApplyResult {
	t.Helper()
	res, err := e.Ingest(context.Background(), raw)
	require.NoError(t, err)
	return res
}

func assertCountersMatchShowings(t *testing.T, s memState) {
	t.Helper()
	byListing, byEmail := s.showingsReferencing()
	for uid, l := range s.listings {
		assert.Equal(t, byListing[uid], l.TotalShowings, "listing %s total_showings", uid)
		assert.False(t, l.LastSeenAt.Before(l.FirstSeenAt), "listing %s last_seen_at < first_seen_at", uid)
	}
	for email, p := range s.prospects {
		assert.Equal(t, byEmail[email], p.TotalShowings, "prospect %s total_showings", email)
		assert.False(t, p.LastContactAt.Before(p.FirstContactAt), "prospect %s last_contact_at < first_contact_at", email)
	}
}

var scenarioA = payload("evt-1", "2025-10-31T10:00:00Z",
	`"uid":"shw-1"`,
	`"name":"Alex"`,
	`"phone":"555-0100"`,
	`"email":"a@x.com"`,
	`"listing_uid":"lst-1"`,
	`"listing_full_address":"1 Main St"`,
	`"notes":"first visit"`,
)

func TestScenarioA_NewEventCreatesShowingAndAggregates(t *testing.T) {
	e, st := newTestEngine()

	res := mustIngest(t, e, scenarioA)
	assert.Equal(t, ApplyResult{
		EventID:       "evt-1",
		EventStatus:   EventNew,
		ShowingStatus: ShowingCreated,
		ShowingUID:    "shw-1",
	}, res)

	s := st.snapshot()
	require.Contains(t, s.events, "evt-1")
	require.Contains(t, s.showings, "shw-1")
	assert.Equal(t, "evt-1", s.showings["shw-1"].EventID)

	listing := s.listings["lst-1"]
	assert.Equal(t, 1, listing.TotalShowings)
	assert.Equal(t, "1 Main St", listing.FullAddress)
	observed := time.Date(2025, 10, 31, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, observed, listing.FirstSeenAt)
	assert.Equal(t, observed, listing.LastSeenAt)

	prospect := s.prospects["a@x.com"]
	assert.Equal(t, 1, prospect.TotalShowings)
	require.NotNil(t, prospect.Name)
	assert.Equal(t, "Alex", *prospect.Name)
}

func TestScenarioB_ReplayIsDuplicateWithoutCounterChange(t *testing.T) {
	e, st := newTestEngine()
	mustIngest(t, e, scenarioA)
	first := st.snapshot()

	res := mustIngest(t, e, scenarioA)
	assert.Equal(t, EventDuplicate, res.EventStatus)
	assert.Equal(t, ShowingUpdated, res.ShowingStatus)

	second := st.snapshot()
	assert.Equal(t, first.events, second.events)
	assert.Equal(t, first.listings, second.listings)
	assert.Equal(t, first.prospects, second.prospects)

	// Only the bookkeeping timestamp moves on the showing.
	before, after := first.showings["shw-1"], second.showings["shw-1"]
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
	after.UpdatedAt = before.UpdatedAt
	assert.Equal(t, before, after)
}

func TestScenarioC_PartialUpdateKeepsOmittedFields(t *testing.T) {
	e, st := newTestEngine()
	mustIngest(t, e, scenarioA)

	res := mustIngest(t, e, payload("evt-2", "2025-10-31T11:00:00Z",
		`"uid":"shw-1"`,
		`"notes":"bring ID"`,
		`"email":"a@x.com"`,
		`"listing_uid":"lst-1"`,
		`"canceled_at":null`,
	))
	assert.Equal(t, EventNew, res.EventStatus)
	assert.Equal(t, ShowingUpdated, res.ShowingStatus)

	s := st.snapshot()
	sh := s.showings["shw-1"]
	assert.Equal(t, "evt-2", sh.EventID)
	require.NotNil(t, sh.Notes)
	assert.Equal(t, "bring ID", *sh.Notes)
	require.NotNil(t, sh.Phone)
	assert.Equal(t, "555-0100", *sh.Phone)
	require.NotNil(t, sh.Name)
	assert.Equal(t, "Alex", *sh.Name)
	assert.Nil(t, sh.CanceledAt)

	assert.Equal(t, 1, s.listings["lst-1"].TotalShowings)
	assert.Equal(t, 1, s.prospects["a@x.com"].TotalShowings)
	assert.Equal(t, time.Date(2025, 10, 31, 11, 0, 0, 0, time.UTC), s.listings["lst-1"].LastSeenAt)
	assert.Equal(t, time.Date(2025, 10, 31, 10, 0, 0, 0, time.UTC), s.listings["lst-1"].FirstSeenAt)
	assertCountersMatchShowings(t, s)
}

func TestScenarioD_SecondShowingOnListingIncrements(t *testing.T) {
	e, st := newTestEngine()
	mustIngest(t, e, scenarioA)

	res := mustIngest(t, e, payload("evt-3", "2025-10-31T12:00:00Z",
		`"uid":"shw-2"`,
		`"email":"b@x.com"`,
		`"listing_uid":"lst-1"`,
	))
	assert.Equal(t, ShowingCreated, res.ShowingStatus)

	s := st.snapshot()
	assert.Equal(t, 2, s.listings["lst-1"].TotalShowings)
	assert.Equal(t, "1 Main St", s.listings["lst-1"].FullAddress)
	assert.Equal(t, 1, s.prospects["a@x.com"].TotalShowings)
	assert.Equal(t, 1, s.prospects["b@x.com"].TotalShowings)
	assertCountersMatchShowings(t, s)
}

func TestScenarioE_MissingEventIDWritesNothing(t *testing.T) {
	e, st := newTestEngine()

	_, err := e.Ingest(context.Background(), []byte(`{"event":{"action":"lead_created","created_at":"2025-10-31T10:00:00Z","showing":{"uid":"shw-1"}}}`))
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	s := st.snapshot()
	assert.Empty(t, s.events)
	assert.Empty(t, s.showings)
	assert.Equal(t, 0, st.commits+st.rollbacks, "no unit of work may be opened for an invalid payload")
}

func TestEventWithoutShowing(t *testing.T) {
	e, st := newTestEngine()

	res := mustIngest(t, e, payload("evt-lead", "2025-10-31T10:00:00Z"))
	assert.Equal(t, EventNew, res.EventStatus)
	assert.Equal(t, ShowingNone, res.ShowingStatus)
	assert.Empty(t, res.ShowingUID)

	s := st.snapshot()
	assert.Len(t, s.events, 1)
	assert.Empty(t, s.showings)
	assert.Empty(t, s.listings)
}

func TestShowingWithoutEmailIsNotTrackedAsProspect(t *testing.T) {
	e, st := newTestEngine()

	mustIngest(t, e, payload("evt-1", "2025-10-31T10:00:00Z", `"uid":"shw-1"`, `"name":"No Email"`, `"listing_uid":"lst-1"`))

	s := st.snapshot()
	assert.Empty(t, s.prospects)
	assert.Equal(t, 1, s.listings["lst-1"].TotalShowings)
}

func TestListingWithoutAddressIsCreatedThenFilled(t *testing.T) {
	e, st := newTestEngine()

	mustIngest(t, e, payload("evt-1", "2025-10-31T10:00:00Z", `"uid":"shw-1"`, `"listing_uid":"lst-9"`))
	assert.Equal(t, "", st.snapshot().listings["lst-9"].FullAddress)

	mustIngest(t, e, payload("evt-2", "2025-10-31T11:00:00Z", `"uid":"shw-1"`, `"listing_full_address":"9 Elm St"`))
	l := st.snapshot().listings["lst-9"]
	assert.Equal(t, "9 Elm St", l.FullAddress)
	assert.Equal(t, 1, l.TotalShowings)
}

func TestLateReferenceIncrementsOnce(t *testing.T) {
	e, st := newTestEngine()

	mustIngest(t, e, payload("evt-1", "2025-10-31T10:00:00Z", `"uid":"shw-1"`))
	mustIngest(t, e, payload("evt-2", "2025-10-31T11:00:00Z", `"uid":"shw-1"`, `"email":"late@x.com"`, `"listing_uid":"lst-1"`))
	mustIngest(t, e, payload("evt-3", "2025-10-31T12:00:00Z", `"uid":"shw-1"`, `"notes":"again"`))

	s := st.snapshot()
	assert.Equal(t, 1, s.listings["lst-1"].TotalShowings)
	assert.Equal(t, 1, s.prospects["late@x.com"].TotalShowings)
	assertCountersMatchShowings(t, s)
}

func TestMovingShowingToAnotherListingMovesTheCount(t *testing.T) {
	e, st := newTestEngine()

	mustIngest(t, e, payload("evt-1", "2025-10-31T10:00:00Z", `"uid":"shw-1"`, `"email":"a@x.com"`, `"listing_uid":"lst-1"`))
	mustIngest(t, e, payload("evt-2", "2025-10-31T10:05:00Z", `"uid":"shw-2"`, `"email":"a@x.com"`, `"listing_uid":"lst-1"`))
	mustIngest(t, e, payload("evt-3", "2025-10-31T11:00:00Z", `"uid":"shw-1"`, `"email":"new@x.com"`, `"listing_uid":"lst-2"`))

	s := st.snapshot()
	assert.Equal(t, 1, s.listings["lst-1"].TotalShowings)
	assert.Equal(t, 1, s.listings["lst-2"].TotalShowings)
	assert.Equal(t, 1, s.prospects["a@x.com"].TotalShowings)
	assert.Equal(t, 1, s.prospects["new@x.com"].TotalShowings)
	assertCountersMatchShowings(t, s)
}

func TestCountersHoldUnderMixedDelivery(t *testing.T) {
	e, st := newTestEngine()

	deliveries := [][]byte{
		payload("e1", "2025-10-31T10:00:00Z", `"uid":"s1"`, `"email":"p1@x.com"`, `"listing_uid":"L1"`),
		payload("e1", "2025-10-31T10:00:00Z", `"uid":"s1"`, `"email":"p1@x.com"`, `"listing_uid":"L1"`),
		payload("e2", "2025-10-31T10:10:00Z", `"uid":"s2"`, `"email":"p1@x.com"`, `"listing_uid":"L1"`),
		payload("e3", "2025-10-31T09:00:00Z", `"uid":"s1"`, `"confirmed_at":"2025-10-31T09:00:00Z"`),
		payload("e4", "2025-10-31T10:20:00Z", `"uid":"s3"`, `"email":"p2@x.com"`, `"listing_uid":"L2"`),
		payload("e4", "2025-10-31T10:20:00Z", `"uid":"s3"`, `"email":"p2@x.com"`, `"listing_uid":"L2"`),
		payload("e5", "2025-10-31T10:30:00Z", `"uid":"s2"`, `"listing_uid":"L2"`),
		payload("e6", "2025-10-31T10:40:00Z"),
	}
	for _, d := range deliveries {
		mustIngest(t, e, d)
	}

	s := st.snapshot()
	assert.Len(t, s.events, 6)
	assert.Len(t, s.showings, 3)
	assert.Equal(t, 1, s.listings["L1"].TotalShowings)
	assert.Equal(t, 2, s.listings["L2"].TotalShowings)
	assert.Equal(t, 2, s.prospects["p1@x.com"].TotalShowings)
	// The out-of-order e3 widened the window backwards.
	assert.Equal(t, time.Date(2025, 10, 31, 9, 0, 0, 0, time.UTC), s.listings["L1"].FirstSeenAt)
	assertCountersMatchShowings(t, s)
}

func TestRaceOnShowingInsertRetriesAsUpdate(t *testing.T) {
	e, st := newTestEngine()
	st.raceShowingInserts = 1
	st.onRace = func(s *memState) {
		uid, listing := "lst-1", "1 Main St"
		s.events["evt-other"] = models.Event{EventID: "evt-other", Action: "lead_created"}
		s.showings["shw-1"] = models.Showing{UID: "shw-1", EventID: "evt-other", ListingUID: &uid, ListingFullAddress: &listing}
		s.listings["lst-1"] = models.Listing{UID: "lst-1", FullAddress: listing, TotalShowings: 1,
			FirstSeenAt: time.Date(2025, 10, 31, 9, 0, 0, 0, time.UTC), LastSeenAt: time.Date(2025, 10, 31, 9, 0, 0, 0, time.UTC)}
	}

	res := mustIngest(t, e, scenarioA)
	assert.Equal(t, EventNew, res.EventStatus)
	assert.Equal(t, ShowingUpdated, res.ShowingStatus)
	assert.Equal(t, 1, st.rollbacks)

	s := st.snapshot()
	assert.Equal(t, "evt-1", s.showings["shw-1"].EventID)
	assert.Equal(t, 1, s.listings["lst-1"].TotalShowings)
	assertCountersMatchShowings(t, s)
}

func TestRepeatedRaceSurfacesConflict(t *testing.T) {
	e, st := newTestEngine()
	st.raceShowingInserts = 2

	_, err := e.Ingest(context.Background(), scenarioA)
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.Equal(t, 2, st.rollbacks)
	assert.Empty(t, st.snapshot().events)
}

func TestWriteFailureRollsBackEverything(t *testing.T) {
	for _, op := range []string{"InsertShowing", "GetListing", "InsertListing", "InsertProspect"} {
		t.Run(op, func(t *testing.T) {
			e, st := newTestEngine()
			st.failOn = op
			st.failErr = errors.New("disk full")

			_, err := e.Ingest(context.Background(), scenarioA)
			require.Error(t, err)
			assert.False(t, IsConflict(err))

			s := st.snapshot()
			assert.Empty(t, s.events, "event must not be recorded when its showing effects are lost")
			assert.Empty(t, s.showings)
			assert.Empty(t, s.listings)
			assert.Empty(t, s.prospects)
		})
	}
}

func TestStoreUnavailableIsNotRetried(t *testing.T) {
	e, st := newTestEngine()
	st.failOn = "InsertEvent"
	st.failErr = fmt.Errorf("%w: connection refused", ErrStoreUnavailable)

	_, err := e.Ingest(context.Background(), scenarioA)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, 1, st.rollbacks)
	assert.Equal(t, "store_unavailable", errorKind(err))
}

func TestDeadlockIsRetriedOnce(t *testing.T) {
	e, st := newTestEngine()
	st.failOn = "UpdateListing"
	st.failErr = fmt.Errorf("%w: deadlock detected", ErrTxAborted)
	st.failTimes = 1

	mustIngest(t, e, scenarioA)
	res := mustIngest(t, e, payload("evt-2", "2025-10-31T11:00:00Z",
		`"uid":"shw-2"`, `"listing_uid":"lst-1"`, `"email":"jane@example.com"`))
	assert.Equal(t, ShowingCreated, res.ShowingStatus)
	assert.Equal(t, 1, st.rollbacks)

	s := st.snapshot()
	assert.Equal(t, 2, s.listings["lst-1"].TotalShowings)
	assertCountersMatchShowings(t, s)
}

func TestRepeatedDeadlockSurfacesConflict(t *testing.T) {
	e, st := newTestEngine()
	st.failOn = "InsertShowing"
	st.failErr = fmt.Errorf("%w: could not serialize access", ErrTxAborted)

	_, err := e.Ingest(context.Background(), scenarioA)
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.ErrorIs(t, err, ErrTxAborted)
	assert.Equal(t, 2, st.rollbacks)
	assert.Equal(t, "conflict", errorKind(err))
}

func TestStoreRejectedValueIsValidationAndNotRetried(t *testing.T) {
	e, st := newTestEngine()
	st.failOn = "InsertShowing"
	st.failErr = &ValidationError{Field: "notes", Reason: "invalid byte sequence"}

	_, err := e.Ingest(context.Background(), scenarioA)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, 1, st.rollbacks)
	assert.Equal(t, "validation", errorKind(err))
	assert.Empty(t, st.snapshot().events)
}
