package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/PratikDhanave/showmojo-webhook-service/internal/models"
)

// memState is one committed snapshot of the four tables.
type memState struct {
	events    map[string]models.Event
	showings  map[string]models.Showing
	listings  map[string]models.Listing
	prospects map[string]models.Prospect
}

func newMemState() memState {
	return memState{
		events:    map[string]models.Event{},
		showings:  map[string]models.Showing{},
		listings:  map[string]models.Listing{},
		prospects: map[string]models.Prospect{},
	}
}

func (s memState) clone() memState {
	c := newMemState()
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.showings {
		c.showings[k] = v
	}
	for k, v := range s.listings {
		c.listings[k] = v
	}
	for k, v := range s.prospects {
		c.prospects[k] = v
	}
	return c
}

// memStore is a transactional in-memory Store: each InTx works on a copy and
// swaps it in only on success.
type memStore struct {
	mu        sync.Mutex
	state     memState
	commits   int
	rollbacks int

	// raceShowingInserts makes the next n InsertShowing calls fail with
	// ErrUniqueViolation after onRace has committed a competing write.
	raceShowingInserts int
	onRace             func(s *memState)

	// failOn makes the named Tx method return failErr. failTimes > 0 limits
	// the failure to that many calls; zero fails every call.
	failOn    string
	failErr   error
	failTimes int
}

func newMemStore() *memStore {
	return &memStore{state: newMemState()}
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	work := m.state.clone()
	m.mu.Unlock()

	tx := &memTx{store: m, s: work}
	if err := fn(ctx, tx); err != nil {
		m.mu.Lock()
		m.rollbacks++
		m.mu.Unlock()
		return err
	}
	m.mu.Lock()
	m.state = tx.s
	m.commits++
	m.mu.Unlock()
	return nil
}

func (m *memStore) snapshot() memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

type memTx struct {
	store *memStore
	s     memState
}

func (t *memTx) fail(op string) error {
	m := t.store
	if m.failOn != op {
		return nil
	}
	if m.failTimes > 0 {
		m.failTimes--
		if m.failTimes == 0 {
			m.failOn = ""
		}
	}
	return m.failErr
}

func (t *memTx) InsertEvent(_ context.Context, e models.Event) (bool, error) {
	if err := t.fail("InsertEvent"); err != nil {
		return false, err
	}
	if _, ok := t.s.events[e.EventID]; ok {
		return false, nil
	}
	e.ID = int64(len(t.s.events) + 1)
	t.s.events[e.EventID] = e
	return true, nil
}

func (t *memTx) GetShowing(_ context.Context, uid string) (*models.Showing, error) {
	if err := t.fail("GetShowing"); err != nil {
		return nil, err
	}
	s, ok := t.s.showings[uid]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (t *memTx) InsertShowing(_ context.Context, s models.Showing) error {
	if err := t.fail("InsertShowing"); err != nil {
		return err
	}
	st := t.store
	st.mu.Lock()
	if st.raceShowingInserts > 0 {
		st.raceShowingInserts--
		if st.onRace != nil {
			st.onRace(&st.state)
		}
		st.mu.Unlock()
		return fmt.Errorf("%w: showings_uid_key", ErrUniqueViolation)
	}
	st.mu.Unlock()

	if _, ok := t.s.showings[s.UID]; ok {
		return fmt.Errorf("%w: showings_uid_key", ErrUniqueViolation)
	}
	if _, ok := t.s.events[s.EventID]; !ok {
		return fmt.Errorf("showing %s references missing event %s", s.UID, s.EventID)
	}
	s.ID = int64(len(t.s.showings) + 1)
	t.s.showings[s.UID] = s
	return nil
}

func (t *memTx) UpdateShowing(_ context.Context, s models.Showing) error {
	if err := t.fail("UpdateShowing"); err != nil {
		return err
	}
	if _, ok := t.s.showings[s.UID]; !ok {
		return fmt.Errorf("showing %s not found", s.UID)
	}
	t.s.showings[s.UID] = s
	return nil
}

func (t *memTx) GetListing(_ context.Context, uid string) (*models.Listing, error) {
	if err := t.fail("GetListing"); err != nil {
		return nil, err
	}
	l, ok := t.s.listings[uid]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (t *memTx) InsertListing(_ context.Context, l models.Listing) error {
	if err := t.fail("InsertListing"); err != nil {
		return err
	}
	if _, ok := t.s.listings[l.UID]; ok {
		return fmt.Errorf("%w: listings_uid_key", ErrUniqueViolation)
	}
	t.s.listings[l.UID] = l
	return nil
}

func (t *memTx) UpdateListing(_ context.Context, l models.Listing) error {
	if err := t.fail("UpdateListing"); err != nil {
		return err
	}
	t.s.listings[l.UID] = l
	return nil
}

func (t *memTx) GetProspect(_ context.Context, email string) (*models.Prospect, error) {
	if err := t.fail("GetProspect"); err != nil {
		return nil, err
	}
	p, ok := t.s.prospects[email]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *memTx) InsertProspect(_ context.Context, p models.Prospect) error {
	if err := t.fail("InsertProspect"); err != nil {
		return err
	}
	if _, ok := t.s.prospects[p.Email]; ok {
		return fmt.Errorf("%w: prospects_email_key", ErrUniqueViolation)
	}
	t.s.prospects[p.Email] = p
	return nil
}

func (t *memTx) UpdateProspect(_ context.Context, p models.Prospect) error {
	if err := t.fail("UpdateProspect"); err != nil {
		return err
	}
	t.s.prospects[p.Email] = p
	return nil
}

// showingsReferencing counts distinct showings per listing uid and email, the
// ground truth total_showings must match.
func (s memState) showingsReferencing() (map[string]int, map[string]int) {
	byListing, byEmail := map[string]int{}, map[string]int{}
	for _, sh := range s.showings {
		if sh.ListingUID != nil {
			byListing[*sh.ListingUID]++
		}
		if sh.Email != nil {
			byEmail[*sh.Email]++
		}
	}
	return byListing, byEmail
}
