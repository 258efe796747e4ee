package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/PratikDhanave/showmojo-webhook-service/internal/models"
)

var (
	eventColumns = []string{"id", "event_id", "action", "actor", "team_member_name",
		"team_member_uid", "created_at", "received_at", "raw_payload"}

	showingColumns = []string{"id", "uid", "event_id", "created_at", "showtime",
		"showing_time_zone", "showing_time_zone_utc_offset", "name", "phone", "email",
		"notes", "listing_uid", "listing_full_address", "is_self_show", "confirmed_at",
		"canceled_at", "self_show_code_distributed_at", "updated_at"}

	listingColumns = []string{"id", "uid", "full_address", "first_seen_at",
		"last_seen_at", "total_showings"}

	prospectColumns = []string{"id", "email", "name", "phone", "first_contact_at",
		"last_contact_at", "total_showings"}
)

// pgTx implements ingest.Tx on top of one pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

// InsertEvent returns inserted=false when the event_id was already recorded.
//
// Duplicate detection is enforced by the unique constraint on event_id, which
// is compatible with retries and at-least-once delivery.
func (t *pgTx) InsertEvent(ctx context.Context, e models.Event) (bool, error) {
	// RETURNING 1 only when inserted; duplicates return no rows.
	var one int
	err := t.tx.QueryRow(ctx, `
		INSERT INTO events(event_id, action, actor, team_member_name, team_member_uid,
			created_at, received_at, raw_payload)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING 1
	`, e.EventID, e.Action, e.Actor, e.TeamMemberName, e.TeamMemberUID,
		e.CreatedAt, e.ReceivedAt, e.RawPayload).Scan(&one)

	if err == nil {
		return true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return false, classify(err)
}

func (t *pgTx) GetShowing(ctx context.Context, uid string) (*models.Showing, error) {
	return lockOne[models.Showing](ctx, t.tx,
		`SELECT `+strings.Join(showingColumns, ", ")+` FROM showings WHERE uid = $1 FOR UPDATE`, uid)
}

func (t *pgTx) InsertShowing(ctx context.Context, s models.Showing) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO showings(uid, event_id, created_at, showtime, showing_time_zone,
			showing_time_zone_utc_offset, name, phone, email, notes, listing_uid,
			listing_full_address, is_self_show, confirmed_at, canceled_at,
			self_show_code_distributed_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, s.UID, s.EventID, s.CreatedAt, s.Showtime, s.ShowingTimeZone,
		s.ShowingTimeZoneUTCOffset, s.Name, s.Phone, s.Email, s.Notes, s.ListingUID,
		s.ListingFullAddress, s.IsSelfShow, s.ConfirmedAt, s.CanceledAt,
		s.SelfShowCodeDistributedAt, s.UpdatedAt)
	return classify(err)
}

func (t *pgTx) UpdateShowing(ctx context.Context, s models.Showing) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE showings SET
			event_id = $2, created_at = $3, showtime = $4, showing_time_zone = $5,
			showing_time_zone_utc_offset = $6, name = $7, phone = $8, email = $9,
			notes = $10, listing_uid = $11, listing_full_address = $12,
			is_self_show = $13, confirmed_at = $14, canceled_at = $15,
			self_show_code_distributed_at = $16, updated_at = $17
		WHERE uid = $1
	`, s.UID, s.EventID, s.CreatedAt, s.Showtime, s.ShowingTimeZone,
		s.ShowingTimeZoneUTCOffset, s.Name, s.Phone, s.Email, s.Notes, s.ListingUID,
		s.ListingFullAddress, s.IsSelfShow, s.ConfirmedAt, s.CanceledAt,
		s.SelfShowCodeDistributedAt, s.UpdatedAt)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update showing %s: %w", s.UID, ErrNotFound)
	}
	return nil
}

func (t *pgTx) GetListing(ctx context.Context, uid string) (*models.Listing, error) {
	return lockOne[models.Listing](ctx, t.tx,
		`SELECT `+strings.Join(listingColumns, ", ")+` FROM listings WHERE uid = $1 FOR UPDATE`, uid)
}

func (t *pgTx) InsertListing(ctx context.Context, l models.Listing) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO listings(uid, full_address, first_seen_at, last_seen_at, total_showings)
		VALUES ($1,$2,$3,$4,$5)
	`, l.UID, l.FullAddress, l.FirstSeenAt, l.LastSeenAt, l.TotalShowings)
	return classify(err)
}

func (t *pgTx) UpdateListing(ctx context.Context, l models.Listing) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE listings
		SET full_address = $2, first_seen_at = $3, last_seen_at = $4, total_showings = $5
		WHERE uid = $1
	`, l.UID, l.FullAddress, l.FirstSeenAt, l.LastSeenAt, l.TotalShowings)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update listing %s: %w", l.UID, ErrNotFound)
	}
	return nil
}

func (t *pgTx) GetProspect(ctx context.Context, email string) (*models.Prospect, error) {
	return lockOne[models.Prospect](ctx, t.tx,
		`SELECT `+strings.Join(prospectColumns, ", ")+` FROM prospects WHERE email = $1 FOR UPDATE`, email)
}

func (t *pgTx) InsertProspect(ctx context.Context, p models.Prospect) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO prospects(email, name, phone, first_contact_at, last_contact_at, total_showings)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, p.Email, p.Name, p.Phone, p.FirstContactAt, p.LastContactAt, p.TotalShowings)
	return classify(err)
}

func (t *pgTx) UpdateProspect(ctx context.Context, p models.Prospect) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE prospects
		SET name = $2, phone = $3, first_contact_at = $4, last_contact_at = $5, total_showings = $6
		WHERE email = $1
	`, p.Email, p.Name, p.Phone, p.FirstContactAt, p.LastContactAt, p.TotalShowings)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update prospect %s: %w", p.Email, ErrNotFound)
	}
	return nil
}

// lockOne scans at most one row into T. A missing row is (nil, nil).
func lockOne[T any](ctx context.Context, tx pgx.Tx, sql string, args ...any) (*T, error) {
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(err)
	}
	v, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return &v, nil
}
