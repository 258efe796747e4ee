package models

import "time"

// Showing is a scheduled property viewing identified by the source uid.
// EventID points at the event that most recently described it.
type Showing struct {
	ID                        int64      `db:"id" json:"id"`
	UID                       string     `db:"uid" json:"uid"`
	EventID                   string     `db:"event_id" json:"event_id"`
	CreatedAt                 *time.Time `db:"created_at" json:"created_at"`
	Showtime                  *time.Time `db:"showtime" json:"showtime"`
	ShowingTimeZone           *string    `db:"showing_time_zone" json:"showing_time_zone"`
	ShowingTimeZoneUTCOffset  *int       `db:"showing_time_zone_utc_offset" json:"showing_time_zone_utc_offset"`
	Name                      *string    `db:"name" json:"name"`
	Phone                     *string    `db:"phone" json:"phone"`
	Email                     *string    `db:"email" json:"email"`
	Notes                     *string    `db:"notes" json:"notes"`
	ListingUID                *string    `db:"listing_uid" json:"listing_uid"`
	ListingFullAddress        *string    `db:"listing_full_address" json:"listing_full_address"`
	IsSelfShow                *bool      `db:"is_self_show" json:"is_self_show"`
	ConfirmedAt               *time.Time `db:"confirmed_at" json:"confirmed_at"`
	CanceledAt                *time.Time `db:"canceled_at" json:"canceled_at"`
	SelfShowCodeDistributedAt *time.Time `db:"self_show_code_distributed_at" json:"self_show_code_distributed_at"`
	UpdatedAt                 time.Time  `db:"updated_at" json:"updated_at"`
}

// Listing aggregates the showings that reference a listing uid.
type Listing struct {
	ID            int64     `db:"id" json:"id"`
	UID           string    `db:"uid" json:"uid"`
	FullAddress   string    `db:"full_address" json:"full_address"`
	FirstSeenAt   time.Time `db:"first_seen_at" json:"first_seen_at"`
	LastSeenAt    time.Time `db:"last_seen_at" json:"last_seen_at"`
	TotalShowings int       `db:"total_showings" json:"total_showings"`
}

// Prospect aggregates the showings booked under one email address.
type Prospect struct {
	ID             int64     `db:"id" json:"id"`
	Email          string    `db:"email" json:"email"`
	Name           *string   `db:"name" json:"name"`
	Phone          *string   `db:"phone" json:"phone"`
	FirstContactAt time.Time `db:"first_contact_at" json:"first_contact_at"`
	LastContactAt  time.Time `db:"last_contact_at" json:"last_contact_at"`
	TotalShowings  int       `db:"total_showings" json:"total_showings"`
}
