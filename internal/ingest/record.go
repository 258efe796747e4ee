package ingest

import (
	"time"

	"github.com/PratikDhanave/showmojo-webhook-service/internal/models"
)

// EventStatus classifies the event row outcome of one Apply.
type EventStatus string

const (
	EventNew       EventStatus = "new"
	EventDuplicate EventStatus = "duplicate"
)

// ShowingStatus classifies the showing row outcome of one Apply.
type ShowingStatus string

const (
	ShowingNone    ShowingStatus = "none"
	ShowingCreated ShowingStatus = "created"
	ShowingUpdated ShowingStatus = "updated"
)

// ApplyResult reports what one ingested payload did to the store.
type ApplyResult struct {
	EventID       string
	EventStatus   EventStatus
	ShowingStatus ShowingStatus
	ShowingUID    string
}

// EventRecord is the canonical form of payload.event.
type EventRecord struct {
	EventID        string
	Action         string
	Actor          Field[string]
	TeamMemberName Field[string]
	TeamMemberUID  Field[string]
	CreatedAt      time.Time
	ReceivedAt     time.Time
	RawPayload     []byte
}

func (r EventRecord) model() models.Event {
	return models.Event{
		EventID:        r.EventID,
		Action:         r.Action,
		Actor:          r.Actor.Ptr(),
		TeamMemberName: r.TeamMemberName.Ptr(),
		TeamMemberUID:  r.TeamMemberUID.Ptr(),
		CreatedAt:      r.CreatedAt,
		ReceivedAt:     r.ReceivedAt,
		RawPayload:     r.RawPayload,
	}
}

// ShowingRecord is the canonical form of payload.event.showing.
// Every field except UID may be absent.
type ShowingRecord struct {
	UID                       string
	CreatedAt                 Field[time.Time]
	Showtime                  Field[time.Time]
	ShowingTimeZone           Field[string]
	ShowingTimeZoneUTCOffset  Field[int]
	Name                      Field[string]
	Phone                     Field[string]
	Email                     Field[string]
	Notes                     Field[string]
	ListingUID                Field[string]
	ListingFullAddress        Field[string]
	IsSelfShow                Field[bool]
	ConfirmedAt               Field[time.Time]
	CanceledAt                Field[time.Time]
	SelfShowCodeDistributedAt Field[time.Time]
}

// newShowing builds the row inserted on first sight of a uid.
func (r ShowingRecord) newShowing(eventID string, now time.Time) models.Showing {
	s := models.Showing{UID: r.UID, EventID: eventID, UpdatedAt: now}
	r.mergeInto(&s)
	return s
}

// mergeInto coalesces every present, non-null field over s.
func (r ShowingRecord) mergeInto(s *models.Showing) {
	s.CreatedAt = r.CreatedAt.Or(s.CreatedAt)
	s.Showtime = r.Showtime.Or(s.Showtime)
	s.ShowingTimeZone = r.ShowingTimeZone.Or(s.ShowingTimeZone)
	s.ShowingTimeZoneUTCOffset = r.ShowingTimeZoneUTCOffset.Or(s.ShowingTimeZoneUTCOffset)
	s.Name = r.Name.Or(s.Name)
	s.Phone = r.Phone.Or(s.Phone)
	s.Email = r.Email.Or(s.Email)
	s.Notes = r.Notes.Or(s.Notes)
	s.ListingUID = r.ListingUID.Or(s.ListingUID)
	s.ListingFullAddress = r.ListingFullAddress.Or(s.ListingFullAddress)
	s.IsSelfShow = r.IsSelfShow.Or(s.IsSelfShow)
	s.ConfirmedAt = r.ConfirmedAt.Or(s.ConfirmedAt)
	s.CanceledAt = r.CanceledAt.Or(s.CanceledAt)
	s.SelfShowCodeDistributedAt = r.SelfShowCodeDistributedAt.Or(s.SelfShowCodeDistributedAt)
}
