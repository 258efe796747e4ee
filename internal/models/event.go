package models

import "time"

// Event is one received webhook delivery. Rows are written once per event_id
// and never modified afterwards.
type Event struct {
	ID             int64     `db:"id" json:"id"`
	EventID        string    `db:"event_id" json:"event_id"`
	Action         string    `db:"action" json:"action"`
	Actor          *string   `db:"actor" json:"actor"`
	TeamMemberName *string   `db:"team_member_name" json:"team_member_name"`
	TeamMemberUID  *string   `db:"team_member_uid" json:"team_member_uid"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	ReceivedAt     time.Time `db:"received_at" json:"received_at"`
	RawPayload     []byte    `db:"raw_payload" json:"-"`
}

// WebhookResponse is returned by POST /webhook.
// Status is "success" for a newly recorded event and "duplicate" when the
// event_id had already been seen (the showing may still have been updated).
type WebhookResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	EventID       string `json:"event_id,omitempty"`
	EventStatus   string `json:"event_status,omitempty"`
	ShowingStatus string `json:"showing_status,omitempty"`
	ShowingUID    string `json:"showing_uid,omitempty"`
}
