package ingest

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

// object is one decoded JSON object whose values are kept raw so each key can
// be classified as absent, null or present.
type object struct {
	path   string
	fields map[string]json.RawMessage
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeObject(path string, raw json.RawMessage) (object, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return object{}, invalid(path, "must be a JSON object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return object{}, invalid(path, "must be a JSON object")
	}
	return object{path: path, fields: fields}, nil
}

func (o object) name(key string) string {
	if o.path == "" {
		return key
	}
	return o.path + "." + key
}

// Normalize turns a raw webhook body into canonical records. It performs no
// I/O; receivedAt is stamped onto the event as given.
//
// The showing record is nil when event.showing is absent or null.
func Normalize(raw []byte, receivedAt time.Time) (EventRecord, *ShowingRecord, error) {
	// raw is stored verbatim, so it must be text Postgres accepts.
	if !utf8.Valid(raw) {
		return EventRecord{}, nil, invalid("body", "is not valid UTF-8")
	}
	if !json.Valid(raw) {
		return EventRecord{}, nil, invalid("body", "is not valid JSON")
	}
	root, err := decodeObject("body", raw)
	if err != nil {
		return EventRecord{}, nil, err
	}
	root.path = ""

	eventRaw, ok := root.fields["event"]
	if !ok || isNull(eventRaw) {
		return EventRecord{}, nil, invalid("event", "is required")
	}
	ev, err := decodeObject("event", eventRaw)
	if err != nil {
		return EventRecord{}, nil, err
	}

	rec := EventRecord{
		ReceivedAt: receivedAt.UTC(),
		RawPayload: append([]byte(nil), raw...),
	}
	if rec.EventID, err = requiredString(ev, "id"); err != nil {
		return EventRecord{}, nil, err
	}
	if rec.Action, err = requiredString(ev, "action"); err != nil {
		return EventRecord{}, nil, err
	}
	createdAt, err := optional(ev, "created_at", parseTimestamp)
	if err != nil {
		return EventRecord{}, nil, err
	}
	ts, ok := createdAt.Get()
	if !ok {
		return EventRecord{}, nil, invalid(ev.name("created_at"), "is required")
	}
	rec.CreatedAt = ts

	if rec.Actor, err = optional(ev, "actor", parseString); err != nil {
		return EventRecord{}, nil, err
	}
	if rec.TeamMemberName, err = optional(ev, "team_member_name", parseString); err != nil {
		return EventRecord{}, nil, err
	}
	if rec.TeamMemberUID, err = optional(ev, "team_member_uid", parseString); err != nil {
		return EventRecord{}, nil, err
	}

	showingRaw, ok := ev.fields["showing"]
	if !ok || isNull(showingRaw) {
		return rec, nil, nil
	}
	sh, err := decodeObject(ev.name("showing"), showingRaw)
	if err != nil {
		return EventRecord{}, nil, err
	}
	showing, err := normalizeShowing(sh)
	if err != nil {
		return EventRecord{}, nil, err
	}
	return rec, showing, nil
}

func normalizeShowing(o object) (*ShowingRecord, error) {
	uid, err := requiredString(o, "uid")
	if err != nil {
		return nil, err
	}
	r := &ShowingRecord{UID: uid}

	strs := []struct {
		key   string
		dst   *Field[string]
		parse func(json.RawMessage) (string, error)
	}{
		{"showing_time_zone", &r.ShowingTimeZone, parseString},
		{"name", &r.Name, parseString},
		{"phone", &r.Phone, parseString},
		{"email", &r.Email, parseEmail},
		{"notes", &r.Notes, parseString},
		{"listing_uid", &r.ListingUID, parseKey},
		{"listing_full_address", &r.ListingFullAddress, parseString},
	}
	for _, s := range strs {
		if *s.dst, err = optional(o, s.key, s.parse); err != nil {
			return nil, err
		}
	}
	// email and listing_uid key the aggregates; a blank one references nothing.
	r.Email = blankAsNull(r.Email)
	r.ListingUID = blankAsNull(r.ListingUID)

	times := []struct {
		key string
		dst *Field[time.Time]
	}{
		{"created_at", &r.CreatedAt},
		{"showtime", &r.Showtime},
		{"confirmed_at", &r.ConfirmedAt},
		{"canceled_at", &r.CanceledAt},
		{"self_show_code_distributed_at", &r.SelfShowCodeDistributedAt},
	}
	for _, t := range times {
		if *t.dst, err = optional(o, t.key, parseTimestamp); err != nil {
			return nil, err
		}
	}

	if r.ShowingTimeZoneUTCOffset, err = optional(o, "showing_time_zone_utc_offset", parseInt); err != nil {
		return nil, err
	}
	if r.IsSelfShow, err = optional(o, "is_self_show", parseBool); err != nil {
		return nil, err
	}
	return r, nil
}

// errWrongType is replaced by a ValidationError naming the offending key.
type errWrongType string

func (e errWrongType) Error() string { return string(e) }

func optional[T any](o object, key string, parse func(json.RawMessage) (T, error)) (Field[T], error) {
	raw, ok := o.fields[key]
	if !ok {
		return Field[T]{}, nil
	}
	if isNull(raw) {
		return Null[T](), nil
	}
	v, err := parse(raw)
	if err != nil {
		return Field[T]{}, invalid(o.name(key), err.Error())
	}
	return Value(v), nil
}

func requiredString(o object, key string) (string, error) {
	f, err := optional(o, key, parseKey)
	if err != nil {
		return "", err
	}
	v, ok := f.Get()
	if !ok || v == "" {
		return "", invalid(o.name(key), "is required")
	}
	return v, nil
}

func blankAsNull(f Field[string]) Field[string] {
	if v, ok := f.Get(); ok && v == "" {
		return Null[string]()
	}
	return f
}

func parseString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", errWrongType("must be a string")
	}
	if !utf8.ValidString(s) {
		return "", errWrongType("must be valid UTF-8")
	}
	if strings.IndexByte(s, 0) >= 0 {
		return "", errWrongType("must not contain NUL characters")
	}
	return s, nil
}

// parseKey trims identifiers.
func parseKey(raw json.RawMessage) (string, error) {
	s, err := parseString(raw)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

func parseEmail(raw json.RawMessage) (string, error) {
	s, err := parseKey(raw)
	if err != nil {
		return "", err
	}
	return strings.ToLower(s), nil
}

// parseTimestamp accepts RFC 3339 only, so every value carries an explicit
// offset. Naive local times are rejected instead of assuming a zone.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	s, err := parseString(raw)
	if err != nil {
		return time.Time{}, errWrongType("must be an RFC 3339 timestamp string")
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, errWrongType("must be an RFC 3339 timestamp with a UTC offset")
	}
	return t.UTC(), nil
}

// parseInt accepts integers that fit the INTEGER column they are stored in.
func parseInt(raw json.RawMessage) (int, error) {
	n, err := strconv.ParseInt(string(bytes.TrimSpace(raw)), 10, 64)
	if err != nil {
		return 0, errWrongType("must be an integer")
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, errWrongType("is out of range")
	}
	return int(n), nil
}

func parseBool(raw json.RawMessage) (bool, error) {
	switch string(bytes.TrimSpace(raw)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, errWrongType("must be a boolean")
}
