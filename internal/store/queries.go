package store

import (
	"context"
	"errors"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5"

	"github.com/PratikDhanave/showmojo-webhook-service/internal/models"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// Page selects one page of a list query. Out of range values fall back to
// page 1 and DefaultPageSize.
type Page struct {
	Page     int
	PageSize int
}

func (p Page) bounds() (page, size, offset int) {
	page, size = p.Page, p.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return page, size, (page - 1) * size
}

// Showing status filters. A canceled showing is never confirmed or pending.
const (
	StatusConfirmed = "confirmed"
	StatusCanceled  = "canceled"
	StatusPending   = "pending"
)

type EventFilter struct {
	Page
	Action string
	Since  *time.Time
	Until  *time.Time
}

func (f EventFilter) where(sb *sqlbuilder.SelectBuilder) []string {
	var where []string
	if f.Action != "" {
		where = append(where, sb.Equal("action", f.Action))
	}
	if f.Since != nil {
		where = append(where, sb.GreaterEqualThan("created_at", *f.Since))
	}
	if f.Until != nil {
		where = append(where, sb.LessEqualThan("created_at", *f.Until))
	}
	return where
}

// ShowingFilter narrows showings; Since and Until bound the showtime.
type ShowingFilter struct {
	Page
	ListingUID string
	Email      string
	Since      *time.Time
	Until      *time.Time
	IsSelfShow *bool
	Status     string
}

func (f ShowingFilter) where(sb *sqlbuilder.SelectBuilder) []string {
	var where []string
	if f.ListingUID != "" {
		where = append(where, sb.Equal("listing_uid", f.ListingUID))
	}
	if f.Email != "" {
		where = append(where, sb.Equal("email", f.Email))
	}
	if f.Since != nil {
		where = append(where, sb.GreaterEqualThan("showtime", *f.Since))
	}
	if f.Until != nil {
		where = append(where, sb.LessEqualThan("showtime", *f.Until))
	}
	if f.IsSelfShow != nil {
		where = append(where, sb.Equal("is_self_show", *f.IsSelfShow))
	}
	switch f.Status {
	case StatusConfirmed:
		where = append(where, sb.IsNotNull("confirmed_at"), sb.IsNull("canceled_at"))
	case StatusCanceled:
		where = append(where, sb.IsNotNull("canceled_at"))
	case StatusPending:
		where = append(where, sb.IsNull("confirmed_at"), sb.IsNull("canceled_at"))
	}
	return where
}

// ListingFilter matches Search against the address, case-insensitively.
type ListingFilter struct {
	Page
	Search      string
	MinShowings *int
}

func (f ListingFilter) where(sb *sqlbuilder.SelectBuilder) []string {
	var where []string
	if f.Search != "" {
		where = append(where, sb.ILike("full_address", contains(f.Search)))
	}
	if f.MinShowings != nil {
		where = append(where, sb.GreaterEqualThan("total_showings", *f.MinShowings))
	}
	return where
}

// ProspectFilter matches Search against name, email and phone.
type ProspectFilter struct {
	Page
	Search      string
	MinShowings *int
}

func (f ProspectFilter) where(sb *sqlbuilder.SelectBuilder) []string {
	var where []string
	if f.Search != "" {
		pattern := contains(f.Search)
		where = append(where, sb.Or(
			sb.ILike("name", pattern),
			sb.ILike("email", pattern),
			sb.ILike("phone", pattern),
		))
	}
	if f.MinShowings != nil {
		where = append(where, sb.GreaterEqualThan("total_showings", *f.MinShowings))
	}
	return where
}

func contains(s string) string {
	return "%" + s + "%"
}

// listQuery is a count query and a page query sharing one filter.
type listQuery struct {
	table   string
	columns []string
	where   func(sb *sqlbuilder.SelectBuilder) []string
	orderBy []string
}

func (q listQuery) count() (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)").From(q.table)
	if where := q.where(sb); len(where) > 0 {
		sb.Where(where...)
	}
	return sb.Build()
}

func (q listQuery) page(limit, offset int) (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(q.columns...).From(q.table)
	if where := q.where(sb); len(where) > 0 {
		sb.Where(where...)
	}
	sb.OrderBy(q.orderBy...)
	sb.Limit(limit).Offset(offset)
	return sb.Build()
}

func paginate[T any](ctx context.Context, db *PostgresStore, q listQuery, p Page) (models.Paginated[T], error) {
	page, size, offset := p.bounds()
	out := models.Paginated[T]{Page: page, PageSize: size}

	countSQL, countArgs := q.count()
	if err := db.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&out.Total); err != nil {
		return out, classify(err)
	}

	sql, args := q.page(size, offset)
	items, err := collect[T](ctx, db, sql, args)
	if err != nil {
		return out, err
	}
	out.Items = items
	return out, nil
}

func collect[T any](ctx context.Context, db *PostgresStore, sql string, args []any) ([]T, error) {
	rows, err := db.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, classify(err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func getOne[T any](ctx context.Context, db *PostgresStore, table string, columns []string, key string, value any) (*T, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...).From(table).Where(sb.Equal(key, value))
	sql, args := sb.Build()

	rows, err := db.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(err)
	}
	v, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return &v, nil
}

func eventsQuery(f EventFilter) listQuery {
	return listQuery{table: "events", columns: eventColumns, where: f.where,
		orderBy: []string{"created_at DESC", "id DESC"}}
}

func showingsQuery(f ShowingFilter) listQuery {
	return listQuery{table: "showings", columns: showingColumns, where: f.where,
		orderBy: []string{"showtime DESC NULLS LAST", "id DESC"}}
}

func listingsQuery(f ListingFilter) listQuery {
	return listQuery{table: "listings", columns: listingColumns, where: f.where,
		orderBy: []string{"last_seen_at DESC", "id DESC"}}
}

func prospectsQuery(f ProspectFilter) listQuery {
	return listQuery{table: "prospects", columns: prospectColumns, where: f.where,
		orderBy: []string{"last_contact_at DESC", "id DESC"}}
}

// ListEvents returns events newest first.
func (p *PostgresStore) ListEvents(ctx context.Context, f EventFilter) (models.Paginated[models.Event], error) {
	return paginate[models.Event](ctx, p, eventsQuery(f), f.Page)
}

func (p *PostgresStore) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	return getOne[models.Event](ctx, p, "events", eventColumns, "event_id", eventID)
}

// EventActions lists the distinct event actions seen so far.
func (p *PostgresStore) EventActions(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT DISTINCT action FROM events ORDER BY action`)
	if err != nil {
		return nil, classify(err)
	}
	actions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, classify(err)
	}
	if actions == nil {
		actions = []string{}
	}
	return actions, nil
}

// ListShowings returns showings by showtime, latest first; showings without a
// showtime sort last.
func (p *PostgresStore) ListShowings(ctx context.Context, f ShowingFilter) (models.Paginated[models.Showing], error) {
	return paginate[models.Showing](ctx, p, showingsQuery(f), f.Page)
}

func (p *PostgresStore) GetShowing(ctx context.Context, uid string) (*models.Showing, error) {
	return getOne[models.Showing](ctx, p, "showings", showingColumns, "uid", uid)
}

func upcomingQuery(from, to time.Time, limit int) (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(showingColumns...).From("showings")
	sb.Where(
		sb.GreaterEqualThan("showtime", from),
		sb.LessEqualThan("showtime", to),
		sb.IsNull("canceled_at"),
	)
	sb.OrderBy("showtime ASC", "id ASC")
	sb.Limit(limit)
	return sb.Build()
}

// UpcomingShowings returns non-canceled showings with a showtime in [from, to].
func (p *PostgresStore) UpcomingShowings(ctx context.Context, from, to time.Time, limit int) ([]models.Showing, error) {
	sql, args := upcomingQuery(from, to, limit)
	return collect[models.Showing](ctx, p, sql, args)
}

func showingsByQuery(key, value string, limit int) (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(showingColumns...).From("showings")
	sb.Where(sb.Equal(key, value))
	sb.OrderBy("showtime DESC NULLS LAST", "id DESC")
	sb.Limit(limit)
	return sb.Build()
}

func (p *PostgresStore) ListListings(ctx context.Context, f ListingFilter) (models.Paginated[models.Listing], error) {
	return paginate[models.Listing](ctx, p, listingsQuery(f), f.Page)
}

func (p *PostgresStore) GetListing(ctx context.Context, uid string) (*models.Listing, error) {
	return getOne[models.Listing](ctx, p, "listings", listingColumns, "uid", uid)
}

func (p *PostgresStore) ListingShowings(ctx context.Context, uid string, limit int) ([]models.Showing, error) {
	sql, args := showingsByQuery("listing_uid", uid, limit)
	return collect[models.Showing](ctx, p, sql, args)
}

func (p *PostgresStore) ListProspects(ctx context.Context, f ProspectFilter) (models.Paginated[models.Prospect], error) {
	return paginate[models.Prospect](ctx, p, prospectsQuery(f), f.Page)
}

func (p *PostgresStore) GetProspect(ctx context.Context, email string) (*models.Prospect, error) {
	return getOne[models.Prospect](ctx, p, "prospects", prospectColumns, "email", email)
}

func (p *PostgresStore) ProspectShowings(ctx context.Context, email string, limit int) ([]models.Showing, error) {
	sql, args := showingsByQuery("email", email, limit)
	return collect[models.Showing](ctx, p, sql, args)
}

// StatsOverview counts every table plus the showings of the next seven days
// and the events of the last 24 hours, relative to now.
func (p *PostgresStore) StatsOverview(ctx context.Context, now time.Time) (models.StatsOverview, error) {
	var s models.StatsOverview
	err := p.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM events),
			(SELECT COUNT(*) FROM showings),
			(SELECT COUNT(*) FROM listings),
			(SELECT COUNT(*) FROM prospects),
			(SELECT COUNT(*) FROM showings
			  WHERE showtime >= $1 AND showtime <= $2 AND canceled_at IS NULL),
			(SELECT COUNT(*) FROM events WHERE created_at >= $3)
	`, now, now.Add(7*24*time.Hour), now.Add(-24*time.Hour)).Scan(
		&s.TotalEvents, &s.TotalShowings, &s.TotalListings, &s.TotalProspects,
		&s.UpcomingShowings, &s.RecentEvents24h,
	)
	return s, classify(err)
}

// ShowingsByDate buckets showings with a showtime at or after since by UTC
// calendar day, oldest first.
func (p *PostgresStore) ShowingsByDate(ctx context.Context, since time.Time) ([]models.DateCount, error) {
	return collect[models.DateCount](ctx, p, `
		SELECT to_char((showtime AT TIME ZONE 'UTC')::date, 'YYYY-MM-DD') AS date,
		       COUNT(*) AS count
		FROM showings
		WHERE showtime >= $1
		GROUP BY 1
		ORDER BY 1
	`, []any{since})
}
