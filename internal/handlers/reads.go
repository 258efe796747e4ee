package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/showmojo-webhook-service/internal/ingest"
	"github.com/PratikDhanave/showmojo-webhook-service/internal/logging"
	"github.com/PratikDhanave/showmojo-webhook-service/internal/models"
	"github.com/PratikDhanave/showmojo-webhook-service/internal/store"
)

// ReadStore is the query side of the entity store.
type ReadStore interface {
	ListEvents(ctx context.Context, f store.EventFilter) (models.Paginated[models.Event], error)
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	EventActions(ctx context.Context) ([]string, error)

	ListShowings(ctx context.Context, f store.ShowingFilter) (models.Paginated[models.Showing], error)
	GetShowing(ctx context.Context, uid string) (*models.Showing, error)
	UpcomingShowings(ctx context.Context, from, to time.Time, limit int) ([]models.Showing, error)

	ListListings(ctx context.Context, f store.ListingFilter) (models.Paginated[models.Listing], error)
	GetListing(ctx context.Context, uid string) (*models.Listing, error)
	ListingShowings(ctx context.Context, uid string, limit int) ([]models.Showing, error)

	ListProspects(ctx context.Context, f store.ProspectFilter) (models.Paginated[models.Prospect], error)
	GetProspect(ctx context.Context, email string) (*models.Prospect, error)
	ProspectShowings(ctx context.Context, email string, limit int) ([]models.Showing, error)

	StatsOverview(ctx context.Context, now time.Time) (models.StatsOverview, error)
	ShowingsByDate(ctx context.Context, since time.Time) ([]models.DateCount, error)
}

type pageQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

func (q pageQuery) page() store.Page {
	return store.Page{Page: q.Page, PageSize: q.PageSize}
}

type limitQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

func (q limitQuery) limit() int {
	if q.Limit == 0 {
		return 100
	}
	return q.Limit
}

type eventsQuery struct {
	pageQuery
	Action    string `form:"action"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

type showingsQuery struct {
	pageQuery
	ListingUID   string `form:"listing_uid"`
	Email        string `form:"email"`
	StartDate    string `form:"start_date"`
	EndDate      string `form:"end_date"`
	IsSelfShow   *bool  `form:"is_self_show"`
	StatusFilter string `form:"status_filter" binding:"omitempty,oneof=confirmed canceled pending"`
}

type upcomingQuery struct {
	limitQuery
	Days int `form:"days" binding:"omitempty,min=1,max=90"`
}

type searchQuery struct {
	pageQuery
	Search      string `form:"search"`
	MinShowings *int   `form:"min_showings" binding:"omitempty,min=0"`
}

// parseTimeParam accepts an RFC3339 timestamp or a bare date and normalizes
// it to UTC. Empty input is nil.
func parseTimeParam(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%s must be RFC3339 or YYYY-MM-DD", name)
}

func parseRange(start, end string) (*time.Time, *time.Time, error) {
	since, err := parseTimeParam("start_date", start)
	if err != nil {
		return nil, nil, err
	}
	until, err := parseTimeParam("end_date", end)
	if err != nil {
		return nil, nil, err
	}
	return since, until, nil
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// storeError answers a failed read: 404 for a missing row, 503 when the
// database is unreachable and 500 otherwise.
func storeError(c *gin.Context, err error, notFound string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
	case errors.Is(err, ingest.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
	default:
		logging.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("read query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
	}
}

// RegisterEventRoutes registers the event read endpoints.
//
// GET /events?page=&page_size=&action=&start_date=&end_date=
// GET /events/:event_id
// GET /events/actions/list
func RegisterEventRoutes(r gin.IRoutes, st ReadStore) {
	r.GET("/events", func(c *gin.Context) {
		var q eventsQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err)
			return
		}
		since, until, err := parseRange(q.StartDate, q.EndDate)
		if err != nil {
			badRequest(c, err)
			return
		}

		out, err := st.ListEvents(c.Request.Context(), store.EventFilter{
			Page:   q.page(),
			Action: q.Action,
			Since:  since,
			Until:  until,
		})
		if err != nil {
			storeError(c, err, "")
			return
		}
		c.JSON(http.StatusOK, out)
	})

	r.GET("/events/:event_id", func(c *gin.Context) {
		id := c.Param("event_id")
		ev, err := st.GetEvent(c.Request.Context(), id)
		if err != nil {
			storeError(c, err, fmt.Sprintf("Event %s not found", id))
			return
		}
		c.JSON(http.StatusOK, ev)
	})

	r.GET("/events/actions/list", func(c *gin.Context) {
		actions, err := st.EventActions(c.Request.Context())
		if err != nil {
			storeError(c, err, "")
			return
		}
		c.JSON(http.StatusOK, gin.H{"actions": actions})
	})
}

// RegisterShowingRoutes registers the showing read endpoints.
//
// GET /showings?listing_uid=&email=&start_date=&end_date=&is_self_show=&status_filter=
// GET /showings/:uid
// GET /showings/upcoming/list?days=&limit=
func RegisterShowingRoutes(r gin.IRoutes, st ReadStore) {
	r.GET("/showings", func(c *gin.Context) {
		var q showingsQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err)
			return
		}
		since, until, err := parseRange(q.StartDate, q.EndDate)
		if err != nil {
			badRequest(c, err)
			return
		}

		out, err := st.ListShowings(c.Request.Context(), store.ShowingFilter{
			Page:       q.page(),
			ListingUID: strings.TrimSpace(q.ListingUID),
			Email:      strings.ToLower(strings.TrimSpace(q.Email)),
			Since:      since,
			Until:      until,
			IsSelfShow: q.IsSelfShow,
			Status:     q.StatusFilter,
		})
		if err != nil {
			storeError(c, err, "")
			return
		}
		c.JSON(http.StatusOK, out)
	})

	r.GET("/showings/:uid", func(c *gin.Context) {
		uid := c.Param("uid")
		sh, err := st.GetShowing(c.Request.Context(), uid)
		if err != nil {
			storeError(c, err, fmt.Sprintf("Showing %s not found", uid))
			return
		}
		c.JSON(http.StatusOK, sh)
	})

	r.GET("/showings/upcoming/list", func(c *gin.Context) {
		var q upcomingQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err)
			return
		}
		days := q.Days
		if days == 0 {
			days = 7
		}

		now := time.Now().UTC()
		showings, err := st.UpcomingShowings(c.Request.Context(), now, now.AddDate(0, 0, days), q.limit())
		if err != nil {
			storeError(c, err, "")
			return
		}
		c.JSON(http.StatusOK, showings)
	})
}

// RegisterListingRoutes registers the listing read endpoints.
//
// GET /listings?search=&min_showings=
// GET /listings/:uid
// GET /listings/:uid/showings?limit=
func RegisterListingRoutes(r gin.IRoutes, st ReadStore) {
	r.GET("/listings", func(c *gin.Context) {
		var q searchQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err)
			return
		}
		out, err := st.ListListings(c.Request.Context(), store.ListingFilter{
			Page:        q.page(),
			Search:      strings.TrimSpace(q.Search),
			MinShowings: q.MinShowings,
		})
		if err != nil {
			storeError(c, err, "")
			return
		}
		c.JSON(http.StatusOK, out)
	})

	r.GET("/listings/:uid", func(c *gin.Context) {
		uid := c.Param("uid")
		l, err := st.GetListing(c.Request.Context(), uid)
		if err != nil {
			storeError(c, err, fmt.Sprintf("Listing %s not found", uid))
			return
		}
		c.JSON(http.StatusOK, l)
	})

	r.GET("/listings/:uid/showings", func(c *gin.Context) {
		var q limitQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err)
			return
		}
		showings, err := st.ListingShowings(c.Request.Context(), c.Param("uid"), q.limit())
		if err != nil {
			storeError(c, err, "")
			return
		}
		c.JSON(http.StatusOK, showings)
	})
}

// RegisterProspectRoutes registers the prospect read endpoints. Emails in the
// path are matched lower-cased, the way they are stored.
//
// GET /prospects?search=&min_showings=
// GET /prospects/:email
// GET /prospects/:email/showings?limit=
func RegisterProspectRoutes(r gin.IRoutes, st ReadStore) {
	r.GET("/prospects", func(c *gin.Context) {
		var q searchQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err)
			return
		}
		out, err := st.ListProspects(c.Request.Context(), store.ProspectFilter{
			Page:        q.page(),
			Search:      strings.TrimSpace(q.Search),
			MinShowings: q.MinShowings,
		})
		if err != nil {
			storeError(c, err, "")
			return
		}
		c.JSON(http.StatusOK, out)
	})

	r.GET("/prospects/:email", func(c *gin.Context) {
		email := strings.ToLower(c.Param("email"))
		p, err := st.GetProspect(c.Request.Context(), email)
		if err != nil {
			storeError(c, err, fmt.Sprintf("Prospect %s not found", email))
			return
		}
		c.JSON(http.StatusOK, p)
	})

	r.GET("/prospects/:email/showings", func(c *gin.Context) {
		var q limitQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err)
			return
		}
		showings, err := st.ProspectShowings(c.Request.Context(), strings.ToLower(c.Param("email")), q.limit())
		if err != nil {
			storeError(c, err, "")
			return
		}
		c.JSON(http.StatusOK, showings)
	})
}
