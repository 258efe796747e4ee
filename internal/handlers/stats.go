package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type showingsByDateQuery struct {
	Days int `form:"days" binding:"omitempty,min=1,max=365"`
}

// RegisterStatsRoutes registers the serving-path aggregates.
//
// GET /stats/overview
// - totals per table, showings in the next 7 days, events in the last 24h
//
// GET /stats/showings-by-date?days=30
// - showings per UTC day with a showtime inside the window
func RegisterStatsRoutes(r gin.IRoutes, st ReadStore) {
	r.GET("/stats/overview", func(c *gin.Context) {
		stats, err := st.StatsOverview(c.Request.Context(), time.Now().UTC())
		if err != nil {
			storeError(c, err, "")
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	r.GET("/stats/showings-by-date", func(c *gin.Context) {
		var q showingsByDateQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err)
			return
		}
		days := q.Days
		if days == 0 {
			days = 30
		}

		since := time.Now().UTC().AddDate(0, 0, -days)
		data, err := st.ShowingsByDate(c.Request.Context(), since)
		if err != nil {
			storeError(c, err, "")
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": data})
	})
}
