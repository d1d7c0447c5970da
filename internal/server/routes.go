package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fieldlineapp/fieldline/internal/calendar"
	"github.com/fieldlineapp/fieldline/internal/config"
	"github.com/fieldlineapp/fieldline/internal/models"
	"github.com/fieldlineapp/fieldline/internal/recurrence"
	"github.com/fieldlineapp/fieldline/internal/series"
	"github.com/fieldlineapp/fieldline/internal/tz"
)

// tenantKey is the context key the tenant middleware stores the tenant
// id under.
const tenantKey = "tenant"

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB, hz config.HorizonConfig) {
	api := router.Group("/api", requireTenant())

	api.POST("/series", handleSeriesCreate(db, hz))
	api.GET("/series", handleSeriesList(db))
	api.GET("/series/:id", handleSeriesShow(db))
	api.DELETE("/series/:id", handleSeriesDelete(db))
	api.POST("/series/:id/horizon", handleSeriesHorizon(db, hz))
	api.POST("/series/:id/reschedule", handleSeriesReschedule(db, hz))
	api.POST("/series/:id/cancel", handleSeriesCancel(db))
	api.POST("/series/:id/propagate", handleSeriesPropagate(db))

	api.POST("/occurrences/:id/status", handleOccurrenceStatus(db))
	api.POST("/occurrences/:id/move", handleOccurrenceMove(db))
	api.POST("/occurrences/:id/overrides", handleOccurrenceOverrides(db))

	api.GET("/calendar", handleCalendar(db, hz))
}

// requireTenant extracts the tenant id from the X-Tenant-ID header. Every
// API route is tenant scoped; requests without a tenant are rejected.
func requireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := c.GetHeader("X-Tenant-ID")
		if tenant == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing X-Tenant-ID header"})
			return
		}
		c.Set(tenantKey, tenant)
		c.Next()
	}
}

func tenantOf(c *gin.Context) string {
	return c.GetString(tenantKey)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, series.ErrNotFound), errors.Is(err, series.ErrOccurrenceNotFound):
		return http.StatusNotFound
	case errors.Is(err, series.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, recurrence.ErrInvalidRule), errors.Is(err, tz.ErrInvalidTime),
		errors.Is(err, series.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// defaultHorizon computes the materialization horizon from now per config.
func defaultHorizon(hz config.HorizonConfig) time.Time {
	return time.Now().UTC().AddDate(0, hz.MonthsAhead, 0)
}

// seriesResponse is the JSON shape of a job series.
type seriesResponse struct {
	ID                 string     `json:"id"`
	TenantID           string     `json:"tenant_id"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	CustomerID         string     `json:"customer_id,omitempty"`
	ServiceCategory    string     `json:"service_category,omitempty"`
	Priority           int        `json:"priority"`
	EstimatedCost      float64    `json:"estimated_cost"`
	AssignedTo         string     `json:"assigned_to,omitempty"`
	RRule              string     `json:"rrule"`
	StartDate          string     `json:"start_date"`
	LocalStartTime     string     `json:"local_start_time"`
	DurationMinutes    int        `json:"duration_minutes"`
	Timezone           string     `json:"timezone"`
	UntilDate          *string    `json:"until_date,omitempty"`
	LastGeneratedUntil *time.Time `json:"last_generated_until,omitempty"`
	Active             bool       `json:"active"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toSeriesResponse(s *models.JobSeries) seriesResponse {
	return seriesResponse{
		ID:                 s.ID,
		TenantID:           s.TenantID,
		Title:              s.Title,
		Description:        s.Description,
		CustomerID:         s.CustomerID,
		ServiceCategory:    s.ServiceCategory,
		Priority:           s.Priority,
		EstimatedCost:      s.EstimatedCost,
		AssignedTo:         s.AssignedTo,
		RRule:              s.RRule,
		StartDate:          s.StartDate,
		LocalStartTime:     s.LocalStartTime,
		DurationMinutes:    s.DurationMinutes,
		Timezone:           s.Timezone,
		UntilDate:          s.UntilDate,
		LastGeneratedUntil: s.LastGeneratedUntil,
		Active:             s.Active,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

// materializeResponse is the JSON shape of a materialization outcome.
type materializeResponse struct {
	Created   int        `json:"created"`
	Truncated bool       `json:"truncated"`
	Watermark *time.Time `json:"watermark,omitempty"`
}

type createSeriesRequest struct {
	Title           string  `json:"title" binding:"required"`
	Description     string  `json:"description"`
	CustomerID      string  `json:"customer_id"`
	ServiceCategory string  `json:"service_category"`
	Priority        int     `json:"priority"`
	EstimatedCost   float64 `json:"estimated_cost"`
	AssignedTo      string  `json:"assigned_to"`
	RRule           string  `json:"rrule" binding:"required"`
	StartDate       string  `json:"start_date" binding:"required"`
	LocalStartTime  string  `json:"local_start_time" binding:"required"`
	DurationMinutes int     `json:"duration_minutes" binding:"required"`
	Timezone        string  `json:"timezone" binding:"required"`
	UntilDate       string  `json:"until_date"`
}

func handleSeriesCreate(db *gorm.DB, hz config.HorizonConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createSeriesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Priority == 0 {
			req.Priority = 2
		}

		s, res, err := series.Create(db, series.CreateOpts{
			TenantID:        tenantOf(c),
			Title:           req.Title,
			Description:     req.Description,
			CustomerID:      req.CustomerID,
			ServiceCategory: req.ServiceCategory,
			Priority:        req.Priority,
			EstimatedCost:   req.EstimatedCost,
			AssignedTo:      req.AssignedTo,
			RRule:           req.RRule,
			StartDate:       req.StartDate,
			LocalStartTime:  req.LocalStartTime,
			DurationMinutes: req.DurationMinutes,
			Timezone:        req.Timezone,
			UntilDate:       req.UntilDate,
		}, defaultHorizon(hz), hz.MaxOccurrences)
		if err != nil {
			fail(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"series": toSeriesResponse(s),
			"materialized": materializeResponse{
				Created:   res.Created,
				Truncated: res.Truncated,
				Watermark: res.Watermark,
			},
		})
	}
}

func handleSeriesList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		filters := series.ListFilters{
			CustomerID: c.Query("customer_id"),
			ActiveOnly: c.Query("active") == "true",
		}
		list, err := series.List(db, tenantOf(c), filters)
		if err != nil {
			fail(c, err)
			return
		}
		out := make([]seriesResponse, 0, len(list))
		for i := range list {
			out = append(out, toSeriesResponse(&list[i]))
		}
		c.JSON(http.StatusOK, gin.H{"series": out})
	}
}

func handleSeriesShow(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := series.Get(db, tenantOf(c), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"series": toSeriesResponse(s)})
	}
}

func handleSeriesDelete(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := series.Delete(db, tenantOf(c), c.Param("id")); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type horizonRequest struct {
	Horizon *time.Time `json:"horizon"`
}

func handleSeriesHorizon(db *gorm.DB, hz config.HorizonConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req horizonRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		horizon := defaultHorizon(hz)
		if req.Horizon != nil {
			horizon = req.Horizon.UTC()
		}

		res, err := series.Materialize(db, tenantOf(c), c.Param("id"), horizon, hz.MaxOccurrences)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, materializeResponse{
			Created:   res.Created,
			Truncated: res.Truncated,
			Watermark: res.Watermark,
		})
	}
}

type rescheduleRequest struct {
	RRule           string `json:"rrule" binding:"required"`
	StartDate       string `json:"start_date" binding:"required"`
	LocalStartTime  string `json:"local_start_time" binding:"required"`
	DurationMinutes int    `json:"duration_minutes" binding:"required"`
	Timezone        string `json:"timezone" binding:"required"`
	UntilDate       string `json:"until_date"`
}

func handleSeriesReschedule(db *gorm.DB, hz config.HorizonConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req rescheduleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := series.Reschedule(db, tenantOf(c), c.Param("id"), series.RescheduleOpts{
			RRule:           req.RRule,
			StartDate:       req.StartDate,
			LocalStartTime:  req.LocalStartTime,
			DurationMinutes: req.DurationMinutes,
			Timezone:        req.Timezone,
			UntilDate:       req.UntilDate,
		}, defaultHorizon(hz), hz.MaxOccurrences)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"deleted":   res.Deleted,
			"created":   res.Created,
			"truncated": res.Truncated,
		})
	}
}

func handleSeriesCancel(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := series.Cancel(db, tenantOf(c), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"cancelled": n})
	}
}

type propagateRequest struct {
	Priority      *int     `json:"priority"`
	AssignedTo    *string  `json:"assigned_to"`
	EstimatedCost *float64 `json:"estimated_cost"`
}

func handleSeriesPropagate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req propagateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		n, err := series.Propagate(db, tenantOf(c), c.Param("id"), series.PropagateOpts{
			Priority:      req.Priority,
			AssignedTo:    req.AssignedTo,
			EstimatedCost: req.EstimatedCost,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": n})
	}
}

type statusRequest struct {
	Status          string   `json:"status" binding:"required"`
	ActualCost      *float64 `json:"actual_cost"`
	CompletionNotes string   `json:"completion_notes"`
}

func handleOccurrenceStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		occ, err := series.SetOccurrenceStatus(db, tenantOf(c), c.Param("id"), req.Status, series.StatusOpts{
			ActualCost:      req.ActualCost,
			CompletionNotes: req.CompletionNotes,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": occ.ID, "status": occ.Status})
	}
}

type moveRequest struct {
	Start time.Time `json:"start" binding:"required"`
}

func handleOccurrenceMove(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req moveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		occ, err := series.MoveOccurrence(db, tenantOf(c), c.Param("id"), req.Start)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":    occ.ID,
			"start": occ.StartAt.UTC(),
			"end":   occ.EndAt.UTC(),
		})
	}
}

type overridesRequest struct {
	Title         *string  `json:"title"`
	Description   *string  `json:"description"`
	EstimatedCost *float64 `json:"estimated_cost"`
}

func handleOccurrenceOverrides(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req overridesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		occ, err := series.SetOccurrenceOverrides(db, tenantOf(c), c.Param("id"), series.OverrideOpts{
			Title:         req.Title,
			Description:   req.Description,
			EstimatedCost: req.EstimatedCost,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": occ.ID})
	}
}

func handleCalendar(db *gorm.DB, hz config.HorizonConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		from, err := time.Parse(time.RFC3339, c.Query("from"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC 3339"})
			return
		}
		to, err := time.Parse(time.RFC3339, c.Query("to"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC 3339"})
			return
		}
		if !to.After(from) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be after from"})
			return
		}

		events, err := calendar.Range(db, tenantOf(c), from, to, hz.MaxOccurrences)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
	}
}
