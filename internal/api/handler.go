package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"venue-service/internal/models"
	"venue-service/internal/service"
	"venue-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers. It is a thin layer: every route resolves
// the venue scope from the access-control headers, calls one service
// operation and translates its error kind to a status code.
type Handler struct {
	lifecycle *service.OrderLifecycleManager
	tables    *service.TableSessionManager
	router    *service.KitchenTicketRouter
	dashboard *service.DashboardAggregator
	defaultTZ string
}

// NewHandler creates a new HTTP handler
func NewHandler(
	lifecycle *service.OrderLifecycleManager,
	tables *service.TableSessionManager,
	router *service.KitchenTicketRouter,
	dashboard *service.DashboardAggregator,
	defaultTZ string,
) *Handler {
	return &Handler{
		lifecycle: lifecycle,
		tables:    tables,
		router:    router,
		dashboard: dashboard,
		defaultTZ: defaultTZ,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/transition", h.transitionOrder)
		v1.PUT("/orders/:id/payment-mode", h.updatePaymentMode)
		v1.POST("/orders/:id/confirm-payment", h.confirmPayment)

		v1.POST("/tables/seat", h.seatTable)
		v1.POST("/tables/merge", h.mergeTables)
		v1.POST("/tables/:id/unmerge", h.unmergeTable)
		v1.POST("/tables/:id/cleaning", h.markCleaning)
		v1.POST("/tables/:id/free", h.markFree)

		v1.POST("/tickets/route", h.routeTickets)
		v1.POST("/tickets/backfill", h.backfillTickets)
		v1.PUT("/tickets/:id/status", h.updateTicketStatus)

		v1.GET("/dashboard/counts", h.dashboardCounts)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// scope reads the venue id and access level the access-control layer put on
// the request. This core trusts both fully.
func scope(c *gin.Context) (string, models.AccessLevel) {
	access := models.AccessScoped
	if c.GetHeader("X-Access-Level") == "elevated" {
		access = models.AccessElevated
	}
	return c.GetHeader("X-Venue-ID"), access
}

func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
		return
	}
	result, err := h.lifecycle.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) getOrder(c *gin.Context) {
	venueID, access := scope(c)
	order, items, err := h.lifecycle.GetOrder(c.Request.Context(), venueID, c.Param("id"), access)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "items": items})
}

type transitionRequest struct {
	TargetStatus        models.OrderStatus    `json:"target_status" binding:"required"`
	TargetPaymentStatus *models.PaymentStatus `json:"target_payment_status,omitempty"`
}

func (h *Handler) transitionOrder(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
		return
	}

	venueID, access := scope(c)
	result, err := h.lifecycle.Transition(c.Request.Context(), venueID, c.Param("id"),
		req.TargetStatus, req.TargetPaymentStatus, access)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type paymentModeRequest struct {
	PaymentMode models.PaymentMode `json:"payment_mode" binding:"required"`
}

func (h *Handler) updatePaymentMode(c *gin.Context) {
	var req paymentModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
		return
	}

	venueID, access := scope(c)
	order, err := h.lifecycle.UpdatePaymentMode(c.Request.Context(), venueID, c.Param("id"), req.PaymentMode, access)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *Handler) confirmPayment(c *gin.Context) {
	venueID, access := scope(c)
	order, err := h.lifecycle.ConfirmPayment(c.Request.Context(), venueID, c.Param("id"), access)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *Handler) seatTable(c *gin.Context) {
	var req service.SeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
		return
	}
	session, err := h.tables.Seat(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": session})
}

type mergeRequest struct {
	PrimaryTableID   string `json:"primary_table_id" binding:"required"`
	SecondaryTableID string `json:"secondary_table_id" binding:"required"`
}

func (h *Handler) mergeTables(c *gin.Context) {
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
		return
	}

	venueID, _ := scope(c)
	table, err := h.tables.Merge(c.Request.Context(), venueID, req.PrimaryTableID, req.SecondaryTableID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"table": table})
}

func (h *Handler) unmergeTable(c *gin.Context) {
	venueID, _ := scope(c)
	table, err := h.tables.Unmerge(c.Request.Context(), venueID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"table": table})
}

func (h *Handler) markCleaning(c *gin.Context) {
	venueID, _ := scope(c)
	session, err := h.tables.MarkCleaning(c.Request.Context(), venueID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

func (h *Handler) markFree(c *gin.Context) {
	venueID, _ := scope(c)
	session, err := h.tables.MarkFree(c.Request.Context(), venueID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

type routeRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

func (h *Handler) routeTickets(c *gin.Context) {
	var req routeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
		return
	}

	venueID, access := scope(c)
	order, _, err := h.lifecycle.GetOrder(c.Request.Context(), venueID, req.OrderID, access)
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := h.router.RouteOrder(c.Request.Context(), order, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type backfillRequest struct {
	Scope    service.BackfillScope `json:"scope" binding:"required"`
	Timezone string                `json:"timezone,omitempty"`
}

func (h *Handler) backfillTickets(c *gin.Context) {
	var req backfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
		return
	}

	tz := req.Timezone
	if tz == "" {
		tz = h.defaultTZ
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": "unknown timezone"})
		return
	}

	venueID, _ := scope(c)
	result, err := h.router.Backfill(c.Request.Context(), venueID, req.Scope, loc)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type ticketStatusRequest struct {
	Status models.TicketStatus `json:"status" binding:"required"`
}

func (h *Handler) updateTicketStatus(c *gin.Context) {
	var req ticketStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
		return
	}

	venueID, _ := scope(c)
	ticket, err := h.router.UpdateTicketStatus(c.Request.Context(), venueID, c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}

func (h *Handler) dashboardCounts(c *gin.Context) {
	venueID, _ := scope(c)
	tz := c.DefaultQuery("timezone", h.defaultTZ)
	liveWindow, err := strconv.Atoi(c.DefaultQuery("live_window_minutes", "30"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": "invalid live_window_minutes"})
		return
	}

	counts, err := h.dashboard.Counts(c.Request.Context(), venueID, tz, liveWindow)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

// respondError maps a service error kind to an HTTP status. Internal detail
// never reaches the caller; it is already in the operator logs.
func respondError(c *gin.Context, err error) {
	kind := service.KindOf(err)

	status := http.StatusInternalServerError
	message := "internal error"
	switch kind {
	case service.KindValidation:
		status = http.StatusBadRequest
	case service.KindConflict:
		status = http.StatusConflict
	case service.KindInvalidState:
		status = http.StatusUnprocessableEntity
	case service.KindPaymentNotConfirmed:
		status = http.StatusPaymentRequired
	case service.KindUpstreamTimeout:
		status = http.StatusGatewayTimeout
	}

	if kind != service.KindInternal {
		var e *service.Error
		if errors.As(err, &e) {
			message = e.Msg
		}
	}

	c.JSON(status, gin.H{"error": kind.String(), "message": message})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
