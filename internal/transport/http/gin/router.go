package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/evlync/evlync/internal/gateway/mpesa"
	redisrepo "github.com/evlync/evlync/internal/repository/redis"
	"github.com/evlync/evlync/internal/service"
	"github.com/evlync/evlync/internal/service/checkin"
	"github.com/evlync/evlync/internal/service/events"
	"github.com/evlync/evlync/internal/service/orders"
	"github.com/evlync/evlync/internal/service/payments"
	"github.com/evlync/evlync/internal/service/query"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	auth gin.HandlerFunc,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health + metrics
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public API
	r.GET("/events/:id", handleGetEvent(svcs))
	r.GET("/events/:id/tickets", handleListTickets(svcs))

	// Gateway callback is authenticated by reference matching, not JWT.
	r.POST("/payments/mpesa/callback", handleMpesaCallback(svcs, logger))

	authed := r.Group("", auth)
	{
		authed.POST("/events", handleCreateEvent(svcs))
		authed.PUT("/events/:id", handleUpdateEvent(svcs))
		authed.DELETE("/events/:id", handleDeleteEvent(svcs))
		authed.POST("/events/:id/tickets", handleCreateTicketType(svcs))
		authed.PUT("/events/:id/tickets/:ticketID", handleUpdateTicketType(svcs))

		authed.POST("/orders", handleCreateOrder(svcs, idem))
		authed.POST("/orders/:id/cancel", handleCancelOrder(svcs))
		authed.GET("/orders/user", handleListUserOrders(svcs))
		authed.GET("/orders/event/:id", handleListEventOrders(svcs))
		authed.GET("/orders/:id", handleGetOrder(svcs))

		authed.POST("/orders/verify-checkin", handleVerifyCheckIn(svcs))
		authed.POST("/orders/check-in", handleCommitCheckIn(svcs))

		authed.POST("/payments/mpesa/initiate", handleInitiatePayment(svcs))
		authed.GET("/payments/:id/status", handlePaymentStatus(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Get event
// @Param    id  path  string  true  "Event ID (uuid)"
// @Success  200  {object}  domain.Event
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{id} [get]
func handleGetEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		e, err := svcs.Query.GetEvent(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 60s
		writeJSONWithCache(c, http.StatusOK, e, "public, max-age=60", true)
	}
}

// @Summary  List ticket types with availability
// @Param    id  path  string  true  "Event ID (uuid)"
// @Success  200  {array}   domain.TicketTypeAvailability
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{id}/tickets [get]
func handleListTickets(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		tts, err := svcs.Query.ListTicketAvailability(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// counters move while on sale, keep the cache window short
		writeJSONWithCache(c, http.StatusOK, tts, "public, max-age=5", true)
	}
}

// @Summary  Create event
// @Param    req body  CreateEventRequest true "payload"
// @Success  201 {object} domain.Event
// @Failure  403 {object} ErrorResponse
// @Router   /events [post]
func handleCreateEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		var req CreateEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		in, ok := eventInput(c, req)
		if !ok {
			return
		}
		e, err := svcs.Events.CreateEvent(c.Request.Context(), caller, in)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, e)
	}
}

// @Summary  Update event
// @Param    id  path  string  true  "Event ID (uuid)"
// @Param    req body  CreateEventRequest true "payload"
// @Success  200 {object} domain.Event
// @Router   /events/{id} [put]
func handleUpdateEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req CreateEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		in, ok := eventInput(c, req)
		if !ok {
			return
		}
		e, err := svcs.Events.UpdateEvent(c.Request.Context(), caller, eventID, in)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, e)
	}
}

// @Summary  Delete event
// @Param    id  path  string  true  "Event ID (uuid)"
// @Success  204
// @Router   /events/{id} [delete]
func handleDeleteEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		if err := svcs.Events.DeleteEvent(c.Request.Context(), caller, eventID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Create ticket type
// @Param    id  path  string  true  "Event ID (uuid)"
// @Param    req body  CreateTicketTypeRequest true "payload"
// @Success  201 {object} domain.TicketType
// @Router   /events/{id}/tickets [post]
func handleCreateTicketType(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req CreateTicketTypeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		tt, err := svcs.Events.CreateTicketType(c.Request.Context(), caller, eventID, events.TicketTypeInput{
			Name:          req.Name,
			PriceCents:    req.PriceCents,
			QuantityTotal: req.QuantityTotal,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, tt)
	}
}

// @Summary  Update ticket type
// @Param    id        path  string  true  "Event ID (uuid)"
// @Param    ticketID  path  string  true  "Ticket type ID (uuid)"
// @Param    req body  CreateTicketTypeRequest true "payload"
// @Success  200 {object} domain.TicketType
// @Failure  409 {object} ErrorResponse "capacity below sold"
// @Router   /events/{id}/tickets/{ticketID} [put]
func handleUpdateTicketType(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		ticketTypeID, ok := parseUUIDParam(c, "ticketID")
		if !ok {
			return
		}
		var req CreateTicketTypeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		tt, err := svcs.Events.UpdateTicketType(c.Request.Context(), caller, eventID, ticketTypeID, events.TicketTypeInput{
			Name:          req.Name,
			PriceCents:    req.PriceCents,
			QuantityTotal: req.QuantityTotal,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, tt)
	}
}

// @Summary  Create order (idempotent)
// @Param    req body  CreateOrderRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} domain.OrderWithItems
// @Failure  409 {object} ErrorResponse "insufficient inventory / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /orders [post]
func handleCreateOrder(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		var req CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		eventID, err := uuid.Parse(req.EventID)
		if err != nil {
			badRequest(c, "invalid event_id")
			return
		}
		lines, ok := parseLines(req.Lines)
		if !ok {
			badRequest(c, "invalid ticket_type_id")
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemCheckout(eventID, idemKey)

			if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
				return
			}

			locked, err := idem.AcquireLock(c.Request.Context(), idemStorageKey, 60*time.Second)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
				return
			}
		}

		rlKey := "ip:" + c.ClientIP()

		o, err := svcs.Orders.Create(c.Request.Context(), caller, eventID, lines, rlKey)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			if errors.Is(err, orders.ErrRateLimited) {
				c.Header("Retry-After", "60")
				c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limited"})
				return
			}
			respondErr(c, err)
			return
		}

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(o)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, o)
	}
}

// @Summary  Cancel order
// @Param    id  path  string  true  "Order ID (uuid)"
// @Success  204
// @Failure  409 {object} ErrorResponse "order already terminal"
// @Router   /orders/{id}/cancel [post]
func handleCancelOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		orderID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		if err := svcs.Orders.Cancel(c.Request.Context(), caller, orderID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Get order with items
// @Param    id  path  string  true  "Order ID (uuid)"
// @Success  200 {object} domain.OrderWithItems
// @Router   /orders/{id} [get]
func handleGetOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		orderID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		o, err := svcs.Orders.Get(c.Request.Context(), caller, orderID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// @Summary  List caller's orders
// @Param    limit  query  int  false "page size"
// @Param    offset query  int  false "offset"
// @Success  200 {array} domain.Order
// @Router   /orders/user [get]
func handleListUserOrders(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		limit := parseIntDefault(c.Query("limit"), 0)
		offset := parseIntDefault(c.Query("offset"), 0)

		list, err := svcs.Orders.ListForUser(c.Request.Context(), caller, limit, offset)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// @Summary  List event orders (organizer)
// @Param    id     path   string  true  "Event ID (uuid)"
// @Param    limit  query  int     false "page size"
// @Param    offset query  int     false "offset"
// @Success  200 {array} domain.Order
// @Router   /orders/event/{id} [get]
func handleListEventOrders(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		limit := parseIntDefault(c.Query("limit"), 0)
		offset := parseIntDefault(c.Query("offset"), 0)

		list, err := svcs.Orders.ListForEvent(c.Request.Context(), caller, eventID, limit, offset)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// @Summary  Verify check-in code (no admission)
// @Param    req body  CheckInRequest true "payload"
// @Success  200 {object} CheckInResponse
// @Failure  404 {object} ErrorResponse "code matches nothing admitable"
// @Router   /orders/verify-checkin [post]
func handleVerifyCheckIn(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		var req CheckInRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		eventID, err := uuid.Parse(req.EventID)
		if err != nil {
			badRequest(c, "invalid event_id")
			return
		}
		res, err := svcs.CheckIn.Verify(c.Request.Context(), caller, eventID, req.Code)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, checkInResponse(res))
	}
}

// @Summary  Commit check-in (admit holder)
// @Param    req body  CheckInRequest true "payload"
// @Success  200 {object} CheckInResponse
// @Failure  409 {object} ErrorResponse "already checked in"
// @Router   /orders/check-in [post]
func handleCommitCheckIn(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		var req CheckInRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		eventID, err := uuid.Parse(req.EventID)
		if err != nil {
			badRequest(c, "invalid event_id")
			return
		}
		res, err := svcs.CheckIn.Commit(c.Request.Context(), caller, eventID, req.Code)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, checkInResponse(res))
	}
}

// @Summary  Initiate M-Pesa payment
// @Param    req body  InitiatePaymentRequest true "payload"
// @Success  202 {object} InitiatePaymentResponse
// @Failure  409 {object} ErrorResponse "insufficient inventory"
// @Failure  503 {object} ErrorResponse "gateway unavailable"
// @Router   /payments/mpesa/initiate [post]
func handleInitiatePayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		var req InitiatePaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		eventID, err := uuid.Parse(req.EventID)
		if err != nil {
			badRequest(c, "invalid event_id")
			return
		}
		lines, ok := parseLines(req.Lines)
		if !ok {
			badRequest(c, "invalid ticket_type_id")
			return
		}

		res, err := svcs.Payments.Initiate(c.Request.Context(), caller, eventID, req.Phone, lines)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusAccepted, InitiatePaymentResponse{
			OrderID:    res.Order.Order.ID.String(),
			PaymentID:  res.PaymentID.String(),
			TotalCents: res.Order.Order.TotalCents,
			Status:     string(res.Order.Order.Status),
		})
	}
}

// @Summary  Get payment status
// @Param    id  path  string  true  "Payment ID (uuid)"
// @Success  200 {object} PaymentStatusResponse
// @Router   /payments/{id}/status [get]
func handlePaymentStatus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		paymentID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		p, err := svcs.Payments.Status(c.Request.Context(), caller, paymentID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, PaymentStatusResponse{
			PaymentID: p.ID.String(),
			OrderID:   p.OrderID.String(),
			Status:    string(p.Status),
		})
	}
}

// @Summary  M-Pesa STK callback
// @Param    req body  mpesa.CallbackEnvelope true "gateway payload"
// @Success  200 {object} map[string]any
// @Router   /payments/mpesa/callback [post]
func handleMpesaCallback(svcs *service.Services, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var env mpesa.CallbackEnvelope
		if err := c.ShouldBindJSON(&env); err != nil {
			badRequest(c, "malformed callback")
			return
		}

		cb := env.Body.StkCallback
		if cb.CheckoutRequestID == "" {
			badRequest(c, "missing checkout request id")
			return
		}

		err := svcs.Payments.Reconcile(c.Request.Context(), cb.CheckoutRequestID, cb.ResultCode)
		switch {
		case err == nil:
		case errors.Is(err, payments.ErrAlreadyReconciled):
			// repeat delivery, already settled
		case errors.Is(err, payments.ErrUnknownReference):
			logger.Warn("callback for unknown reference",
				"checkout_request_id", cb.CheckoutRequestID)
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown reference"})
			return
		default:
			logger.Error("callback reconciliation failed",
				"checkout_request_id", cb.CheckoutRequestID, "error", err)
			// non-2xx makes the gateway retry the delivery
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "reconciliation failed"})
			return
		}

		// Daraja expects this ack shape.
		c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
	}
}

// --- Helpers ---

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
}

func eventInput(c *gin.Context, req CreateEventRequest) (events.EventInput, bool) {
	starts, err := parseRFC3339(req.StartsAt)
	if err != nil {
		badRequest(c, "invalid starts_at (RFC3339)")
		return events.EventInput{}, false
	}
	ends, err := parseRFC3339(req.EndsAt)
	if err != nil {
		badRequest(c, "invalid ends_at (RFC3339)")
		return events.EventInput{}, false
	}
	return events.EventInput{
		Title:       req.Title,
		Description: req.Description,
		VenueName:   req.VenueName,
		IsPublished: req.IsPublished,
		StartsAt:    starts,
		EndsAt:      ends,
	}, true
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	switch {
	// query service
	case errors.Is(err, query.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
		return
	// events service
	case errors.Is(err, events.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
		return
	case errors.Is(err, events.ErrTicketTypeNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "ticket type not found"})
		return
	case errors.Is(err, events.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
		return
	case errors.Is(err, events.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, events.ErrCapacityBelowSold):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "capacity below sold count"})
		return
	// orders service
	case errors.Is(err, orders.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
		return
	case errors.Is(err, orders.ErrTicketTypeNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "ticket type not found"})
		return
	case errors.Is(err, orders.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "order not found"})
		return
	case errors.Is(err, orders.ErrEmptyOrder):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty order"})
		return
	case errors.Is(err, orders.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid quantity"})
		return
	case errors.Is(err, orders.ErrInsufficientInventory):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "insufficient inventory"})
		return
	case errors.Is(err, orders.ErrOrderTerminal):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "order already terminal"})
		return
	case errors.Is(err, orders.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
		return
	// payments service
	case errors.Is(err, payments.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "payment not found"})
		return
	case errors.Is(err, payments.ErrInvalidPhone):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid phone"})
		return
	case errors.Is(err, payments.ErrAmountChanged):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "price changed, retry"})
		return
	case errors.Is(err, payments.ErrGatewayUnavailable):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "payment gateway unavailable"})
		return
	case errors.Is(err, payments.ErrAlreadyReconciled):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "payment already reconciled"})
		return
	case errors.Is(err, payments.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
		return
	// checkin service
	case errors.Is(err, checkin.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
		return
	case errors.Is(err, checkin.ErrInvalidCode):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "invalid code"})
		return
	case errors.Is(err, checkin.ErrAlreadyCheckedIn):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "ticket already checked in"})
		return
	case errors.Is(err, checkin.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
