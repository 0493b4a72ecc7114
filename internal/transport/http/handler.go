// Package http carries the route surface. Handlers stay thin: they
// call the resolver or the order service and never encode transition
// logic themselves.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"atelier-checkout/internal/cache"
	"atelier-checkout/internal/domain"
	"atelier-checkout/internal/infrastructure/payment"
	"atelier-checkout/internal/router"
	"atelier-checkout/internal/service"
	"atelier-checkout/internal/tracking"
)

const sessionCookie = "checkout_session"

type Handler struct {
	orders        service.OrderService
	adapter       *payment.Adapter
	issuer        *tracking.Issuer
	caches        *cache.Registry
	secureCookies bool
	health        func() map[string]string
	logger        *zap.Logger
}

func NewHandler(
	orders service.OrderService,
	adapter *payment.Adapter,
	issuer *tracking.Issuer,
	caches *cache.Registry,
	secureCookies bool,
	health func() map[string]string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		orders:        orders,
		adapter:       adapter,
		issuer:        issuer,
		caches:        caches,
		secureCookies: secureCookies,
		health:        health,
		logger:        logger,
	}
}

// session returns the cache for the requesting client, minting a
// session cookie on first contact. Behind an https site URL the cookie
// is marked Secure so the session id never travels in clear text.
func (h *Handler) session(c *gin.Context) *cache.Session {
	sessionID, err := c.Cookie(sessionCookie)
	if err != nil || sessionID == "" {
		sessionID = uuid.NewString()
		c.SetCookie(sessionCookie, sessionID, 86400, "/", "", h.secureCookies, true)
	}
	return h.caches.Session(sessionID)
}

// resolver builds a per-session resolver: same identifiers and store
// state always give the same route, reads go through this session's
// cache.
func (h *Handler) resolver(c *gin.Context) *router.Resolver {
	reader := cachedReader{svc: h.orders, session: h.session(c)}
	return router.NewResolver(reader, h.issuer)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.health())
}

type createOrderRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	AmountMinor int64  `json:"amount_minor" binding:"required,gt=0"`
	Currency    string `json:"currency" binding:"required,len=3"`
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}

	order, err := h.orders.CreateDraft(c.Request.Context(), userID, req.AmountMinor, req.Currency)
	if err != nil {
		h.logger.Error("create draft", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create order"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order_id":        order.ID,
		"tracking_number": order.TrackingNumber,
		"status":          order.Status,
	})
}

// Checkout begins or resumes a checkout for a tracking number and hands
// the shopper the gateway redirect.
func (h *Handler) Checkout(c *gin.Context) {
	trackingNumber := c.Param("trackingNumber")

	result, err := h.orders.Checkout(c.Request.Context(), trackingNumber)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"redirect_url":       result.RedirectURL,
			"external_reference": result.ExternalReference,
		})
	case errors.Is(err, domain.ErrInvalidTrackingNumber), errors.Is(err, domain.ErrOrderNotFound):
		c.Redirect(http.StatusFound, "/checkout/unknown")
	case errors.Is(err, service.ErrNotResumable):
		// The order already resolved; send the shopper to its landing.
		h.redirectToLanding(c, router.Identifiers{TrackingNumber: trackingNumber})
	case errors.Is(err, domain.ErrGatewayUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment provider unavailable, try again"})
	default:
		h.logger.Error("checkout", zap.String("tracking_number", trackingNumber), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "checkout failed"})
	}
}

func (h *Handler) CancelOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	result, err := h.orders.Cancel(c.Request.Context(), orderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	if err != nil {
		h.logger.Error("cancel order", zap.String("order_id", orderID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cancel failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": result.Applied, "status": result.ResultingStatus})
}

func (h *Handler) OrderStatus(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	reader := cachedReader{svc: h.orders, session: h.session(c)}
	status, err := reader.StatusByOrderID(c.Request.Context(), orderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	if err != nil {
		h.logger.Error("order status", zap.String("order_id", orderID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status read failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "status": status})
}

func (h *Handler) OrderTransitions(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	trs, err := h.orders.Transitions(c.Request.Context(), orderID)
	if err != nil {
		h.logger.Error("order transitions", zap.String("order_id", orderID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history read failed"})
		return
	}

	out := make([]gin.H, 0, len(trs))
	for _, tr := range trs {
		out = append(out, gin.H{
			"event_id": tr.EventID,
			"from":     tr.From,
			"to":       tr.To,
			"at":       tr.At,
		})
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "transitions": out})
}

// GatewayCallback serves both the asynchronous webhook (POST) and the
// shopper redirect ping (GET); both carry the gateway's query
// parameters. A callback that cannot be parsed or matched is discarded
// without touching order state.
func (h *Handler) GatewayCallback(c *gin.Context) {
	event, err := h.adapter.ParseCallback(c.Request.URL.Query())
	if err != nil {
		h.logger.Warn("unrecognized gateway callback", zap.Error(err))
		h.respondCallback(c, http.StatusBadRequest, gin.H{"error": "unrecognized callback"}, "/checkout/unknown")
		return
	}

	result, err := h.orders.HandleCallback(c.Request.Context(), event)
	if errors.Is(err, domain.ErrUnrecognizedCallback) {
		h.logger.Warn("gateway callback matched nothing",
			zap.String("external_reference", event.Reference))
		h.respondCallback(c, http.StatusBadRequest, gin.H{"error": "unrecognized callback"}, "/checkout/unknown")
		return
	}
	if err != nil {
		h.logger.Error("gateway callback", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "callback processing failed"})
		return
	}

	if c.Request.Method == http.MethodGet {
		h.redirectToLanding(c, router.Identifiers{GatewayQuery: c.Request.URL.Query()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": result.Applied, "status": result.ResultingStatus})
}

func (h *Handler) respondCallback(c *gin.Context, code int, body gin.H, redirect string) {
	if c.Request.Method == http.MethodGet {
		c.Redirect(http.StatusFound, redirect)
		return
	}
	c.JSON(code, body)
}

// Landing resolves the page for whatever identifiers the request
// carries and answers with the route target; the storefront renders it.
func (h *Handler) Landing(c *gin.Context) {
	ids := router.Identifiers{
		OrderID:        c.Param("orderId"),
		TrackingNumber: c.Query("external_reference"),
		GatewayQuery:   c.Request.URL.Query(),
	}

	target, err := h.resolver(c).ResolveLanding(c.Request.Context(), ids)
	if err != nil {
		h.logger.Error("resolve landing", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolution failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": target.Page, "path": target.Path})
}

func (h *Handler) Unknown(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"page": router.PageUnknown, "path": "/checkout/unknown"})
}

func (h *Handler) redirectToLanding(c *gin.Context, ids router.Identifiers) {
	target, err := h.resolver(c).ResolveLanding(c.Request.Context(), ids)
	if err != nil {
		h.logger.Error("resolve landing", zap.Error(err))
		c.Redirect(http.StatusFound, "/checkout/unknown")
		return
	}
	c.Redirect(http.StatusFound, target.Path)
}
