package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tolusimi/naiabook/internal/domain"
	"github.com/tolusimi/naiabook/internal/service/payments"
)

type PaymentHandler struct {
	service payments.PaymentUseCase
}

func NewPaymentHandler(service payments.PaymentUseCase) *PaymentHandler {
	return &PaymentHandler{service: service}
}

func (h *PaymentHandler) Register(router *gin.RouterGroup) {
	router.GET("/callback", h.callback)
	router.POST("/webhook", h.webhook)
	router.GET("/:reference", h.status)
	router.POST("/retry", h.retry)
	router.POST("/:reference/refund", h.refund)
}

// callback handles the customer's return from the hosted payment page.
// Verification goes back to the gateway; the redirect itself proves nothing.
func (h *PaymentHandler) callback(c *gin.Context) {
	reference := c.Query("reference")
	if reference == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference query parameter is required"})
		return
	}

	payment, err := h.service.VerifyCallback(c.Request.Context(), reference)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// webhook receives gateway push notifications. The signature header is
// validated against the raw body before anything is trusted; a missing or
// bad signature is rejected outright.
func (h *PaymentHandler) webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body"})
		return
	}

	signature := c.GetHeader("X-Paystack-Signature")
	if err := h.service.HandleWebhook(c.Request.Context(), body, signature); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *PaymentHandler) status(c *gin.Context) {
	payment, err := h.service.Status(c.Request.Context(), c.Param("reference"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

type retryRequest struct {
	BookingReference string `json:"booking_reference"`
}

func (h *PaymentHandler) retry(c *gin.Context) {
	var req retryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payment, err := h.service.Retry(c.Request.Context(), req.BookingReference)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

type refundRequest struct {
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

func (h *PaymentHandler) refund(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// An empty amount refunds the full remaining balance.
	var amount domain.Money
	if req.Amount != "" {
		parsed, err := domain.ParseMoney(req.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		amount = parsed
	}

	payment, err := h.service.Refund(c.Request.Context(), c.Param("reference"), amount, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}
