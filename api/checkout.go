package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tolusimi/naiabook/internal/checkout"
)

type CheckoutHandler struct {
	service checkout.CheckoutUseCase
}

func NewCheckoutHandler(service checkout.CheckoutUseCase) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

func (h *CheckoutHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.selectFlight)
	router.PUT("/:token/passengers", h.submitPassengers)
	router.POST("/:token/review", h.review)
	router.POST("/:token/pay", h.pay)
}

func (h *CheckoutHandler) selectFlight(c *gin.Context) {
	var req checkout.SelectFlightInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.service.SelectFlight(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

type submitPassengersRequest struct {
	Passengers []checkout.PassengerInput `json:"passengers"`
	Contact    checkout.ContactInput     `json:"contact"`
}

func (h *CheckoutHandler) submitPassengers(c *gin.Context) {
	var req submitPassengersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.service.SubmitPassengers(c.Request.Context(), c.Param("token"), req.Passengers, req.Contact)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

type reviewRequest struct {
	AcceptTerms bool `json:"accept_terms"`
}

func (h *CheckoutHandler) review(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.service.Review(c.Request.Context(), c.Param("token"), req.AcceptTerms)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

type payRequest struct {
	Method string `json:"method"`
}

func (h *CheckoutHandler) pay(c *gin.Context) {
	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Pay(c.Request.Context(), c.Param("token"), req.Method)
	if err != nil {
		// A gateway failure after the booking was created still returns the
		// booking reference so the client can retry payment against it.
		if result != nil && result.Booking != nil {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":             err.Error(),
				"booking_reference": result.Booking.Reference,
			})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
