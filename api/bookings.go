package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tolusimi/naiabook/internal/domain"
	"github.com/tolusimi/naiabook/internal/service/booking"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.GET("/:reference", h.get)
	router.POST("/manage", h.manage)
	router.POST("/:reference/cancel", h.cancel)
	router.PUT("/:reference/status", h.setStatus)
}

func (h *BookingHandler) get(c *gin.Context) {
	result, err := h.service.GetByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type manageRequest struct {
	Reference string `json:"reference"`
	LastName  string `json:"last_name"`
}

// manage is the self-service lookup: reference plus a passenger last name,
// so a reference alone is not enough to read someone's booking.
func (h *BookingHandler) manage(c *gin.Context) {
	var req manageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Manage(c.Request.Context(), req.Reference, req.LastName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) cancel(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Reason == "" {
		req.Reason = "cancelled by customer"
	}

	result, err := h.service.Cancel(c.Request.Context(), c.Param("reference"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// setStatus drives the operational transitions staff perform at the
// airport: check-in, boarding, completion and no-show.
func (h *BookingHandler) setStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Transition(c.Request.Context(), c.Param("reference"), domain.BookingStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
