package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tolusimi/naiabook/internal/domain"
	"github.com/tolusimi/naiabook/internal/repository"
	"github.com/tolusimi/naiabook/internal/service/flights"
)

type FlightHandler struct {
	service flights.FlightUseCase
}

func NewFlightHandler(service flights.FlightUseCase) *FlightHandler {
	return &FlightHandler{service: service}
}

func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.GET("/", h.search)
	router.GET("/:id", h.get)
}

type flightResponse struct {
	ID            int64  `json:"id"`
	Number        string `json:"number"`
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureTime string `json:"departure_time"`
	ArrivalTime   string `json:"arrival_time"`
	Status        string `json:"status"`
	International bool   `json:"international"`

	EconomyPrice  domain.Money `json:"economy_price"`
	BusinessPrice domain.Money `json:"business_price"`
	FirstPrice    domain.Money `json:"first_price"`

	EconomySeats  int `json:"economy_seats"`
	BusinessSeats int `json:"business_seats"`
	FirstSeats    int `json:"first_seats"`
}

func toFlightResponse(f *domain.Flight) flightResponse {
	return flightResponse{
		ID:            f.ID,
		Number:        f.Number,
		Origin:        f.Origin,
		Destination:   f.Destination,
		DepartureTime: f.DepartureTime.Format(time.RFC3339),
		ArrivalTime:   f.ArrivalTime.Format(time.RFC3339),
		Status:        string(f.Status),
		International: f.International,
		EconomyPrice:  f.EconomyPrice,
		BusinessPrice: f.BusinessPrice,
		FirstPrice:    f.FirstPrice,
		EconomySeats:  f.EconomySeats,
		BusinessSeats: f.BusinessSeats,
		FirstSeats:    f.FirstSeats,
	}
}

func (h *FlightHandler) search(c *gin.Context) {
	filter := repository.FlightFilter{
		Origin:      c.Query("origin"),
		Destination: c.Query("destination"),
	}
	if raw := c.Query("date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		filter.DepartureDate = &date
	}

	result, err := h.service.Search(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	responses := make([]flightResponse, 0, len(result))
	for i := range result {
		responses = append(responses, toFlightResponse(&result[i]))
	}
	c.JSON(http.StatusOK, gin.H{"flights": responses})
}

func (h *FlightHandler) get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flight id"})
		return
	}

	flight, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFlightResponse(flight))
}
