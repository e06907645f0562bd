package transport

import (
	"net/http"
	"strconv"

	"github.com/gabrie-lhilarion/spacemania/internal/entity"
	"github.com/gabrie-lhilarion/spacemania/internal/service"
	"github.com/gabrie-lhilarion/spacemania/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	bookingService service.BookingService
}

func NewBookingHandler(bookingService service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

// CreateBooking reports conflicts as 400 like every other rejected request.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Success: false, Error: "authentication required"})
		return
	}

	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, bindingMessage(err, &req))
		return
	}
	req.UserID = userID

	result, err := h.bookingService.CreateBooking(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Message: result.Message,
		Data:    result,
	})
}

func (h *BookingHandler) CheckAvailability(c *gin.Context) {
	workspaceID, ok := pathID(c, "id")
	if !ok {
		return
	}

	start, err := entity.ParseTime(c.Query("start_time"))
	if err != nil {
		respondError(c, err, http.StatusBadRequest)
		return
	}
	end, err := entity.ParseTime(c.Query("end_time"))
	if err != nil {
		respondError(c, err, http.StatusBadRequest)
		return
	}

	var attendees *int
	if raw, ok := c.GetQuery("attendees"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "attendees must be a number")
			return
		}
		attendees = &n
	}

	report, err := h.bookingService.CheckAvailability(c.Request.Context(), &service.AvailabilityRequest{
		WorkspaceID: workspaceID,
		StartTime:   start,
		EndTime:     end,
		Attendees:   attendees,
	})
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: report.Notice,
		Data:    report.Availability,
	})
}

// GetUserBookings lists the caller's bookings. Without ?upcoming the
// upcoming ones are returned.
func (h *BookingHandler) GetUserBookings(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Success: false, Error: "authentication required"})
		return
	}

	upcoming, err := strconv.ParseBool(c.DefaultQuery("upcoming", "true"))
	if err != nil {
		badRequest(c, "upcoming must be true or false")
		return
	}
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil {
		badRequest(c, "page must be a number")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		badRequest(c, "limit must be a number")
		return
	}

	result, err := h.bookingService.GetUserBookings(c.Request.Context(), userID, &service.ListBookingsRequest{
		Upcoming: upcoming,
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    result.Bookings,
		Meta: gin.H{
			"page":     result.Page,
			"limit":    result.Limit,
			"total":    result.Total,
			"upcoming": upcoming,
		},
	})
}

func (h *BookingHandler) CancelBooking(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Success: false, Error: "authentication required"})
		return
	}

	bookingID, ok := pathID(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookingService.CancelBooking(c.Request.Context(), bookingID, userID)
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Booking cancelled successfully",
		Data:    booking,
	})
}
