package transport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/SnowyCoder/queuify/internal/entity"
	"github.com/SnowyCoder/queuify/internal/service"
	"github.com/gin-gonic/gin"
)

type TicketHandler struct {
	ticketService service.TicketService
}

func NewTicketHandler(ticketService service.TicketService) *TicketHandler {
	return &TicketHandler{ticketService: ticketService}
}

// ServeTicketRequest представляет запрос на обслуживание талона
type ServeTicketRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// CancelTicketRequest представляет запрос на отмену талона
type CancelTicketRequest struct {
	UserID  int64              `json:"user_id" binding:"required"`
	By      entity.CancelActor `json:"by" binding:"required"`
	Message *string            `json:"message"`
}

func parseTicketID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Error:   "invalid ticket id",
		})
		return 0, false
	}
	return id, true
}

func (h *TicketHandler) BookTicket(c *gin.Context) {
	var req service.BookTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ticket, err := h.ticketService.BookTicket(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ticket)
}

func (h *TicketHandler) GetTicket(c *gin.Context) {
	id, ok := parseTicketID(c)
	if !ok {
		return
	}

	ticket, err := h.ticketService.GetTicket(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ticket)
}

func (h *TicketHandler) ServeTicket(c *gin.Context) {
	id, ok := parseTicketID(c)
	if !ok {
		return
	}

	var req ServeTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ticket, err := h.ticketService.ServeTicket(c.Request.Context(), id, req.UserID, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ticket)
}

func (h *TicketHandler) CancelTicket(c *gin.Context) {
	id, ok := parseTicketID(c)
	if !ok {
		return
	}

	var req CancelTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.By != entity.CancelByUser && req.By != entity.CancelByQueue {
		c.JSON(http.StatusBadRequest, gin.H{"error": "by must be 'user' or 'queue'"})
		return
	}

	err := h.ticketService.CancelTicket(c.Request.Context(), id, req.By, req.UserID, req.Message, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "ticket cancelled",
	})
}

func (h *TicketHandler) GetUserTickets(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	tickets, err := h.ticketService.GetUserTickets(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tickets)
}

// GetQueueTickets возвращает открытые талоны очереди на дату, для панели
// оператора
func (h *TicketHandler) GetQueueTickets(c *gin.Context) {
	queueID, ok := parseQueueID(c)
	if !ok {
		return
	}

	day, ok := parseDateQuery(c)
	if !ok {
		return
	}

	tickets, err := h.ticketService.GetQueueTickets(c.Request.Context(), queueID, day)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tickets)
}
