package transport

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/SnowyCoder/queuify/internal/entity"
	"github.com/SnowyCoder/queuify/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type QueueHandler struct {
	queueService service.QueueService
}

func NewQueueHandler(queueService service.QueueService) *QueueHandler {
	return &QueueHandler{queueService: queueService}
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// SuccessResponse представляет успешный ответ
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// respondError переводит ошибки доменного слоя в HTTP статусы
func respondError(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, entity.ErrQueueNotFound),
		errors.Is(err, entity.ErrTicketNotFound),
		errors.Is(err, entity.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, entity.ErrBookingForbidden),
		errors.Is(err, entity.ErrNotManager):
		status = http.StatusForbidden
	case errors.Is(err, entity.ErrInvalidTicketState),
		errors.Is(err, entity.ErrAlreadyMember),
		errors.Is(err, entity.ErrUserAlreadyExists):
		status = http.StatusConflict
	case entity.IsValidationError(err),
		errors.Is(err, entity.ErrInvalidJoinMode):
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
	}

	c.JSON(status, ErrorResponse{
		Success: false,
		Error:   err.Error(),
	})
}

func parseQueueID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Error:   "invalid queue id",
		})
		return uuid.Nil, false
	}
	return id, true
}

// parseDateQuery читает дату из query-параметра date, по умолчанию сегодня
func parseDateQuery(c *gin.Context) (time.Time, bool) {
	dateStr := c.Query("date")
	if dateStr == "" {
		return time.Now(), true
	}

	day, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Error:   "invalid date, expected YYYY-MM-DD",
		})
		return time.Time{}, false
	}
	return day, true
}

func (h *QueueHandler) CreateQueue(c *gin.Context) {
	var req service.CreateQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	queue, err := h.queueService.CreateQueue(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, queue)
}

func (h *QueueHandler) GetQueue(c *gin.Context) {
	id, ok := parseQueueID(c)
	if !ok {
		return
	}

	queue, err := h.queueService.GetQueue(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"queue":         queue,
		"expected_time": queue.FormatExpectedTime(),
	})
}

func (h *QueueHandler) GetAllQueues(c *gin.Context) {
	queues, err := h.queueService.GetAllQueues(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, queues)
}

func (h *QueueHandler) SearchQueues(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}

	queues, err := h.queueService.SearchQueues(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, queues)
}

func (h *QueueHandler) UpdateQueue(c *gin.Context) {
	id, ok := parseQueueID(c)
	if !ok {
		return
	}

	var req service.UpdateQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	queue, err := h.queueService.UpdateQueue(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, queue)
}

func (h *QueueHandler) DeleteQueue(c *gin.Context) {
	id, ok := parseQueueID(c)
	if !ok {
		return
	}

	if err := h.queueService.DeleteQueue(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "queue deleted",
	})
}

// GetBookableTimes возвращает доступные окна записи на дату.
// Параметр tz задает зону отображения времен в ответе.
func (h *QueueHandler) GetBookableTimes(c *gin.Context) {
	id, ok := parseQueueID(c)
	if !ok {
		return
	}

	day, ok := parseDateQuery(c)
	if !ok {
		return
	}

	availability, err := h.queueService.BookableTimes(c.Request.Context(), id, day, c.Query("tz"), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, availability)
}

// GetDayOverview возвращает сводку очереди на сегодня
func (h *QueueHandler) GetDayOverview(c *gin.Context) {
	id, ok := parseQueueID(c)
	if !ok {
		return
	}

	overview, err := h.queueService.GetDayOverview(c.Request.Context(), id, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, overview)
}

func (h *QueueHandler) GetSchedule(c *gin.Context) {
	id, ok := parseQueueID(c)
	if !ok {
		return
	}

	ranges, err := h.queueService.GetSchedule(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ranges)
}

func (h *QueueHandler) SetSchedule(c *gin.Context) {
	id, ok := parseQueueID(c)
	if !ok {
		return
	}

	var req service.SetScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.queueService.SetSchedule(c.Request.Context(), id, &req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "schedule updated",
	})
}

func (h *QueueHandler) SetException(c *gin.Context) {
	id, ok := parseQueueID(c)
	if !ok {
		return
	}

	var req service.SetExceptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.queueService.SetException(c.Request.Context(), id, &req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "exception saved",
	})
}

func (h *QueueHandler) JoinQueue(c *gin.Context) {
	id, ok := parseQueueID(c)
	if !ok {
		return
	}

	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.queueService.JoinQueue(c.Request.Context(), id, req.UserID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "joined queue",
	})
}

func (h *QueueHandler) GetMembers(c *gin.Context) {
	id, ok := parseQueueID(c)
	if !ok {
		return
	}

	members, err := h.queueService.GetMembers(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, members)
}

func (h *QueueHandler) SetMemberRole(c *gin.Context) {
	id, ok := parseQueueID(c)
	if !ok {
		return
	}

	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req struct {
		Role entity.QueueRole `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.queueService.SetMemberRole(c.Request.Context(), id, userID, req.Role); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "role updated",
	})
}

func (h *QueueHandler) RemoveMember(c *gin.Context) {
	id, ok := parseQueueID(c)
	if !ok {
		return
	}

	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if err := h.queueService.RemoveMember(c.Request.Context(), id, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "member removed",
	})
}
