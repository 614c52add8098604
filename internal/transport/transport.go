package transport

import (
	"time"

	"github.com/SnowyCoder/queuify/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

func InitRoutes(queueHandler *QueueHandler, ticketHandler *TicketHandler, userHandler *UserHandler) *gin.Engine {

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(30 * time.Second))

	// API routes
	api := router.Group("/api/v1")
	{
		// Queue routes
		queues := api.Group("/queues")
		{
			queues.POST("", queueHandler.CreateQueue)
			queues.GET("", queueHandler.GetAllQueues)
			queues.GET("/search", queueHandler.SearchQueues)
			queues.GET("/:id", queueHandler.GetQueue)
			queues.PUT("/:id", queueHandler.UpdateQueue)
			queues.DELETE("/:id", queueHandler.DeleteQueue)

			queues.GET("/:id/bookable", queueHandler.GetBookableTimes)
			queues.GET("/:id/overview", queueHandler.GetDayOverview)

			queues.GET("/:id/schedule", queueHandler.GetSchedule)
			queues.PUT("/:id/schedule", queueHandler.SetSchedule)
			queues.POST("/:id/exceptions", queueHandler.SetException)

			queues.POST("/:id/join", queueHandler.JoinQueue)
			queues.GET("/:id/members", queueHandler.GetMembers)
			queues.PUT("/:id/members/:user_id", queueHandler.SetMemberRole)
			queues.DELETE("/:id/members/:user_id", queueHandler.RemoveMember)

			queues.GET("/:id/tickets", ticketHandler.GetQueueTickets)
		}

		// Ticket routes
		tickets := api.Group("/tickets")
		{
			tickets.POST("", ticketHandler.BookTicket)
			tickets.GET("/:id", ticketHandler.GetTicket)
			tickets.POST("/:id/serve", ticketHandler.ServeTicket)
			tickets.POST("/:id/cancel", ticketHandler.CancelTicket)
		}

		// User routes
		users := api.Group("/users")
		{
			users.POST("/register", userHandler.RegisterUser)
			users.GET("/:id", userHandler.GetUser)
			users.POST("/:id/telegram", userHandler.LinkTelegram)
			users.GET("/:id/tickets", ticketHandler.GetUserTickets)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	return router
}
