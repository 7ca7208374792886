package routes

import (
	"github.com/Anandhu-731/BookNest/controllers"
	"github.com/Anandhu-731/BookNest/middleware"
	"github.com/Anandhu-731/BookNest/utils"
	"github.com/gin-gonic/gin"
)

// SetupRouter initializes and returns the Gin router with all payment routes.
func SetupRouter(payment *controllers.PaymentHandler, admin *controllers.AdminPaymentHandler) *gin.Engine {
	router := gin.New()
	// The callback must only accept write-style requests; anything else gets
	// an explicit 405 rather than a silent 404.
	router.HandleMethodNotAllowed = true

	router.Use(utils.LoggerMiddleware())
	router.Use(utils.RecoveryMiddleware())
	router.Use(utils.RequestIDMiddleware())
	router.Use(utils.SecurityHeadersMiddleware())

	api := router.Group("/v1")
	{
		pay := api.Group("/payment")
		{
			pay.POST("/callback", payment.Callback)
			pay.GET("/return", payment.Return)
		}

		bookings := api.Group("/bookings")
		{
			bookings.POST("/:id/payment/initiate", payment.InitiatePayment)
			bookings.GET("/:id/payment/balance", payment.RemainingBalance)
		}

		adminGroup := api.Group("/admin")
		adminGroup.Use(middleware.AdminAuthMiddleware())
		{
			adminGroup.GET("/payments", admin.ListPayments)
			adminGroup.GET("/bills", admin.ListBills)
			adminGroup.POST("/bills/:billcode/reconcile", admin.RequeueBill)
		}
	}

	return router
}
