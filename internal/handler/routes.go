package handler

import (
	"github.com/labstack/echo/v4"

	"shop-service/internal/middleware"
)

// RegisterRoutes mounts the API routes on e.
func (h *Handler) RegisterRoutes(e *echo.Echo, a *middleware.Auth) {
	authed := a.RequireAuthenticated()
	admin := a.RequireAdmin()

	e.GET("/health", h.HealthCheck)

	api := e.Group("/api")

	authAPI := api.Group("/auth")
	authAPI.POST("/register", h.Register)
	authAPI.POST("/login", h.Login)
	authAPI.POST("/logout", h.Logout)
	authAPI.GET("/profile", h.Profile, authed)

	userAPI := api.Group("/users", authed)
	userAPI.GET("", h.ListUsers, admin)
	userAPI.GET("/:id", h.GetUser)
	userAPI.PUT("/:id", h.UpdateUser)
	userAPI.DELETE("/:id", h.DeleteUser, admin)

	adminAPI := api.Group("/admin", authed, admin)
	adminAPI.PATCH("/users/:id/toggle-status", h.ToggleUserStatus)
	adminAPI.GET("/stats", h.Stats)

	productAPI := api.Group("/products")
	productAPI.GET("", h.ListProducts)
	productAPI.GET("/:id", h.GetProduct)
	productAPI.POST("", h.CreateProduct, authed, admin)
	productAPI.PATCH("/:id", h.UpdateProduct, authed, admin)
	productAPI.DELETE("/:id", h.DeleteProduct, authed, admin)

	categoryAPI := api.Group("/categories")
	categoryAPI.GET("", h.ListCategories)
	categoryAPI.GET("/:id", h.GetCategory)
	categoryAPI.POST("", h.CreateCategory, authed, admin)
	categoryAPI.PATCH("/:id", h.UpdateCategory, authed, admin)
	categoryAPI.DELETE("/:id", h.DeleteCategory, authed, admin)

	cartAPI := api.Group("/cart", authed)
	cartAPI.GET("", h.GetCart)
	cartAPI.POST("", h.AddCartItem)
	cartAPI.PUT("", h.UpdateCartItem)
	cartAPI.DELETE("", h.ClearCart)
	cartAPI.DELETE("/:productId", h.RemoveCartItem)

	commentAPI := api.Group("/comments")
	commentAPI.POST("", h.AddComment, authed)
	commentAPI.GET("/:productId", h.ListComments)

	orderAPI := api.Group("/orders", authed)
	orderAPI.GET("", h.ListOrders)
	orderAPI.POST("", h.PlaceOrder)
	orderAPI.POST("/checkout", h.Checkout)
	orderAPI.GET("/:id", h.GetOrder)
	orderAPI.PATCH("/:id", h.UpdateOrderStatus, admin)
	orderAPI.PATCH("/:id/cancel", h.CancelOrder)
	orderAPI.PATCH("/:id/payment", h.ConfirmPayment)
	orderAPI.PATCH("/:id/payment/fail", h.FailPayment, admin)
	orderAPI.PATCH("/:id/refund", h.RefundPayment)
	orderAPI.GET("/:id/payments", h.ListPayments)
}
