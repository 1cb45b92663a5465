package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/petrealm/pet-realm/internal/handlers"
	"github.com/petrealm/pet-realm/internal/middleware/ratelimit"
	"github.com/petrealm/pet-realm/internal/token"
)

type Deps struct {
	AuthHandler    *handlers.AuthHandler
	ProductHandler *handlers.ProductHandler
	ShopHandler    *handlers.ShopHandler
	CartHandler    *handlers.CartHandler
	OrderHandler   *handlers.OrderHandler
	ContactHandler *handlers.ContactHandler
	SearchHandler  *handlers.SearchHandler
	TokenService   *token.TokenService
	RateLimiter    *ratelimit.Limiter
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	api := e.Group("/api")

	auth := api.Group("/auth", d.RateLimiter.Middleware())
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/logout", d.AuthHandler.Logout)
	auth.POST("/verify-email", d.AuthHandler.VerifyEmail)
	auth.POST("/resend-verification", d.AuthHandler.ResendVerification)
	auth.POST("/forgot-password", d.AuthHandler.ForgotPassword)
	auth.POST("/reset-password", d.AuthHandler.ResetPassword)

	api.GET("/products", d.ProductHandler.GetProducts)
	api.GET("/products/:id", d.ProductHandler.GetProduct)
	api.GET("/shops", d.ShopHandler.GetShops)
	api.GET("/shops/:id", d.ShopHandler.GetShop)
	api.GET("/shops/:id/products", d.ShopHandler.GetShopProducts)
	api.GET("/search", d.SearchHandler.Search)
	api.POST("/contact", d.ContactHandler.CreateContact)

	cart := api.Group("/cart", d.TokenService.RequireAuth)
	cart.GET("", d.CartHandler.GetCart)
	cart.POST("", d.CartHandler.AddToCart)
	cart.PATCH("/:id", d.CartHandler.SetQuantity)
	cart.DELETE("/:id", d.CartHandler.DeleteFromCart)

	orders := api.Group("/orders", d.TokenService.RequireAuth)
	orders.POST("", d.OrderHandler.Checkout)
	orders.GET("", d.OrderHandler.ListMyOrders)
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.DELETE("/:id", d.OrderHandler.DeleteOrder)
	orders.POST("/:id/receipt", d.OrderHandler.UploadReceipt)

	shop := api.Group("/shop", d.TokenService.RequireRole(token.RoleSeller))
	shop.POST("", d.ShopHandler.CreateShop)
	shop.GET("", d.ShopHandler.GetMyShop)
	shop.PATCH("", d.ShopHandler.UpdateShop)
	shop.POST("/logo", d.ShopHandler.UploadShopLogo)
	shop.POST("/products", d.ShopHandler.CreateProduct)
	shop.PATCH("/products/:id", d.ShopHandler.PatchProduct)
	shop.DELETE("/products/:id", d.ShopHandler.DeleteProduct)
	shop.POST("/products/:id/image", d.ShopHandler.UploadProductImage)
	shop.GET("/orders", d.OrderHandler.ListShopOrders)
	shop.PATCH("/orders/:id", d.OrderHandler.TransitionOrder)
	shop.PATCH("/orders/:id/verify-payment", d.OrderHandler.VerifyPayment)
}
