package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	authmw "github.com/mxshop/backend/internal/middleware/auth"
)

type Deps struct {
	Auth    *AuthHandler
	Product *ProductHandler
	Search  *SearchHandler
	Cart    *CartHandler
	Order   *OrderHandler
	Payment *PaymentHandler
	Fav     *FavHandler
	Address *AddressHandler
	Message *MessageHandler

	JWTSecret []byte
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	mw := &authmw.Middleware{JWTSecret: d.JWTSecret}

	api := e.Group("/api")

	api.POST("/code", d.Auth.SendCode)
	api.POST("/register", d.Auth.Register)
	api.POST("/login", d.Auth.Login)
	api.POST("/refresh", d.Auth.Refresh)

	api.GET("/products", d.Product.GetProducts)
	api.GET("/products/:id", d.Product.GetProduct)
	api.GET("/search", d.Search.Handler)

	admin := api.Group("/products", mw.RequireAdmin)
	admin.POST("", d.Product.CreateProduct)
	admin.PATCH("/:id", d.Product.PatchProduct)
	admin.DELETE("/:id", d.Product.DeleteProduct)

	cart := api.Group("/cart", mw.RequireLogin)
	cart.GET("", d.Cart.GetCart)
	cart.POST("", d.Cart.AddToCart)
	cart.PATCH("/:id", d.Cart.UpdateQuantity)
	cart.DELETE("/:id", d.Cart.RemoveFromCart)

	orders := api.Group("/orders", mw.RequireLogin)
	orders.POST("", d.Order.CreateOrder)
	orders.GET("", d.Order.ListOrders)
	orders.GET("/:id", d.Order.GetOrder)
	orders.DELETE("/:id", d.Order.DeleteOrder)

	favs := api.Group("/favs", mw.RequireLogin)
	favs.GET("", d.Fav.List)
	favs.POST("", d.Fav.Add)
	favs.DELETE("/:id", d.Fav.Remove)

	addrs := api.Group("/addresses", mw.RequireLogin)
	addrs.GET("", d.Address.List)
	addrs.POST("", d.Address.Create)
	addrs.PUT("/:id", d.Address.Update)
	addrs.DELETE("/:id", d.Address.Delete)

	msgs := api.Group("/messages", mw.RequireLogin)
	msgs.GET("", d.Message.List)
	msgs.POST("", d.Message.Create)
	msgs.DELETE("/:id", d.Message.Delete)

	// Provider callbacks are unauthenticated by design; the signature check
	// inside the handlers is the trust boundary.
	e.GET("/alipay/return", d.Payment.Return)
	e.POST("/alipay/notify", d.Payment.Notify)
}
