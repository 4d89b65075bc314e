package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter собирает маршруты /api/v1 с базовым набором middleware.
func NewRouter(h *Handler) http.Handler {
	router := chi.NewRouter()

	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
	)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/products/{productRef}", h.getProduct)

		r.Get("/orders", h.listOrders)
		r.Post("/orders/checkout", h.checkout)
		r.Get("/orders/{orderRef}", h.getOrder)
		r.Patch("/orders/{orderRef}", h.patchOrder)

		r.Get("/clients/{clientRef}/cart", h.getCart)
		r.Post("/clients/{clientRef}/cart", h.addToCart)
		r.Delete("/clients/{clientRef}/cart/{productRef}", h.removeFromCart)
	})

	return router
}
