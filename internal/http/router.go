package http

import (
	"net/http"
	"time"

	chk "github.com/fjod/storefront/internal/checkout"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	Session            SessionCookie
	SuccessPath        string
	FailPath           string
	ChallengePath      string
}

func NewRouter(cfg RouterConfig, cart *CartHandler, checkout *CheckoutHandler, log logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(AccessLog(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}
	r.Use(middleware.Compress(5))
	r.Use(SessionMiddleware(cfg.Session))
	r.Use(ResponseModeMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/cart", func(r chi.Router) {
		r.Get("/", cart.GetCart)
		r.Delete("/", cart.ClearCart)
		r.Get("/count", cart.Count)
		r.Post("/items", cart.AddItem)
		r.Put("/items/{product_id}", cart.UpdateQuantity)
		r.Delete("/items/{product_id}", cart.RemoveItem)
	})

	r.Post("/checkout", checkout.Submit)
	r.Get("/checkout/installments", checkout.Installments)
	r.Get("/checkout/orders/{payment_id}", checkout.ConfirmOrder)
	// gateway and ACS callbacks arrive as either GET or POST
	r.Get(chk.ThreeDsCallbackPath, checkout.ThreeDsCallback)
	r.Post(chk.ThreeDsCallbackPath, checkout.ThreeDsCallback)
	r.Get(chk.HostedCallbackPath+"{flow}", checkout.HostedCallback)
	r.Post(chk.HostedCallbackPath+"{flow}", checkout.HostedCallback)
	r.Get(cfg.ChallengePath, checkout.Challenge)
	r.Get(cfg.SuccessPath, SuccessPage)
	r.Get(cfg.FailPath, FailPage)

	return otelhttp.NewHandler(r, "storefront")
}
