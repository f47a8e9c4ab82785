// cmd/server/server.go
package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/openclub/courtbook/internal/api"
	"github.com/openclub/courtbook/internal/api/availability"
	"github.com/openclub/courtbook/internal/api/payments"
	"github.com/openclub/courtbook/internal/api/reservations"
	"github.com/openclub/courtbook/internal/api/waitlist"
	"github.com/openclub/courtbook/internal/config"
)

const requestTimeout = 30 * time.Second

func newServer(cfg *config.Config) *http.Server {
	router := http.NewServeMux()

	// Health check stays outside the tenant gate so load balancers can
	// probe without headers.
	router.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	router.Handle("/api/", api.WithTenantScope(apiRoutes()))

	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithRecovery,
		api.WithTimeout(requestTimeout),
		api.WithRequestID,
	)

	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func apiRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/availability", availability.HandleAvailability)

	mux.HandleFunc("POST /api/v1/reservations", reservations.HandleReservationCreate)
	mux.HandleFunc("GET /api/v1/reservations", reservations.HandleReservationList)
	mux.HandleFunc("GET /api/v1/reservations/{id}", reservations.HandleReservationGet)
	mux.HandleFunc("POST /api/v1/reservations/{id}/cancel", reservations.HandleReservationCancel)
	mux.HandleFunc("POST /api/v1/reservations/{id}/checkin", reservations.HandleReservationCheckIn)
	mux.HandleFunc("POST /api/v1/reservations/{id}/payment", payments.HandlePaymentCallback)

	mux.HandleFunc("POST /api/v1/series/{id}/cancel", reservations.HandleSeriesCancel)

	mux.HandleFunc("POST /api/v1/waitlist", waitlist.HandleWaitlistJoin)
	mux.HandleFunc("DELETE /api/v1/waitlist/{id}", waitlist.HandleWaitlistWithdraw)

	return mux
}
