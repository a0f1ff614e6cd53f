package app

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	authapi "github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/auth/api"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/chat"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/leads"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/metrics"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/realtime"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/whatsapp"
)

type routes struct {
	log       Logger
	cfg       Config
	dbPool    *pgxpool.Pool
	dbEnabled bool
	metrics   *metrics.Metrics

	ws       *realtime.WSGateway
	auth     *authapi.Handler
	chat     *chat.Handler
	leads    *leads.Handler
	whatsapp *whatsapp.Handler
}

func registerHTTP(mux *http.ServeMux, rt routes) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if rt.cfg.ReadinessRequireDB && !rt.dbEnabled {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		if rt.dbEnabled && rt.dbPool != nil {
			if err := PingDB(r.Context(), rt.dbPool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				rt.log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	if rt.auth != nil {
		rt.auth.Register(mux)
	}
	if rt.chat != nil {
		rt.chat.Register(mux)
	}
	if rt.leads != nil {
		rt.leads.Register(mux)
	}
	if rt.whatsapp != nil {
		rt.whatsapp.Register(mux)
	}
	if rt.ws != nil {
		mux.HandleFunc("/realtime", rt.ws.HandleWS)
	}
}
