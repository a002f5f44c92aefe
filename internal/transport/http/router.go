package http

import (
	"net/http"

	"assessment-session-service/internal/app"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// NewRouter mounts the live socket, the REST views and the health check behind
// panic recovery, CORS and access logging.
func NewRouter(service *app.AttemptService, log *logrus.Logger, corsOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/ws", NewWSHandler(service, log).ServeWS)
	NewAPI(service, log).SetupRoutes(r)

	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	var h http.Handler = r
	h = handlers.CORS(
		handlers.AllowedOrigins(corsOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", headerViewerID, headerRole}),
	)(h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(log), handlers.PrintRecoveryStack(true))(h)
	return handlers.CombinedLoggingHandler(log.WriterLevel(logrus.DebugLevel), h)
}
