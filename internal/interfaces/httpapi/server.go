package httpapi

import (
	"net/http"

	"github.com/riskibarqy/match-tracker/internal/platform/logging"
)

func NewRouter(handler *Handler, logger *logging.Logger, corsAllowedOrigins []string) http.Handler {
	if logger == nil {
		logger = logging.NewNop()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handler.Healthz)
	mux.HandleFunc("POST /v1/events", handler.PostEvent)
	mux.HandleFunc("GET /v1/matches", handler.ListMatches)
	mux.HandleFunc("GET /v1/matches/{matchID}", handler.GetMatchDetail)
	mux.HandleFunc("GET /v1/matches/{matchID}/statistics", handler.GetMatchStatistics)
	mux.HandleFunc("GET /v1/teams/{teamName}/statistics", handler.GetTeamStatistics)

	return RequestTracing(RequestLogging(logger, CORS(corsAllowedOrigins, recoverPanic(logger, mux))))
}

func recoverPanic(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := startSpan(r.Context(), "httpapi.recoverPanic")
		defer span.End()

		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorContext(ctx, "panic recovered", "panic", rec)
				writeError(ctx, w, http.StatusInternalServerError, "Internal server error.", nil)
			}
		}()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
