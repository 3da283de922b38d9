package activity

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"breast-screening-service/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/activities", listActivitiesHandler(svc))
}

type activityResponse struct {
	ID          string    `json:"id"`
	ActionType  string    `json:"action_type"`
	User        string    `json:"user"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// listActivitiesHandler godoc
// @Summary Últimas entradas del log de actividad
// @Tags activities
// @Produce json
// @Param limit query int false "Cantidad (default 10)"
// @Success 200 {array} activityResponse
// @Failure 401 {string} string "unauthorized"
// @Router /activities [get]
func listActivitiesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		limit := 10
		if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}

		items, err := svc.Recent(r.Context(), limit)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]activityResponse, 0, len(items))
		for _, e := range items {
			out = append(out, activityResponse{
				ID:          e.ID,
				ActionType:  e.ActionType,
				User:        e.ActorName,
				Description: e.Description,
				Timestamp:   e.Timestamp,
			})
		}

		writeJSON(w, http.StatusOK, out)
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
