package staff

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"breast-screening-service/internal/middleware"
	"breast-screening-service/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	// Gestión de doctores: solo admin
	r.Route("/doctors", func(dr chi.Router) {
		dr.Post("/", createDoctorHandler(svc))
		dr.Get("/", listDoctorsHandler(svc))
		dr.Put("/{accountID}", updateDoctorHandler(svc))
		dr.Delete("/{accountID}", deleteDoctorHandler(svc))
	})
}

type createDoctorRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Status string `json:"status"`
}

type accountResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      auth.Role `json:"role"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func requireAdmin(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return auth.Claims{}, false
	}
	if !claims.IsAdmin() {
		http.Error(w, "forbidden", http.StatusForbidden)
		return auth.Claims{}, false
	}
	return claims, true
}

// createDoctorHandler godoc
// @Summary Alta de doctor
// @Tags doctors
// @Accept json
// @Produce json
// @Param payload body createDoctorRequest true "Datos del doctor"
// @Success 201 {object} accountResponse
// @Failure 400 {string} string "invalid json / campos requeridos"
// @Failure 403 {string} string "forbidden"
// @Router /doctors [post]
func createDoctorHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ok := requireAdmin(w, r)
		if !ok {
			return
		}

		var req createDoctorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		a, err := svc.CreateDoctor(r.Context(), CreateDoctorInput{
			Name:   req.Name,
			Email:  req.Email,
			Status: Status(req.Status),
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		writeJSON(w, http.StatusCreated, toAccountResponse(a))
	}
}

func listDoctorsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ok := requireAdmin(w, r)
		if !ok {
			return
		}

		items, err := svc.ListDoctors(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]accountResponse, 0, len(items))
		for _, a := range items {
			out = append(out, toAccountResponse(a))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func updateDoctorHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireAdmin(w, r)
		if !ok {
			return
		}

		var req createDoctorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		a, err := svc.Update(r.Context(), chi.URLParam(r, "accountID"), svc.ResolveActorID(r.Context(), claims), UpdateInput{
			Name:   req.Name,
			Email:  req.Email,
			Status: Status(req.Status),
		})
		if err != nil {
			switch err {
			case ErrInvalidInput:
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "doctor not found", http.StatusNotFound)
			}
			return
		}

		writeJSON(w, http.StatusOK, toAccountResponse(a))
	}
}

func deleteDoctorHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireAdmin(w, r)
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), chi.URLParam(r, "accountID"), svc.ResolveActorID(r.Context(), claims)); err != nil {
			switch {
			case err == ErrInvalidInput:
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "doctor not found", http.StatusNotFound)
			}
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func toAccountResponse(a Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Role:      a.Role,
		Status:    a.Status,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
