package patients

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"breast-screening-service/internal/domain/records"
	"breast-screening-service/internal/middleware"
	"breast-screening-service/internal/ports/auth"
	"breast-screening-service/internal/ports/objectstore"

	"github.com/go-chi/chi/v5"
)

// ActorResolverFunc traduce los claims del request al id interno de cuenta
// (para el activity log). Best-effort: nil si no se puede resolver.
type ActorResolverFunc func(ctx context.Context, claims auth.Claims) *string

func requireClinician(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return auth.Claims{}, false
	}
	if !claims.IsDoctor() && !claims.IsAdmin() {
		http.Error(w, "forbidden", http.StatusForbidden)
		return auth.Claims{}, false
	}
	return claims, true
}

func RegisterRoutes(r chi.Router, svc *Service, recordsSvc *records.Service, store objectstore.Store, actors ActorResolverFunc) {
	r.Route("/patients", func(pr chi.Router) {
		pr.Post("/", createPatientHandler(svc))
		pr.Get("/", listPatientsHandler(svc, recordsSvc, store))
		pr.Get("/{patientID}", getPatientHandler(svc, recordsSvc, store))
		pr.Put("/{patientID}", updatePatientHandler(svc, actors))
		pr.Delete("/{patientID}", deletePatientHandler(svc, actors))
	})
}

type createPatientRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type patientResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Decoración con la última revisión (si existe).
	Image  string `json:"image,omitempty"`
	Review string `json:"review"`
}

type patientRecordResponse struct {
	ID               string                   `json:"id"`
	Seq              int                      `json:"seq"`
	ValidationStatus records.ValidationStatus `json:"validation_status"`
	AIDiagnosis      string                   `json:"ai_diagnosis"`
	DoctorDiagnosis  string                   `json:"doctor_diagnosis"`
	DoctorNotes      string                   `json:"doctor_notes"`
	UploadedAt       time.Time                `json:"uploaded_at"`

	OriginalImageURL string `json:"original_image_url,omitempty"`
	AIGradCamURL     string `json:"ai_gradcam_url,omitempty"`
	DoctorBrushURL   string `json:"doctor_brush_url,omitempty"`
}

type patientDetailResponse struct {
	patientResponse
	Records []patientRecordResponse `json:"records"`
}

// createPatientHandler godoc
// @Summary Registrar paciente
// @Tags patients
// @Accept json
// @Produce json
// @Param payload body createPatientRequest true "Datos de contacto"
// @Success 201 {object} patientResponse
// @Failure 400 {string} string "invalid json / name requerido"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /patients [post]
func createPatientHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireClinician(w, r); !ok {
			return
		}

		var req createPatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		p, err := svc.Create(r.Context(), CreateInput{
			Name:    req.Name,
			Email:   req.Email,
			Phone:   req.Phone,
			Address: req.Address,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		writeJSON(w, http.StatusCreated, toPatientResponse(p, nil, nil))
	}
}

func listPatientsHandler(svc *Service, recordsSvc *records.Service, store objectstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireClinician(w, r); !ok {
			return
		}

		items, err := svc.List(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]patientResponse, 0, len(items))
		for _, p := range items {
			var latest *records.MedicalRecord
			if rec, err := recordsSvc.LatestByPatient(r.Context(), p.ID); err == nil {
				latest = &rec
			}
			out = append(out, toPatientResponse(p, latest, store))
		}

		writeJSON(w, http.StatusOK, out)
	}
}

func getPatientHandler(svc *Service, recordsSvc *records.Service, store objectstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireClinician(w, r); !ok {
			return
		}

		p, err := svc.GetByID(r.Context(), chi.URLParam(r, "patientID"))
		if err != nil {
			http.Error(w, "patient not found", http.StatusNotFound)
			return
		}

		history, err := recordsSvc.ListByPatient(r.Context(), p.ID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		var latest *records.MedicalRecord
		if len(history) > 0 {
			latest = &history[len(history)-1]
		}

		detail := patientDetailResponse{
			patientResponse: toPatientResponse(p, latest, store),
			Records:         make([]patientRecordResponse, 0, len(history)),
		}
		for _, rec := range history {
			detail.Records = append(detail.Records, toPatientRecordResponse(rec, store))
		}

		writeJSON(w, http.StatusOK, detail)
	}
}

func updatePatientHandler(svc *Service, actors ActorResolverFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClinician(w, r)
		if !ok {
			return
		}

		var req createPatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		p, err := svc.Update(r.Context(), chi.URLParam(r, "patientID"), actors(r.Context(), claims), UpdateInput{
			Name:    req.Name,
			Email:   req.Email,
			Phone:   req.Phone,
			Address: req.Address,
		})
		if err != nil {
			switch err {
			case ErrInvalidInput:
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "patient not found", http.StatusNotFound)
			}
			return
		}

		writeJSON(w, http.StatusOK, toPatientResponse(p, nil, nil))
	}
}

func deletePatientHandler(svc *Service, actors ActorResolverFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClinician(w, r)
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), chi.URLParam(r, "patientID"), actors(r.Context(), claims)); err != nil {
			http.Error(w, "patient not found", http.StatusNotFound)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func toPatientResponse(p Patient, latest *records.MedicalRecord, store objectstore.Store) patientResponse {
	out := patientResponse{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		Phone:     p.Phone,
		Address:   p.Address,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Review:    "-",
	}

	if latest != nil {
		out.Review = string(latest.ValidationStatus)
		if store != nil && latest.OriginalImagePath != "" {
			out.Image = store.PublicURL(latest.OriginalImagePath)
		}
	}

	return out
}

func toPatientRecordResponse(rec records.MedicalRecord, store objectstore.Store) patientRecordResponse {
	out := patientRecordResponse{
		ID:               rec.ID,
		Seq:              rec.Seq,
		ValidationStatus: rec.ValidationStatus,
		AIDiagnosis:      rec.AIDiagnosis,
		DoctorDiagnosis:  rec.DoctorDiagnosis,
		DoctorNotes:      rec.DoctorNotes,
		UploadedAt:       rec.UploadedAt,
	}

	if store != nil {
		out.OriginalImageURL = store.PublicURL(rec.OriginalImagePath)
		if rec.AIGradCamPath != nil {
			out.AIGradCamURL = store.PublicURL(*rec.AIGradCamPath)
		}
		if rec.DoctorBrushPath != nil {
			out.DoctorBrushURL = store.PublicURL(*rec.DoctorBrushPath)
		}
	}

	return out
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
