package records

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"breast-screening-service/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	// Historial clínico (doctor o admin)
	r.Get("/records/{recordID}", getRecordHandler(svc))
	r.Get("/patients/{patientID}/records", listRecordsHandler(svc))

	// Paneles
	r.Get("/dashboard/stats", dashboardStatsHandler(svc))
	r.Get("/dashboard/doctor-stats", doctorStatsHandler(svc))
}

type recordResponse struct {
	ID        string `json:"id"`
	PatientID string `json:"patient_id"`
	Seq       int    `json:"seq"`

	OriginalImagePath string           `json:"original_image_path"`
	ValidationStatus  ValidationStatus `json:"validation_status"`

	AIDiagnosis   string  `json:"ai_diagnosis"`
	AIGradCamPath *string `json:"ai_gradcam_path"`

	ValidatorID     *string `json:"validator_id"`
	DoctorDiagnosis string  `json:"doctor_diagnosis"`
	DoctorNotes     string  `json:"doctor_notes"`
	DoctorBrushPath *string `json:"doctor_brush_path"`
	IsAIAccurate    *bool   `json:"is_ai_accurate"`

	UploadedAt  time.Time  `json:"uploaded_at"`
	ValidatedAt *time.Time `json:"validated_at"`
}

// getRecordHandler godoc
// @Summary Obtener una revisión del caso por id
// @Tags records
// @Produce json
// @Param recordID path string true "ID del registro"
// @Success 200 {object} recordResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "record not found"
// @Router /records/{recordID} [get]
func getRecordHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		rec, err := svc.GetByID(r.Context(), chi.URLParam(r, "recordID"))
		if err != nil {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, toRecordResponse(rec))
	}
}

func listRecordsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByPatient(r.Context(), chi.URLParam(r, "patientID"))
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]recordResponse, 0, len(items))
		for _, rec := range items {
			out = append(out, toRecordResponse(rec))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// dashboardStatsHandler godoc
// @Summary Contadores del panel admin
// @Tags dashboard
// @Produce json
// @Success 200 {object} DashboardStats
// @Failure 403 {string} string "forbidden"
// @Router /dashboard/stats [get]
func dashboardStatsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !claims.IsAdmin() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		writeJSON(w, http.StatusOK, svc.Dashboard(r.Context()))
	}
}

func doctorStatsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !claims.IsDoctor() && !claims.IsAdmin() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		writeJSON(w, http.StatusOK, svc.DoctorDashboard(r.Context()))
	}
}

func toRecordResponse(rec MedicalRecord) recordResponse {
	return recordResponse{
		ID:                rec.ID,
		PatientID:         rec.PatientID,
		Seq:               rec.Seq,
		OriginalImagePath: rec.OriginalImagePath,
		ValidationStatus:  rec.ValidationStatus,
		AIDiagnosis:       rec.AIDiagnosis,
		AIGradCamPath:     rec.AIGradCamPath,
		ValidatorID:       rec.ValidatorID,
		DoctorDiagnosis:   rec.DoctorDiagnosis,
		DoctorNotes:       rec.DoctorNotes,
		DoctorBrushPath:   rec.DoctorBrushPath,
		IsAIAccurate:      rec.IsAIAccurate,
		UploadedAt:        rec.UploadedAt,
		ValidatedAt:       rec.ValidatedAt,
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
