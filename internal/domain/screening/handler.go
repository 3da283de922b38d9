package screening

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"breast-screening-service/internal/domain/records"
	"breast-screening-service/internal/middleware"
	"breast-screening-service/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

// maxUploadBytes limita la imagen subida (mamografías típicas < 16MB).
const maxUploadBytes = 16 << 20

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Post("/patients/{patientID}/records", ingestHandler(svc))
	r.Post("/patients/{patientID}/reanalyze", reanalyzeHandler(svc))
	r.Post("/records/{recordID}/review", reviewHandler(svc))
}

type resultResponse struct {
	Record   recordResponse `json:"record"`
	Warnings []string       `json:"warnings"`
}

type recordResponse struct {
	ID        string `json:"id"`
	PatientID string `json:"patient_id"`
	Seq       int    `json:"seq"`

	OriginalImagePath string                   `json:"original_image_path"`
	ValidationStatus  records.ValidationStatus `json:"validation_status"`

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

// ingestHandler godoc
// @Summary Subir imagen nueva de un caso (pipeline de ingest)
// @Description Sube la imagen original, corre la inferencia y crea una revisión PENDING. Si la inferencia falla igual se crea el registro con "Analysis Failed".
// @Tags screening
// @Accept mpfd
// @Produce json
// @Param patientID path string true "ID de la paciente"
// @Param file formData file true "Imagen (png/jpg)"
// @Success 201 {object} resultResponse
// @Failure 400 {string} string "file requerido"
// @Failure 403 {string} string "forbidden"
// @Failure 502 {string} string "fallo de custodia (storage/persistencia)"
// @Router /patients/{patientID}/records [post]
func ingestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClinician(w, r)
		if !ok {
			return
		}

		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			http.Error(w, "invalid multipart form", http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file is required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		image, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil || len(image) == 0 {
			http.Error(w, "empty file", http.StatusBadRequest)
			return
		}

		res, err := svc.Ingest(r.Context(), claims, chi.URLParam(r, "patientID"), image, header.Filename)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "ingest failed", http.StatusBadGateway)
			}
			return
		}

		writeJSON(w, http.StatusCreated, toResultResponse(res))
	}
}

type reviewRequest struct {
	Agreement string `json:"agreement"` // agree | disagree
	Note      string `json:"note"`
	// PNG de la anotación en base64 (opcional).
	AnnotationImage string `json:"annotation_image"`
}

// reviewHandler godoc
// @Summary Guardar la revisión del doctor (pipeline de review)
// @Description Inserta una revisión VALIDATED nueva; el registro original nunca se toca.
// @Tags screening
// @Accept json
// @Produce json
// @Param recordID path string true "ID del registro revisado"
// @Param payload body reviewRequest true "Decisión del doctor"
// @Success 201 {object} resultResponse
// @Failure 400 {string} string "agreement inválido / json inválido"
// @Failure 404 {string} string "record not found"
// @Router /records/{recordID}/review [post]
func reviewHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClinician(w, r)
		if !ok {
			return
		}

		var req reviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		var annotation []byte
		if strings.TrimSpace(req.AnnotationImage) != "" {
			b, err := base64.StdEncoding.DecodeString(stripDataURL(req.AnnotationImage))
			if err != nil {
				http.Error(w, "annotation_image must be base64", http.StatusBadRequest)
				return
			}
			annotation = b
		}

		res, err := svc.Review(r.Context(), claims, chi.URLParam(r, "recordID"), ReviewInput{
			Agreement:       Agreement(req.Agreement),
			Note:            req.Note,
			AnnotationImage: annotation,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, "agreement must be agree or disagree", http.StatusBadRequest)
			case errors.Is(err, records.ErrNotFound):
				http.Error(w, "record not found", http.StatusNotFound)
			default:
				http.Error(w, "review failed", http.StatusBadGateway)
			}
			return
		}

		writeJSON(w, http.StatusCreated, toResultResponse(res))
	}
}

// reanalyzeHandler godoc
// @Summary Re-ejecutar la inferencia sobre la última revisión
// @Description Muta in place los campos AI de la última revisión. Sin imagen previa => 404.
// @Tags screening
// @Produce json
// @Param patientID path string true "ID de la paciente"
// @Success 200 {object} resultResponse
// @Failure 404 {string} string "no image found for this patient"
// @Failure 502 {string} string "inferencia caída"
// @Router /patients/{patientID}/reanalyze [post]
func reanalyzeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClinician(w, r)
		if !ok {
			return
		}

		res, err := svc.Reanalyze(r.Context(), claims, chi.URLParam(r, "patientID"))
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrNoImage):
				http.Error(w, err.Error(), http.StatusNotFound)
			default:
				http.Error(w, "re-analysis failed", http.StatusBadGateway)
			}
			return
		}

		writeJSON(w, http.StatusOK, toResultResponse(res))
	}
}

// stripDataURL tolera data URLs ("data:image/png;base64,....") además de
// base64 pelado, que es lo que manda el canvas del frontend.
func stripDataURL(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ","); i >= 0 && strings.HasPrefix(s, "data:") {
		return s[i+1:]
	}
	return s
}

func toResultResponse(res Result) resultResponse {
	rec := res.Record
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return resultResponse{
		Warnings: warnings,
		Record: recordResponse{
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
		},
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
