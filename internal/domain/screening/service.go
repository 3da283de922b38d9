package screening

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"breast-screening-service/internal/domain/activity"
	"breast-screening-service/internal/domain/records"
	"breast-screening-service/internal/platform/logger"
	"breast-screening-service/internal/ports/auth"
	"breast-screening-service/internal/ports/inference"
	"breast-screening-service/internal/ports/objectstore"
)

var (
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoImage: el paciente no tiene revisión con imagen para re-analizar.
	ErrNoImage = errors.New("no image found for this patient")
)

// Agreement es la decisión del doctor frente al diagnóstico AI.
// @Enum agree, disagree
type Agreement string

const (
	AgreementAgree    Agreement = "agree"
	AgreementDisagree Agreement = "disagree"
)

// StaffDirectory resuelve el id interno del actor a partir de los claims.
// Lo satisface staff.Service.
type StaffDirectory interface {
	ResolveActorID(ctx context.Context, claims auth.Claims) *string
}

// ActivityRecorder lo satisface activity.Service.
type ActivityRecorder interface {
	Record(ctx context.Context, actorID *string, actionType, description string) error
}

// Service orquesta los pipelines de ingest, review y re-análisis.
// Es stateless: no cachea entidades entre invocaciones; cada operación
// parte de ids/payloads y lee lo que necesita por llamada.
//
// Dos clases de fallo, por diseño:
// - fatal: pasos de custodia (subida inicial, insert/update del registro,
//   fetch por id) => el error se propaga y el pipeline aborta.
// - best-effort: pasos de enriquecimiento (relocación del GradCAM, activity
//   log, resolución del actor) => se loguean y quedan como warning en el
//   Result, el pipeline sigue con null/sentinela.
type Service struct {
	store    objectstore.Store
	ai       inference.Client
	records  records.Repository
	staff    StaffDirectory
	activity ActivityRecorder
	log      logger.Logger
	now      func() time.Time
}

func NewService(
	store objectstore.Store,
	ai inference.Client,
	recordsRepo records.Repository,
	staffDir StaffDirectory,
	activityRec ActivityRecorder,
	log logger.Logger,
) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		store:    store,
		ai:       ai,
		records:  recordsRepo,
		staff:    staffDir,
		activity: activityRec,
		log:      log,
		now:      time.Now,
	}
}

// Result es el valor de retorno de los pipelines: el registro resultante
// más la lista de degradaciones toleradas. Warnings vacío => pipeline limpio.
type Result struct {
	Record   records.MedicalRecord
	Warnings []string
}

// aiPayload es el JSON que se persiste en AIDiagnosis cuando la
// inferencia responde.
type aiPayload struct {
	Class       string  `json:"class"`
	Confidence  float64 `json:"confidence"`
	GradCamPath string  `json:"gradcam_path,omitempty"`
}

// Ingest: imagen nueva -> inferencia -> relocación del GradCAM -> registro
// PENDING. La subida inicial y el insert son fatales; la inferencia y la
// relocación degradan (la custodia de la imagen nunca se pierde porque la
// inferencia esté caída).
func (s *Service) Ingest(ctx context.Context, actor auth.Claims, patientID string, image []byte, fileName string) (Result, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" || len(image) == 0 {
		return Result{}, ErrInvalidInput
	}

	now := s.now()
	var warnings []string

	// 1. Custodia: si la subida falla no se crea registro.
	filePath := fmt.Sprintf("raw/%s_%d%s", patientID, now.UnixMilli(), fileExt(fileName))
	if err := s.store.Upload(ctx, filePath, image, objectstore.UploadOptions{
		ContentType: contentTypeFor(fileName),
	}); err != nil {
		return Result{}, fmt.Errorf("upload original image: %w", err)
	}

	// 2. Inferencia: el fallo degrada a sentinela, nunca aborta. Un
	// cliente sin configurar cuenta como fallo.
	aiDiagnosis := records.DiagnosisPending
	var gradCamPath *string

	pred, predErr := s.predict(ctx, image, fileName)
	if predErr != nil {
		aiDiagnosis = records.DiagnosisFailed
		warnings = append(warnings, "ai analysis failed: "+predErr.Error())
		s.log.Warn("ai analysis failed, image preserved", map[string]any{
			"patient": patientID,
			"err":     predErr.Error(),
		})
	} else {
		aiDiagnosis = marshalPrediction(pred)

		// 3. Relocación del GradCAM: best-effort.
		if pred.GradCamPath != "" {
			if p, err := s.relocateGradCam(ctx, pred.GradCamPath); err != nil {
				warnings = append(warnings, "gradcam relocation failed: "+err.Error())
				s.log.Warn("gradcam relocation failed", map[string]any{
					"patient": patientID,
					"ref":     pred.GradCamPath,
					"err":     err.Error(),
				})
			} else {
				gradCamPath = &p
			}
		}
	}

	// 4. Insert del registro: fatal. La imagen ya subida queda huérfana si
	// esto falla; no hay delete compensatorio.
	created, err := s.records.Create(ctx, records.MedicalRecord{
		ID:                uuid.NewString(),
		PatientID:         patientID,
		OriginalImagePath: filePath,
		ValidationStatus:  records.StatusPending,
		AIDiagnosis:       aiDiagnosis,
		AIGradCamPath:     gradCamPath,
		UploadedAt:        now,
	})
	if err != nil {
		return Result{}, fmt.Errorf("insert medical record: %w", err)
	}

	// 5. Activity log: best-effort.
	actorID := s.resolveActor(ctx, actor)
	if predErr == nil {
		s.recordActivity(ctx, actorID, activity.ActionAIAnalysis,
			fmt.Sprintf("AI Analysis for patient %s: %s", patientID, readableDiagnosis(pred)), &warnings)
	}
	s.recordActivity(ctx, actorID, activity.ActionUploadImage,
		fmt.Sprintf("Uploaded medical record for patient ID: %s", patientID), &warnings)

	return Result{Record: created, Warnings: warnings}, nil
}

// ReviewInput es la decisión del doctor. AnnotationImage (opcional) es el
// PNG dibujado a mano sobre la imagen.
type ReviewInput struct {
	Agreement       Agreement
	Note            string
	AnnotationImage []byte
}

// Review: nunca muta el registro revisado; inserta una revisión nueva
// VALIDATED copiando los campos de imagen/AI del original.
func (s *Service) Review(ctx context.Context, reviewer auth.Claims, recordID string, in ReviewInput) (Result, error) {
	if in.Agreement != AgreementAgree && in.Agreement != AgreementDisagree {
		return Result{}, ErrInvalidInput
	}

	// 1. Fetch del registro bajo revisión: fatal.
	original, err := s.records.GetByID(ctx, strings.TrimSpace(recordID))
	if err != nil {
		return Result{}, fmt.Errorf("fetch record under review: %w", err)
	}

	now := s.now()
	var warnings []string

	// 2. Resolución del validador: best-effort, nil si no se puede.
	validatorID := s.resolveActor(ctx, reviewer)
	if validatorID == nil {
		warnings = append(warnings, "reviewer account not resolved")
	}

	// 3. Subida de la anotación: best-effort.
	var brushPath *string
	if len(in.AnnotationImage) > 0 {
		p := fmt.Sprintf("masks/%s_review_%d.png", original.PatientID, now.UnixMilli())
		if err := s.store.Upload(ctx, p, in.AnnotationImage, objectstore.UploadOptions{
			Overwrite:   true,
			ContentType: "image/png",
		}); err != nil {
			warnings = append(warnings, "annotation upload failed: "+err.Error())
			s.log.Warn("annotation upload failed", map[string]any{
				"record": original.ID,
				"err":    err.Error(),
			})
		} else {
			brushPath = &p
		}
	}

	// 4. Insert de la revisión nueva: fatal.
	agreed := in.Agreement == AgreementAgree
	diagnosis := records.DiagnosisDisagreed
	if agreed {
		diagnosis = records.DiagnosisAgreed
	}
	validatedAt := now

	created, err := s.records.Create(ctx, records.MedicalRecord{
		ID:                uuid.NewString(),
		PatientID:         original.PatientID,
		OriginalImagePath: original.OriginalImagePath,
		AIDiagnosis:       original.AIDiagnosis,
		AIGradCamPath:     original.AIGradCamPath,
		ValidatorID:       validatorID,
		DoctorDiagnosis:   diagnosis,
		DoctorNotes:       strings.TrimSpace(in.Note),
		DoctorBrushPath:   brushPath,
		IsAIAccurate:      &agreed,
		ValidationStatus:  records.StatusValidated,
		ValidatedAt:       &validatedAt,
		UploadedAt:        now,
	})
	if err != nil {
		return Result{}, fmt.Errorf("insert review record: %w", err)
	}

	// 5. Activity log: best-effort.
	s.recordActivity(ctx, validatorID, activity.ActionDoctorReview,
		fmt.Sprintf("Doctor submitted review (New Record) for patient %s", original.PatientID), &warnings)

	return Result{Record: created, Warnings: warnings}, nil
}

// Reanalyze re-ejecuta la inferencia sobre la imagen original de la última
// revisión y muta sus campos AI in place. Es la única mutación del modelo:
// acá no hay sentinela de fallo, un Predict caído aborta.
func (s *Service) Reanalyze(ctx context.Context, actor auth.Claims, patientID string) (Result, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return Result{}, ErrInvalidInput
	}

	latest, err := s.records.LatestByPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return Result{}, ErrNoImage
		}
		return Result{}, fmt.Errorf("fetch latest record: %w", err)
	}
	if strings.TrimSpace(latest.OriginalImagePath) == "" {
		return Result{}, ErrNoImage
	}

	image, err := s.store.Download(ctx, latest.OriginalImagePath)
	if err != nil {
		return Result{}, fmt.Errorf("download original image: %w", err)
	}

	pred, err := s.predict(ctx, image, path.Base(latest.OriginalImagePath))
	if err != nil {
		return Result{}, fmt.Errorf("ai re-analysis: %w", err)
	}

	now := s.now()
	var warnings []string

	var gradCamPath *string
	if pred.GradCamPath != "" {
		if p, relErr := s.relocateGradCam(ctx, pred.GradCamPath); relErr != nil {
			warnings = append(warnings, "gradcam relocation failed: "+relErr.Error())
			s.log.Warn("gradcam relocation failed", map[string]any{
				"patient": patientID,
				"ref":     pred.GradCamPath,
				"err":     relErr.Error(),
			})
		} else {
			gradCamPath = &p
		}
	}

	// Mutación in place: mismo id, mismo seq, status intacto.
	// AIGradCamPath nil => se conserva el path anterior.
	updated, err := s.records.UpdateAIFields(ctx, latest.ID, records.AIFieldsUpdate{
		AIDiagnosis:   marshalPrediction(pred),
		AIGradCamPath: gradCamPath,
		UploadedAt:    now,
	})
	if err != nil {
		return Result{}, fmt.Errorf("update medical record: %w", err)
	}

	s.recordActivity(ctx, s.resolveActor(ctx, actor), activity.ActionAIReanalysis,
		fmt.Sprintf("AI Re-Analysis for patient %s: %s", patientID, readableDiagnosis(pred)), &warnings)

	return Result{Record: updated, Warnings: warnings}, nil
}

// relocateGradCam baja la visualización del servicio de inferencia y la
// re-sube al bucket propio bajo gradcam/.
func (s *Service) relocateGradCam(ctx context.Context, gradCamRef string) (string, error) {
	fileName := artifactFileName(gradCamRef)
	if fileName == "" {
		return "", fmt.Errorf("empty gradcam ref")
	}

	data, err := s.ai.FetchArtifact(ctx, fileName)
	if err != nil {
		return "", fmt.Errorf("fetch gradcam: %w", err)
	}

	storagePath := "gradcam/" + fileName
	if err := s.store.Upload(ctx, storagePath, data, objectstore.UploadOptions{
		Overwrite:   true,
		ContentType: "image/png",
	}); err != nil {
		return "", fmt.Errorf("upload gradcam: %w", err)
	}

	return storagePath, nil
}

func (s *Service) predict(ctx context.Context, image []byte, fileName string) (inference.Prediction, error) {
	if s.ai == nil {
		return inference.Prediction{}, errors.New("inference client not configured")
	}
	return s.ai.Predict(ctx, image, fileName)
}

// resolveActor: best-effort, nunca corta el pipeline.
func (s *Service) resolveActor(ctx context.Context, claims auth.Claims) *string {
	if s.staff == nil {
		return nil
	}
	return s.staff.ResolveActorID(ctx, claims)
}

func (s *Service) recordActivity(ctx context.Context, actorID *string, actionType, description string, warnings *[]string) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(ctx, actorID, actionType, description); err != nil {
		*warnings = append(*warnings, "activity log failed: "+err.Error())
		s.log.Warn("activity log failed", map[string]any{
			"action": actionType,
			"err":    err.Error(),
		})
	}
}

func marshalPrediction(p inference.Prediction) string {
	b, _ := json.Marshal(aiPayload{
		Class:       p.Class,
		Confidence:  p.Confidence,
		GradCamPath: p.GradCamPath,
	})
	return string(b)
}

func readableDiagnosis(p inference.Prediction) string {
	return fmt.Sprintf("%s (%.1f%%)", p.Class, p.Confidence*100)
}

// artifactFileName saca el último segmento del path que reporta el servicio
// de inferencia. Puede venir con separadores unix o windows.
func artifactFileName(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if i := strings.LastIndexAny(ref, `/\`); i >= 0 {
		ref = ref[i+1:]
	}
	return ref
}

// fileExt conserva la extensión original de la imagen; sin extensión
// asumimos png (lo que produce el visor del frontend).
func fileExt(fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if ext == "" {
		return ".png"
	}
	return ext
}

func contentTypeFor(fileName string) string {
	switch fileExt(fileName) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}
