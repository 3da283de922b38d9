package records

import (
	"context"
	"time"
)

// AIFieldsUpdate es la mutación in-place que aplica el re-análisis.
// AIGradCamPath nil => no tocar el valor existente (igual que el flujo original:
// si la relocación del GradCAM falla, el path anterior se conserva).
type AIFieldsUpdate struct {
	AIDiagnosis   string
	AIGradCamPath *string
	UploadedAt    time.Time
}

type Repository interface {
	// Create inserta una revisión nueva asignándole el Seq siguiente
	// para ese paciente. Devuelve el registro con Seq resuelto.
	Create(ctx context.Context, rec MedicalRecord) (MedicalRecord, error)

	GetByID(ctx context.Context, id string) (MedicalRecord, error)
	ListByPatient(ctx context.Context, patientID string) ([]MedicalRecord, error)
	LatestByPatient(ctx context.Context, patientID string) (MedicalRecord, error)

	// UpdateAIFields muta los campos AI del registro indicado (re-análisis).
	UpdateAIFields(ctx context.Context, id string, in AIFieldsUpdate) (MedicalRecord, error)

	CountByStatus(ctx context.Context, status ValidationStatus) (int, error)
	CountWithImage(ctx context.Context) (int, error)
}
