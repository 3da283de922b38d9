package records

import "time"

// ValidationStatus define el estado de revisión de una revisión del caso.
// @Enum PENDING, VALIDATED, REJECTED
type ValidationStatus string

const (
	StatusPending   ValidationStatus = "PENDING"
	StatusValidated ValidationStatus = "VALIDATED"
	StatusRejected  ValidationStatus = "REJECTED"
)

// Sentinelas de diagnóstico AI. El payload normal es el JSON serializado
// de la predicción; estos valores marcan estados especiales.
const (
	DiagnosisPending = "Pending"
	DiagnosisFailed  = "Analysis Failed"
)

// Diagnóstico legible que escribe el doctor al revisar.
const (
	DiagnosisAgreed    = "Agreed with AI"
	DiagnosisDisagreed = "Disagreed with AI"
)

// MedicalRecord representa UNA revisión del caso de un paciente.
// Las revisiones nunca se mutan: una review inserta una revisión nueva con
// Seq siguiente. La única excepción es el re-análisis, que actualiza los
// campos AI de la última revisión in place.
type MedicalRecord struct {
	ID        string
	PatientID string

	// Seq es el número de revisión por paciente (1, 2, 3...).
	// "Última revisión" = max(Seq), nunca posición en un slice.
	Seq int

	OriginalImagePath string
	ValidationStatus  ValidationStatus

	// AIDiagnosis: JSON de la predicción, o sentinela ("Pending"/"Analysis Failed").
	AIDiagnosis   string
	AIGradCamPath *string

	ValidatorID     *string
	DoctorDiagnosis string
	DoctorNotes     string
	DoctorBrushPath *string
	IsAIAccurate    *bool

	UploadedAt  time.Time
	ValidatedAt *time.Time
}
