package activity

import "time"

// Acciones conocidas del log. El campo es texto libre en la base; estas
// constantes cubren las que emite el propio sistema.
const (
	ActionAddDoctor    = "ADD_DOCTOR"
	ActionUpdateDoctor = "UPDATE_DOCTOR"
	ActionDeleteDoctor = "DELETE_DOCTOR"

	ActionUpdatePatient = "UPDATE_PATIENT"
	ActionDeletePatient = "DELETE_PATIENT"

	ActionUploadImage  = "UPLOAD_IMAGE"
	ActionAIAnalysis   = "AI_ANALYSIS"
	ActionAIReanalysis = "AI_REANALYSIS"
	ActionDoctorReview = "DOCTOR_REVIEW"
)

// Entry es una fila del log de actividad. Append-only: nunca se actualiza
// ni se borra; al eliminar una cuenta su referencia se anula (ActorID nil).
type Entry struct {
	ID          string
	ActorID     *string
	ActionType  string
	Description string
	Timestamp   time.Time
}

// EntryWithActor es la vista con el nombre del actor resuelto
// ("Unknown" si la referencia fue anulada o nunca existió).
type EntryWithActor struct {
	Entry
	ActorName string
}
