package patients

import "time"

// Patient representa la ficha de contacto de una paciente.
// El estado clínico vive en las revisiones (records); la "última" se deriva
// por número de revisión, no por un puntero en la paciente.
type Patient struct {
	ID string

	Name    string
	Email   string
	Phone   string
	Address string

	CreatedAt time.Time
	UpdatedAt time.Time
}
