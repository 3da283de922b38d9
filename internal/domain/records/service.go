package records

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound lo devuelven los repos (postgres y memory) para que los
	// servicios no dependan del adapter concreto.
	ErrNotFound = errors.New("record not found")
)

// PatientCounter y DoctorCounter son lo mínimo que el dashboard necesita de
// los otros módulos. Los repos de patients/staff los satisfacen.
type PatientCounter interface {
	Count(ctx context.Context) (int, error)
}

type DoctorCounter interface {
	CountDoctors(ctx context.Context) (int, error)
}

type Service struct {
	repo     Repository
	patients PatientCounter
	doctors  DoctorCounter
}

func NewService(repo Repository, patients PatientCounter, doctors DoctorCounter) *Service {
	return &Service{
		repo:     repo,
		patients: patients,
		doctors:  doctors,
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (MedicalRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return MedicalRecord{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]MedicalRecord, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

func (s *Service) LatestByPatient(ctx context.Context, patientID string) (MedicalRecord, error) {
	return s.repo.LatestByPatient(ctx, patientID)
}

// DashboardStats son los contadores del panel admin.
type DashboardStats struct {
	Patients       int `json:"patients"`
	Doctors        int `json:"doctors"`
	ImagesUploaded int `json:"images_uploaded"`
	WaitingReview  int `json:"waiting_review"`
}

// DoctorStats son los contadores del panel del doctor.
type DoctorStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Attention int `json:"attention"`
}

// Dashboard junta los contadores. Cada conteo que falla se reporta como 0
// en vez de abortar el dashboard completo (mismo criterio que el flujo
// original: stats parciales son mejores que un panel caído).
func (s *Service) Dashboard(ctx context.Context) DashboardStats {
	var out DashboardStats

	if n, err := s.patients.Count(ctx); err == nil {
		out.Patients = n
	}
	if n, err := s.doctors.CountDoctors(ctx); err == nil {
		out.Doctors = n
	}
	if n, err := s.repo.CountWithImage(ctx); err == nil {
		out.ImagesUploaded = n
	}
	if n, err := s.repo.CountByStatus(ctx, StatusPending); err == nil {
		out.WaitingReview = n
	}

	return out
}

func (s *Service) DoctorDashboard(ctx context.Context) DoctorStats {
	var out DoctorStats

	if n, err := s.patients.Count(ctx); err == nil {
		out.Total = n
	}
	if n, err := s.repo.CountByStatus(ctx, StatusPending); err == nil {
		out.Pending = n
	}
	if n, err := s.repo.CountByStatus(ctx, StatusValidated); err == nil {
		out.Completed = n
	}
	if n, err := s.repo.CountByStatus(ctx, StatusRejected); err == nil {
		out.Attention = n
	}

	return out
}
