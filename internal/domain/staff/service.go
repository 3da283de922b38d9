package staff

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"breast-screening-service/internal/platform/logger"
	"breast-screening-service/internal/ports/auth"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("account not found")

	// ErrUnlinkFailed: no se pudo desvincular el activity log antes de borrar.
	// Es fatal a propósito: nunca borramos una cuenta dejando referencias
	// colgadas en el historial.
	ErrUnlinkFailed = errors.New("failed to unlink activity logs")
)

// ActivityRecorder escribe entradas ADD_DOCTOR / UPDATE_DOCTOR / DELETE_DOCTOR.
type ActivityRecorder interface {
	Record(ctx context.Context, actorID *string, actionType, description string) error
}

// ActivityUnlinker anula la referencia de actor en el log (las filas quedan,
// huérfanas). Lo satisface el repo de activity.
type ActivityUnlinker interface {
	UnlinkActor(ctx context.Context, actorID string) error
}

type Service struct {
	repo     Repository
	activity ActivityRecorder
	unlinker ActivityUnlinker
	log      logger.Logger
	now      func() time.Time
}

func NewService(repo Repository, activity ActivityRecorder, unlinker ActivityUnlinker, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		repo:     repo,
		activity: activity,
		unlinker: unlinker,
		log:      log,
		now:      time.Now,
	}
}

type CreateDoctorInput struct {
	Name   string
	Email  string
	Status Status
}

func (s *Service) CreateDoctor(ctx context.Context, in CreateDoctorInput) (Account, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Email) == "" {
		return Account{}, ErrInvalidInput
	}

	status := in.Status
	if status == "" {
		status = StatusActive
	}

	now := s.now()
	a := Account{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Role:      auth.RoleDoctor,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return Account{}, err
	}

	s.recordActivity(ctx, &a.ID, "ADD_DOCTOR", fmt.Sprintf("Added new doctor: %s", a.Name))

	return a, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Account{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return Account{}, ErrInvalidInput
	}
	return s.repo.GetByEmail(ctx, email)
}

func (s *Service) ListDoctors(ctx context.Context) ([]Account, error) {
	return s.repo.ListByRole(ctx, auth.RoleDoctor)
}

type UpdateInput struct {
	Name   string
	Email  string
	Status Status
}

func (s *Service) Update(ctx context.Context, id string, actorID *string, in UpdateInput) (Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Account{}, ErrInvalidInput
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Account{}, err
	}

	if strings.TrimSpace(in.Name) != "" {
		a.Name = strings.TrimSpace(in.Name)
	}
	if strings.TrimSpace(in.Email) != "" {
		a.Email = strings.ToLower(strings.TrimSpace(in.Email))
	}
	if in.Status != "" {
		a.Status = in.Status
	}
	a.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, a); err != nil {
		return Account{}, err
	}

	s.recordActivity(ctx, actorID, "UPDATE_DOCTOR", fmt.Sprintf("Updated doctor with ID: %s", id))

	return a, nil
}

// Delete borra la cuenta. Primero desvincula el activity log (fatal si
// falla): las entradas quedan con actor null, nunca se borran.
func (s *Service) Delete(ctx context.Context, id string, actorID *string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidInput
	}

	if s.unlinker != nil {
		if err := s.unlinker.UnlinkActor(ctx, id); err != nil {
			return fmt.Errorf("%w: %v", ErrUnlinkFailed, err)
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.recordActivity(ctx, actorID, "DELETE_DOCTOR", fmt.Sprintf("Deleted doctor with ID: %s", id))

	return nil
}

// ResolveActorID traduce claims al id interno de cuenta, por email.
// Best-effort: nil si el email no está o no existe la cuenta.
func (s *Service) ResolveActorID(ctx context.Context, claims auth.Claims) *string {
	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" {
		return nil
	}
	a, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil
	}
	return &a.ID
}

func (s *Service) recordActivity(ctx context.Context, actorID *string, actionType, description string) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(ctx, actorID, actionType, description); err != nil {
		s.log.Warn("activity log failed", map[string]any{
			"action": actionType,
			"err":    err.Error(),
		})
	}
}
