package patients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"breast-screening-service/internal/platform/logger"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("patient not found")
)

// ActivityRecorder es la parte del módulo activity que este servicio usa.
// Acciones UPDATE_PATIENT / DELETE_PATIENT; el registro es best-effort.
type ActivityRecorder interface {
	Record(ctx context.Context, actorID *string, actionType, description string) error
}

type Service struct {
	repo     Repository
	activity ActivityRecorder
	log      logger.Logger
	now      func() time.Time
}

func NewService(repo Repository, activity ActivityRecorder, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		repo:     repo,
		activity: activity,
		log:      log,
		now:      time.Now,
	}
}

type CreateInput struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Patient, error) {
	if strings.TrimSpace(in.Name) == "" {
		return Patient{}, ErrInvalidInput
	}

	now := s.now()
	p := Patient{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Address:   strings.TrimSpace(in.Address),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return Patient{}, err
	}
	return p, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Patient, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Patient{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Patient, error) {
	return s.repo.List(ctx)
}

type UpdateInput struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

func (s *Service) Update(ctx context.Context, id string, actorID *string, in UpdateInput) (Patient, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.TrimSpace(in.Name) == "" {
		return Patient{}, ErrInvalidInput
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Patient{}, err
	}

	p.Name = strings.TrimSpace(in.Name)
	p.Email = strings.TrimSpace(in.Email)
	p.Phone = strings.TrimSpace(in.Phone)
	p.Address = strings.TrimSpace(in.Address)
	p.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, p); err != nil {
		return Patient{}, err
	}

	s.recordActivity(ctx, actorID, "UPDATE_PATIENT", fmt.Sprintf("Updated patient with ID: %s", id))

	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string, actorID *string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidInput
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.recordActivity(ctx, actorID, "DELETE_PATIENT", fmt.Sprintf("Deleted patient with ID: %s", id))

	return nil
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
