package activity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"breast-screening-service/internal/platform/logger"
)

var (
	ErrInvalidInput = errors.New("invalid input")
)

// Notifier publica el evento fuera del servicio (cola SQS). Totalmente
// best-effort: si falla, la fila del log ya quedó escrita y eso es lo
// que importa.
type Notifier interface {
	Publish(ctx context.Context, e Event) error
}

// Event es lo que viaja a la cola, no la fila completa.
type Event struct {
	ActionType  string    `json:"action_type"`
	Description string    `json:"description"`
	At          time.Time `json:"at"`
}

type Service struct {
	repo     Repository
	notifier Notifier
	log      logger.Logger
	now      func() time.Time
}

func NewService(repo Repository, notifier Notifier, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Record agrega una entrada al log. El caller decide si el error le
// importa; los pipelines lo tratan como best-effort.
func (s *Service) Record(ctx context.Context, actorID *string, actionType, description string) error {
	actionType = strings.TrimSpace(actionType)
	if actionType == "" {
		return ErrInvalidInput
	}

	e := Entry{
		ID:          uuid.NewString(),
		ActorID:     actorID,
		ActionType:  actionType,
		Description: strings.TrimSpace(description),
		Timestamp:   s.now(),
	}

	if err := s.repo.Append(ctx, e); err != nil {
		return err
	}

	if s.notifier != nil {
		if err := s.notifier.Publish(ctx, Event{
			ActionType:  e.ActionType,
			Description: e.Description,
			At:          e.Timestamp,
		}); err != nil {
			s.log.Warn("activity notify failed", map[string]any{
				"action": e.ActionType,
				"err":    err.Error(),
			})
		}
	}

	return nil
}

func (s *Service) Recent(ctx context.Context, limit int) ([]EntryWithActor, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.repo.ListRecent(ctx, limit)
}

func (s *Service) UnlinkActor(ctx context.Context, actorID string) error {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return ErrInvalidInput
	}
	return s.repo.UnlinkActor(ctx, actorID)
}
