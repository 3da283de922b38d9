package activity

import "context"

type Repository interface {
	Append(ctx context.Context, e Entry) error

	// ListRecent devuelve las últimas entradas (timestamp desc) con el
	// nombre del actor resuelto.
	ListRecent(ctx context.Context, limit int) ([]EntryWithActor, error)

	// UnlinkActor anula la referencia de actor sin tocar las filas.
	UnlinkActor(ctx context.Context, actorID string) error

	Count(ctx context.Context) (int, error)
}
