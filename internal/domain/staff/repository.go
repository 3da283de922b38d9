package staff

import (
	"context"

	"breast-screening-service/internal/ports/auth"
)

type Repository interface {
	Create(ctx context.Context, a Account) error
	GetByID(ctx context.Context, id string) (Account, error)
	GetByEmail(ctx context.Context, email string) (Account, error)
	ListByRole(ctx context.Context, role auth.Role) ([]Account, error)
	Update(ctx context.Context, a Account) error
	Delete(ctx context.Context, id string) error
	CountByRole(ctx context.Context, role auth.Role) (int, error)
}
