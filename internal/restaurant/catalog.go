package restaurant

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/table-for-two/internal/domain"
	"github.com/tbourn/table-for-two/internal/repo"
)

// Catalog reads the operator-curated restaurant catalog. GetRestaurant must
// return repo.ErrNotFound for absent or inactive rows.
type Catalog interface {
	GetRestaurant(ctx context.Context, id int64) (*domain.Restaurant, error)
}

// DBCatalog is the GORM-backed Catalog.
type DBCatalog struct {
	DB *gorm.DB
}

// GetRestaurant implements Catalog.
func (c DBCatalog) GetRestaurant(ctx context.Context, id int64) (*domain.Restaurant, error) {
	return repo.GetActiveRestaurant(ctx, c.DB, id)
}
