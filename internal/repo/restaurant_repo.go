package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/table-for-two/internal/domain"
)

// GetActiveRestaurant fetches a catalog restaurant by id. Inactive rows are
// treated as absent and yield ErrNotFound.
func GetActiveRestaurant(ctx context.Context, db *gorm.DB, id int64) (*domain.Restaurant, error) {
	var r domain.Restaurant
	err := db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateRestaurantRating stores a recomputed aggregate rating. Returns
// ErrNotFound if no row was affected.
func UpdateRestaurantRating(ctx context.Context, db *gorm.DB, id int64, rating float64) error {
	res := db.WithContext(ctx).
		Model(&domain.Restaurant{}).
		Where("id = ?", id).
		Update("rating", rating)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListActiveRestaurants returns every active catalog restaurant, ordered by
// id. cuisine, when non-empty, restricts the result case-insensitively.
func ListActiveRestaurants(ctx context.Context, db *gorm.DB, cuisine string) ([]domain.Restaurant, error) {
	q := db.WithContext(ctx).Where("is_active = ?", true)
	if cuisine != "" {
		q = q.Where("LOWER(cuisine_type) = LOWER(?)", cuisine)
	}
	var out []domain.Restaurant
	err := q.Order("id asc").Find(&out).Error
	return out, err
}
