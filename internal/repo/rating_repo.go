package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/table-for-two/internal/domain"
)

// CreateRating inserts r. The (booking_id, user_id) pair must be unique; a
// duplicate is returned as the raw DB error for the service to translate.
func CreateRating(ctx context.Context, db *gorm.DB, r *domain.Rating) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(r).Error
}

// AverageRating returns the arithmetic mean and count of all ratings recorded
// for ref. With no ratings it returns (0, 0, nil).
func AverageRating(ctx context.Context, db *gorm.DB, ref domain.RestaurantRef) (avg float64, n int64, err error) {
	var row struct {
		Avg   *float64
		Count int64
	}
	err = db.WithContext(ctx).
		Model(&domain.Rating{}).
		Select("AVG(rating) AS avg, COUNT(*) AS count").
		Where("restaurant_ref = ?", ref).
		Scan(&row).Error
	if err != nil || row.Avg == nil {
		return 0, row.Count, err
	}
	return *row.Avg, row.Count, nil
}
