package repository

import (
	"context"

	"github.com/smallbiznis/noisesurvey/internal/observation/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, obs *domain.Observation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO noise_records (
			id, "timestamp", age, location, environment, activity,
			noise_level, noise_source, tolerance, measured_db, latitude, longitude, device_info
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		obs.ID,
		obs.RecordedAt,
		obs.Age,
		obs.Location,
		obs.Environment,
		obs.Activity,
		obs.NoiseLevel,
		obs.NoiseSource,
		obs.Tolerance,
		obs.MeasuredDB,
		obs.Latitude,
		obs.Longitude,
		obs.DeviceInfo,
	).Error
}

// List returns every row newest first. A NULL device_info comes back as the
// JSON literal null so it stays distinct from stored empty text.
func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Observation, error) {
	var items []domain.Observation
	err := db.WithContext(ctx).Raw(
		`SELECT id, "timestamp", age, location, environment, activity,
		        noise_level, noise_source, tolerance, measured_db, latitude, longitude,
		        COALESCE(device_info, 'null') AS device_info
		 FROM noise_records
		 ORDER BY "timestamp" DESC, id ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM noise_records`).Scan(&count).Error
	return count, err
}
