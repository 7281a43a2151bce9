package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/meter-measures/internal/model"
)

type MeasurementRepository struct {
	db *gorm.DB
}

func NewMeasurementRepository(db *gorm.DB) *MeasurementRepository {
	return &MeasurementRepository{db: db}
}

// FindByPeriod returns the reading for the customer/type inside the half-open
// [start, end) window, or gorm.ErrRecordNotFound.
func (r *MeasurementRepository) FindByPeriod(ctx context.Context, customerCode string, measureType model.MeasureType, start, end time.Time) (*model.Measurement, error) {
	var m model.Measurement
	err := r.db.WithContext(ctx).Raw(`
		SELECT *
		FROM measurements
		WHERE customer_code = ?
		  AND measure_type = ?
		  AND measure_datetime >= ?
		  AND measure_datetime < ?
		LIMIT 1
	`, customerCode, measureType, start, end).Scan(&m).Error
	if err != nil {
		return nil, err
	}
	if m.MeasureUUID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &m, nil
}

func (r *MeasurementRepository) FindByUUID(ctx context.Context, measureUUID uuid.UUID) (*model.Measurement, error) {
	var m model.Measurement
	err := r.db.WithContext(ctx).Raw(`
		SELECT *
		FROM measurements
		WHERE measure_uuid = ?
		LIMIT 1
	`, measureUUID).Scan(&m).Error
	if err != nil {
		return nil, err
	}
	if m.MeasureUUID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &m, nil
}

func (r *MeasurementRepository) FindAllByCustomer(ctx context.Context, customerCode string, measureType *model.MeasureType) ([]model.Measurement, error) {
	var rows []model.Measurement
	if measureType != nil {
		if err := r.db.WithContext(ctx).Raw(`
			SELECT *
			FROM measurements
			WHERE customer_code = ? AND measure_type = ?
			ORDER BY measure_datetime ASC
		`, customerCode, *measureType).Scan(&rows).Error; err != nil {
			return nil, err
		}
		return rows, nil
	}
	if err := r.db.WithContext(ctx).Raw(`
		SELECT *
		FROM measurements
		WHERE customer_code = ?
		ORDER BY measure_datetime ASC
	`, customerCode).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *MeasurementRepository) ListByPeriod(ctx context.Context, customerCode string, start, end time.Time) ([]model.Measurement, error) {
	var rows []model.Measurement
	if err := r.db.WithContext(ctx).Raw(`
		SELECT *
		FROM measurements
		WHERE customer_code = ?
		  AND measure_datetime >= ?
		  AND measure_datetime < ?
		ORDER BY measure_datetime ASC
	`, customerCode, start, end).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Create inserts the reading. A violation of the unique
// (customer_code, measure_type, month_bucket) index comes back as
// gorm.ErrDuplicatedKey via the driver's error translation.
func (r *MeasurementRepository) Create(ctx context.Context, m *model.Measurement) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// Confirm is a compare-and-set: the update only applies while has_confirmed is
// still false. Returns false when a concurrent confirm won the race.
func (r *MeasurementRepository) Confirm(ctx context.Context, measureUUID uuid.UUID, confirmedValue decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE measurements
		SET has_confirmed = TRUE,
		    confirmed_value = ?,
		    updated_at = ?
		WHERE measure_uuid = ? AND has_confirmed = FALSE
	`, confirmedValue, time.Now().UTC(), measureUUID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
