package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nurpe/meter-measures/internal/model"
)

func newTestRepository(t *testing.T) *MeasurementRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Measurement{}))
	return NewMeasurementRepository(db)
}

func seedMeasurement(t *testing.T, repo *MeasurementRepository, customer string, measureType model.MeasureType, at time.Time, value int64) *model.Measurement {
	t.Helper()
	m := &model.Measurement{
		MeasureUUID:     uuid.New(),
		CustomerCode:    customer,
		MeasureDatetime: at,
		MeasureType:     measureType,
		MeasureValue:    decimal.NullDecimal{Decimal: decimal.NewFromInt(value), Valid: true},
		ImageURL:        "https://files.example/" + customer,
		MonthBucket:     model.MonthBucket(at),
	}
	require.NoError(t, repo.Create(context.Background(), m))
	return m
}

func TestCreateAndFindByUUID(t *testing.T) {
	repo := newTestRepository(t)
	seeded := seedMeasurement(t, repo, "C1", model.MeasureTypeWater, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), 1234)

	found, err := repo.FindByUUID(context.Background(), seeded.MeasureUUID)
	require.NoError(t, err)
	assert.Equal(t, seeded.MeasureUUID, found.MeasureUUID)
	assert.Equal(t, "C1", found.CustomerCode)
	assert.Equal(t, model.MeasureTypeWater, found.MeasureType)
	require.True(t, found.MeasureValue.Valid)
	assert.True(t, found.MeasureValue.Decimal.Equal(decimal.NewFromInt(1234)))
	assert.False(t, found.HasConfirmed)

	_, err = repo.FindByUUID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCreateDuplicateMonthBucketRejected(t *testing.T) {
	repo := newTestRepository(t)
	seedMeasurement(t, repo, "C1", model.MeasureTypeWater, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), 10)

	duplicate := &model.Measurement{
		MeasureUUID:     uuid.New(),
		CustomerCode:    "C1",
		MeasureDatetime: time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC),
		MeasureType:     model.MeasureTypeWater,
		MonthBucket:     202403,
	}
	err := repo.Create(context.Background(), duplicate)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// Different type in the same month is fine.
	gas := &model.Measurement{
		MeasureUUID:     uuid.New(),
		CustomerCode:    "C1",
		MeasureDatetime: time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC),
		MeasureType:     model.MeasureTypeGas,
		MonthBucket:     202403,
	}
	assert.NoError(t, repo.Create(context.Background(), gas))
}

func TestFindByPeriodBounds(t *testing.T) {
	repo := newTestRepository(t)
	seedMeasurement(t, repo, "C1", model.MeasureTypeWater, time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC), 10)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	found, err := repo.FindByPeriod(context.Background(), "C1", model.MeasureTypeWater, start, end)
	require.NoError(t, err)
	assert.Equal(t, "C1", found.CustomerCode)

	// The window is half-open: February's window must not match January's reading.
	_, err = repo.FindByPeriod(context.Background(), "C1", model.MeasureTypeWater, end, end.AddDate(0, 1, 0))
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repo.FindByPeriod(context.Background(), "C1", model.MeasureTypeGas, start, end)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repo.FindByPeriod(context.Background(), "C2", model.MeasureTypeWater, start, end)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestFindAllByCustomerFilter(t *testing.T) {
	repo := newTestRepository(t)
	seedMeasurement(t, repo, "C1", model.MeasureTypeWater, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), 10)
	seedMeasurement(t, repo, "C1", model.MeasureTypeGas, time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC), 20)
	seedMeasurement(t, repo, "C2", model.MeasureTypeWater, time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC), 30)

	all, err := repo.FindAllByCustomer(context.Background(), "C1", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	water := model.MeasureTypeWater
	filtered, err := repo.FindAllByCustomer(context.Background(), "C1", &water)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, model.MeasureTypeWater, filtered[0].MeasureType)

	none, err := repo.FindAllByCustomer(context.Background(), "C3", nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListByPeriodOrdering(t *testing.T) {
	repo := newTestRepository(t)
	second := seedMeasurement(t, repo, "C1", model.MeasureTypeGas, time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC), 20)
	first := seedMeasurement(t, repo, "C1", model.MeasureTypeWater, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), 10)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rows, err := repo.ListByPeriod(context.Background(), "C1", start, start.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first.MeasureUUID, rows[0].MeasureUUID)
	assert.Equal(t, second.MeasureUUID, rows[1].MeasureUUID)
}

func TestConfirmCompareAndSet(t *testing.T) {
	repo := newTestRepository(t)
	seeded := seedMeasurement(t, repo, "C1", model.MeasureTypeWater, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), 1234)

	updated, err := repo.Confirm(context.Background(), seeded.MeasureUUID, decimal.NewFromInt(1240))
	require.NoError(t, err)
	assert.True(t, updated)

	// Losing side of the race sees zero rows affected.
	updated, err = repo.Confirm(context.Background(), seeded.MeasureUUID, decimal.NewFromInt(9999))
	require.NoError(t, err)
	assert.False(t, updated)

	found, err := repo.FindByUUID(context.Background(), seeded.MeasureUUID)
	require.NoError(t, err)
	assert.True(t, found.HasConfirmed)
	require.True(t, found.ConfirmedValue.Valid)
	assert.True(t, found.ConfirmedValue.Decimal.Equal(decimal.NewFromInt(1240)))
	assert.True(t, found.MeasureValue.Decimal.Equal(decimal.NewFromInt(1234)), "extracted value stays untouched")

	updated, err = repo.Confirm(context.Background(), uuid.New(), decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.False(t, updated)
}
