package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MeasureType string

const (
	MeasureTypeWater MeasureType = "WATER"
	MeasureTypeGas   MeasureType = "GAS"
)

// ParseMeasureType normalizes user input; the stored value is always upper case.
func ParseMeasureType(raw string) (MeasureType, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(MeasureTypeWater):
		return MeasureTypeWater, nil
	case string(MeasureTypeGas):
		return MeasureTypeGas, nil
	default:
		return "", fmt.Errorf("unknown measure type %q", raw)
	}
}

// Measurement is one meter reading submitted as a photograph. MeasureValue is
// nullable so the record can exist before extraction completes; once set it is
// never rewritten — a human correction lands in ConfirmedValue instead.
// MonthBucket is the UTC year+month of MeasureDatetime (YYYYMM) and backs the
// unique index that allows one reading per customer, type and month.
type Measurement struct {
	MeasureUUID     uuid.UUID           `gorm:"column:measure_uuid;type:varchar(36);primaryKey"`
	CustomerCode    string              `gorm:"column:customer_code;index:uq_measurements_customer_type_month,unique"`
	MeasureDatetime time.Time           `gorm:"column:measure_datetime"`
	MeasureType     MeasureType         `gorm:"column:measure_type;type:varchar(16);index:uq_measurements_customer_type_month,unique"`
	MeasureValue    decimal.NullDecimal `gorm:"column:measure_value;type:numeric(12,2)"`
	ConfirmedValue  decimal.NullDecimal `gorm:"column:confirmed_value;type:numeric(12,2)"`
	ImageURL        string              `gorm:"column:image_url"`
	HasConfirmed    bool                `gorm:"column:has_confirmed"`
	MonthBucket     int                 `gorm:"column:month_bucket;index:uq_measurements_customer_type_month,unique"`
	CreatedAt       time.Time           `gorm:"column:created_at"`
	UpdatedAt       time.Time           `gorm:"column:updated_at"`
}

func (Measurement) TableName() string { return "measurements" }

// MonthBucket buckets an instant into its UTC calendar month.
func MonthBucket(t time.Time) int {
	u := t.UTC()
	return u.Year()*100 + int(u.Month())
}

// MonthWindow returns the half-open UTC calendar-month window containing t.
func MonthWindow(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// MeasurementSummary is the list projection. It deliberately has no value
// field: the list endpoint never exposes the numeric reading.
type MeasurementSummary struct {
	MeasureUUID     uuid.UUID   `json:"measure_uuid"`
	MeasureDatetime time.Time   `json:"measure_datetime"`
	MeasureType     MeasureType `json:"measure_type"`
	HasConfirmed    bool        `json:"has_confirmed"`
	ImageURL        string      `json:"image_url"`
}

func (m Measurement) Summary() MeasurementSummary {
	return MeasurementSummary{
		MeasureUUID:     m.MeasureUUID,
		MeasureDatetime: m.MeasureDatetime,
		MeasureType:     m.MeasureType,
		HasConfirmed:    m.HasConfirmed,
		ImageURL:        m.ImageURL,
	}
}

// MeasurementReport is the view model handed to the report generators.
type MeasurementReport struct {
	CustomerCode   string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	TotalReadings  int
	ConfirmedCount int
	WaterCount     int
	GasCount       int
	Readings       []Measurement
}
