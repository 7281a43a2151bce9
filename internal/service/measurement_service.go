package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/meter-measures/internal/model"
)

// MeasurementStore is the persistence contract the workflow depends on. The
// gorm implementation lives in internal/repository.
type MeasurementStore interface {
	FindByPeriod(ctx context.Context, customerCode string, measureType model.MeasureType, start, end time.Time) (*model.Measurement, error)
	FindByUUID(ctx context.Context, measureUUID uuid.UUID) (*model.Measurement, error)
	FindAllByCustomer(ctx context.Context, customerCode string, measureType *model.MeasureType) ([]model.Measurement, error)
	ListByPeriod(ctx context.Context, customerCode string, start, end time.Time) ([]model.Measurement, error)
	Create(ctx context.Context, m *model.Measurement) error
	Confirm(ctx context.Context, measureUUID uuid.UUID, confirmedValue decimal.Decimal) (bool, error)
}

// ValueExtractor reads the numeric value off a meter photograph and returns a
// durable URL for the stored image. A single atomic call: retries, if any,
// belong to the implementation.
type ValueExtractor interface {
	Extract(ctx context.Context, image []byte, mimeType string) (value decimal.Decimal, imageURL string, err error)
}

// ReportGenerator renders a monthly report into a downloadable document.
type ReportGenerator interface {
	Generate(report model.MeasurementReport) ([]byte, error)
}

type MeasurementService struct {
	store     MeasurementStore
	extractor ValueExtractor
	excel     ReportGenerator
	pdf       ReportGenerator
}

func NewMeasurementService(store MeasurementStore, extractor ValueExtractor, excel, pdf ReportGenerator) *MeasurementService {
	return &MeasurementService{
		store:     store,
		extractor: extractor,
		excel:     excel,
		pdf:       pdf,
	}
}

type UploadInput struct {
	CustomerCode    string
	MeasureDatetime time.Time
	MeasureType     model.MeasureType
	Image           []byte
}

// Upload runs the intake workflow: duplicate guard for the reading's calendar
// month, then extraction, then persistence. The duplicate check comes first so
// a rejected submission never pays for the external call. The check-then-act
// race is closed by the unique (customer_code, measure_type, month_bucket)
// index: a concurrent loser gets the constraint violation at write time and it
// is surfaced as ErrDoubleReport all the same.
func (s *MeasurementService) Upload(ctx context.Context, input UploadInput) (*model.Measurement, error) {
	if strings.TrimSpace(input.CustomerCode) == "" {
		return nil, fmt.Errorf("%w: customer_code is required", ErrInvalidData)
	}
	if input.MeasureDatetime.IsZero() {
		return nil, fmt.Errorf("%w: measure_datetime is required", ErrInvalidData)
	}
	if input.MeasureType != model.MeasureTypeWater && input.MeasureType != model.MeasureTypeGas {
		return nil, fmt.Errorf("%w: measure_type must be WATER or GAS", ErrInvalidData)
	}
	if len(input.Image) == 0 {
		return nil, fmt.Errorf("%w: image is empty", ErrInvalidImage)
	}

	kind, err := filetype.Match(input.Image)
	if err != nil || !filetype.IsImage(input.Image) {
		return nil, fmt.Errorf("%w: payload is not an image", ErrInvalidImage)
	}

	monthStart, monthEnd := model.MonthWindow(input.MeasureDatetime)
	existing, err := s.store.FindByPeriod(ctx, input.CustomerCode, input.MeasureType, monthStart, monthEnd)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}
	if existing != nil {
		return nil, ErrDoubleReport
	}

	value, imageURL, err := s.extractor.Extract(ctx, input.Image, kind.MIME.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	measurement := &model.Measurement{
		MeasureUUID:     uuid.New(),
		CustomerCode:    input.CustomerCode,
		MeasureDatetime: input.MeasureDatetime,
		MeasureType:     input.MeasureType,
		MeasureValue:    decimal.NullDecimal{Decimal: value, Valid: true},
		ImageURL:        imageURL,
		HasConfirmed:    false,
		MonthBucket:     model.MonthBucket(input.MeasureDatetime),
	}

	if err := s.store.Create(ctx, measurement); err != nil {
		if err == gorm.ErrDuplicatedKey {
			return nil, ErrDoubleReport
		}
		return nil, fmt.Errorf("persist measurement: %w", err)
	}
	return measurement, nil
}

// Confirm flips has_confirmed exactly once. The stored reading stays as
// extracted; the supplied value is kept alongside it for audit. Double
// confirms, including ones racing each other, end in ErrConfirmationDuplicate:
// the store update only applies while has_confirmed is still false.
func (s *MeasurementService) Confirm(ctx context.Context, measureUUID uuid.UUID, confirmedValue decimal.Decimal) error {
	measurement, err := s.store.FindByUUID(ctx, measureUUID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return ErrMeasureNotFound
		}
		return fmt.Errorf("lookup measurement: %w", err)
	}
	if measurement.HasConfirmed {
		return ErrConfirmationDuplicate
	}

	updated, err := s.store.Confirm(ctx, measureUUID, confirmedValue)
	if err != nil {
		return fmt.Errorf("confirm measurement: %w", err)
	}
	if !updated {
		return ErrConfirmationDuplicate
	}
	return nil
}

// List returns the summary projection for a customer, optionally filtered by
// type. The filter is case-insensitive. An empty result is an error, not an
// empty success; callers rely on the 404.
func (s *MeasurementService) List(ctx context.Context, customerCode, rawType string) ([]model.MeasurementSummary, error) {
	if strings.TrimSpace(customerCode) == "" {
		return nil, fmt.Errorf("%w: customer_code is required", ErrInvalidData)
	}

	var measureType *model.MeasureType
	if strings.TrimSpace(rawType) != "" {
		parsed, err := model.ParseMeasureType(rawType)
		if err != nil {
			return nil, ErrInvalidType
		}
		measureType = &parsed
	}

	measurements, err := s.store.FindAllByCustomer(ctx, customerCode, measureType)
	if err != nil {
		return nil, fmt.Errorf("list measurements: %w", err)
	}
	if len(measurements) == 0 {
		return nil, ErrMeasuresNotFound
	}

	summaries := make([]model.MeasurementSummary, 0, len(measurements))
	for _, m := range measurements {
		summaries = append(summaries, m.Summary())
	}
	return summaries, nil
}

type ReportResult struct {
	FileName string
	Content  []byte
}

func (s *MeasurementService) MonthlyReportXLSX(ctx context.Context, customerCode string, year, month int) (*ReportResult, error) {
	report, err := s.monthlyReport(ctx, customerCode, year, month)
	if err != nil {
		return nil, err
	}
	content, err := s.excel.Generate(*report)
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return &ReportResult{
		FileName: buildReportFileName(*report, "xlsx"),
		Content:  content,
	}, nil
}

func (s *MeasurementService) MonthlyReportPDF(ctx context.Context, customerCode string, year, month int) (*ReportResult, error) {
	report, err := s.monthlyReport(ctx, customerCode, year, month)
	if err != nil {
		return nil, err
	}
	content, err := s.pdf.Generate(*report)
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return &ReportResult{
		FileName: buildReportFileName(*report, "pdf"),
		Content:  content,
	}, nil
}

func (s *MeasurementService) monthlyReport(ctx context.Context, customerCode string, year, month int) (*model.MeasurementReport, error) {
	if strings.TrimSpace(customerCode) == "" {
		return nil, fmt.Errorf("%w: customer_code is required", ErrInvalidData)
	}
	if year < 2000 || year > 2200 {
		return nil, fmt.Errorf("%w: year out of range", ErrInvalidData)
	}
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: month out of range", ErrInvalidData)
	}

	periodStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 1, 0)

	readings, err := s.store.ListByPeriod(ctx, customerCode, periodStart, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("list period readings: %w", err)
	}
	if len(readings) == 0 {
		return nil, ErrMeasuresNotFound
	}

	report := &model.MeasurementReport{
		CustomerCode: customerCode,
		PeriodStart:  periodStart,
		PeriodEnd:    periodEnd,
		Readings:     readings,
	}
	for _, r := range readings {
		report.TotalReadings++
		if r.HasConfirmed {
			report.ConfirmedCount++
		}
		switch r.MeasureType {
		case model.MeasureTypeWater:
			report.WaterCount++
		case model.MeasureTypeGas:
			report.GasCount++
		}
	}
	return report, nil
}

func buildReportFileName(report model.MeasurementReport, ext string) string {
	customer := sanitizeFileName(report.CustomerCode)
	if customer == "" {
		customer = "customer"
	}
	return fmt.Sprintf("readings-%s-%s.%s", customer, report.PeriodStart.Format("200601"), ext)
}

func sanitizeFileName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z':
			result = append(result, r)
		case r >= 'A' && r <= 'Z':
			result = append(result, r)
		case r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-")
}
