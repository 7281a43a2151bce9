package excel

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nurpe/meter-measures/internal/model"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(report model.MeasurementReport) ([]byte, error) {
	file := excelize.NewFile()

	summarySheet := "Summary"
	file.SetSheetName("Sheet1", summarySheet)
	if err := g.writeSummary(file, summarySheet, report); err != nil {
		return nil, err
	}

	detailSheet := "Readings"
	if _, err := file.NewSheet(detailSheet); err != nil {
		return nil, err
	}
	if err := g.writeReadings(file, detailSheet, report); err != nil {
		return nil, err
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, report model.MeasurementReport) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Customer code")
	set("B1", report.CustomerCode)
	set("A2", "Period start")
	set("B2", formatDate(report.PeriodStart))
	set("A3", "Period end")
	set("B3", formatDate(report.PeriodEnd.AddDate(0, 0, -1)))
	set("A4", "Total readings")
	set("B4", report.TotalReadings)
	set("A5", "Confirmed")
	set("B5", report.ConfirmedCount)
	set("A6", "Water readings")
	set("B6", report.WaterCount)
	set("A7", "Gas readings")
	set("B7", report.GasCount)

	_ = file.SetColWidth(sheet, "A", "A", 24)
	_ = file.SetColWidth(sheet, "B", "B", 20)
	return nil
}

func (g *Generator) writeReadings(file *excelize.File, sheet string, report model.MeasurementReport) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	headers := []string{
		"Reading ID",
		"Date",
		"Type",
		"Value",
		"Confirmed",
		"Confirmed value",
		"Image URL",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		set(cell, header)
	}

	for i, reading := range report.Readings {
		row := i + 2
		set(fmt.Sprintf("A%d", row), reading.MeasureUUID.String())
		set(fmt.Sprintf("B%d", row), reading.MeasureDatetime.UTC().Format("2006-01-02 15:04"))
		set(fmt.Sprintf("C%d", row), string(reading.MeasureType))
		if reading.MeasureValue.Valid {
			set(fmt.Sprintf("D%d", row), reading.MeasureValue.Decimal.InexactFloat64())
		}
		set(fmt.Sprintf("E%d", row), reading.HasConfirmed)
		if reading.ConfirmedValue.Valid {
			set(fmt.Sprintf("F%d", row), reading.ConfirmedValue.Decimal.InexactFloat64())
		}
		set(fmt.Sprintf("G%d", row), reading.ImageURL)
	}

	_ = file.SetColWidth(sheet, "A", "A", 38)
	_ = file.SetColWidth(sheet, "B", "C", 18)
	_ = file.SetColWidth(sheet, "D", "F", 16)
	_ = file.SetColWidth(sheet, "G", "G", 50)
	return nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}
