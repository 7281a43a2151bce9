package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/nurpe/meter-measures/internal/model"
)

type Generator struct {
	fontName string
}

func NewGenerator() *Generator {
	return &Generator{fontName: "Helvetica"}
}

func (g *Generator) Generate(report model.MeasurementReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 14)
	pdf.CellFormat(0, 10, "Meter readings report", "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Customer %s", report.CustomerCode), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Period %s - %s", formatDate(report.PeriodStart), formatDate(report.PeriodEnd.AddDate(0, 0, -1))), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, "Summary", "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total readings: %d (water %d, gas %d)", report.TotalReadings, report.WaterCount, report.GasCount), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Confirmed: %d", report.ConfirmedCount), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, "Readings", "", 1, "L", false, 0, "")

	headers := []string{"Date", "Type", "Value", "Confirmed", "Confirmed value"}
	colWidths := []float64{40, 25, 35, 30, 40}
	drawTableRow(pdf, g.fontName, headers, colWidths, true)

	for _, reading := range report.Readings {
		row := []string{
			reading.MeasureDatetime.UTC().Format("2006-01-02 15:04"),
			string(reading.MeasureType),
			formatValue(reading.MeasureValue.Valid, reading.MeasureValue.Decimal.InexactFloat64()),
			formatBool(reading.HasConfirmed),
			formatValue(reading.ConfirmedValue.Valid, reading.ConfirmedValue.Decimal.InexactFloat64()),
		}
		drawTableRow(pdf, g.fontName, row, colWidths, false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawTableRow(pdf *gofpdf.Fpdf, fontName string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 10)
	for i, col := range cols {
		align := "L"
		if i >= 2 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 8, col, "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func formatValue(valid bool, value float64) string {
	if !valid {
		return "-"
	}
	return fmt.Sprintf("%.2f", value)
}

func formatBool(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}
