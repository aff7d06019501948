package infra

// pdf.go: shift close reconciliation report (go-pdf/fpdf).
// A single A5 page: shift identity, the cash formula line by line, the
// counted amount, the variance and its class.
// The file is saved to storagePath/shift_{id}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"

	"tillshift/internal/model"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// ShiftReportHeader carries display names the shift row does not hold.
type ShiftReportHeader struct {
	TillName     string
	OperatorName string
}

// GenerateShiftReportPDF renders the reconciliation of a CLOSED shift.
// Returns the path of the written file.
func GenerateShiftReportPDF(shift *model.Shift, hdr ShiftReportHeader, storagePath string) (string, error) {
	if shift.Status != model.ShiftClosed || shift.ClosingCash == nil || shift.Variance == nil {
		return "", fmt.Errorf("pdf: shift %s is not closed", shift.ID)
	}
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	filePath := filepath.Join(storagePath, fmt.Sprintf("shift_%s.pdf", shift.ID))

	pdf := fpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 20
	labelW := contentW * 0.6
	valueW := contentW - labelW

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(contentW, 8, "Shift reconciliation", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 5, "Shift "+shift.ID.String(), "", 1, "C", false, 0, "")
	pdf.Ln(3)

	row := func(label, value string) {
		pdf.CellFormat(labelW, 6, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(valueW, 6, value, "", 1, "R", false, 0, "")
	}

	// ── Identity ─────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "", 9)
	row("Operating date", model.FormatDate(shift.OperatingDate))
	row("Till", orDefault(hdr.TillName, shift.TillID.String()))
	row("Operator", orDefault(hdr.OperatorName, shift.OperatorID.String()))
	row("Opened", shift.StartedAt.UTC().Format("2006-01-02 15:04 UTC"))
	if shift.EndedAt != nil {
		row("Closed", shift.EndedAt.UTC().Format("2006-01-02 15:04 UTC"))
	}
	separator(pdf, pageW)

	// ── Expected cash ────────────────────────────────────────────────────────
	net := valueOr(shift.NetCashMovement)
	expected := shift.OpeningCash.Add(shift.FloatingCash).Add(net)
	if shift.ExpectedCash != nil {
		expected = *shift.ExpectedCash
	}
	row("Opening cash", shift.OpeningCash.StringFixed(2))
	row("+ Floating cash", shift.FloatingCash.StringFixed(2))
	row("+ Net cash movement", net.StringFixed(2))
	pdf.SetFont("Helvetica", "B", 9)
	row("= Expected cash", expected.StringFixed(2))
	separator(pdf, pageW)

	// ── Count & variance ─────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "", 9)
	row("Counted cash", shift.ClosingCash.StringFixed(2))
	pdf.SetFont("Helvetica", "B", 11)
	row("Variance", shift.Variance.StringFixed(2))
	pdf.SetFont("Helvetica", "", 9)
	if shift.VariancePct != nil {
		row("Variance %", shift.VariancePct.StringFixed(2)+"%")
	}
	if shift.VarianceClass != nil {
		row("Classification", *shift.VarianceClass)
	}

	// ── Notes ─────────────────────────────────────────────────────────────────
	if shift.Notes != nil {
		separator(pdf, pageW)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.MultiCell(contentW, 4, *shift.Notes, "", "L", false)
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}

func separator(pdf *fpdf.Fpdf, pageW float64) {
	pdf.Ln(2)
	pdf.Line(10, pdf.GetY(), pageW-10, pdf.GetY())
	pdf.Ln(2)
}

func valueOr(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
