// Package report renders an analysis run as a PDF.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/pkg/errors"

	"github.com/rafabd1/climatesense/internal/types"
)

const (
	fontFamily = "Helvetica"
	lineHeight = 8.0
)

type rgb struct{ r, g, b int }

var (
	sectionFill = rgb{240, 240, 240}
	black       = rgb{0, 0, 0}
	white       = rgb{255, 255, 255}
)

// bannerColors returns the fill and text colour of the risk banner.
func bannerColors(level types.RiskLevel) (fill, text rgb) {
	switch level {
	case types.RiskHigh, types.RiskExtreme:
		return rgb{220, 50, 50}, white
	case types.RiskModerate:
		return rgb{255, 193, 7}, black
	default:
		return rgb{76, 175, 80}, white
	}
}

// FileName is the report name for a location on a given day.
func FileName(city string, now time.Time) string {
	main := types.CityMain(city)
	if main == "" {
		main = "Unknown"
	}
	main = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, main)
	return fmt.Sprintf("ClimateSense_Report_%s_%s.pdf", main, now.Format("20060102"))
}

// Generate writes the report for entry into dir and returns its path.
func Generate(entry *types.LogEntry, dir string, now time.Time) (string, error) {
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, FileName(entry.City, now))
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "create %s", path)
	}
	if err := Render(entry, f); err != nil {
		f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrapf(err, "close %s", path)
	}
	return path, nil
}

// Render writes the PDF for entry to w.
func Render(entry *types.LogEntry, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetHeaderFunc(func() {
		pdf.SetFont(fontFamily, "B", 15)
		setFill(pdf, sectionFill)
		pdf.CellFormat(0, 12, "ClimateSense Weather Report", "1", 1, "C", true, 0, "")
		pdf.Ln(5)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	city := orNA(entry.City)
	rr := entry.RiskReport
	level := rr.RiskLevel
	if level == "" {
		level = types.RiskUnknown
	}

	fill, text := bannerColors(level)
	setFill(pdf, fill)
	setText(pdf, text)
	pdf.SetFont(fontFamily, "B", 20)
	pdf.CellFormat(0, 15, tr(fmt.Sprintf("CURRENT RISK: %s (%s)", level, city)), "1", 1, "C", true, 0, "")
	setText(pdf, black)
	pdf.Ln(5)

	section(pdf, "Risk Analysis")
	labelled(pdf, tr, "Reason:", orNA(rr.Reasoning))
	labelled(pdf, tr, "Trend:", orNA(rr.Trend))
	labelled(pdf, tr, "Details:", fmt.Sprintf("Temp: %s°C | Wind: %s m/s | Desc: %s",
		number(rr.Details.TempC), number(rr.Details.WindSpeedMS), orNA(rr.Details.Description)))
	pdf.Ln(3)

	section(pdf, "Recommended Actions")
	pdf.SetFont(fontFamily, "", 12)
	pdf.MultiCell(0, lineHeight, tr(orNA(entry.Recommendations)), "", "L", false)
	pdf.Ln(5)

	section(pdf, "Relevant Local News")
	writeNews(pdf, tr, orNA(entry.AnalyzedNews))

	if err := pdf.Output(w); err != nil {
		return errors.Wrap(err, "render pdf")
	}
	return nil
}

func writeNews(pdf *gofpdf.Fpdf, tr func(string) string, news string) {
	if strings.Contains(news, "Error") || strings.Contains(news, "No relevant") {
		pdf.SetFont(fontFamily, "I", 12)
		pdf.MultiCell(0, lineHeight, tr(news), "", "L", false)
		return
	}
	for _, line := range strings.Split(news, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		headline, summary, ok := strings.Cut(line, ":")
		if !ok {
			pdf.SetFont(fontFamily, "", 12)
			pdf.MultiCell(0, lineHeight, tr(line), "", "L", false)
			continue
		}
		pdf.SetFont(fontFamily, "B", 12)
		pdf.MultiCell(0, lineHeight, tr(strings.TrimSpace(headline)), "", "L", false)
		pdf.SetFont(fontFamily, "", 12)
		pdf.MultiCell(0, lineHeight, tr("   "+strings.TrimSpace(summary)), "", "L", false)
		pdf.Ln(2)
	}
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont(fontFamily, "B", 14)
	setFill(pdf, sectionFill)
	pdf.CellFormat(0, 10, title, "T", 1, "L", true, 0, "")
	pdf.Ln(5)
}

func labelled(pdf *gofpdf.Fpdf, tr func(string) string, label, value string) {
	pdf.SetFont(fontFamily, "B", 12)
	pdf.CellFormat(30, lineHeight, label, "", 0, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 12)
	pdf.MultiCell(0, lineHeight, tr(value), "", "L", false)
	pdf.Ln(2)
}

func setFill(pdf *gofpdf.Fpdf, c rgb) { pdf.SetFillColor(c.r, c.g, c.b) }
func setText(pdf *gofpdf.Fpdf, c rgb) { pdf.SetTextColor(c.r, c.g, c.b) }

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
