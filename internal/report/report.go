// Package report renders the PDF activity report.
package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"cargobot/internal/logging"
	"cargobot/internal/orders"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
)

const (
	// RecentRows is how many of the newest events the report lists.
	RecentRows = 10
	// ClientWidth is the rune limit of the client column.
	ClientWidth = 20

	dateTimeLayout = "02.01.2006 15:04"
	dateLayout     = "02.01.2006"
	fileTimeLayout = "20060102_150405"
)

// Row is one line of the recent events table.
type Row struct {
	Date   string
	Type   string
	Order  string
	Client string
}

// Data is everything a report shows.
type Data struct {
	GeneratedAt     time.Time
	Window          time.Duration // period covered by TotalEvents, for the label
	TotalEvents     int
	CompletedOrders int
	Recent          []Row
}

// Collect builds report data from events ordered newest first.
func Collect(events []orders.Event, now time.Time) Data {
	d := Data{
		GeneratedAt:     now,
		TotalEvents:     len(events),
		CompletedOrders: orders.CompletedOrders(events),
	}
	for i, e := range events {
		if i == RecentRows {
			break
		}
		d.Recent = append(d.Recent, Row{
			Date:   e.CreatedAt.Format("2006-01-02"),
			Type:   string(e.Type),
			Order:  e.Number(),
			Client: orders.Truncate(e.Data.Client, ClientWidth),
		})
	}
	return d
}

// Generator writes report files into a scratch directory.
type Generator struct {
	Dir      string
	Company  string
	FontPath string // optional UTF-8 TTF; core Helvetica otherwise
	Keep     bool   // keep files after delivery
}

// EnsureDir creates the scratch directory.
func (g *Generator) EnsureDir() error {
	if err := os.MkdirAll(g.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create reports dir: %w", err)
	}
	return nil
}

// DownloadName is the file name users see for a report made at t.
func DownloadName(t time.Time) string {
	return "Report_" + t.Format(dateLayout) + ".pdf"
}

// Build renders d and returns the path of the written file.
func (g *Generator) Build(ctx context.Context, d Data) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	timer := logging.StartTimer(logging.CategoryReport, "Build report")
	defer timer.StopWithThreshold(5 * time.Second)

	name := fmt.Sprintf("report_%s_%s.pdf", d.GeneratedAt.Format(fileTimeLayout), uuid.NewString()[:8])
	path := filepath.Join(g.Dir, name)

	pdf, family, err := g.newDocument(d.GeneratedAt)
	if err != nil {
		return "", err
	}
	g.render(pdf, family, d)

	if err := pdf.OutputFileAndClose(path); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	logging.Report("Report written to %s (%d events, %d completed)", path, d.TotalEvents, d.CompletedOrders)
	return path, nil
}

// Remove deletes a delivered report unless Keep is set.
func (g *Generator) Remove(path string) error {
	if g.Keep {
		logging.ReportDebug("Keeping %s", path)
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove report: %w", err)
	}
	return nil
}

type document struct {
	*fpdf.Fpdf
	tr func(string) string
}

func (g *Generator) newDocument(created time.Time) (*document, string, error) {
	var fontDir string
	if g.FontPath != "" {
		fontDir = filepath.Dir(g.FontPath)
	}
	pdf := fpdf.New("P", "mm", "A4", fontDir)
	pdf.SetCreationDate(created)
	pdf.SetCreator("cargobot", false)

	doc := &document{Fpdf: pdf}
	family := "Helvetica"
	if g.FontPath != "" {
		family = "Body"
		// UTF-8 font files resolve against the document's font dir.
		file := filepath.Base(g.FontPath)
		pdf.AddUTF8Font(family, "", file)
		pdf.AddUTF8Font(family, "B", file)
		doc.tr = func(s string) string { return s }
	} else {
		doc.tr = pdf.UnicodeTranslatorFromDescriptor("")
	}
	pdf.SetTitle(g.Company, true)
	if err := pdf.Error(); err != nil {
		return nil, "", fmt.Errorf("failed to load font %s: %w", g.FontPath, err)
	}
	return doc, family, nil
}

func (g *Generator) render(pdf *document, family string, d Data) {
	pdf.AddPage()

	// Title
	pdf.SetFont(family, "B", 16)
	pdf.SetTextColor(0x2C, 0x3E, 0x50)
	pdf.CellFormat(0, 10, pdf.tr(g.Company), "", 1, "L", false, 0, "")
	pdf.SetFont(family, "", 11)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 7, pdf.tr("Report from "+d.GeneratedAt.Format(dateTimeLayout)), "", 1, "L", false, 0, "")
	pdf.Ln(8)

	// Summary
	heading(pdf, family, "Summary:")
	eventsLabel := "Events"
	if days := int(d.Window.Hours() / 24); days > 0 {
		eventsLabel = fmt.Sprintf("Events (last %d days)", days)
	}
	table(pdf, family,
		[]float64{100, 60}, "C",
		[3]int{0x2C, 0x3E, 0x50}, [3]int{0xF5, 0xF5, 0xDC}, false,
		[]string{"Metric", "Value"},
		[][]string{
			{eventsLabel, strconv.Itoa(d.TotalEvents)},
			{"Completed orders", strconv.Itoa(d.CompletedOrders)},
			{"Generated", d.GeneratedAt.Format(dateTimeLayout)},
		},
	)
	pdf.Ln(10)

	// Recent events
	heading(pdf, family, "Recent events:")
	rows := make([][]string, 0, len(d.Recent))
	for _, r := range d.Recent {
		rows = append(rows, []string{r.Date, r.Type, r.Order, r.Client})
	}
	table(pdf, family,
		[]float64{30, 50, 30, 50}, "L",
		[3]int{0x34, 0x49, 0x5E}, [3]int{0xF5, 0xF5, 0xF5}, true,
		[]string{"Date", "Event type", "Order", "Details"},
		rows,
	)
}

func heading(pdf *document, family, text string) {
	pdf.SetFont(family, "B", 13)
	pdf.CellFormat(0, 8, pdf.tr(text), "", 1, "L", false, 0, "")
	pdf.Ln(2)
}

// table draws a header row on headerFill and body rows on bodyFill,
// alternating with light grey when striped.
func table(pdf *document, family string, widths []float64, align string, headerFill, bodyFill [3]int, striped bool, header []string, rows [][]string) {
	pdf.SetDrawColor(0x80, 0x80, 0x80)
	pdf.SetLineWidth(0.2)

	pdf.SetFont(family, "B", 10)
	pdf.SetFillColor(headerFill[0], headerFill[1], headerFill[2])
	pdf.SetTextColor(255, 255, 255)
	for i, h := range header {
		pdf.CellFormat(widths[i], 8, pdf.tr(h), "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(family, "", 8)
	pdf.SetTextColor(0, 0, 0)
	for n, row := range rows {
		fill := bodyFill
		if striped && n%2 == 1 {
			fill = [3]int{0xD3, 0xD3, 0xD3}
		}
		pdf.SetFillColor(fill[0], fill[1], fill[2])
		for i, cell := range row {
			pdf.CellFormat(widths[i], 7, pdf.tr(cell), "1", 0, align, true, 0, "")
		}
		pdf.Ln(-1)
	}
}
