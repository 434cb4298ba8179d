package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/fmuoria/interview-notes/internal/models"
)

// maxCellChars is Excel's limit on characters per cell
const maxCellChars = 32767

const (
	summarySheet     = "Summary"
	interviewsSheet  = "Interviews"
	transcriptsSheet = "Transcripts"
)

var ratingOrder = []models.Rating{
	models.RatingStrongHire,
	models.RatingHire,
	models.RatingNoHire,
	models.RatingStrongNoHire,
	models.RatingNone,
}

var categoryOrder = []models.Category{
	models.CategoryInterview,
	models.CategoryScreen,
	models.CategoryDebrief,
	models.CategoryOther,
}

// ratingColors are the row fills on the Interviews sheet
var ratingColors = map[models.Rating]string{
	models.RatingStrongHire:   "C6EFCE",
	models.RatingHire:         "E2F0D9",
	models.RatingNoHire:       "FFC7CE",
	models.RatingStrongNoHire: "FF9999",
	models.RatingNone:         "FFFFFF",
}

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

// ExportToExcel writes the interview workbook to outputPath
func ExportToExcel(interviews []models.Interview, outputPath string) error {
	// Ensure output path has .xlsx extension
	if !strings.HasSuffix(strings.ToLower(outputPath), ".xlsx") {
		outputPath = outputPath + ".xlsx"
	}
	outputPath = filepath.Clean(outputPath)

	f, err := buildWorkbook(interviews)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(outputPath); err != nil {
		// If direct save fails, try buffer write fallback
		var buf bytes.Buffer
		if writeErr := f.Write(&buf); writeErr != nil {
			return fmt.Errorf("failed to save Excel file: direct save failed (%v), buffer write also failed: %w", err, writeErr)
		}
		if fileErr := os.WriteFile(outputPath, buf.Bytes(), 0644); fileErr != nil {
			return fmt.Errorf("failed to save Excel file: direct save failed (%v), file write failed: %w", err, fileErr)
		}
	}
	return nil
}

// Write streams the interview workbook to w
func Write(w io.Writer, interviews []models.Interview) error {
	f, err := buildWorkbook(interviews)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

// FileName is the suggested download name for an export made at t
func FileName(t time.Time) string {
	return "interviews-" + t.Format("2006-01-02") + ".xlsx"
}

func buildWorkbook(interviews []models.Interview) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{interviewsSheet, transcriptsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create %s sheet: %w", name, err)
		}
	}

	if err := createSummarySheet(f, interviews); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if err := createInterviewsSheet(f, interviews); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create interviews sheet: %w", err)
	}
	if err := createTranscriptsSheet(f, interviews); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create transcripts sheet: %w", err)
	}
	return f, nil
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder,
	})
}

// createSummarySheet writes totals per rating and category
func createSummarySheet(f *excelize.File, interviews []models.Interview) error {
	sheet := summarySheet
	f.SetColWidth(sheet, "A", "A", 28)
	f.SetColWidth(sheet, "B", "B", 20)

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	labelStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	row := 1
	section := func(title string) {
		cell := fmt.Sprintf("A%d", row)
		f.SetCellValue(sheet, cell, title)
		f.SetCellStyle(sheet, cell, fmt.Sprintf("B%d", row), titleStyle)
		f.MergeCell(sheet, cell, fmt.Sprintf("B%d", row))
		row++
	}
	line := func(label string, value interface{}) {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), label)
		f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), labelStyle)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), value)
		row++
	}

	ratings := make(map[models.Rating]int)
	categories := make(map[models.Category]int)
	submitted := 0
	for _, iv := range interviews {
		ratings[iv.Rating]++
		categories[iv.Category]++
		if iv.FeedbackSubmittedAt != nil {
			submitted++
		}
	}

	section("Interview Notes Report")
	row++
	line("Generated:", time.Now().Format("2006-01-02 15:04:05"))
	line("Total Interviews:", len(interviews))
	line("Feedback Submitted:", submitted)
	row++

	section("By Rating")
	for _, r := range ratingOrder {
		line(r.Label()+":", ratings[r])
	}
	row++

	section("By Category")
	for _, c := range categoryOrder {
		line(strings.ToUpper(string(c[:1]))+string(c[1:])+":", categories[c])
	}

	return nil
}

// createInterviewsSheet writes one row per interview, filled by rating
func createInterviewsSheet(f *excelize.File, interviews []models.Interview) error {
	sheet := interviewsSheet
	widths := map[string]float64{"A": 12, "B": 24, "C": 28, "D": 36, "E": 12, "F": 16, "G": 20, "H": 11, "I": 14, "J": 80}
	for col, w := range widths {
		f.SetColWidth(sheet, col, col, w)
	}

	hdr, err := headerStyle(f)
	if err != nil {
		return err
	}

	rowStyles := make(map[models.Rating]int, len(ratingColors))
	for rating, color := range ratingColors {
		style, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
			Border:    thinBorder,
		})
		if err != nil {
			return err
		}
		rowStyles[rating] = style
	}

	headers := []string{"Date", "Candidate", "Email", "Title", "Category", "Rating", "Interviewer", "Source", "Feedback Sent", "Summary"}
	for col, header := range headers {
		cell := fmt.Sprintf("%s1", string(rune('A'+col)))
		f.SetCellValue(sheet, cell, header)
		f.SetCellStyle(sheet, cell, cell, hdr)
	}

	for i, iv := range interviews {
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), interviewDate(iv))
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), iv.CandidateName)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), iv.CandidateEmail)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), iv.Title)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), string(iv.Category))
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), iv.Rating.Label())
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), iv.Interviewer)
		f.SetCellValue(sheet, fmt.Sprintf("H%d", row), string(iv.Source))
		if iv.FeedbackSubmittedAt != nil {
			f.SetCellValue(sheet, fmt.Sprintf("I%d", row), iv.FeedbackSubmittedAt.Format("2006-01-02"))
		}
		f.SetCellValue(sheet, fmt.Sprintf("J%d", row), truncateCell(iv.Summary))

		style, ok := rowStyles[iv.Rating]
		if !ok {
			style = rowStyles[models.RatingNone]
		}
		f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("J%d", row), style)
	}

	if len(interviews) > 0 {
		f.AutoFilter(sheet, fmt.Sprintf("A1:J%d", len(interviews)+1), []excelize.AutoFilterOptions{})
	}

	// Freeze top row
	f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
	return nil
}

// createTranscriptsSheet writes the full transcript text
func createTranscriptsSheet(f *excelize.File, interviews []models.Interview) error {
	sheet := transcriptsSheet
	f.SetColWidth(sheet, "A", "A", 24)
	f.SetColWidth(sheet, "B", "B", 36)
	f.SetColWidth(sheet, "C", "C", 120)

	hdr, err := headerStyle(f)
	if err != nil {
		return err
	}
	wrapStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
		Border:    thinBorder,
	})
	if err != nil {
		return err
	}

	for col, header := range []string{"Candidate", "Title", "Transcript"} {
		cell := fmt.Sprintf("%s1", string(rune('A'+col)))
		f.SetCellValue(sheet, cell, header)
		f.SetCellStyle(sheet, cell, cell, hdr)
	}

	for i, iv := range interviews {
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), iv.CandidateName)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), iv.Title)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), truncateCell(iv.Transcript))
		f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("C%d", row), wrapStyle)
		f.SetRowHeight(sheet, row, 120)
	}
	return nil
}

func interviewDate(iv models.Interview) string {
	if iv.MeetingDate != nil {
		return iv.MeetingDate.Format("2006-01-02")
	}
	return iv.CreatedAt.Format("2006-01-02")
}

// truncateCell keeps text under the per-cell limit without splitting a rune
func truncateCell(s string) string {
	runes := []rune(s)
	if len(runes) <= maxCellChars {
		return s
	}
	return string(runes[:maxCellChars-3]) + "..."
}
