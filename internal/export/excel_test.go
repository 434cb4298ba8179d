package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/fmuoria/interview-notes/internal/models"
)

func testInterviews() []models.Interview {
	date := time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)
	sent := date.Add(24 * time.Hour)
	return []models.Interview{
		{
			Title:               "Jane Doe - Onsite",
			CandidateName:       "Jane Doe",
			CandidateEmail:      "jane@example.com",
			Rating:              models.RatingStrongHire,
			Category:            models.CategoryInterview,
			Source:              models.SourceDrive,
			MeetingDate:         &date,
			Summary:             "Excellent systems design.",
			Transcript:          "Sam: hello\nJane: hi",
			FeedbackSubmittedAt: &sent,
		},
		{
			Title:      "Weekly sync",
			Category:   models.CategoryOther,
			Source:     models.SourceExtension,
			CreatedAt:  date,
			Transcript: "notes",
		},
	}
}

// TestExportToExcel_EnsuresXlsxExtension tests that .xlsx extension is added if missing
func TestExportToExcel_EnsuresXlsxExtension(t *testing.T) {
	tmpDir := t.TempDir()

	outputPath := filepath.Join(tmpDir, "test_report")
	if err := ExportToExcel(testInterviews(), outputPath); err != nil {
		t.Fatalf("ExportToExcel() failed: %v", err)
	}

	expectedPath := outputPath + ".xlsx"
	if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
		t.Errorf("Expected file at %s but it doesn't exist", expectedPath)
	}
}

// TestExportToExcel_HandlesExistingXlsxExtension tests that existing .xlsx extension is preserved
func TestExportToExcel_HandlesExistingXlsxExtension(t *testing.T) {
	tmpDir := t.TempDir()

	outputPath := filepath.Join(tmpDir, "report.XLSX")
	if err := ExportToExcel(nil, outputPath); err != nil {
		t.Fatalf("ExportToExcel() failed: %v", err)
	}

	if _, err := os.Stat(outputPath); os.IsNotExist(err) {
		t.Errorf("Expected file at %s but it doesn't exist", outputPath)
	}
	if _, err := os.Stat(outputPath + ".xlsx"); err == nil {
		t.Error("Extension should not be appended twice")
	}
}

func TestWrite_Contents(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testInterviews()); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("Failed to open workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if strings.Join(sheets, ",") != "Summary,Interviews,Transcripts" {
		t.Errorf("Unexpected sheets %v", sheets)
	}

	rows, err := f.GetRows(interviewsSheet)
	if err != nil {
		t.Fatalf("GetRows() failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d", len(rows))
	}
	if rows[1][0] != "2024-05-01" || rows[1][1] != "Jane Doe" || rows[1][5] != "Strong Hire" {
		t.Errorf("Unexpected first row %v", rows[1])
	}
	if rows[1][8] != "2024-05-02" {
		t.Errorf("Expected feedback date, got %q", rows[1][8])
	}
	if rows[2][0] != "2024-05-01" || rows[2][5] != "Unrated" {
		t.Errorf("Unexpected second row %v", rows[2])
	}

	total, err := f.GetCellValue(summarySheet, "B4")
	if err != nil {
		t.Fatalf("GetCellValue() failed: %v", err)
	}
	if total != "2" {
		t.Errorf("Expected total of 2, got %q", total)
	}
}

func TestTruncateCell(t *testing.T) {
	short := "hello"
	if truncateCell(short) != short {
		t.Error("Short text should be unchanged")
	}

	long := strings.Repeat("é", maxCellChars+10)
	got := []rune(truncateCell(long))
	if len(got) != maxCellChars {
		t.Errorf("Expected %d runes, got %d", maxCellChars, len(got))
	}
	if !strings.HasSuffix(string(got), "...") {
		t.Error("Expected ellipsis")
	}
}

func TestFileName(t *testing.T) {
	got := FileName(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	if got != "interviews-2024-05-01.xlsx" {
		t.Errorf("FileName() = %q", got)
	}
}
