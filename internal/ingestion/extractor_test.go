package ingestion

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"
)

// TestIsBinaryData_PlainText tests that plain text is not detected as binary
func TestIsBinaryData_PlainText(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "Simple text", content: "Jane Doe: Thanks for having me."},
		{name: "Multi-line text", content: "Sam\nHi Jane\nJane\nHello"},
		{name: "Empty string", content: ""},
		{name: "Text with tabs and newlines", content: "00:01\tSam\tWelcome\n00:05\tJane\tThanks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if IsBinaryData(tt.content) {
				t.Errorf("IsBinaryData() returned true for plain text: %q", tt.content)
			}
		})
	}
}

// TestIsBinaryData_Binary tests PDF, ZIP and control-heavy content
func TestIsBinaryData_Binary(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "PDF header", content: "%PDF-1.7\n%%EOF"},
		{name: "ZIP magic number", content: "PK\x03\x04\x14\x00\x00\x00"},
		{name: "Mostly control bytes", content: strings.Repeat("\x01", 400) + strings.Repeat("x", 600)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !IsBinaryData(tt.content) {
				t.Errorf("IsBinaryData() returned false for binary content")
			}
		})
	}
}

func TestIsTranscriptFile(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		expected bool
	}{
		{"Interview - Transcript", MimeGoogleDoc, true},
		{"notes.txt", "", true},
		{"notes.docx", "application/octet-stream", true},
		{"recording.mp4", "video/mp4", false},
		{"chat.sbv", "application/octet-stream", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTranscriptFile(tt.name, tt.mimeType); got != tt.expected {
				t.Errorf("IsTranscriptFile(%q, %q) = %v, want %v", tt.name, tt.mimeType, got, tt.expected)
			}
		})
	}
}

func TestExtractText_PlainText(t *testing.T) {
	data := []byte("Sam: Welcome Jane, thanks for joining.\r\n\r\n\r\n\r\nJane: Happy to be here, let's get started.")
	text, err := ExtractText("Jane Doe - Transcript", MimeGoogleDoc, data)
	if err != nil {
		t.Fatalf("ExtractText() failed: %v", err)
	}
	if strings.Contains(text, "\r") || strings.Contains(text, "\n\n\n") {
		t.Errorf("Expected normalized text, got %q", text)
	}
}

func TestExtractText_InvalidUTF8(t *testing.T) {
	data := []byte("Sam: Welcome to the Caf\xe9 interview, Jane.\x00\nJane: Thanks, glad to be here today.")
	text, err := ExtractText("notes.txt", MimePlainText, data)
	if err != nil {
		t.Fatalf("ExtractText() failed: %v", err)
	}
	if !utf8.ValidString(text) {
		t.Errorf("Expected valid UTF-8, got %q", text)
	}
	if strings.Contains(text, "\x00") {
		t.Errorf("Expected NUL bytes to be removed, got %q", text)
	}
	if !strings.Contains(text, "Caf\uFFFD interview") {
		t.Errorf("Expected invalid byte replaced, got %q", text)
	}
}

func TestExtractText_TooShort(t *testing.T) {
	if _, err := ExtractText("short.txt", "", []byte("hi")); err == nil {
		t.Error("Expected error for too-short transcript")
	}
}

// TestExtractText_UnsupportedType tests that unsupported file types return error
func TestExtractText_UnsupportedType(t *testing.T) {
	for _, filename := range []string{"test.jpg", "test.pdf", "test.xlsx"} {
		t.Run(filename, func(t *testing.T) {
			_, err := ExtractText(filename, "", []byte("whatever"))
			if err == nil {
				t.Fatalf("ExtractText() should return error for unsupported file type %s", filename)
			}
			if !strings.Contains(err.Error(), "unsupported file type") {
				t.Errorf("Error message should mention 'unsupported file type', got: %v", err)
			}
		})
	}
}

func TestExtractText_BinaryMasqueradingAsText(t *testing.T) {
	_, err := ExtractText("transcript.txt", MimePlainText, []byte("%PDF-1.4 binary payload that is long enough to pass the length check"))
	if err == nil || !strings.Contains(err.Error(), "binary") {
		t.Errorf("Expected binary error, got %v", err)
	}
}

func TestExtractText_DOCX(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:r><w:t>Sam: Welcome Jane, tell me about your last project.</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Jane: I rebuilt our billing pipeline &amp; cut costs.</w:t></w:r></w:p>` +
		`</w:body></w:document>`
	rels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"word/document.xml":            body,
		"word/_rels/document.xml.rels": rels,
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create failed: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write failed: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close failed: %v", err)
	}

	text, err := ExtractText("interview.docx", MimeDocx, buf.Bytes())
	if err != nil {
		t.Fatalf("ExtractText() failed: %v", err)
	}

	lines := strings.Split(text, "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d: %q", len(lines), text)
	}
	if !strings.Contains(lines[1], "billing pipeline & cut costs") {
		t.Errorf("Expected unescaped entity, got %q", lines[1])
	}
}

func TestExtractText_CorruptDOCX(t *testing.T) {
	_, err := ExtractText("broken.docx", MimeDocx, []byte("not a zip file at all, just some plain words here"))
	if err == nil {
		t.Error("Expected error for corrupt docx")
	}
}
