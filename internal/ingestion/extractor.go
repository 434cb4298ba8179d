package ingestion

import (
	"bytes"
	"fmt"
	"html"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

const (
	// MinExtractedTextLength is the minimum text length required for successful extraction
	MinExtractedTextLength = 50
	// BinarySampleSize is the number of bytes to sample for binary detection
	BinarySampleSize = 1000
	// BinaryThreshold is the proportion of non-printable characters that indicates binary data
	BinaryThreshold = 0.3
)

// MIME types of transcript files found in Meet recording folders
const (
	MimeGoogleDoc = "application/vnd.google-apps.document"
	MimeDocx      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimePlainText = "text/plain"
)

var (
	paragraphEnd = regexp.MustCompile(`</w:p>|<w:br/>|<w:br />`)
	xmlTag       = regexp.MustCompile(`<[^>]+>`)
)

// IsTranscriptFile reports whether a Drive file can be read as a transcript
func IsTranscriptFile(name, mimeType string) bool {
	switch mimeType {
	case MimeGoogleDoc, MimeDocx, MimePlainText:
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".txt" || ext == ".docx"
}

// ExtractText returns the plain text of a transcript file. Google Docs are
// expected to have been exported to text/plain already.
func ExtractText(name, mimeType string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))

	var text string
	switch {
	case mimeType == MimeGoogleDoc || mimeType == MimePlainText || ext == ".txt":
		if IsBinaryData(string(data)) {
			return "", fmt.Errorf("file appears to be binary: %s", name)
		}
		text = string(data)
	case mimeType == MimeDocx || ext == ".docx":
		extracted, err := extractDOCX(data)
		if err != nil {
			return "", fmt.Errorf("failed to extract %s: %w", name, err)
		}
		text = extracted
	default:
		return "", fmt.Errorf("unsupported file type: %s (%s)", ext, mimeType)
	}

	text = NormalizeTranscript(text)
	if len(text) < MinExtractedTextLength {
		return "", fmt.Errorf("extracted text is too short (likely failed extraction) from: %s", name)
	}
	return text, nil
}

// extractDOCX reads the document body of a .docx file and strips the WordprocessingML markup
func extractDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}
	defer r.Close()

	content := r.Editable().GetContent()
	content = paragraphEnd.ReplaceAllString(content, "\n")
	content = xmlTag.ReplaceAllString(content, "")
	return html.UnescapeString(content), nil
}

// IsBinaryData checks if content appears to be binary (PDF/ZIP markers)
func IsBinaryData(content string) bool {
	if len(content) == 0 {
		return false
	}

	if strings.HasPrefix(content, "%PDF-") {
		return true
	}

	// ZIP magic number (DOCX files)
	if len(content) >= 2 && content[:2] == "PK" {
		return true
	}

	sampleSize := min(BinarySampleSize, len(content))
	nonPrintable := 0
	for i := 0; i < sampleSize; i++ {
		ch := content[i]
		if ch < 32 && ch != '\n' && ch != '\r' && ch != '\t' {
			nonPrintable++
		}
	}

	return float64(nonPrintable)/float64(sampleSize) > BinaryThreshold
}
