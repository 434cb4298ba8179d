package ingestion

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

var (
	meetingCodePattern = regexp.MustCompile(`^[a-z]{3}-[a-z]{4}-[a-z]{3}$`)
	fileDatePattern    = regexp.MustCompile(`(\d{4})[-/](\d{2})[-/](\d{2})`)
	// "(2024-05-01 10:00 GMT-04:00)" style suffix Meet appends to file names
	fileDateSuffix  = regexp.MustCompile(`\s*[-(]?\s*\d{4}[-/]\d{2}[-/]\d{2}[^)]*\)?\s*$`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
	titleSeparators = regexp.MustCompile(`\s+(?:<>|/|x|and|with|-|–|\|)\s+`)
)

// MeetingKey synthesizes the dedup key for an extension capture: the Meet
// code plus the UTC calendar day the meeting started
func MeetingKey(meetingCode string, startedAt time.Time) (string, error) {
	code := strings.ToLower(strings.TrimSpace(meetingCode))
	code = strings.TrimPrefix(code, "https://meet.google.com/")
	if i := strings.IndexAny(code, "?#"); i >= 0 {
		code = code[:i]
	}
	if !meetingCodePattern.MatchString(code) {
		return "", fmt.Errorf("invalid meeting code %q", meetingCode)
	}
	if startedAt.IsZero() {
		return "", fmt.Errorf("meeting start time is required")
	}
	return code + "/" + startedAt.UTC().Format("2006-01-02"), nil
}

// NormalizeTranscript cleans captured text: valid UTF-8 without NUL bytes,
// unified newlines, trimmed lines, no runs of blank lines
func NormalizeTranscript(text string) string {
	// Postgres text columns reject invalid UTF-8 and NUL
	text = strings.ToValidUTF8(text, "\uFFFD")
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimPrefix(text, "\ufeff")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	return strings.TrimSpace(blankLines.ReplaceAllString(text, "\n\n"))
}

// TitleFromFileName strips extensions, the " - Transcript" suffix and the
// date suffix Meet adds to transcript documents
func TitleFromFileName(name string) string {
	title := strings.TrimSpace(name)
	for _, ext := range []string{".txt", ".docx", ".doc"} {
		if strings.HasSuffix(strings.ToLower(title), ext) {
			title = title[:len(title)-len(ext)]
			break
		}
	}
	for _, suffix := range []string{" - Transcript", " – Transcript", " - Notes by Gemini"} {
		title = strings.TrimSuffix(title, suffix)
	}
	title = fileDateSuffix.ReplaceAllString(title, "")
	return strings.TrimSpace(strings.TrimRight(title, " -–"))
}

// DateFromFileName extracts the meeting date embedded in a Drive file name
func DateFromFileName(name string) (time.Time, bool) {
	m := fileDatePattern.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", m[1]+"-"+m[2]+"-"+m[3])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// CandidateFromTitle guesses the candidate from common interview titles such as
// "Interview: Jane Doe <> Acme" or "Jane Doe - Technical Interview"
func CandidateFromTitle(title string) string {
	t := strings.TrimSpace(title)
	lower := strings.ToLower(t)

	for _, prefix := range []string{"interview with ", "interview:", "interview -", "screen:", "phone screen:", "onsite:"} {
		if strings.HasPrefix(lower, prefix) {
			t = strings.TrimSpace(t[len(prefix):])
			break
		}
	}

	parts := titleSeparators.Split(t, -1)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if looksLikeName(part) {
			return part
		}
	}
	return ""
}

// looksLikeName accepts two to four capitalized words with no interview vocabulary
func looksLikeName(s string) bool {
	words := strings.Fields(s)
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	for _, w := range words {
		switch strings.ToLower(w) {
		case "interview", "technical", "screen", "onsite", "round", "call", "sync", "debrief", "meeting":
			return false
		}
		if r, _ := utf8.DecodeRuneInString(w); !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}
