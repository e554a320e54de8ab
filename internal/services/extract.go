package services

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxContextChars caps extracted course context so prompts stay within model
// input limits.
const maxContextChars = 60000

// ExtractService turns uploaded files into plain course-context text.
type ExtractService struct{}

func NewExtractService() *ExtractService {
	return &ExtractService{}
}

// ExtractText dispatches on the uploaded filename's extension.
func (s *ExtractService) ExtractText(data []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".txt":
		return s.extractTXT(data)
	case ".pdf":
		return s.extractPDF(data)
	default:
		return "", &ValidationError{Fields: map[string]string{
			"file": fmt.Sprintf("Unsupported file type %q, expected .pdf or .txt", ext),
		}}
	}
}

func (s *ExtractService) extractTXT(data []byte) (string, error) {
	text := normalizeExtractedText(string(data))
	if text == "" {
		return "", &ValidationError{Fields: map[string]string{"file": "Text file is empty"}}
	}
	return text, nil
}

func (s *ExtractService) extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ValidationError{Fields: map[string]string{"file": "File is not a readable PDF"}}
	}

	var b strings.Builder
	totalPage := reader.NumPage()
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			// Skip unreadable pages, the rest of the document may still be useful
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}

	text := normalizeExtractedText(b.String())
	if text == "" {
		return "", &ValidationError{Fields: map[string]string{"file": "No extractable text found in PDF"}}
	}
	return text, nil
}

var blankLinePattern = regexp.MustCompile(`\n{3,}`)

func normalizeExtractedText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\x00", "")
	s = blankLinePattern.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)

	if len(s) > maxContextChars {
		s = s[:maxContextChars]
	}
	return s
}
