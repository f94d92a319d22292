package ingestion

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DocumentFormat enumerates the closed set of supported document kinds.
type DocumentFormat string

const (
	// FormatUnknown represents an unsupported or undetected format.
	FormatUnknown DocumentFormat = ""
	// FormatText represents plain text and markdown documents.
	FormatText DocumentFormat = "text"
	// FormatPDF represents PDF documents.
	FormatPDF DocumentFormat = "pdf"
	// FormatWord represents Word (.docx) documents.
	FormatWord DocumentFormat = "word"
	// FormatCSV represents comma separated values documents.
	FormatCSV DocumentFormat = "csv"
)

// DetectFormat infers a document format from the provided path's extension.
func DetectFormat(path string) DocumentFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown":
		return FormatText
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatWord
	case ".csv":
		return FormatCSV
	default:
		return FormatUnknown
	}
}

// LoadDocument reads the file at path and extracts its plain text according
// to the detected format. Unsupported formats return an error the caller is
// expected to absorb.
func LoadDocument(path string) (string, error) {
	switch DetectFormat(path) {
	case FormatText:
		return loadText(path)
	case FormatPDF:
		return loadPDF(path)
	case FormatWord:
		return loadWord(path)
	case FormatCSV:
		return loadCSV(path)
	default:
		return "", fmt.Errorf("unsupported document format: %s", filepath.Ext(path))
	}
}

func loadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return normalizePlainText(string(data)), nil
}

func loadPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	return normalizePlainText(buf.String()), nil
}

// loadWord extracts paragraph text from word/document.xml inside the .docx
// archive. Text runs (<w:t>) are concatenated; paragraph ends (<w:p>)
// become newlines.
func loadWord(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}
	defer archive.Close()

	var document io.ReadCloser
	for _, file := range archive.File {
		if file.Name == "word/document.xml" {
			document, err = file.Open()
			if err != nil {
				return "", fmt.Errorf("open document.xml: %w", err)
			}
			break
		}
	}
	if document == nil {
		return "", fmt.Errorf("docx archive has no word/document.xml")
	}
	defer document.Close()

	var sb strings.Builder
	dec := xml.NewDecoder(document)
	inText := false
	for {
		token, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	return normalizePlainText(sb.String()), nil
}

// loadCSV flattens rows into "Header: value" lines so tabular data embeds
// as readable prose.
func loadCSV(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return "", fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return "", nil
	}

	headers := records[0]
	var sb strings.Builder
	for idx, row := range records[1:] {
		if idx > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(formatCSVRow(headers, row, idx))
	}
	return sb.String(), nil
}

func formatCSVRow(headers, row []string, idx int) string {
	builder := &strings.Builder{}
	builder.WriteString(fmt.Sprintf("Row %d", idx+1))

	limit := len(headers)
	if len(row) < limit {
		limit = len(row)
	}

	for i := 0; i < limit; i++ {
		header := strings.TrimSpace(headers[i])
		if header == "" {
			header = fmt.Sprintf("Column %d", i+1)
		}
		builder.WriteString("\n")
		builder.WriteString(header)
		builder.WriteString(": ")
		builder.WriteString(strings.TrimSpace(row[i]))
	}

	return builder.String()
}

func normalizePlainText(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}
