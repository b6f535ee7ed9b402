package importer

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"quiz-desk/internal/domain"
)

// Format is the file format of a question import.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// OptionSeparator splits CSV option cells.
const OptionSeparator = "|"

// ParseFormat accepts "json" or "csv" in any case.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: unsupported format %q", domain.ErrImportFormat, raw)
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Row is one parsed entry. Rows with Err set could not be turned into a
// question and should be reported and skipped.
type Row struct {
	Line     int
	Question domain.Question
	Err      error
}

// Parse reads every question in r. A returned error means the file itself
// could not be read; per-row problems are reported on the rows.
func Parse(r io.Reader, format Format) ([]Row, error) {
	switch format {
	case FormatJSON:
		return parseJSON(r)
	case FormatCSV:
		return parseCSV(r)
	}
	return nil, fmt.Errorf("%w: unsupported format %q", domain.ErrImportFormat, format)
}

type jsonRecord struct {
	Type     string          `json:"type"`
	Prompt   string          `json:"prompt"`
	Question string          `json:"question"`
	Options  []string        `json:"options"`
	Choices  []string        `json:"choices"`
	Answer   json.RawMessage `json:"answer"`
}

func parseJSON(r io.Reader) ([]Row, error) {
	var records []jsonRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", domain.ErrImportFormat, err)
	}

	rows := make([]Row, 0, len(records))
	for i, rec := range records {
		row := Row{Line: i + 1}
		answer, err := decodeAnswer(rec.Answer)
		if err != nil {
			row.Err = err
			rows = append(rows, row)
			continue
		}
		row.Question, row.Err = buildQuestion(rec.Type, firstNonEmpty(rec.Prompt, rec.Question), firstNonNil(rec.Options, rec.Choices), answer)
		rows = append(rows, row)
	}
	return rows, nil
}

// decodeAnswer accepts a JSON string, boolean or number.
func decodeAnswer(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("missing answer")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return "True", nil
		}
		return "False", nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("unsupported answer %s", string(raw))
}

func parseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read csv header: %v", domain.ErrImportFormat, err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	promptCol, ok := lookupColumn(cols, "prompt", "question")
	if !ok {
		return nil, fmt.Errorf("%w: csv header needs a prompt column", domain.ErrImportFormat)
	}
	answerCol, ok := lookupColumn(cols, "answer")
	if !ok {
		return nil, fmt.Errorf("%w: csv header needs an answer column", domain.ErrImportFormat)
	}
	typeCol, hasType := lookupColumn(cols, "type")
	optionsCol, hasOptions := lookupColumn(cols, "options", "choices")

	var rows []Row
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return rows, fmt.Errorf("%w: line %d: %v", domain.ErrImportFormat, line, err)
		}

		kind := string(domain.KindMultipleChoice)
		if hasType {
			kind = cell(record, typeCol)
		}
		var options []string
		if hasOptions {
			if raw := cell(record, optionsCol); raw != "" {
				for _, opt := range strings.Split(raw, OptionSeparator) {
					options = append(options, strings.TrimSpace(opt))
				}
			}
		}
		row := Row{Line: line}
		row.Question, row.Err = buildQuestion(kind, cell(record, promptCol), options, cell(record, answerCol))
		rows = append(rows, row)
	}
	return rows, nil
}

func buildQuestion(rawKind, prompt string, choices []string, answer string) (domain.Question, error) {
	kind, ok := domain.ParseKind(rawKind)
	if !ok {
		return domain.Question{}, fmt.Errorf("unknown question type %q", rawKind)
	}
	return domain.Question{
		Kind:          kind,
		Prompt:        strings.TrimSpace(prompt),
		Choices:       choices,
		CorrectAnswer: strings.TrimSpace(answer),
	}, nil
}

func lookupColumn(cols map[string]int, names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := cols[n]; ok {
			return i, true
		}
	}
	return 0, false
}

func cell(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstNonNil(values ...[]string) []string {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}
