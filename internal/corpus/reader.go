package corpus

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Column names recognised by the tabular readers. Every other column becomes
// a document variable.
const (
	textColumn = "text"
)

var nameColumns = []string{"doc_id", "name", "docname"}

// ReadFile loads documents from path. The format follows the extension:
// .jsonl/.ndjson (one object per line), .json (an array), .csv, .xlsx (first
// sheet) or .txt (the whole file is one document).
func ReadFile(path string) ([]Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".xlsx" {
		return readXLSX(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus file: %w", err)
	}
	defer f.Close()

	var docs []Document
	switch ext {
	case ".jsonl", ".ndjson":
		docs, err = ReadJSONL(f)
	case ".json":
		docs, err = ReadJSON(f)
	case ".csv":
		docs, err = ReadCSV(f)
	case ".txt":
		var b []byte
		b, err = io.ReadAll(f)
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		docs = []Document{NewDocument(name, string(b), nil)}
	default:
		return nil, fmt.Errorf("unsupported corpus file type %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	slog.Debug("corpus file read", "path", path, "documents", len(docs))
	return docs, nil
}

// ReadJSONL decodes one document object per line. Blank lines are skipped.
func ReadJSONL(r io.Reader) ([]Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	var docs []Document
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		d, err := documentFromObject(obj, len(docs))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		docs = append(docs, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// ReadJSON decodes an array of document objects.
func ReadJSON(r io.Reader) ([]Document, error) {
	var objs []map[string]any
	if err := json.NewDecoder(r).Decode(&objs); err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(objs))
	for i, obj := range objs {
		d, err := documentFromObject(obj, i)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// ReadCSV reads a header row followed by one document per row.
func ReadCSV(r io.Reader) ([]Document, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	return documentsFromRows(rows)
}

func readXLSX(path string) ([]Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}
	return documentsFromRows(rows)
}

func documentsFromRows(rows [][]string) ([]Document, error) {
	if len(rows) < 1 {
		return nil, fmt.Errorf("missing header row")
	}
	header := make([]string, len(rows[0]))
	textIdx, nameIdx := -1, -1
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		header[i] = h
		switch {
		case strings.EqualFold(h, textColumn):
			textIdx = i
		case nameIdx < 0 && isNameColumn(h):
			nameIdx = i
		}
	}
	if textIdx < 0 {
		return nil, fmt.Errorf("no %q column in header", textColumn)
	}

	docs := make([]Document, 0, len(rows)-1)
	for r, row := range rows[1:] {
		cell := func(i int) string {
			if i < 0 || i >= len(row) {
				return ""
			}
			return row[i]
		}
		meta := make(map[string]string)
		for i, h := range header {
			if i == textIdx || i == nameIdx || h == "" {
				continue
			}
			if v := cell(i); v != "" {
				meta[h] = v
			}
		}
		name := cell(nameIdx)
		if name == "" {
			name = defaultName(r)
		}
		docs = append(docs, NewDocument(name, cell(textIdx), meta))
	}
	return docs, nil
}

func documentFromObject(obj map[string]any, i int) (Document, error) {
	text, ok := obj[textColumn].(string)
	if !ok {
		return Document{}, fmt.Errorf("missing string field %q", textColumn)
	}
	name := ""
	for _, key := range nameColumns {
		if v, ok := obj[key]; ok {
			name = scalarString(v)
			break
		}
	}
	if name == "" {
		name = defaultName(i)
	}

	meta := make(map[string]string)
	if nested, ok := obj["meta"].(map[string]any); ok {
		for k, v := range nested {
			meta[k] = scalarString(v)
		}
	}
	for k, v := range obj {
		if k == textColumn || k == "meta" || k == "id" || isNameColumn(k) {
			continue
		}
		meta[k] = scalarString(v)
	}
	d := NewDocument(name, text, meta)
	if id, ok := obj["id"].(string); ok {
		d.ID = id
	}
	return d, nil
}

func isNameColumn(h string) bool {
	for _, c := range nameColumns {
		if strings.EqualFold(h, c) {
			return true
		}
	}
	return false
}

func defaultName(i int) string {
	return "text" + strconv.Itoa(i+1)
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}
