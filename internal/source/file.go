package source

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gridkit/internal/domain"
)

// ── File Source ─────────────────────────────────────────────
// Reads records from a local CSV or JSON file. The file is read on first
// use and again on every Reload.

// FileSource serves a CSV or JSON file.
type FileSource struct {
	*snapshot
	path string
}

func init() {
	RegisterFactory(domain.SourceCSVFile, newFileSource)
	RegisterFactory(domain.SourceJSONFile, newFileSource)
}

func newFileSource(t *domain.GridTable, cfg Config, env Env) (Source, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("filePath is required")
	}
	declared, err := DeclaredColumns(t)
	if err != nil {
		return nil, err
	}
	path := ResolvePath(cfg.FilePath, env.DataDir)

	var load loadFunc
	switch t.SourceType {
	case domain.SourceCSVFile:
		load = func(context.Context) ([]map[string]any, []string, error) {
			return readCSVFile(path, cfg)
		}
	default:
		load = func(context.Context) ([]map[string]any, []string, error) {
			records, err := readJSONFile(path, cfg.DataPath)
			return records, nil, err
		}
	}
	return &FileSource{snapshot: newSnapshot(load, declared), path: path}, nil
}

// ResolvePath anchors a relative file path at dataDir.
func ResolvePath(path, dataDir string) string {
	if path == "" || filepath.IsAbs(path) || dataDir == "" {
		return path
	}
	return filepath.Join(dataDir, path)
}

// Path is the resolved file path, watched for changes by the refresher.
func (s *FileSource) Path() string {
	return s.path
}

func (s *FileSource) Close() error {
	return nil
}

func readCSVFile(path string, cfg Config) ([]map[string]any, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if cfg.Delimiter != "" {
		reader.Comma = []rune(cfg.Delimiter)[0]
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	lines, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(lines) == 0 {
		return nil, nil, fmt.Errorf("empty csv file")
	}

	var headers []string
	rows := lines
	if cfg.HasHeader == nil || *cfg.HasHeader {
		headers, rows = lines[0], lines[1:]
	} else {
		// col_1, col_2, ...
		headers = make([]string, len(lines[0]))
		for i := range headers {
			headers[i] = fmt.Sprintf("col_%d", i+1)
		}
	}

	records := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]any, len(headers))
		for j, h := range headers {
			if j < len(row) {
				rec[h] = inferCSVValue(row[j])
			} else {
				rec[h] = nil
			}
		}
		records = append(records, rec)
	}
	return records, headers, nil
}

// inferCSVValue parses a cell as a number or bool where it looks like one.
func inferCSVValue(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}

func readJSONFile(path, dataPath string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	if dataPath != "" {
		current := raw
		for _, part := range strings.Split(dataPath, ".") {
			m, ok := current.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("invalid data path: %q not found", part)
			}
			current = m[part]
		}
		raw = current
	}

	switch v := raw.(type) {
	case []any:
		records := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				records = append(records, m)
			}
		}
		return records, nil
	case map[string]any:
		return []map[string]any{v}, nil
	default:
		return nil, fmt.Errorf("json file holds %T, want an array of objects", raw)
	}
}
