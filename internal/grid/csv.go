package grid

import (
	"strings"

	"github.com/samber/lo"

	"gridkit/internal/domain"
)

// CSVContentType is the MIME type of exported files.
const CSVContentType = "text/csv;charset=utf-8"

// ExportOptions controls ExportCSV.
type ExportOptions struct {
	Filename      string
	IncludeHidden bool         // export hidden columns too
	SelectedOnly  bool         // export only rows in Selection
	Selection     SelectionMap // used when SelectedOnly is set
}

// CSVFile is a ready-to-save export.
type CSVFile struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Content     []byte `json:"content"`
}

// ExportCSV renders rows as CSV. The header holds the labels of the
// exported columns: the visible data columns, or every data column when
// IncludeHidden is set. visibility maps column id to visible; missing ids
// count as visible. Lines are joined with "\n".
func ExportCSV(rows []Row, cols []domain.Column, visibility map[string]bool, opts ExportOptions) CSVFile {
	exported := lo.Filter(cols, func(c domain.Column, _ int) bool {
		if c.IsSynthetic() {
			return false
		}
		if opts.IncludeHidden {
			return true
		}
		visible, ok := visibility[c.ID]
		return !ok || visible
	})
	if opts.SelectedOnly {
		rows = SelectedRows(rows, opts.Selection)
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, strings.Join(lo.Map(exported, func(c domain.Column, _ int) string {
		label := c.Label
		if label == "" {
			label = c.ID
		}
		return EscapeCSVCell(label)
	}), ","))
	for _, r := range rows {
		cells := lo.Map(exported, func(c domain.Column, _ int) string {
			return EscapeCSVCell(csvText(r.Value(c)))
		})
		lines = append(lines, strings.Join(cells, ","))
	}

	filename := opts.Filename
	if filename == "" {
		filename = "export"
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".csv") {
		filename += ".csv"
	}
	return CSVFile{
		Filename:    filename,
		ContentType: CSVContentType,
		Content:     []byte(strings.Join(lines, "\n")),
	}
}

// EscapeCSVCell quotes s when it contains a comma, a quote or a newline,
// doubling embedded quotes.
func EscapeCSVCell(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// csvText stringifies a cell; objects and arrays become JSON.
func csvText(v any) string {
	if v == nil {
		return ""
	}
	return stringify(v)
}
