package source

import (
	"encoding/json"
	"regexp"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"gridkit/internal/domain"
)

const inferSampleSize = 10

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// InferColumns derives column descriptors from records. fields fixes the
// column order; when empty, keys are collected from the records and sorted.
func InferColumns(records []map[string]any, fields []string) []domain.Column {
	if len(fields) == 0 {
		seen := map[string]bool{}
		for _, rec := range records {
			for k := range rec {
				if !seen[k] {
					seen[k] = true
					fields = append(fields, k)
				}
			}
		}
		slices.Sort(fields)
	}

	cols := make([]domain.Column, len(fields))
	for i, f := range fields {
		var sample []any
		for _, rec := range records {
			if v := rec[f]; v != nil {
				sample = append(sample, v)
				if len(sample) == inferSampleSize {
					break
				}
			}
		}
		cols[i] = domain.Column{ID: f, Label: humanize(f), Format: GuessColumnFormat(sample)}
	}
	return cols
}

// GuessColumnFormat picks the format every sampled value agrees on, or
// string. nil values are ignored; at most ten values are looked at.
func GuessColumnFormat(values []any) domain.ColumnFormat {
	var sample []any
	for _, v := range values {
		if v != nil {
			sample = append(sample, v)
		}
		if len(sample) == inferSampleSize {
			break
		}
	}
	if len(sample) == 0 {
		return domain.FormatString
	}

	for _, f := range []domain.ColumnFormat{
		domain.FormatBoolean, domain.FormatDatetime, domain.FormatDate,
		domain.FormatNumber, domain.FormatTag, domain.FormatJSON,
	} {
		if all(sample, func(v any) bool { return valueIs(v, f) }) {
			return f
		}
	}
	return domain.FormatString
}

func all(values []any, pred func(any) bool) bool {
	for _, v := range values {
		if !pred(v) {
			return false
		}
	}
	return true
}

func valueIs(v any, f domain.ColumnFormat) bool {
	switch f {
	case domain.FormatBoolean:
		_, ok := v.(bool)
		return ok
	case domain.FormatDatetime:
		if _, ok := v.(time.Time); ok {
			return true
		}
		s, ok := v.(string)
		if !ok {
			return false
		}
		_, err := time.Parse(time.RFC3339, s)
		return err == nil
	case domain.FormatDate:
		s, ok := v.(string)
		return ok && datePattern.MatchString(s)
	case domain.FormatNumber:
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
			return true
		}
		return false
	case domain.FormatTag:
		_, ok := v.([]any)
		return ok
	case domain.FormatJSON:
		_, ok := v.(map[string]any)
		return ok
	}
	return false
}

// humanize turns "first_name" into "First Name".
func humanize(field string) string {
	s := strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(field)
	return cases.Title(language.English).String(strings.TrimSpace(s))
}
