package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the closed set of field kinds a flat-file record may carry.
type Kind int

const (
	KindString Kind = iota
	KindInt
)

// Field is one column of a record schema: a name for error reporting and the
// kind its text is decoded as.
type Field struct {
	Name string
	Kind Kind
}

const fieldSep = " "

// decodeFields splits one file line against an ordered schema. The field
// count must match exactly and every value must parse as its declared kind.
func decodeFields(line string, schema []Field) ([]any, error) {
	parts := strings.Split(line, fieldSep)
	if len(parts) != len(schema) {
		return nil, fmt.Errorf("record has %d fields, schema wants %d", len(parts), len(schema))
	}
	vals := make([]any, len(parts))
	for i, f := range schema {
		switch f.Kind {
		case KindString:
			if parts[i] == "" {
				return nil, fmt.Errorf("field %s: empty", f.Name)
			}
			vals[i] = parts[i]
		case KindInt:
			n, err := strconv.Atoi(parts[i])
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			vals[i] = n
		default:
			return nil, fmt.Errorf("field %s: unsupported kind %d", f.Name, f.Kind)
		}
	}
	return vals, nil
}

// encodeFields renders values against an ordered schema into one file line.
func encodeFields(vals []any, schema []Field) (string, error) {
	if len(vals) != len(schema) {
		return "", fmt.Errorf("got %d values, schema wants %d", len(vals), len(schema))
	}
	parts := make([]string, len(vals))
	for i, f := range schema {
		switch f.Kind {
		case KindString:
			s, ok := vals[i].(string)
			if !ok || s == "" || strings.Contains(s, fieldSep) {
				return "", fmt.Errorf("field %s: invalid string value %v", f.Name, vals[i])
			}
			parts[i] = s
		case KindInt:
			n, ok := vals[i].(int)
			if !ok {
				return "", fmt.Errorf("field %s: invalid int value %v", f.Name, vals[i])
			}
			parts[i] = strconv.Itoa(n)
		default:
			return "", fmt.Errorf("field %s: unsupported kind %d", f.Name, f.Kind)
		}
	}
	return strings.Join(parts, fieldSep), nil
}
