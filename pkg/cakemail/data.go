package cakemail

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// CakeMail encodes timestamps as "2006-01-02 15:04:05" in UTC and uses an
// all-zero timestamp for "no date".
const (
	cakeMailTimeLayout = "2006-01-02 15:04:05"
	cakeMailNullTime   = "0000-00-00 00:00:00"
)

// ErrInvalidData is returned when field data is not a JSON or YAML object.
var ErrInvalidData = errors.New("field data must be an object")

// DataFromJSON reads a JSON object into Data. Integral numbers become int64,
// other numbers float64, CakeMail timestamps become UTC times and nested
// objects or arrays keep their raw JSON text.
func DataFromJSON(raw []byte) (Data, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("failed to parse JSON data: %w", ErrInvalidData)
	}
	result := gjson.ParseBytes(raw)
	if !result.IsObject() {
		return nil, ErrInvalidData
	}

	data := make(Data)
	result.ForEach(func(key, value gjson.Result) bool {
		data[key.String()] = jsonFieldValue(value)
		return true
	})
	return data, nil
}

func jsonFieldValue(value gjson.Result) any {
	switch value.Type {
	case gjson.Null:
		return nil
	case gjson.True, gjson.False:
		return value.Bool()
	case gjson.Number:
		if !strings.ContainsAny(value.Raw, ".eE") {
			if n, err := strconv.ParseInt(value.Raw, 10, 64); err == nil {
				return n
			}
		}
		return value.Float()
	case gjson.String:
		return stringFieldValue(value.Str)
	default:
		return OtherValue(value.Raw)
	}
}

// stringFieldValue decodes CakeMail timestamps and leaves other strings alone.
func stringFieldValue(s string) any {
	if len(s) != len(cakeMailTimeLayout) {
		return s
	}
	if s == cakeMailNullTime {
		return nil
	}
	if t, err := time.ParseInLocation(cakeMailTimeLayout, s, time.UTC); err == nil {
		return t
	}
	return s
}

// DataFromYAML reads a YAML mapping into Data with the same conversions as
// DataFromJSON.
func DataFromYAML(raw []byte) (Data, error) {
	var fields map[string]any
	if err := yaml.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse YAML data: %w", err)
	}
	if fields == nil {
		return nil, ErrInvalidData
	}

	data := make(Data, len(fields))
	for key, value := range fields {
		data[key] = yamlFieldValue(value)
	}
	return data, nil
}

func yamlFieldValue(value any) any {
	switch v := value.(type) {
	case int:
		return int64(v)
	case string:
		return stringFieldValue(v)
	case map[string]any, []any:
		out, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return OtherValue(strings.TrimSpace(string(out)))
	default:
		return v
	}
}

// LoadData parses field data, choosing YAML for .yaml/.yml names and JSON
// otherwise.
func LoadData(name string, raw []byte) (Data, error) {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return DataFromYAML(raw)
	}
	return DataFromJSON(raw)
}
