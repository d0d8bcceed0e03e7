// Package report renders scores, summaries, and diagnostics for the CLI and
// the HTTP API.
package report

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// Format is an output encoding.
type Format string

// Supported formats.
const (
	Table Format = "table"
	CSV   Format = "csv"
	JSON  Format = "json"
	YAML  Format = "yaml"
	XLSX  Format = "xlsx"
)

// ErrUnsupportedFormat is returned for formats a writer cannot produce.
var ErrUnsupportedFormat = eris.New("report: unsupported format")

// ParseFormat resolves a format name. Blank means table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return Table, nil
	case Table, CSV, JSON, YAML, XLSX:
		return f, nil
	case "yml":
		return YAML, nil
	default:
		return "", eris.Wrapf(ErrUnsupportedFormat, "report: format %q", s)
	}
}

// FormatForPath infers a format from an output file extension, falling back
// to def.
func FormatForPath(path string, def Format) Format {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return def
	}
	if f, err := ParseFormat(path[i+1:]); err == nil {
		return f
	}
	return def
}

// printer formats table numbers with thousands separators.
var printer = message.NewPrinter(language.English)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "report: encode json")
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "report: encode yaml")
	}
	return eris.Wrap(enc.Close(), "report: close yaml")
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
