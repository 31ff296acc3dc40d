// Package output renders command results as tables, JSON or YAML.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Format is the value of the --output flag.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

var formatNames = map[string]Format{
	"":      FormatTable,
	"table": FormatTable,
	"json":  FormatJSON,
	"yaml":  FormatYAML,
	"yml":   FormatYAML,
}

// ParseFormat accepts table, json and yaml (or yml) in any case. An empty
// value is table.
func ParseFormat(s string) (Format, error) {
	if f, ok := formatNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return f, nil
	}
	return "", fmt.Errorf("invalid output format %q: want table, json or yaml", s)
}

func (f Format) String() string {
	return string(f)
}

// ansi color codes for status lines
const (
	green  = "32"
	yellow = "33"
)

// Printer writes command results in one format.
type Printer struct {
	out    io.Writer
	format Format
	color  bool
}

// NewPrinter returns a Printer for out. Colors are used only when color is
// set, NO_COLOR is unset and out is a terminal.
func NewPrinter(out io.Writer, format Format, color bool) *Printer {
	return &Printer{out: out, format: format, color: color && colorTerminal(out)}
}

func colorTerminal(w io.Writer) bool {
	if _, off := os.LookupEnv("NO_COLOR"); off {
		return false
	}
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func (p *Printer) Format() Format {
	return p.format
}

// Print writes data. JSON and YAML encode data itself with its JSON field
// names. A table comes from table or, when table is nil, from data if it is
// a TableRenderer; anything else falls back to JSON.
func (p *Printer) Print(data any, table TableRenderer) error {
	switch p.format {
	case FormatJSON:
		return PrintJSON(p.out, data)
	case FormatYAML:
		return PrintWireYAML(p.out, data)
	case FormatTable:
	default:
		return fmt.Errorf("unknown format: %s", p.format)
	}

	if table == nil {
		r, ok := data.(TableRenderer)
		if !ok {
			return PrintJSON(p.out, data)
		}
		table = r
	}
	return PrintTable(p.out, table)
}

// Success prints a status line, green on a terminal.
func (p *Printer) Success(msg string) {
	p.line(green, msg)
}

// Warning prints a status line, yellow on a terminal.
func (p *Printer) Warning(msg string) {
	p.line(yellow, msg)
}

func (p *Printer) line(color, msg string) {
	if p.color {
		msg = "\033[" + color + "m" + msg + "\033[0m"
	}
	_, _ = fmt.Fprintln(p.out, msg)
}
