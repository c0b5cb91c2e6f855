// Package render prints command results either as colored text or as a
// single JSON document.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

type Status int

const (
	StatusOK Status = iota
	StatusWarn
	StatusError
)

// Options select the output mode. In JSON mode only JSON documents are
// printed and all text output is dropped.
type Options struct {
	Color bool
	JSON  bool
}

// Detail is a key/value line printed below a status line
type Detail struct {
	Key   string
	Value string
}

// Item is one line of a status listing
type Item struct {
	Name       string
	Status     Status
	StatusText string
	Details    []Detail
}

type Printer struct {
	out     io.Writer
	options Options

	info   *color.Color
	ok     *color.Color
	warn   *color.Color
	fail   *color.Color
	header *color.Color
	detail *color.Color

	printed bool
}

func NewPrinter(out io.Writer, options Options) *Printer {
	p := &Printer{
		out:     out,
		options: options,
		info:    color.New(color.FgBlue),
		ok:      color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		fail:    color.New(color.FgRed),
		header:  color.New(color.Bold, color.Underline),
		detail:  color.New(color.FgHiBlack),
	}
	for _, c := range []*color.Color{p.info, p.ok, p.warn, p.fail, p.header, p.detail} {
		if options.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p *Printer) JSONMode() bool {
	return p.options.JSON
}

func (p *Printer) text(c *color.Color, format string, args ...interface{}) {
	if p.options.JSON {
		return
	}
	c.Fprintln(p.out, fmt.Sprintf(format, args...))
}

func (p *Printer) Infof(format string, args ...interface{}) { p.text(p.info, format, args...) }
func (p *Printer) OKf(format string, args ...interface{})   { p.text(p.ok, format, args...) }
func (p *Printer) Warnf(format string, args ...interface{}) { p.text(p.warn, format, args...) }
func (p *Printer) Failf(format string, args ...interface{}) { p.text(p.fail, format, args...) }

// Newline prints an empty line in text mode
func (p *Printer) Newline() {
	if !p.options.JSON {
		fmt.Fprintln(p.out)
	}
}

func (p *Printer) Header(title string) {
	if p.options.JSON {
		return
	}
	p.header.Fprintln(p.out, title)
	fmt.Fprintln(p.out)
}

func (p *Printer) statusColor(s Status) *color.Color {
	switch s {
	case StatusOK:
		return p.ok
	case StatusWarn:
		return p.warn
	default:
		return p.fail
	}
}

// Status prints the items with their status texts aligned
func (p *Printer) Status(items []Item) {
	if p.options.JSON {
		return
	}
	width := 0
	for _, item := range items {
		if len(item.Name) > width {
			width = len(item.Name)
		}
	}
	for _, item := range items {
		fmt.Fprintf(p.out, "%-*s  %s\n", width, item.Name, p.statusColor(item.Status).Sprint(item.StatusText))
		p.details(item.Details, "    ")
	}
}

// KeyValues prints one "key: value" line per detail
func (p *Printer) KeyValues(details []Detail) {
	if p.options.JSON {
		return
	}
	p.details(details, "")
}

func (p *Printer) details(details []Detail, indent string) {
	width := 0
	for _, d := range details {
		if len(d.Key) > width {
			width = len(d.Key)
		}
	}
	for _, d := range details {
		lines := strings.Split(strings.TrimRight(d.Value, "\n"), "\n")
		p.detail.Fprintf(p.out, "%s%-*s  %s\n", indent, width+1, d.Key+":", lines[0])
		for _, line := range lines[1:] {
			p.detail.Fprintf(p.out, "%s%-*s  %s\n", indent, width+1, "", line)
		}
	}
}

// Lines prints lines unformatted in text mode
func (p *Printer) Lines(lines []string) {
	if p.options.JSON {
		return
	}
	for _, line := range lines {
		fmt.Fprintln(p.out, line)
	}
}

// JSON prints v as indented JSON in JSON mode
func (p *Printer) JSON(v interface{}) error {
	if !p.options.JSON {
		return nil
	}
	p.printed = true
	return WriteJSON(p.out, v)
}

// Printed reports whether a JSON document has been written
func (p *Printer) Printed() bool {
	return p.printed
}

// WriteJSON prints v as indented JSON regardless of the mode
func WriteJSON(out io.Writer, v interface{}) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
