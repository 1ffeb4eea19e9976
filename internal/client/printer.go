package client

import (
	"fmt"
	"io"
	"sync"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// Printer serializes terminal output from the input and reader loops.
type Printer struct {
	mu      sync.Mutex
	w       io.Writer
	colours bool
}

// NewPrinter writes to w, colouring output when colours is set.
func NewPrinter(w io.Writer, colours bool) *Printer {
	return &Printer{w: w, colours: colours}
}

func (p *Printer) render(style color.Style, line string) string {
	if !p.colours {
		return line
	}
	return style.Render(line)
}

func (p *Printer) println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.w, line)
}

// Line prints plain output such as help text.
func (p *Printer) Line(line string) {
	p.println(line)
}

// Notice prints a system message or a local status line.
func (p *Printer) Notice(line string) {
	p.println(p.render(color.New(color.FgYellow), line))
}

// Error prints a failure.
func (p *Printer) Error(line string) {
	p.println(p.render(color.New(color.FgRed), line))
}

// Chat prints a room message.
func (p *Printer) Chat(sender, text string) {
	p.println(fmt.Sprintf("[%s]: %s", p.render(color.New(color.FgGreen, color.OpBold), sender), text))
}

// Table prints key/value rows aligned in two columns.
func (p *Printer) Table(rows [][]string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	table := tablewriter.NewWriter(p.w)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
}
