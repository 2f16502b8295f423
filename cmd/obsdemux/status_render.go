package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = map[statusKind]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

const (
	ansiReset   = "\x1b[0m"
	headerColor = "\x1b[34m"
	labelWidth  = 20
)

// statusPrinter writes aligned "label: [KIND] message" lines grouped under
// section headers, colorized when the output is a terminal.
type statusPrinter struct {
	out      io.Writer
	colorize bool
	started  bool
}

func newStatusPrinter(out io.Writer) *statusPrinter {
	return &statusPrinter{out: out, colorize: shouldColorize(out)}
}

func (p *statusPrinter) section(title string) {
	if p.started {
		fmt.Fprintln(p.out)
	}
	p.started = true
	head := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", len(head))
	fmt.Fprintln(p.out, p.paint(headerColor, head))
	fmt.Fprintln(p.out, p.paint(headerColor, rule))
}

func (p *statusPrinter) line(label string, kind statusKind, message string) {
	fmt.Fprintln(p.out, p.paint(statusStyles[kind].color, formatStatusLine(label, kind, message)))
}

func (p *statusPrinter) paint(color, text string) string {
	if !p.colorize {
		return text
	}
	return color + text + ansiReset
}

func formatStatusLine(label string, kind statusKind, message string) string {
	tag := "[" + statusStyles[kind].label + "]"
	if message != "" {
		tag += " " + message
	}
	return fmt.Sprintf("  %-*s %s", labelWidth, label+":", tag)
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
