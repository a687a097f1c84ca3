// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the flightload CLI.
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // Deep teal - borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // Slate - muted text, borders

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box        lipgloss.Style
	WarningBox lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle:  lipgloss.NewStyle().Bold(true).Foreground(ColorTealPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// Printer writes styled lines at a personality level.
//
// Description:
//
//	Normal output goes to Out. In machine mode warnings and errors go to
//	Err with a plain prefix and decorative lines are dropped, so Out stays
//	parseable.
//
// Thread Safety: Not safe for concurrent use.
type Printer struct {
	Out   io.Writer
	Err   io.Writer
	Level PersonalityLevel
}

// NewPrinter returns a Printer at the current personality level.
func NewPrinter(out, errOut io.Writer) *Printer {
	return &Printer{Out: out, Err: errOut, Level: GetPersonality().Level}
}

func (p *Printer) machine() bool { return p.Level == PersonalityMachine }

// Title prints a styled title. Nothing in machine mode.
func (p *Printer) Title(text string) {
	if p.machine() {
		return
	}
	fmt.Fprintln(p.Out, Styles.Title.Render(text))
}

// Section prints a section heading preceded by a blank line.
func (p *Printer) Section(text string) {
	if p.machine() {
		fmt.Fprintf(p.Out, "\n%s:\n", text)
		return
	}
	fmt.Fprintf(p.Out, "\n%s\n", Styles.Subtitle.Render(text))
}

// Bullet prints one indented list item.
func (p *Printer) Bullet(text string) {
	switch p.Level {
	case PersonalityMachine:
		fmt.Fprintf(p.Out, "- %s\n", text)
	default:
		fmt.Fprintf(p.Out, "  %s %s\n", IconBullet.Render(), text)
	}
}

// Success prints a success message with checkmark
func (p *Printer) Success(text string) {
	switch p.Level {
	case PersonalityMachine:
		fmt.Fprintf(p.Out, "OK: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(p.Out, "%s %s\n", IconSuccess.Render(), text)
	default:
		fmt.Fprintf(p.Out, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning message
func (p *Printer) Warning(text string) {
	switch p.Level {
	case PersonalityMachine:
		fmt.Fprintf(p.Err, "WARN: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(p.Out, "%s %s\n", IconWarning.Render(), text)
	default:
		fmt.Fprintf(p.Out, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints an error message
func (p *Printer) Error(text string) {
	switch p.Level {
	case PersonalityMachine:
		fmt.Fprintf(p.Err, "ERROR: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(p.Out, "%s %s\n", IconError.Render(), text)
	default:
		fmt.Fprintf(p.Out, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Info prints an informational message
func (p *Printer) Info(text string) {
	if p.machine() {
		fmt.Fprintln(p.Out, text)
		return
	}
	fmt.Fprintf(p.Out, "%s %s\n", Styles.Muted.Render("│"), text)
}

// Muted prints secondary text. Nothing in machine mode.
func (p *Printer) Muted(text string) {
	if p.machine() {
		return
	}
	fmt.Fprintln(p.Out, Styles.Muted.Render(text))
}

// Hint prints a follow-up suggestion at the full level only.
func (p *Printer) Hint(text string) {
	if p.Level != PersonalityFull {
		return
	}
	fmt.Fprintf(p.Out, "%s %s\n", IconArrow.Render(), Styles.Muted.Render(text))
}

// Box prints lines in a rounded box
func (p *Printer) Box(title string, lines ...string) {
	if p.machine() {
		fmt.Fprintf(p.Out, "%s: %s\n", title, strings.Join(lines, "; "))
		return
	}
	body := Styles.Title.Render(title)
	if len(lines) > 0 {
		body += "\n" + strings.Join(lines, "\n")
	}
	fmt.Fprintln(p.Out, Styles.Box.Width(64).Render(body))
}

// WarningBox prints lines in a warning-styled box
func (p *Printer) WarningBox(title string, lines ...string) {
	if p.machine() {
		fmt.Fprintf(p.Err, "WARN %s: %s\n", title, strings.Join(lines, "; "))
		return
	}
	body := Styles.Warning.Bold(true).Render(title)
	if len(lines) > 0 {
		body += "\n" + strings.Join(lines, "\n")
	}
	fmt.Fprintln(p.Out, Styles.WarningBox.Width(64).Render(body))
}

// Summary prints a line of labelled counts, e.g. "7 paired  6 group".
func (p *Printer) Summary(pairs ...Count) {
	if p.machine() {
		parts := make([]string, len(pairs))
		for i, c := range pairs {
			parts[i] = fmt.Sprintf("%s=%d", strings.ReplaceAll(c.Label, " ", "_"), c.N)
		}
		fmt.Fprintf(p.Out, "SUMMARY: %s\n", strings.Join(parts, " "))
		return
	}
	parts := make([]string, len(pairs))
	for i, c := range pairs {
		n := Styles.Bold.Render(fmt.Sprintf("%d", c.N))
		if c.Bad && c.N > 0 {
			n = Styles.Error.Render(fmt.Sprintf("%d", c.N))
		}
		parts[i] = n + " " + Styles.Muted.Render(c.Label)
	}
	fmt.Fprintf(p.Out, "\n%s\n", strings.Join(parts, "  "))
}

// Count is one labelled number of a Summary line.
type Count struct {
	Label string
	N     int

	// Bad highlights a non-zero count as an error.
	Bad bool
}
