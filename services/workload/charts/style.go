// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package charts

import (
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Palette selects the chart colors.
type Palette string

const (
	// PaletteGrayscale is the print-friendly default.
	PaletteGrayscale Palette = "grayscale"

	// PaletteColor is a qualitative color palette for screens.
	PaletteColor Palette = "color"
)

// Format is the image encoding.
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

// Style is the presentation option shared by every chart of a run.
type Style struct {
	Palette Palette `yaml:"palette" json:"palette" validate:"omitempty,oneof=grayscale color"`
	Format  Format  `yaml:"format" json:"format" validate:"omitempty,oneof=png svg"`
	Width   int     `yaml:"width" json:"width" validate:"omitempty,min=200,max=4000"`
	Height  int     `yaml:"height" json:"height" validate:"omitempty,min=150,max=4000"`
}

// DefaultStyle returns grayscale 800x500 PNG.
func DefaultStyle() Style {
	return Style{Palette: PaletteGrayscale, Format: FormatPNG, Width: 800, Height: 500}
}

func (s Style) withDefaults() Style {
	d := DefaultStyle()
	if s.Palette == "" {
		s.Palette = d.Palette
	}
	if s.Format == "" {
		s.Format = d.Format
	}
	if s.Width == 0 {
		s.Width = d.Width
	}
	if s.Height == 0 {
		s.Height = d.Height
	}
	return s
}

// Extension returns the file extension without the dot.
func (s Style) Extension() string {
	return string(s.withDefaults().Format)
}

// ContentType returns the MIME type of the encoded chart.
func (s Style) ContentType() string {
	if s.withDefaults().Format == FormatSVG {
		return "image/svg+xml"
	}
	return "image/png"
}

func (s Style) provider() (chart.RendererProvider, error) {
	switch s.Format {
	case FormatPNG:
		return chart.PNG, nil
	case FormatSVG:
		return chart.SVG, nil
	default:
		return nil, fmt.Errorf("unknown chart format %q", s.Format)
	}
}

// theme holds the resolved colors of a palette.
type theme struct {
	phaseFills  []drawing.Color
	violinFills []drawing.Color
	barFills    []drawing.Color
	stroke      drawing.Color
	point       drawing.Color
	subjectLine drawing.Color
}

func (s Style) theme() theme {
	if s.Palette == PaletteColor {
		return theme{
			phaseFills:  hexColors("1B9E77", "D95F02", "7570B3"),
			violinFills: hexColors("1B9E77", "7570B3"),
			barFills:    hexColors("1B9E77", "D95F02"),
			stroke:      drawing.ColorFromHex("333333"),
			point:       drawing.ColorFromHex("333333"),
			subjectLine: drawing.Color{R: 31, G: 120, B: 180, A: 102},
		}
	}
	return theme{
		phaseFills:  hexColors("444444", "888888", "CCCCCC"),
		violinFills: hexColors("666666", "CCCCCC"),
		barFills:    hexColors("555555", "BBBBBB"),
		stroke:      drawing.ColorFromHex("222222"),
		point:       drawing.ColorFromHex("222222"),
		subjectLine: drawing.Color{R: 128, G: 128, B: 128, A: 102},
	}
}

func hexColors(hex ...string) []drawing.Color {
	out := make([]drawing.Color, len(hex))
	for i, h := range hex {
		out[i] = drawing.ColorFromHex(h)
	}
	return out
}

func pick(colors []drawing.Color, i int) drawing.Color {
	return colors[i%len(colors)]
}
