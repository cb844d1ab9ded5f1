package main

import "github.com/charmbracelet/lipgloss"

// Status glyphs — convey meaning without relying on color alone.
const (
	glyphSucceeded = "✓"
	glyphIssues    = "!"
	glyphFailed    = "✗"
	glyphSkipped   = "⏭"
	glyphRunning   = "▸"
)

var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorBlue   = lipgloss.Color("39")
	colorDim    = lipgloss.Color("240")
)

var (
	styleSucceeded = lipgloss.NewStyle().Foreground(colorGreen)
	styleIssues    = lipgloss.NewStyle().Foreground(colorYellow)
	styleFailed    = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	styleSkipped   = lipgloss.NewStyle().Foreground(colorDim)
	styleRunning   = lipgloss.NewStyle().Foreground(colorBlue)
	styleHeader    = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	styleDim       = lipgloss.NewStyle().Foreground(colorDim)
)

// statusGlyph renders a pipeline status string with its glyph and color.
func statusGlyph(status string) string {
	switch status {
	case "Succeeded":
		return styleSucceeded.Render(glyphSucceeded + " " + status)
	case "SucceededWithIssues":
		return styleIssues.Render(glyphIssues + " " + status)
	case "Failed":
		return styleFailed.Render(glyphFailed + " " + status)
	case "Skipped":
		return styleSkipped.Render(glyphSkipped + " " + status)
	default:
		return status
	}
}
