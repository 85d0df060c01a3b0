// Copyright (C) 2026 Keta Health (engineering@ketahealth.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ====== Color Palette ======

var (
	// Primary colors
	ColorTeal     = lipgloss.Color("#2DD4BF") // Primary accent, headers
	ColorSky      = lipgloss.Color("#38BDF8") // Info, links
	ColorGreen    = lipgloss.Color("#4ADE80") // Success states
	ColorAmber    = lipgloss.Color("#FBBF24") // Warnings
	ColorRose     = lipgloss.Color("#FB7185") // Errors
	ColorLavender = lipgloss.Color("#C4B5FD") // Assistant responses

	// Neutral colors
	ColorWhite = lipgloss.Color("#F8FAFC")
	ColorGray  = lipgloss.Color("#94A3B8")
	ColorDim   = lipgloss.Color("#64748B")
)

// ====== Styles ======

// Styles holds all the lipgloss styles used across the CLI
type Styles struct {
	Title     lipgloss.Style
	Header    lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Info      lipgloss.Style
	Muted     lipgloss.Style
	Assistant lipgloss.Style
	Prompt    lipgloss.Style
	Box       lipgloss.Style
}

// DefaultStyles returns the default style set
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorTeal),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSky),
		Success: lipgloss.NewStyle().
			Foreground(ColorGreen),
		Warning: lipgloss.NewStyle().
			Foreground(ColorAmber),
		Error: lipgloss.NewStyle().
			Foreground(ColorRose),
		Info: lipgloss.NewStyle().
			Foreground(ColorSky),
		Muted: lipgloss.NewStyle().
			Foreground(ColorDim),
		Assistant: lipgloss.NewStyle().
			Foreground(ColorLavender),
		Prompt: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorTeal),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorTeal).
			Padding(0, 1),
	}
}

// ====== Icons ======

// Icon represents a semantic icon with fallback text
type Icon struct {
	Symbol   string
	Fallback string
}

var (
	IconSuccess = Icon{Symbol: "✓", Fallback: "[OK]"}
	IconError   = Icon{Symbol: "✗", Fallback: "[ERROR]"}
	IconWarning = Icon{Symbol: "⚠", Fallback: "[WARN]"}
	IconInfo    = Icon{Symbol: "ℹ", Fallback: "[INFO]"}
	IconUpload  = Icon{Symbol: "↑", Fallback: "[UP]"}
	IconDoc     = Icon{Symbol: "▤", Fallback: "[DOC]"}
	IconUser    = Icon{Symbol: "›", Fallback: ">"}
	IconLock    = Icon{Symbol: "🔒", Fallback: "[AUTH]"}
)

// Render returns the icon appropriate for the current personality level
func (i Icon) Render() string {
	p := GetPersonality()
	if p.Level == PersonalityMachine {
		return i.Fallback
	}
	return i.Symbol
}

// ====== Output Helpers ======

// Title renders a title string with the current personality
func Title(text string) string {
	p := GetPersonality()
	if p.Level == PersonalityMachine {
		return text
	}
	return DefaultStyles().Title.Render(text)
}

// Success renders a success message
func Success(text string) string {
	p := GetPersonality()
	if p.Level == PersonalityMachine {
		return fmt.Sprintf("%s %s", IconSuccess.Fallback, text)
	}
	return DefaultStyles().Success.Render(fmt.Sprintf("%s %s", IconSuccess.Render(), text))
}

// Warning renders a warning message
func Warning(text string) string {
	p := GetPersonality()
	if p.Level == PersonalityMachine {
		return fmt.Sprintf("%s %s", IconWarning.Fallback, text)
	}
	return DefaultStyles().Warning.Render(fmt.Sprintf("%s %s", IconWarning.Render(), text))
}

// Error renders an error message
func Error(text string) string {
	p := GetPersonality()
	if p.Level == PersonalityMachine {
		return fmt.Sprintf("%s %s", IconError.Fallback, text)
	}
	return DefaultStyles().Error.Render(fmt.Sprintf("%s %s", IconError.Render(), text))
}

// Info renders an informational message
func Info(text string) string {
	p := GetPersonality()
	if p.Level == PersonalityMachine {
		return fmt.Sprintf("%s %s", IconInfo.Fallback, text)
	}
	return DefaultStyles().Info.Render(fmt.Sprintf("%s %s", IconInfo.Render(), text))
}

// Muted renders de-emphasized text
func Muted(text string) string {
	p := GetPersonality()
	if p.Level == PersonalityMachine {
		return text
	}
	return DefaultStyles().Muted.Render(text)
}

// Divider returns a horizontal divider sized to the given width
func Divider(width int) string {
	if width <= 0 {
		width = 60
	}
	p := GetPersonality()
	if p.Level == PersonalityMachine {
		return strings.Repeat("-", width)
	}
	return DefaultStyles().Muted.Render(strings.Repeat("─", width))
}
