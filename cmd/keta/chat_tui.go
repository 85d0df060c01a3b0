// Copyright (C) 2026 Keta Health (engineering@ketahealth.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ketahealth/keta/cmd/keta/internal/conversation"
	"github.com/ketahealth/keta/pkg/ux"
)

// sendDoneMsg signals that an in-flight send has resolved
type sendDoneMsg struct {
	err error
}

// chatModel is the full-screen chat interface
type chatModel struct {
	pipeline *conversation.Pipeline
	username string

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	styles   ux.Styles

	waiting bool
	alert   string
	width   int
	height  int
	ready   bool
}

func newChatModel(pipeline *conversation.Pipeline, username string) chatModel {
	ta := textarea.New()
	ta.Placeholder = "Ask about ketamine therapy..."
	ta.Prompt = "│ "
	ta.SetHeight(2)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.MiniDot))
	sp.Style = lipgloss.NewStyle().Foreground(ux.ColorSky)

	return chatModel{
		pipeline: pipeline,
		username: username,
		textarea: ta,
		spinner:  sp,
		styles:   ux.DefaultStyles(),
	}
}

func (m chatModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var taCmd, vpCmd tea.Cmd
	m.textarea, taCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		headerHeight := lipgloss.Height(m.headerView())
		m.textarea.SetWidth(msg.Width - 2)
		vpHeight := msg.Height - headerHeight - m.textarea.Height() - 3
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.refreshTranscript()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			content := strings.TrimSpace(m.textarea.Value())
			if content == "" || m.waiting {
				return m, tea.Batch(taCmd, vpCmd)
			}
			if isExitCommand(content) {
				return m, tea.Quit
			}
			m.textarea.Reset()
			m.waiting = true
			m.alert = ""

			// Send appends the user turn before the request resolves,
			// but it runs on the command goroutine; the spinner ticks
			// re-render the transcript so the turn shows while waiting.
			cmd := func() tea.Msg {
				return sendDoneMsg{err: m.pipeline.Send(context.Background(), content)}
			}
			return m, tea.Batch(taCmd, vpCmd, m.spinner.Tick, cmd)
		}

	case sendDoneMsg:
		m.waiting = false
		if msg.err != nil {
			m.alert = conversation.AlertText
		}
		m.refreshTranscript()

	case spinner.TickMsg:
		if m.waiting {
			m.refreshTranscript()
			var spCmd tea.Cmd
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, tea.Batch(taCmd, vpCmd, spCmd)
		}
	}

	return m, tea.Batch(taCmd, vpCmd)
}

func (m *chatModel) refreshTranscript() {
	var b strings.Builder
	for _, msg := range m.pipeline.Messages() {
		switch msg.Role {
		case conversation.RoleUser:
			b.WriteString(m.styles.Prompt.Render("You"))
		default:
			b.WriteString(m.styles.Header.Render("Assistant"))
		}
		b.WriteString("\n")
		b.WriteString(wrap(msg.Content, m.viewport.Width-2))
		b.WriteString("\n\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m chatModel) headerView() string {
	who := "anonymous"
	if m.username != "" {
		who = m.username
	}
	title := m.styles.Title.Render(ux.WelcomeText)
	sub := m.styles.Muted.Render(fmt.Sprintf("%s · %s", ux.SubtitleText, who))
	return lipgloss.JoinVertical(lipgloss.Left, title, sub)
}

func (m chatModel) View() string {
	if !m.ready {
		return "starting..."
	}

	status := m.styles.Muted.Render("enter to send · esc to quit")
	if m.waiting {
		status = m.spinner.View() + " " + m.styles.Muted.Render("thinking...")
	}
	if m.alert != "" {
		status = m.styles.Error.Render(m.alert)
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s",
		m.headerView(),
		m.viewport.View(),
		m.textarea.View(),
		status,
	)
}

// wrap soft-wraps text to width, preserving existing line breaks.
// Operates on runes so a multibyte character is never split.
func wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		runes := []rune(line)
		for len(runes) > width {
			cut := width
			for i := width; i > 0; i-- {
				if runes[i-1] == ' ' {
					cut = i - 1
					break
				}
			}
			if cut == 0 {
				cut = width
			}
			out = append(out, string(runes[:cut]))
			runes = runes[cut:]
			for len(runes) > 0 && runes[0] == ' ' {
				runes = runes[1:]
			}
		}
		out = append(out, string(runes))
	}
	return strings.Join(out, "\n")
}
