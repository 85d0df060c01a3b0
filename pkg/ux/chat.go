// Copyright (C) 2026 Keta Health (engineering@ketahealth.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Fixed copy shown under the chat header. Kept verbatim so transcripts
// stay comparable across client versions.
const (
	WelcomeText    = "Welcome to Ketamine Therapy AI"
	SubtitleText   = "Your trusted source for ketamine therapy information"
	DisclaimerText = "This assistant provides educational information only and is not a substitute for professional medical advice."
)

// ChatUI defines the interface for chat session rendering.
//
// # Description
//
//	Abstracts terminal output for interactive chat so the runner can be
//	tested without a TTY. Implementations decide how much decoration to
//	apply based on the active personality level.
type ChatUI interface {
	// Header prints the session banner, including the signed-in identity
	// when username is non-empty.
	Header(username string)

	// Prompt prints the input prompt prefix for the user's next message.
	Prompt()

	// UserEcho re-renders the user's submitted message above the reply.
	UserEcho(text string)

	// Response renders an assistant reply.
	Response(text string)

	// Thinking prints a transient waiting indicator line.
	Thinking()

	// Error renders a chat-level error message.
	Error(msg string)

	// SessionEnd prints the goodbye line when the user exits.
	SessionEnd(messageCount int)
}

// ====== Terminal Implementation ======

type terminalChatUI struct {
	out    io.Writer
	styles Styles
}

// NewChatUI creates a ChatUI writing to stdout
func NewChatUI() ChatUI {
	return NewChatUIWithWriter(os.Stdout)
}

// NewChatUIWithWriter creates a ChatUI writing to the given writer.
// Used in tests to capture output.
func NewChatUIWithWriter(w io.Writer) ChatUI {
	return &terminalChatUI{
		out:    w,
		styles: DefaultStyles(),
	}
}

func (t *terminalChatUI) write(s string) {
	fmt.Fprint(t.out, s)
}

func (t *terminalChatUI) writeln(s string) {
	fmt.Fprintln(t.out, s)
}

func (t *terminalChatUI) Header(username string) {
	p := GetPersonality()
	if p.Level == PersonalityMachine {
		t.writeln(WelcomeText)
		if username != "" {
			t.writeln("signed in as " + username)
		}
		return
	}

	t.writeln("")
	t.writeln(t.styles.Title.Render(WelcomeText))
	t.writeln(t.styles.Muted.Render(SubtitleText))
	if username != "" {
		t.writeln(t.styles.Info.Render(fmt.Sprintf("Signed in as %s", username)))
	} else {
		t.writeln(t.styles.Muted.Render("Chatting anonymously. Sign in to save your documents."))
	}
	if p.ShowDisclaimer {
		t.writeln(t.styles.Muted.Render(DisclaimerText))
	}
	t.writeln(Divider(60))
	if p.Level == PersonalityFull {
		t.writeln(t.styles.Muted.Render("Type your question, or /exit to leave."))
	}
	t.writeln("")
}

func (t *terminalChatUI) Prompt() {
	p := GetPersonality()
	if p.Level == PersonalityMachine {
		t.write("> ")
		return
	}
	t.write(t.styles.Prompt.Render(IconUser.Render() + " You: "))
}

func (t *terminalChatUI) UserEcho(text string) {
	// The prompt already echoed input in an interactive terminal; this path
	// exists for piped input where readline echo never happened.
	p := GetPersonality()
	if p.Level != PersonalityMachine {
		return
	}
	t.writeln("you: " + text)
}

func (t *terminalChatUI) Response(text string) {
	p := GetPersonality()
	if p.Level == PersonalityMachine {
		t.writeln(text)
		return
	}
	t.writeln("")
	t.writeln(t.styles.Header.Render("Assistant:"))
	for _, line := range strings.Split(text, "\n") {
		t.writeln(t.styles.Assistant.Render("  " + line))
	}
	t.writeln("")
}

func (t *terminalChatUI) Thinking() {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	t.writeln(t.styles.Muted.Render("  …thinking"))
}

func (t *terminalChatUI) Error(msg string) {
	t.writeln(Error(msg))
}

func (t *terminalChatUI) SessionEnd(messageCount int) {
	p := GetPersonality()
	if p.Level == PersonalityMachine {
		t.writeln(fmt.Sprintf("session ended: %d messages", messageCount))
		return
	}
	t.writeln("")
	t.writeln(t.styles.Muted.Render(fmt.Sprintf("Session ended after %d messages. Take care.", messageCount)))
}
