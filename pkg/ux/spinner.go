// Copyright (C) 2026 Keta Health (engineering@ketahealth.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// SpinnerType identifies a spinner animation
type SpinnerType string

const (
	SpinnerDots  SpinnerType = "dots"
	SpinnerLine  SpinnerType = "line"
	SpinnerPulse SpinnerType = "pulse"
)

var spinnerFrames = map[SpinnerType][]string{
	SpinnerDots:  {"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	SpinnerLine:  {"|", "/", "-", "\\"},
	SpinnerPulse: {"●", "◉", "○", "◉"},
}

// Spinner displays an animated progress indicator on the terminal
type Spinner struct {
	kind    SpinnerType
	message string
	stop    chan struct{}
	done    sync.WaitGroup
	mu      sync.Mutex
	active  bool
}

// NewSpinner creates a spinner with the given message
func NewSpinner(kind SpinnerType, message string) *Spinner {
	return &Spinner{
		kind:    kind,
		message: message,
	}
}

// Start begins the spinner animation. In machine mode the message is
// printed once with no animation.
func (s *Spinner) Start() {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Println(s.message)
		return
	}

	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.stop = make(chan struct{})
	s.mu.Unlock()

	frames := spinnerFrames[s.kind]
	if len(frames) == 0 {
		frames = spinnerFrames[SpinnerDots]
	}

	s.done.Add(1)
	go func() {
		defer s.done.Done()
		ticker := time.NewTicker(90 * time.Millisecond)
		defer ticker.Stop()
		i := 0
		for {
			select {
			case <-s.stop:
				fmt.Fprint(os.Stdout, "\r\033[K")
				return
			case <-ticker.C:
				frame := frames[i%len(frames)]
				fmt.Fprintf(os.Stdout, "\r%s %s", DefaultStyles().Info.Render(frame), s.message)
				i++
			}
		}
	}()
}

// Stop halts the animation and clears the line
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	close(s.stop)
	s.mu.Unlock()
	s.done.Wait()
}

// UpdateMessage changes the message shown next to the spinner
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}
