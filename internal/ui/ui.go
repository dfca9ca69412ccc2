// Package ui implements the terminal front end: pickers and prompts built
// on bubbletea, and a playback status view fed by the session store.
// When stdin or stdout is not a terminal, pickers fall back to numbered
// line prompts so the CLI stays scriptable.
package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// ErrCancelled is returned when the user backs out of a prompt.
var ErrCancelled = errors.New("selection cancelled")

var stderr io.Writer = os.Stderr

// Interactive reports whether full-screen prompts can be used.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// Select presents items and returns the chosen index.
func Select(prompt string, items []string) (int, error) {
	if len(items) == 0 {
		return -1, fmt.Errorf("no items to select from")
	}
	if !Interactive() {
		return selectPlain(os.Stdin, stderr, prompt, items)
	}

	final, err := tea.NewProgram(newPicker(prompt, items), tea.WithAltScreen()).Run()
	if err != nil {
		return -1, fmt.Errorf("running picker: %w", err)
	}
	p := final.(picker)
	if p.chosen < 0 {
		return -1, ErrCancelled
	}
	return p.chosen, nil
}

// Input prompts for free text.
func Input(prompt string) (string, error) {
	if !Interactive() {
		return inputPlain(os.Stdin, stderr, prompt)
	}

	final, err := tea.NewProgram(newTextPrompt(prompt)).Run()
	if err != nil {
		return "", fmt.Errorf("running prompt: %w", err)
	}
	p := final.(textPrompt)
	if p.cancelled || p.value == "" {
		return "", ErrCancelled
	}
	return p.value, nil
}

// Confirm asks a yes/no question.
func Confirm(prompt string) (bool, error) {
	idx, err := Select(prompt, []string{"Yes", "No"})
	if err != nil {
		return false, err
	}
	return idx == 0, nil
}

// selectPlain lists items with 1-based numbers and reads a choice from r.
func selectPlain(r io.Reader, w io.Writer, prompt string, items []string) (int, error) {
	for i, item := range items {
		fmt.Fprintf(w, "%3d) %s\n", i+1, item)
	}
	sc := bufio.NewScanner(r)
	for {
		fmt.Fprintf(w, "%s [1-%d]: ", prompt, len(items))
		if !sc.Scan() {
			return -1, ErrCancelled
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || line == "q" {
			return -1, ErrCancelled
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(items) {
			fmt.Fprintf(w, "invalid choice %q\n", line)
			continue
		}
		return n - 1, nil
	}
}

func inputPlain(r io.Reader, w io.Writer, prompt string) (string, error) {
	fmt.Fprintf(w, "%s: ", prompt)
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		return "", ErrCancelled
	}
	v := strings.TrimSpace(sc.Text())
	if v == "" {
		return "", ErrCancelled
	}
	return v, nil
}
