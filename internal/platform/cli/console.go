package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	bulletStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// ConsoleUI implements the operator-facing side of the release flow
// on a terminal.
type ConsoleUI struct {
	out io.Writer
	in  *bufio.Reader
}

// NewConsoleUI creates a terminal UI reading confirmations from in.
func NewConsoleUI(out io.Writer, in io.Reader) *ConsoleUI {
	return &ConsoleUI{out: out, in: bufio.NewReader(in)}
}

// Say prints a progress line.
func (u *ConsoleUI) Say(format string, args ...interface{}) {
	fmt.Fprintf(u.out, "%s %s\n", bulletStyle.Render("*"), fmt.Sprintf(format, args...))
}

// Confirm asks a yes/no question, returning def on an empty answer.
// An unreadable stdin declines, so a non-interactive run never
// answers yes on its own.
func (u *ConsoleUI) Confirm(prompt string, def bool) bool {
	suffix := "[y/N]"
	if def {
		suffix = "[Y/n]"
	}

	for {
		fmt.Fprintf(u.out, "%s %s ", promptStyle.Render(prompt), suffix)
		line, err := u.in.ReadString('\n')
		if err != nil {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "":
			return def
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
	}
}

// Edit opens the operator's editor on the initial text and returns
// the edited result.
func (u *ConsoleUI) Edit(initial string) (string, error) {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	f, err := os.CreateTemp("", "reml-notes-*.md")
	if err != nil {
		return "", err
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.WriteString(initial); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	cmd := exec.Command(editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("editor %s failed: %w", editor, err)
	}

	edited, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(edited), nil
}
