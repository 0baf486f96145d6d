package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Terminal seams, replaced in tests.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// ErrEmptyInput is returned when a required prompt gets a blank answer.
var ErrEmptyInput = errors.New("empty input")

// Prompt prints "label: " to w and reads one line from reader, trimmed.
// A final line without a newline is still returned.
func Prompt(reader *bufio.Reader, label string, w io.Writer) (string, error) {
	if _, err := fmt.Fprintf(w, "%s: ", label); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// PromptPassword asks for a secret. On a terminal the input is not echoed;
// piped input (scripts, tests of the binary) is read as a plain line.
// The caller wipes the returned slice.
func PromptPassword(reader *bufio.Reader, label string, w io.Writer) ([]byte, error) {
	if _, err := fmt.Fprintf(w, "%s: ", label); err != nil {
		return nil, err
	}

	var pw []byte
	fd := int(os.Stdin.Fd())
	if isTerminal(fd) {
		b, err := readPassword(fd)
		fmt.Fprintln(w)
		if err != nil {
			return nil, err
		}
		pw = b
	} else {
		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
			return nil, err
		}
		pw = []byte(strings.TrimRight(line, "\r\n"))
	}

	if len(pw) == 0 {
		return nil, fmt.Errorf("%s: %w", strings.ToLower(label), ErrEmptyInput)
	}
	return pw, nil
}

func required(label, v string) error {
	if v == "" {
		return fmt.Errorf("%s: %w", strings.ToLower(label), ErrEmptyInput)
	}
	return nil
}
