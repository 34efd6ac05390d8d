package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/haukened/quill/internal/config"
)

// NewPasswordEnv supplies the new password to rekey without a prompt.
const NewPasswordEnv = config.EnvPrefix + "NEW_PASSWORD"

var errNoTerminal = errors.New("no password given: set " + config.PasswordEnv + ", use --password-stdin, or run in a terminal")

// readSecret prompts on stderr and reads without echo. Tests replace it.
var readSecret = func(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errNoTerminal
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

// lineReader hands out stdin line by line and then the remainder, so a
// password line and entry content can share one pipe.
type lineReader struct{ r *bufio.Reader }

func (l *lineReader) line() (string, error) {
	s, err := l.r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		if errors.Is(err, io.EOF) {
			return "", errors.New("stdin closed before a password line")
		}
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

func (c *cli) stdinReader() *lineReader {
	if c.stdin == nil {
		c.stdin = &lineReader{r: bufio.NewReader(c.in)}
	}
	return c.stdin
}

// password returns the journal password from the environment, the first
// stdin line, or a prompt, in that order.
func (c *cli) password() (string, error) {
	if pw := os.Getenv(config.PasswordEnv); pw != "" {
		return pw, nil
	}
	var (
		pw  string
		err error
	)
	if c.passwordStdin {
		pw, err = c.stdinReader().line()
	} else {
		pw, err = readSecret("Password: ")
	}
	if err != nil {
		return "", err
	}
	if pw == "" {
		return "", errors.New("password must not be empty")
	}
	return pw, nil
}

// newPassword returns the replacement password for rekey. Prompted passwords
// are asked twice.
func (c *cli) newPassword() (string, error) {
	if pw := os.Getenv(NewPasswordEnv); pw != "" {
		return pw, nil
	}
	if c.passwordStdin {
		pw, err := c.stdinReader().line()
		if err != nil {
			return "", err
		}
		if pw == "" {
			return "", errors.New("new password must not be empty")
		}
		return pw, nil
	}
	first, err := readSecret("New password: ")
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", errors.New("new password must not be empty")
	}
	again, err := readSecret("Repeat new password: ")
	if err != nil {
		return "", err
	}
	if first != again {
		return "", errors.New("passwords do not match")
	}
	return first, nil
}

// rest returns whatever stdin holds after any password lines.
func (c *cli) rest() (string, error) {
	b, err := io.ReadAll(c.stdinReader().r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
