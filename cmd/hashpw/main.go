package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

const (
	// minPasswordLength is the shortest accepted password.
	minPasswordLength = 6
	defaultCost       = 12
)

var (
	errTooShort = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	errMismatch = errors.New("passwords do not match")
)

func main() {
	cost, err := costFromEnv(os.Getenv("BCRYPT_COST"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var password []byte
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err = promptTwice(os.Stdin, os.Stderr)
	} else {
		password, err = readLine(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	hash, err := hashPassword(password, cost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hash)
	fmt.Fprintln(os.Stderr, "Set ACCESS_PASSWORD_HASH to the value above to enable the password gate.")
}

// promptTwice reads the password and its confirmation without echo.
func promptTwice(in *os.File, out io.Writer) ([]byte, error) {
	fd := int(in.Fd())

	fmt.Fprint(out, "Password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}

	fmt.Fprint(out, "Confirm Password: ")
	confirm, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}

	if !bytes.Equal(password, confirm) {
		return nil, errMismatch
	}
	return password, nil
}

// readLine returns the first line of r without its line ending.
func readLine(r io.Reader) ([]byte, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

func hashPassword(password []byte, cost int) (string, error) {
	if len(password) < minPasswordLength {
		return "", errTooShort
	}
	hash, err := bcrypt.GenerateFromPassword(password, cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func costFromEnv(value string) (int, error) {
	if value == "" {
		return defaultCost, nil
	}
	cost, err := strconv.Atoi(value)
	if err != nil || cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return 0, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return cost, nil
}
