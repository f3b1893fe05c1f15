package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// collectVariables merges an optional .env file with key=value pairs.
// Pairs win over the file; a bare key sets an empty value.
func collectVariables(envFile string, extraVars []string) (map[string]string, error) {
	vars := make(map[string]string)

	if envFile != "" {
		fileVars, err := godotenv.Read(envFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
		for k, v := range fileVars {
			vars[k] = v
		}
	}

	for _, ev := range extraVars {
		parts := strings.SplitN(ev, "=", 2)
		switch {
		case len(parts) == 2 && parts[0] != "":
			vars[parts[0]] = parts[1]
		case len(parts) == 1 && parts[0] != "":
			vars[parts[0]] = ""
		default:
			return nil, fmt.Errorf("invalid variable %q, expected key=value", ev)
		}
	}

	return vars, nil
}

// promptForVariable prompts the user to enter a value for a variable
func promptForVariable(in *bufio.Reader, out io.Writer, name string) (string, error) {
	fmt.Fprintf(out, "Enter value for '%s': ", name)
	value, err := in.ReadString('\n')
	if err != nil && !(err == io.EOF && value != "") {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

// isInteractive checks if stdin is a terminal (not piped)
func isInteractive() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// isTerminal reports whether w is a character device
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
