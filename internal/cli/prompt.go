package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vaultfm/vaultfm/internal/bulkops"
)

// newConfirmer returns the confirmation hook used by destructive commands.
// --yes answers every prompt; otherwise the prompt is read from the
// command's input. A non-interactive stdin without --yes declines.
func newConfirmer(cmd *cobra.Command) bulkops.Confirmer {
	return bulkops.ConfirmFunc(func(ctx context.Context, prompt string) (bool, error) {
		if assumeYes {
			return true, nil
		}
		in := cmd.InOrStdin()
		if f, ok := in.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
			return false, fmt.Errorf("%s: refusing to proceed without a terminal, pass --yes", prompt)
		}
		return promptYesNo(in, cmd.ErrOrStderr(), prompt)
	})
}

// promptYesNo asks a y/N question. Anything but y or yes is a no.
func promptYesNo(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	reader := bufio.NewReader(in)
	response, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read response: %w", err)
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes", nil
}

// promptString reads one line, returning defaultValue when the line is empty.
func promptString(reader *bufio.Reader, out io.Writer, prompt, defaultValue string) (string, error) {
	if defaultValue != "" {
		fmt.Fprintf(out, "%s [%s]: ", prompt, defaultValue)
	} else {
		fmt.Fprintf(out, "%s: ", prompt)
	}
	input, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultValue, nil
	}
	return input, nil
}

// promptSecret reads a value without echo when stdin is a terminal.
func promptSecret(reader *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprintf(out, "%s: ", prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read secret: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	input, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
