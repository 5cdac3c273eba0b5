package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/adalundhe/crews/core/credentials"
)

var apiKey string

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage provider authentication",
	Long:  `Store API keys for LLM providers and the answer service in ~/.crews/credentials.yaml.`,
}

var authSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Set the API key for a provider or tool",
	Long:  `Set the API key for openai, anthropic, gemini or exa. Without --api-key the key is read from the terminal without echo.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthSet,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which keys are configured",
	Long:  `Display which keys resolve from the environment or the credentials file.`,
	RunE:  runAuthStatus,
}

var authRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a stored key",
	Long:  `Remove a key from the credentials file. Environment variables are left alone.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthRemove,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authRemoveCmd)

	authSetCmd.Flags().StringVar(&apiKey, "api-key", "", "API key (prompted for if not provided)")
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	name := strings.ToLower(args[0])
	if !isValidCredential(name) {
		return invalidCredentialError(name)
	}

	key := apiKey
	if key == "" {
		var err error
		key, err = readKeyInteractive(cmd.InOrStdin(), cmd.ErrOrStderr(), name)
		if err != nil {
			return err
		}
	}
	if key == "" {
		return fmt.Errorf("no API key given for %s", name)
	}

	return saveCredential(cmd.OutOrStdout(), credentials.DefaultPath(), name, key)
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	printAuthStatus(cmd.OutOrStdout(), credentials.NewResolver())
	return nil
}

func runAuthRemove(cmd *cobra.Command, args []string) error {
	name := strings.ToLower(args[0])
	if !isValidCredential(name) {
		return invalidCredentialError(name)
	}
	return removeCredential(cmd.OutOrStdout(), credentials.DefaultPath(), name)
}

func isValidCredential(name string) bool {
	return credentials.IsKnown(name)
}

func invalidCredentialError(name string) error {
	return fmt.Errorf("invalid name: %s (valid: %s)", name, strings.Join(credentials.Known(), ", "))
}

// readKeyInteractive prompts for a key. A terminal gets a masked prompt;
// anything else is read as one line.
func readKeyInteractive(in io.Reader, prompt io.Writer, name string) (string, error) {
	fmt.Fprintf(prompt, "Enter API key for %s: ", name)

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		key, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		return strings.TrimSpace(string(key)), nil
	}

	key, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(key), nil
}

func printAuthStatus(w io.Writer, r *credentials.Resolver) {
	fmt.Fprintln(w, "Credential Status:")
	fmt.Fprintln(w, "------------------")

	for _, name := range credentials.Known() {
		status := "not configured"
		if key, err := r.Resolve(name); err != nil {
			status = "error: " + err.Error()
		} else if key != "" {
			status = "configured (" + credentials.NewSet(map[string]string{name: key}).Masked()[name] + ")"
		}
		fmt.Fprintf(w, "  %-10s %s\n", name+":", status)
	}
}

func saveCredential(w io.Writer, path, name, key string) error {
	if err := credentials.Save(path, name, key); err != nil {
		return err
	}
	fmt.Fprintf(w, "Credentials saved for %s\n", name)
	return nil
}

func removeCredential(w io.Writer, path, name string) error {
	removed, err := credentials.Remove(path, name)
	if err != nil {
		return err
	}
	if !removed {
		fmt.Fprintf(w, "No credentials found for %s\n", name)
		return nil
	}
	fmt.Fprintf(w, "Credentials removed for %s\n", name)
	return nil
}
