package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"flico/pkg/auth"
	"flico/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Flickr API credentials",
	Long: `Manage stored Flickr API keys.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation

FLICO_API_KEY or FLICKR_API_KEY in the environment take precedence over
stored accounts.`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store a Flickr API key securely",
	Long: `Store a Flickr API key and secret in the system keychain or an encrypted
file. The account is named "default" unless a name is given.`,
	Example: `  # Interactive login
  flico auth login

  # Store a second key under its own name
  flico auth login research`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [name]",
	Short: "Remove a stored account",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Long:  `List stored accounts with their keys masked.`,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		return err
	}

	name := auth.DefaultAccountName
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}

	reader := bufio.NewReader(os.Stdin)
	auth.ShowAPIKeyGuide(os.Stdout)

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("\nAccount '%s' already exists. Replace its key? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !ui.IsYes(input) {
			return nil
		}
	}

	fmt.Println("\nEnter your key pair (input is hidden):")
	fmt.Print("API key: ")
	apiKey, err := readSecret(reader)
	if err != nil {
		ui.PrintError("Failed to read API key", err.Error())
		return err
	}
	if apiKey == "" {
		ui.PrintError("API key is required")
		return errors.New("API key is required")
	}

	fmt.Print("API secret (press Enter to skip): ")
	apiSecret, err := readSecret(reader)
	if err != nil {
		ui.PrintError("Failed to read API secret", err.Error())
		return err
	}

	account := &auth.Account{
		Name:      name,
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if err := manager.Store(account); err != nil {
		ui.PrintError("Failed to store credentials", err.Error())
		return err
	}

	masked := auth.SanitizeAccount(account)
	ui.PrintSuccess(fmt.Sprintf("Account saved: %s (key %s)", name, masked.APIKey))
	fmt.Println("\nStart collecting with:")
	if name == auth.DefaultAccountName {
		fmt.Println("  flico crawl")
	} else {
		fmt.Printf("  flico crawl --account %s\n", name)
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		return err
	}

	var name string
	if len(args) > 0 {
		name = args[0]
	} else {
		accounts, err := manager.List()
		if err != nil || len(accounts) == 0 {
			ui.PrintError("No stored accounts found")
			return nil
		}

		fmt.Println("Select account to remove:")
		for i, account := range accounts {
			fmt.Printf("  %d. %s\n", i+1, account.Name)
		}
		fmt.Printf("  0. Cancel\n\n")

		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Choice: ")
		input, _ := reader.ReadString('\n')

		var choice int
		fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)
		if choice == 0 {
			return nil
		}
		if choice < 0 || choice > len(accounts) {
			ui.PrintError("Invalid choice")
			return errors.New("invalid choice")
		}
		name = accounts[choice-1].Name
	}

	if name == auth.EnvironmentAccountName {
		ui.PrintWarning("The environment account cannot be removed", "unset FLICO_API_KEY and FLICKR_API_KEY instead")
		return nil
	}

	if err := manager.Delete(name); err != nil {
		ui.PrintError("Failed to remove account", err.Error())
		return err
	}
	ui.PrintSuccess("Account removed: " + name)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		return err
	}

	accounts, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list accounts", err.Error())
		return err
	}

	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'flico auth login' to add an account")
		return nil
	}

	ui.PrintHighlight("Stored Accounts")
	fmt.Println()

	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%d. Name: %s\n", i+1, sanitized.Name)
		fmt.Printf("   API Key: %s\n", sanitized.APIKey)
		if sanitized.APISecret != "" {
			fmt.Printf("   API Secret: %s\n", sanitized.APISecret)
		}
		fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
	return nil
}

// readSecret reads a line without echo when stdin is a terminal
func readSecret(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
