package commands

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jholhewres/linkclaw/pkg/linkclaw/rehost"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// newSetupCmd creates the `linkclaw setup` command for interactive
// configuration.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long: `Starts an interactive wizard to create your initial config.yaml.
Asks for the bot token and the essentials. The token is stored in the OS
keyring when available — never in plaintext.

Examples:
  linkclaw setup`,
		RunE: runSetup,
	}
}

func runSetup(_ *cobra.Command, _ []string) error {
	reader := bufio.NewReader(os.Stdin)
	cfg := rehost.DefaultConfig()

	fmt.Println()
	fmt.Println("LinkClaw — Setup")
	fmt.Println()

	// ── Step 1: Bot token ──
	token, err := readToken()
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("a bot token is required")
	}

	if rehost.KeyringAvailable() {
		if err := rehost.StoreKeyring(token); err != nil {
			fmt.Printf("   [!] Could not store the token in the OS keyring: %v\n", err)
			fmt.Println("   Set LINKCLAW_TOKEN in the environment or a .env file instead.")
		} else {
			fmt.Println("   Token stored in the OS keyring.")
		}
	} else {
		fmt.Println("   [!] No OS keyring available.")
		fmt.Println("   Set LINKCLAW_TOKEN in the environment or a .env file.")
	}

	// ── Step 2: Guild for fast command registration ──
	fmt.Print("2. Guild ID for fast command registration (empty = global): ")
	cfg.GuildID = readLine(reader)

	// ── Step 3: Default domains ──
	fmt.Printf("3. Default allowed domains, comma-separated [%s]: ",
		strings.Join(cfg.DefaultDomains, ","))
	if domains := readLine(reader); domains != "" {
		cfg.DefaultDomains = nil
		for _, d := range strings.Split(domains, ",") {
			if d = strings.TrimSpace(d); d != "" {
				cfg.DefaultDomains = append(cfg.DefaultDomains, d)
			}
		}
	}

	// ── Write config ──
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".linkclaw")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := rehost.SaveConfigToFile(cfg, path); err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Config written to %s\n", path)
	fmt.Println("Start the bot with: linkclaw serve")
	return nil
}

// readToken reads the bot token without echoing when stdin is a terminal.
func readToken() (string, error) {
	fmt.Print("1. Discord bot token: ")
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("reading token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return readLine(bufio.NewReader(os.Stdin)), nil
}

// readLine reads one trimmed line from the reader.
func readLine(reader *bufio.Reader) string {
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
