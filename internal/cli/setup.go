package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/habitatfuturo/habitat/internal/adapter"
	"github.com/habitatfuturo/habitat/internal/config"
)

func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive first-time configuration",
		Long:  "Configure the completion provider, its API key and the admin password.",
		RunE: func(cmd *cobra.Command, args []string) error {
			reader := bufio.NewReader(os.Stdin)

			fmt.Println("Welcome to Habitat! Let's configure the assistant.")
			fmt.Println()

			cfg := config.DefaultConfig()

			// Step 1: Choose provider.
			fmt.Println("Which completion provider should Sara use?")
			fmt.Println("  [1] Gemini (Google)")
			fmt.Println("  [2] OpenAI")
			fmt.Println("  [3] Claude (Anthropic)")
			fmt.Println("  [4] Ollama (local)")
			fmt.Print("> ")

			choice := readLineBuf(reader)
			switch strings.TrimSpace(choice) {
			case "2":
				cfg.Provider = adapter.ProviderOpenAI
				cfg.Model = "gpt-4o-mini"
				fmt.Print("Enter your OpenAI API key (or press Enter to set OPENAI_API_KEY later): ")
				cfg.Keys.OpenAI = readLineBuf(reader)
			case "3":
				cfg.Provider = adapter.ProviderClaude
				cfg.Model = "claude-3-5-haiku-latest"
				fmt.Print("Enter your Anthropic API key (or press Enter to set ANTHROPIC_API_KEY later): ")
				cfg.Keys.Anthropic = readLineBuf(reader)
			case "4":
				cfg.Provider = adapter.ProviderOllama
				cfg.Model = "llama3.2"
				fmt.Printf("Ollama host (press Enter for %s): ", cfg.Ollama.Host)
				if host := readLineBuf(reader); host != "" {
					cfg.Ollama.Host = host
				}
			default:
				cfg.Provider = adapter.ProviderGemini
				fmt.Print("Enter your Gemini API key (or press Enter to set GEMINI_API_KEY later): ")
				cfg.Keys.Gemini = readLineBuf(reader)
				fmt.Println("The model is selected automatically at the start of each chat.")
			}
			fmt.Println()

			// Step 2: Admin password.
			fmt.Printf("Admin password for 'habitat leads' (press Enter to keep %q): ", cfg.Admin.Password)
			if pw := readLineBuf(reader); pw != "" {
				cfg.Admin.Password = pw
			}
			fmt.Println()

			if err := config.SaveGlobal(cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			path, _ := config.GlobalConfigPath()
			fmt.Printf("Configuration saved to %s\n", path)
			fmt.Println("Run `habitat chat` to start a conversation.")

			return nil
		},
	}
}

// readLineBuf reads a trimmed line from a bufio.Reader.
func readLineBuf(r *bufio.Reader) string {
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}
