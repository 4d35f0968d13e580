// Command pulsectl administers a PulseMail database from the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"PulseMail/internal/config"
	"PulseMail/internal/credential"
	"PulseMail/internal/db"
)

var rootCmd = &cobra.Command{
	Use:          "pulsectl",
	Short:        "PulseMail administration",
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(schedulesCmd)
	rootCmd.AddCommand(templatesCmd)
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(contactsCmd)
}

// openStore opens the database configured through the environment.
func openStore() (*db.Store, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	vault, err := credential.Open(credential.Options{
		Backend:  cfg.KeyringBackend,
		Dir:      cfg.KeyringDir,
		Password: cfg.KeyringPassword,
	})
	if err != nil {
		return nil, nil, err
	}
	store, err := db.New(cfg.DatabaseURL, vault, loc)
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

func truncStr(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
