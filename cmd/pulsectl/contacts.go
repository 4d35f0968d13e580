package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"PulseMail/internal/csvparser"
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Manage contacts",
}

func init() {
	contactsCmd.AddCommand(contactsImportCmd)
}

var contactsImportCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import contacts from a CSV with name and email columns",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		contacts, bad, err := csvparser.ParseContacts(f, nil)
		if err != nil {
			return err
		}

		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.UpsertContacts(context.Background(), contacts)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Imported %d contacts\n", n)
		for _, e := range bad {
			fmt.Println("  skipped", e.String())
		}
		return nil
	},
}
