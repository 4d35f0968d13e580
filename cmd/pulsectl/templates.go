package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"PulseMail/internal/models"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage email templates",
}

func init() {
	templatesCmd.AddCommand(templatesAddCmd)
}

var (
	tmplName     string
	tmplSubject  string
	tmplBody     string
	tmplBodyFile string
	tmplHTML     bool
)

var templatesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a template; {name}, {email} and custom fields are substituted per recipient",
	RunE: func(_ *cobra.Command, _ []string) error {
		body := tmplBody
		if tmplBodyFile != "" {
			raw, err := os.ReadFile(tmplBodyFile)
			if err != nil {
				return err
			}
			body = string(raw)
		}
		if body == "" {
			return fmt.Errorf("one of --body or --body-file is required")
		}

		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		t := models.EmailTemplate{Name: tmplName, Subject: tmplSubject, Body: body, IsHTML: tmplHTML}
		if err := store.CreateTemplate(context.Background(), &t); err != nil {
			return err
		}
		fmt.Printf("✓ Added template '%s' (%d)\n", t.Name, t.ID)
		return nil
	},
}

func init() {
	f := templatesAddCmd.Flags()
	f.StringVar(&tmplName, "name", "", "Unique template name")
	f.StringVar(&tmplSubject, "subject", "", "Subject line")
	f.StringVar(&tmplBody, "body", "", "Body text")
	f.StringVar(&tmplBodyFile, "body-file", "", "Read the body from a file")
	f.BoolVar(&tmplHTML, "html", false, "Body is HTML")
	_ = templatesAddCmd.MarkFlagRequired("name")
	_ = templatesAddCmd.MarkFlagRequired("subject")
}
