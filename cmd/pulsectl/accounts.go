package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"PulseMail/internal/email"
	"PulseMail/internal/models"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage sending accounts",
}

func init() {
	accountsCmd.AddCommand(accountsAddCmd)
}

var (
	accName     string
	accEmail    string
	accPassword string
	accSMTPHost string
	accSMTPPort int
	accIMAPHost string
	accIMAPPort int
	accVerify   bool
)

var accountsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an email account; the password goes to the credential store",
	RunE: func(_ *cobra.Command, _ []string) error {
		a := models.Account{
			Name:     accName,
			Email:    accEmail,
			Password: accPassword,
			SMTPHost: accSMTPHost,
			SMTPPort: accSMTPPort,
			IMAPHost: accIMAPHost,
			IMAPPort: accIMAPPort,
		}

		if accVerify {
			if err := email.NewSMTPMailer(0).Ping(a); err != nil {
				return fmt.Errorf("connection test failed: %w", err)
			}
		}

		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.CreateAccount(context.Background(), &a); err != nil {
			return err
		}
		fmt.Printf("✓ Added account %s (%d)\n", a.Email, a.ID)
		return nil
	},
}

func init() {
	f := accountsAddCmd.Flags()
	f.StringVar(&accName, "name", "", "Display name")
	f.StringVar(&accEmail, "email", "", "Address, also the SMTP/IMAP login")
	f.StringVar(&accPassword, "password", "", "Password or app password")
	f.StringVar(&accSMTPHost, "smtp-server", "", "SMTP host")
	f.IntVar(&accSMTPPort, "smtp-port", 587, "SMTP port")
	f.StringVar(&accIMAPHost, "imap-server", "", "IMAP host")
	f.IntVar(&accIMAPPort, "imap-port", 993, "IMAP port")
	f.BoolVar(&accVerify, "verify", false, "Log in to SMTP before saving")
	for _, name := range []string{"email", "password", "smtp-server"} {
		_ = accountsAddCmd.MarkFlagRequired(name)
	}
}
