package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-enricher/internal/model"
)

var newContact model.Contact

var contactCmd = &cobra.Command{
	Use:   "contact",
	Short: "Manage contacts",
}

var contactAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a contact",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c := trimContact(newContact)
		if c.FirstName == "" && c.LastName == "" && c.Email == "" {
			return eris.New("a contact needs at least a name or an email")
		}

		if err := cfg.Validate("enrich"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		created, err := st.CreateContact(ctx, &c)
		if err != nil {
			return eris.Wrap(err, "create contact")
		}
		zap.L().Info("contact created", zap.Int64("contact_id", created.ID))
		return printOutput(cmd.OutOrStdout(), outputFormat, created)
	},
}

func trimContact(c model.Contact) model.Contact {
	for _, f := range []*string{
		&c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Company, &c.Position,
		&c.LinkedInProfile, &c.Website, &c.Notes,
	} {
		*f = strings.TrimSpace(*f)
	}
	return c
}

func init() {
	f := contactAddCmd.Flags()
	f.StringVar(&newContact.FirstName, "first-name", "", "first name")
	f.StringVar(&newContact.LastName, "last-name", "", "last name")
	f.StringVar(&newContact.Email, "email", "", "email address")
	f.StringVar(&newContact.Phone, "phone", "", "phone number")
	f.StringVar(&newContact.Company, "company", "", "company name")
	f.StringVar(&newContact.Position, "position", "", "job title")
	f.StringVar(&newContact.LinkedInProfile, "linkedin", "", "LinkedIn profile URL")
	f.StringVar(&newContact.Website, "website", "", "website")
	f.StringVar(&newContact.Notes, "notes", "", "free-form notes")

	contactCmd.AddCommand(contactAddCmd)
	rootCmd.AddCommand(contactCmd)
}
