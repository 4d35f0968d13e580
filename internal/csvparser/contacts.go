package csvparser

import (
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"

	"PulseMail/internal/models"
)

type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e RowError) String() string {
	return fmt.Sprintf("row %d: %s", e.Line, e.Reason)
}

type contactInput struct {
	Name  string `validate:"required"`
	Email string `validate:"required,email"`
}

// ParseContacts reads contacts from a CSV with "name" and "email" columns.
// Every other column is kept as additional data. Invalid rows are returned
// as RowErrors; only an unreadable file is an error.
func ParseContacts(r io.Reader, v *validator.Validate) ([]models.Contact, []RowError, error) {
	if v == nil {
		v = validator.New()
	}

	rows, bad, err := ReadRows(r, 0)
	if err != nil {
		return nil, nil, err
	}

	contacts := make([]models.Contact, 0, len(rows))
	for _, row := range rows {
		in := contactInput{Name: row.Fields["name"], Email: row.Fields["email"]}
		if in.Name == "" || in.Email == "" {
			bad = append(bad, RowError{Line: row.Line, Reason: "missing name or email"})
			continue
		}
		if err := v.Struct(in); err != nil {
			bad = append(bad, RowError{Line: row.Line, Reason: "invalid email format: " + in.Email})
			continue
		}

		data := make(map[string]string, len(row.Fields))
		for k, val := range row.Fields {
			if k != "name" && k != "email" {
				data[k] = val
			}
		}
		contacts = append(contacts, models.Contact{Name: in.Name, Email: in.Email, Data: data})
	}
	return contacts, bad, nil
}
