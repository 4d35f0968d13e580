package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Recipient is one target of a batch send. Fields holds free-form
// personalization values keyed by placeholder name.
type Recipient struct {
	Email  string
	Name   string
	Fields map[string]string
}

// UnmarshalJSON accepts either a bare address string or an object with an
// "email" key. Keys other than email and name become personalization fields.
func (r *Recipient) UnmarshalJSON(data []byte) error {
	var addr string
	if err := json.Unmarshal(data, &addr); err == nil {
		*r = Recipient{Email: strings.TrimSpace(addr), Name: strings.TrimSpace(addr)}
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("recipient must be an address or an object: %w", err)
	}

	out := Recipient{}
	for k, v := range obj {
		s := stringify(v)
		switch k {
		case "email":
			out.Email = strings.TrimSpace(s)
		case "name":
			out.Name = strings.TrimSpace(s)
		default:
			if out.Fields == nil {
				out.Fields = make(map[string]string)
			}
			out.Fields[k] = s
		}
	}
	if out.Email == "" {
		return errors.New("recipient object is missing email")
	}
	*r = out
	return nil
}

func (r Recipient) MarshalJSON() ([]byte, error) {
	obj := make(map[string]string, len(r.Fields)+2)
	for k, v := range r.Fields {
		obj[k] = v
	}
	obj["email"] = r.Email
	if r.Name != "" {
		obj["name"] = r.Name
	}
	return json.Marshal(obj)
}

// Values returns the placeholder substitutions for this recipient.
func (r Recipient) Values() map[string]string {
	vals := make(map[string]string, len(r.Fields)+2)
	for k, v := range r.Fields {
		vals[k] = v
	}
	vals["email"] = r.Email
	vals["name"] = r.Name
	return vals
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		// JSON numbers; keep integers free of a trailing ".0"
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprint(t)
	}
}
