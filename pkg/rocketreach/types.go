package rocketreach

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

// LookupQuery identifies the person to look up. Set one identifier family:
// Email, LinkedInURL, or Name together with CurrentEmployer.
type LookupQuery struct {
	Email           string
	LinkedInURL     string
	Name            string
	CurrentEmployer string
}

// Values encodes the non-empty identifiers as query parameters.
func (q LookupQuery) Values() url.Values {
	v := url.Values{}
	add := func(k, s string) {
		if s = strings.TrimSpace(s); s != "" {
			v.Set(k, s)
		}
	}
	add("email", q.Email)
	add("linkedin_url", q.LinkedInURL)
	add("name", q.Name)
	add("current_employer", q.CurrentEmployer)
	return v
}

// LookupResponse is a decoded person-and-company lookup. When NotFound is set,
// Profile and Company are nil and Message carries the provider's explanation.
type LookupResponse struct {
	NotFound bool
	Message  string
	Profile  *Profile
	Company  *Company
	Raw      json.RawMessage
}

// Profile is a person record.
type Profile struct {
	ID                     FlexString     `json:"id"`
	Name                   string         `json:"name"`
	CurrentTitle           string         `json:"current_title"`
	CurrentEmployer        string         `json:"current_employer"`
	CurrentEmployerID      FlexString     `json:"current_employer_id"`
	CurrentEmployerDomain  string         `json:"current_employer_domain"`
	CurrentEmployerWebsite string         `json:"current_employer_website"`
	Location               string         `json:"location"`
	LinkedInURL            string         `json:"linkedin_url"`
	Emails                 []ContactPoint `json:"emails"`
	Phones                 []ContactPoint `json:"phones"`
	Status                 string         `json:"status"`
}

// empty reports whether the profile identifies nobody.
func (p *Profile) empty() bool {
	return p == nil || (p.ID == "" && p.Name == "" && len(p.Emails) == 0 && p.LinkedInURL == "")
}

// Company is an employer record.
type Company struct {
	ID            FlexString `json:"id"`
	Name          string     `json:"name"`
	Domain        string     `json:"domain"`
	Website       string     `json:"website"`
	Industry      string     `json:"industry"`
	EmployeeCount FlexString `json:"employee_count"`
	NumEmployees  FlexString `json:"num_employees"`
	Location      string     `json:"location"`
}

// Employees returns whichever headcount field the provider filled.
func (c *Company) Employees() string {
	if c.EmployeeCount != "" {
		return string(c.EmployeeCount)
	}
	return string(c.NumEmployees)
}

// ContactPoint is one email address or phone number. The API returns these
// either as bare strings or as objects such as {"email": "..", "type": ".."}
// and {"number": "..", "type": ".."}.
type ContactPoint struct {
	Value string
	Type  string
}

// UnmarshalJSON accepts both the string and the object form.
func (c *ContactPoint) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &c.Value)
	}
	var obj struct {
		Email  string `json:"email"`
		Number string `json:"number"`
		Value  string `json:"value"`
		Type   string `json:"type"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	switch {
	case obj.Email != "":
		c.Value = obj.Email
	case obj.Number != "":
		c.Value = obj.Number
	default:
		c.Value = obj.Value
	}
	c.Type = obj.Type
	return nil
}

// FlexString decodes a JSON string, number or null into a string.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || string(data) == "null":
		*f = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		if i, err := n.Int64(); err == nil {
			*f = FlexString(strconv.FormatInt(i, 10))
		} else {
			*f = FlexString(n.String())
		}
	}
	return nil
}
