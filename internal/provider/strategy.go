package provider

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Strategy selects which identifier family is sent to the provider.
type Strategy string

const (
	StrategyAuto        Strategy = "auto"
	StrategyEmail       Strategy = "email"
	StrategyLinkedIn    Strategy = "linkedin"
	StrategyNameCompany Strategy = "name_company"
)

// Precedence is the order auto walks the identifier families.
var Precedence = []Strategy{StrategyEmail, StrategyLinkedIn, StrategyNameCompany}

func (s Strategy) String() string { return string(s) }

// ParseStrategy parses a strategy name. The empty string means auto.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyAuto:
		return StrategyAuto, nil
	case StrategyEmail:
		return StrategyEmail, nil
	case StrategyLinkedIn, "linkedin_url":
		return StrategyLinkedIn, nil
	case StrategyNameCompany, "name":
		return StrategyNameCompany, nil
	}
	return "", eris.Errorf("unknown strategy %q (want auto, email, linkedin or name_company)", s)
}

// Identity is the identifying data available for a lookup.
type Identity struct {
	Email       string
	LinkedInURL string
	FirstName   string
	LastName    string
	Company     string
}

// FullName joins the trimmed first and last names.
func (id Identity) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(id.FirstName) + " " + strings.TrimSpace(id.LastName))
}

// Has reports whether the identity carries the fields strategy s needs.
// For auto it reports whether any family is usable.
func (id Identity) Has(s Strategy) bool {
	switch s {
	case StrategyEmail:
		return notBlank(id.Email)
	case StrategyLinkedIn:
		return notBlank(id.LinkedInURL)
	case StrategyNameCompany:
		return notBlank(id.FirstName) && notBlank(id.LastName) && notBlank(id.Company)
	case StrategyAuto:
		for _, p := range Precedence {
			if id.Has(p) {
				return true
			}
		}
	}
	return false
}

// Resolve picks the concrete strategy to run. Auto resolves to the first
// family with data. An explicit strategy resolves to itself when its fields
// are present. Otherwise the error wraps ErrMissingIdentity and names what is
// missing.
func (id Identity) Resolve(s Strategy) (Strategy, error) {
	if s == StrategyAuto {
		for _, p := range Precedence {
			if id.Has(p) {
				return p, nil
			}
		}
		return "", eris.Wrap(ErrMissingIdentity, "email, LinkedIn URL, or first name, last name and company required")
	}
	if id.Has(s) {
		return s, nil
	}
	switch s {
	case StrategyEmail:
		return "", eris.Wrap(ErrMissingIdentity, "email required for email strategy")
	case StrategyLinkedIn:
		return "", eris.Wrap(ErrMissingIdentity, "LinkedIn URL required for linkedin strategy")
	case StrategyNameCompany:
		return "", eris.Wrap(ErrMissingIdentity, "first name, last name and company required for name_company strategy")
	}
	return "", eris.Wrapf(ErrMissingIdentity, "unknown strategy %q", s)
}

func notBlank(s string) bool {
	return strings.TrimSpace(s) != ""
}
