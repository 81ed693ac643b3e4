package enrich

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/contact-enricher/internal/model"
)

// notesHeader opens the company block appended to contact notes.
const notesHeader = "\n\n--- Enriched Data ---\n"

// MergeResult computes the writes that fill c's empty fields from a provider
// match. Populated fields are never overwritten and only the first entry of
// a multi-valued field is used. Company facts are appended to the notes as
// a block; repeated merges append again.
func MergeResult(c *model.Contact, p *model.Person, org *model.Organization) model.ContactUpdate {
	var u model.ContactUpdate

	fill := func(current string, candidate string) *string {
		if strings.TrimSpace(current) != "" {
			return nil
		}
		if v := sanitize(candidate); v != "" {
			return &v
		}
		return nil
	}

	if p != nil {
		u.Email = fill(c.Email, first(p.Emails))
		u.Phone = fill(c.Phone, first(p.Phones))
		u.Position = fill(c.Position, p.Title)
		u.LinkedInProfile = fill(c.LinkedInProfile, p.LinkedInURL)
		u.Address = fill(c.Address, p.Location)
	}

	if org == nil {
		return u
	}
	u.Company = fill(c.Company, org.Name)
	u.Website = fill(c.Website, websiteFor(org))

	var lines []string
	if v := sanitize(org.Industry); v != "" {
		lines = append(lines, "Industry: "+v)
	}
	if v := sanitize(org.EmployeeCount); v != "" {
		lines = append(lines, "Employees: "+v)
	}
	if v := sanitize(org.Location); v != "" {
		lines = append(lines, "Location: "+v)
	}
	if len(lines) > 0 {
		notes := c.Notes + notesHeader + strings.Join(lines, "\n")
		u.Notes = &notes
	}
	return u
}

// websiteFor prefers the employer domain, written as an https URL.
func websiteFor(org *model.Organization) string {
	site := strings.TrimSpace(org.Domain)
	if site == "" {
		site = strings.TrimSpace(org.Website)
	}
	if site == "" {
		return ""
	}
	lower := strings.ToLower(site)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return site
	}
	return "https://" + site
}

func first(vals []string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// sanitize trims v, drops control characters and normalizes it to NFC.
func sanitize(v string) string {
	v = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, v)
	return strings.TrimSpace(norm.NFC.String(v))
}
