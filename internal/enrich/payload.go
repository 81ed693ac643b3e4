package enrich

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-enricher/internal/model"
)

// PayloadSchemaVersion is the version written into stored enrichment data.
const PayloadSchemaVersion = 1

// Payload is the audit copy of a provider answer stored in
// Contact.EnrichmentData.
type Payload struct {
	SchemaVersion int                 `json:"schema_version"`
	Provider      string              `json:"provider"`
	Strategy      string              `json:"strategy"`
	FetchedAt     time.Time           `json:"fetched_at"`
	Person        *model.Person       `json:"person,omitempty"`
	Company       *model.Organization `json:"company,omitempty"`
	Raw           json.RawMessage     `json:"raw,omitempty"`
}

// EncodePayload serializes a provider answer into a versioned envelope.
// Raw is dropped when it is not valid JSON.
func EncodePayload(providerName, strategy string, fetchedAt time.Time, p *model.Person, c *model.Organization, raw []byte) ([]byte, error) {
	env := Payload{
		SchemaVersion: PayloadSchemaVersion,
		Provider:      providerName,
		Strategy:      strategy,
		FetchedAt:     fetchedAt.UTC(),
		Person:        p,
		Company:       c,
	}
	if len(raw) > 0 && json.Valid(raw) {
		env.Raw = raw
	}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: marshal payload")
	}
	return b, nil
}

// DecodePayload parses stored enrichment data. It rejects schema versions it
// does not know.
func DecodePayload(b []byte) (*Payload, error) {
	if len(b) == 0 {
		return nil, eris.New("enrich: empty payload")
	}
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, eris.Wrap(err, "enrich: unmarshal payload")
	}
	if p.SchemaVersion != PayloadSchemaVersion {
		return nil, eris.Errorf("enrich: unsupported payload schema version %d", p.SchemaVersion)
	}
	return &p, nil
}
