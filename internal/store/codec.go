package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/intake-cli/internal/model"
)

// JSON column helpers shared by the SQLite and Postgres stores.

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func marshalAnalysis(a model.Analysis) (extracted, classification []byte, err error) {
	if extracted, err = json.Marshal(a.Extracted); err != nil {
		return nil, nil, err
	}
	if classification, err = json.Marshal(a.Classification); err != nil {
		return nil, nil, err
	}
	return extracted, classification, nil
}

func marshalDetails(details map[string]any) ([]byte, error) {
	details = model.CompactDetails(details)
	if details == nil {
		return nil, nil
	}
	return json.Marshal(details)
}

func marshalProvenance(p *model.Provenance) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func unmarshalProvenance(data []byte) (*model.Provenance, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var p model.Provenance
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal provenance")
	}
	return &p, nil
}

func decodeMessageJSON(m *model.InboundMessage, sender, recipients, linkage, extracted, classification []byte) error {
	if err := json.Unmarshal(sender, &m.From); err != nil {
		return eris.Wrap(err, "store: unmarshal sender")
	}
	if err := json.Unmarshal(recipients, &m.To); err != nil {
		return eris.Wrap(err, "store: unmarshal recipients")
	}
	if len(linkage) > 0 {
		if err := json.Unmarshal(linkage, &m.Linkage); err != nil {
			return eris.Wrap(err, "store: unmarshal linkage")
		}
	}
	if len(extracted) > 0 {
		m.Extracted = &model.ExtractedData{}
		if err := json.Unmarshal(extracted, m.Extracted); err != nil {
			return eris.Wrap(err, "store: unmarshal extracted data")
		}
	}
	if len(classification) > 0 {
		m.Classification = &model.Classification{}
		if err := json.Unmarshal(classification, m.Classification); err != nil {
			return eris.Wrap(err, "store: unmarshal classification")
		}
	}
	return nil
}
