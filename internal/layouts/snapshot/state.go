package snapshot

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zjrosen/dockyard/internal/layouts/domain"
)

type wireState struct {
	Layouts map[string]wireLayout `json:"layouts"`
	Recent  []string              `json:"recent"`
}

// EncodeState encodes a whole registry. Type tags are recorded under
// "layouts.<storage key>.<field>" paths.
func EncodeState(s domain.State) ([]byte, error) {
	values := make(map[string][]string)
	wire := wireState{
		Layouts: make(map[string]wireLayout, len(s.Layouts)),
		Recent:  s.Recent,
	}
	if wire.Recent == nil {
		wire.Recent = []string{}
	}
	for storageKey, l := range s.Layouts {
		wire.Layouts[storageKey] = toWire(l, statePath(storageKey), values)
	}

	body, err := marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encoding state: %w", err)
	}
	data, err := marshal(envelope{
		JSON: body,
		Meta: &meta{Version: FormatVersion, Values: values},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding state envelope: %w", err)
	}
	return data, nil
}

// DecodeState parses a registry document. A nil state means the document
// was empty. Records that fail to decode are skipped and reported in the
// returned slice; the error result is reserved for envelope failures.
func DecodeState(data []byte) (*domain.RawState, []error, error) {
	env, err := parseEnvelope(data)
	if err != nil {
		return nil, nil, err
	}
	if isNull(env.JSON) {
		return nil, nil, nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(env.JSON, &top); err != nil || top == nil {
		return nil, nil, fmt.Errorf("%w: state is not an object", ErrMalformed)
	}

	raw := &domain.RawState{}
	var recordErrs []error

	if layoutsRaw, ok := top["layouts"]; ok && !isNull(layoutsRaw) {
		var records map[string]json.RawMessage
		if err := json.Unmarshal(layoutsRaw, &records); err != nil {
			return nil, nil, fmt.Errorf("%w: layouts is not an object", ErrMalformed)
		}
		raw.Layouts = make(map[string]domain.Layout, len(records))
		for storageKey, rec := range records {
			l, err := fromWire(rec, env.values(), statePath(storageKey))
			if err != nil {
				recordErrs = append(recordErrs, fmt.Errorf("layout %q: %w", storageKey, err))
				continue
			}
			raw.Layouts[storageKey] = l
		}
	}

	if recentRaw, ok := top["recent"]; ok && !isNull(recentRaw) {
		var recent []string
		if err := json.Unmarshal(recentRaw, &recent); err != nil {
			return nil, nil, fmt.Errorf("%w: recent must be a list of keys", ErrMalformed)
		}
		raw.Recent = recent
	}

	return raw, recordErrs, nil
}

var pathEscaper = strings.NewReplacer(`\`, `\\`, `.`, `\.`)

func statePath(storageKey string) string {
	return "layouts." + pathEscaper.Replace(storageKey) + "."
}
