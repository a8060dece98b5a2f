// Package snapshot encodes layouts as self-describing text.
//
// A snapshot is a JSON envelope with two members: "json" holds the plain
// values and "meta" records a type tag for every value that plain JSON
// cannot describe on its own:
//
//	{"json":{"name":"Ops","lastUpdated":"2024-01-02T03:04:05.000000006Z",...},
//	 "meta":{"v":1,"values":{"lastUpdated":["Date"],"lastOpened":["undefined"]}}}
//
// Timestamps carry a "Date" tag and are written with nanosecond precision.
// Absent optional values carry an "undefined" tag and are omitted from
// "json", so a decoded layout tells "never opened" apart from any date.
// The same envelope stores a whole registry (see EncodeState).
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zjrosen/dockyard/internal/layouts/domain"
)

// FormatVersion is written to meta.v. Documents without a version are
// read as version 1.
const FormatVersion = 1

const (
	tagDate      = "Date"
	tagUndefined = "undefined"
)

var (
	// ErrMalformed is returned when text is not a well-formed snapshot or
	// does not have the shape of a layout.
	ErrMalformed = errors.New("malformed snapshot")

	// ErrEmpty is returned when a snapshot holds no layout, which is what
	// exporting a missing key produces.
	ErrEmpty = errors.New("snapshot holds no layout")

	// ErrUnsupportedVersion is returned for documents written by a newer format.
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
)

type envelope struct {
	JSON json.RawMessage `json:"json"`
	Meta *meta           `json:"meta,omitempty"`
}

type meta struct {
	Version int                 `json:"v,omitempty"`
	Values  map[string][]string `json:"values,omitempty"`
}

// wireLayout fixes the member order of an encoded layout.
type wireLayout struct {
	Key               string  `json:"key"`
	Name              string  `json:"name"`
	Kind              string  `json:"kind"`
	LastUpdated       string  `json:"lastUpdated"`
	LastOpened        *string `json:"lastOpened,omitempty"`
	LeftPanelVisible  bool    `json:"leftPanelVisible"`
	RightPanelVisible bool    `json:"rightPanelVisible"`
	Payload           *string `json:"payload,omitempty"`
}

// Encode returns the snapshot text for l. A nil layout encodes as an empty
// snapshot, which Decode rejects with ErrEmpty.
func Encode(l *domain.Layout) string {
	if l == nil {
		return `{"json":null}`
	}
	values := make(map[string][]string)
	wire := toWire(*l, "", values)

	data, err := marshal(envelope{
		JSON: mustMarshal(wire),
		Meta: &meta{Version: FormatVersion, Values: values},
	})
	if err != nil {
		// Only plain strings, bools and maps of strings are marshaled.
		panic(fmt.Sprintf("snapshot: encode layout: %v", err))
	}
	return string(data)
}

// Decode parses snapshot text back into a layout. Errors wrap ErrMalformed,
// ErrEmpty or ErrUnsupportedVersion.
func Decode(text string) (domain.Layout, error) {
	env, err := parseEnvelope([]byte(text))
	if err != nil {
		return domain.Layout{}, err
	}
	if isNull(env.JSON) {
		return domain.Layout{}, ErrEmpty
	}
	return fromWire(env.JSON, env.values(), "")
}

func toWire(l domain.Layout, prefix string, values map[string][]string) wireLayout {
	wire := wireLayout{
		Key:               l.Key,
		Name:              l.Name,
		Kind:              string(l.Kind),
		LastUpdated:       formatTime(l.LastUpdated),
		LeftPanelVisible:  l.LeftPanelVisible,
		RightPanelVisible: l.RightPanelVisible,
	}
	values[prefix+"lastUpdated"] = []string{tagDate}

	if l.LastOpened != nil {
		opened := formatTime(*l.LastOpened)
		wire.LastOpened = &opened
		values[prefix+"lastOpened"] = []string{tagDate}
	} else {
		values[prefix+"lastOpened"] = []string{tagUndefined}
	}

	if l.Payload != "" {
		payload := l.Payload
		wire.Payload = &payload
	} else {
		values[prefix+"payload"] = []string{tagUndefined}
	}
	return wire
}

func fromWire(raw json.RawMessage, values map[string][]string, prefix string) (domain.Layout, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return domain.Layout{}, fmt.Errorf("%w: layout is not an object", ErrMalformed)
	}

	var (
		l   domain.Layout
		err error
	)
	if _, ok := fields["key"]; ok {
		if l.Key, err = stringField(fields, "key"); err != nil {
			return domain.Layout{}, err
		}
	}
	if l.Name, err = stringField(fields, "name"); err != nil {
		return domain.Layout{}, err
	}

	kind, err := stringField(fields, "kind")
	if err != nil {
		return domain.Layout{}, err
	}
	l.Kind = domain.Kind(kind)
	if !l.Kind.IsValid() {
		return domain.Layout{}, fmt.Errorf("%w: unknown kind %q", ErrMalformed, kind)
	}

	updated, err := dateField(fields, values, prefix, "lastUpdated")
	if err != nil {
		return domain.Layout{}, err
	}
	if updated == nil {
		return domain.Layout{}, fmt.Errorf("%w: lastUpdated is required", ErrMalformed)
	}
	l.LastUpdated = *updated

	if l.LastOpened, err = dateField(fields, values, prefix, "lastOpened"); err != nil {
		return domain.Layout{}, err
	}
	if l.LeftPanelVisible, err = boolField(fields, "leftPanelVisible"); err != nil {
		return domain.Layout{}, err
	}
	if l.RightPanelVisible, err = boolField(fields, "rightPanelVisible"); err != nil {
		return domain.Layout{}, err
	}

	if _, ok := fields["payload"]; ok && !hasTag(values, prefix+"payload", tagUndefined) {
		if l.Payload, err = stringField(fields, "payload"); err != nil {
			return domain.Layout{}, err
		}
	}
	return l, nil
}

func stringField(fields map[string]json.RawMessage, name string) (string, error) {
	raw, ok := fields[name]
	if !ok {
		return "", fmt.Errorf("%w: %s is required", ErrMalformed, name)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || isNull(raw) {
		return "", fmt.Errorf("%w: %s must be a string", ErrMalformed, name)
	}
	return s, nil
}

func boolField(fields map[string]json.RawMessage, name string) (bool, error) {
	raw, ok := fields[name]
	if !ok {
		return false, fmt.Errorf("%w: %s is required", ErrMalformed, name)
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil || isNull(raw) {
		return false, fmt.Errorf("%w: %s must be a boolean", ErrMalformed, name)
	}
	return b, nil
}

// dateField returns nil when the value is absent or tagged undefined.
func dateField(fields map[string]json.RawMessage, values map[string][]string, prefix, name string) (*time.Time, error) {
	path := prefix + name
	raw, ok := fields[name]
	if !ok || hasTag(values, path, tagUndefined) {
		return nil, nil
	}
	if !hasTag(values, path, tagDate) {
		return nil, fmt.Errorf("%w: %s is not tagged as a date", ErrMalformed, name)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %s must be a date string", ErrMalformed, name)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
	}
	t = domain.Timestamp(t)
	return &t, nil
}

func hasTag(values map[string][]string, path, tag string) bool {
	tags := values[path]
	return len(tags) > 0 && tags[0] == tag
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseEnvelope(data []byte) (envelope, error) {
	var env envelope
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&env); err != nil {
		return envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if dec.More() {
		return envelope{}, fmt.Errorf("%w: trailing data after document", ErrMalformed)
	}
	if env.Meta != nil && env.Meta.Version > FormatVersion {
		return envelope{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Meta.Version)
	}
	return env, nil
}

func (e envelope) values() map[string][]string {
	if e.Meta == nil {
		return nil
	}
	return e.Meta.Values
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || strings.TrimSpace(string(raw)) == "null"
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func mustMarshal(v any) json.RawMessage {
	data, err := marshal(v)
	if err != nil {
		panic(fmt.Sprintf("snapshot: marshal: %v", err))
	}
	return data
}
