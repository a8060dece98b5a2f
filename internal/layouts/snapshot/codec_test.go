package snapshot

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/dockyard/internal/layouts/domain"
)

func sampleLayout() domain.Layout {
	opened := time.Date(2024, 3, 9, 18, 30, 0, 123456789, time.UTC)
	return domain.Layout{
		Key:               "4f7c2a7e-8f1b-4b0a-9d57-1c1f2b0e9a11",
		Name:              "Ops",
		Kind:              domain.KindOnline,
		LastUpdated:       time.Date(2024, 3, 10, 9, 0, 0, 42, time.UTC),
		LastOpened:        &opened,
		LeftPanelVisible:  true,
		RightPanelVisible: false,
		Payload:           `{"dock":{"panels":["map","feed"]}}`,
	}
}

func genTime(t *rapid.T, label string) time.Time {
	sec := rapid.Int64Range(0, 253402300799).Draw(t, label+"Sec") // through 9999-12-31
	nsec := rapid.Int64Range(0, 999999999).Draw(t, label+"Nsec")
	return time.Unix(sec, nsec).UTC()
}

func genLayout(t *rapid.T) domain.Layout {
	l := domain.Layout{
		Key:               rapid.String().Draw(t, "key"),
		Name:              rapid.String().Draw(t, "name"),
		Kind:              rapid.SampledFrom([]domain.Kind{domain.KindLocal, domain.KindOnline}).Draw(t, "kind"),
		LastUpdated:       genTime(t, "updated"),
		LeftPanelVisible:  rapid.Bool().Draw(t, "left"),
		RightPanelVisible: rapid.Bool().Draw(t, "right"),
		Payload:           rapid.String().Draw(t, "payload"),
	}
	if rapid.Bool().Draw(t, "opened") {
		opened := genTime(t, "lastOpened")
		l.LastOpened = &opened
	}
	return l
}

func TestEncode_Envelope(t *testing.T) {
	l := sampleLayout()
	l.Payload = ""

	var doc struct {
		JSON map[string]any `json:"json"`
		Meta struct {
			V      int                 `json:"v"`
			Values map[string][]string `json:"values"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal([]byte(Encode(&l)), &doc))

	assert.Equal(t, FormatVersion, doc.Meta.V)
	assert.Equal(t, []string{"Date"}, doc.Meta.Values["lastUpdated"])
	assert.Equal(t, []string{"Date"}, doc.Meta.Values["lastOpened"])
	assert.Equal(t, []string{"undefined"}, doc.Meta.Values["payload"])
	assert.Equal(t, "Ops", doc.JSON["name"])
	assert.Equal(t, "online", doc.JSON["kind"])
	assert.Equal(t, "2024-03-10T09:00:00.000000042Z", doc.JSON["lastUpdated"])
	assert.NotContains(t, doc.JSON, "payload")
}

func TestEncode_NeverOpenedIsTaggedUndefined(t *testing.T) {
	l := sampleLayout()
	l.LastOpened = nil

	text := Encode(&l)
	assert.Contains(t, text, `"lastOpened":["undefined"]`)
	assert.NotContains(t, text, `"lastOpened":"`)

	got, err := Decode(text)
	require.NoError(t, err)
	assert.Nil(t, got.LastOpened)
}

func TestEncode_Deterministic(t *testing.T) {
	l := sampleLayout()
	assert.Equal(t, Encode(&l), Encode(&l))
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	l := sampleLayout()

	got, err := Decode(Encode(&l))
	require.NoError(t, err)
	assert.True(t, l.Equal(got), "round trip changed the layout: %+v", got)
}

func TestEncodeDecode_RoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		l := genLayout(rt)

		got, err := Decode(Encode(&l))
		if err != nil {
			rt.Fatalf("decode failed: %v", err)
		}
		if !l.Equal(got) {
			rt.Fatalf("round trip mismatch:\n want %+v\n got  %+v", l, got)
		}
	})
}

func TestDecode_NilEncodesAsEmpty(t *testing.T) {
	text := Encode(nil)
	assert.Equal(t, `{"json":null}`, text)

	_, err := Decode(text)
	require.ErrorIs(t, err, ErrEmpty)

	_, err = Decode(`{"meta":{"v":1}}`)
	require.ErrorIs(t, err, ErrEmpty)
}

func TestDecode_Malformed(t *testing.T) {
	valid := sampleLayout()
	good := Encode(&valid)

	tests := []struct {
		name string
		text string
	}{
		{"empty string", ""},
		{"not json", "not json at all"},
		{"truncated", good[:len(good)/2]},
		{"trailing data", good + " {}"},
		{"json is an array", `{"json":[1,2,3]}`},
		{"json is a string", `{"json":"layout"}`},
		{"missing name", `{"json":{"kind":"local","lastUpdated":"2024-01-01T00:00:00Z","leftPanelVisible":true,"rightPanelVisible":true},"meta":{"values":{"lastUpdated":["Date"]}}}`},
		{"name wrong type", `{"json":{"name":7,"kind":"local","lastUpdated":"2024-01-01T00:00:00Z","leftPanelVisible":true,"rightPanelVisible":true},"meta":{"values":{"lastUpdated":["Date"]}}}`},
		{"unknown kind", `{"json":{"name":"a","kind":"remote","lastUpdated":"2024-01-01T00:00:00Z","leftPanelVisible":true,"rightPanelVisible":true},"meta":{"values":{"lastUpdated":["Date"]}}}`},
		{"untagged date", `{"json":{"name":"a","kind":"local","lastUpdated":"2024-01-01T00:00:00Z","leftPanelVisible":true,"rightPanelVisible":true}}`},
		{"bad date", `{"json":{"name":"a","kind":"local","lastUpdated":"yesterday","leftPanelVisible":true,"rightPanelVisible":true},"meta":{"values":{"lastUpdated":["Date"]}}}`},
		{"missing lastUpdated", `{"json":{"name":"a","kind":"local","leftPanelVisible":true,"rightPanelVisible":true},"meta":{"values":{}}}`},
		{"panel flag wrong type", `{"json":{"name":"a","kind":"local","lastUpdated":"2024-01-01T00:00:00Z","leftPanelVisible":"yes","rightPanelVisible":true},"meta":{"values":{"lastUpdated":["Date"]}}}`},
		{"missing panel flag", `{"json":{"name":"a","kind":"local","lastUpdated":"2024-01-01T00:00:00Z","leftPanelVisible":true},"meta":{"values":{"lastUpdated":["Date"]}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.text)
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDecode_UnsupportedVersion(t *testing.T) {
	_, err := Decode(`{"json":{"name":"a"},"meta":{"v":2}}`)
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestDecode_UnversionedDocumentIsAccepted(t *testing.T) {
	text := `{"json":{"key":"k","name":"Ops","kind":"local","lastUpdated":"2024-01-01T10:00:00.5Z",` +
		`"leftPanelVisible":false,"rightPanelVisible":true},` +
		`"meta":{"values":{"lastUpdated":["Date"],"lastOpened":["undefined"]}}}`

	got, err := Decode(text)
	require.NoError(t, err)
	assert.Equal(t, "Ops", got.Name)
	assert.Equal(t, domain.KindLocal, got.Kind)
	assert.True(t, got.LastUpdated.Equal(time.Date(2024, 1, 1, 10, 0, 0, 500000000, time.UTC)))
	assert.False(t, got.LeftPanelVisible)
	assert.Nil(t, got.LastOpened)
	assert.Empty(t, got.Payload)
}

func TestDecode_NeverPanicsOnArbitraryInput(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		text := rapid.String().Draw(rt, "text")
		_, _ = Decode(text)
	})
}

func TestDecode_PayloadIsVerbatim(t *testing.T) {
	l := sampleLayout()
	l.Payload = "<html>&amp;   \"quoted\"</html>"

	got, err := Decode(Encode(&l))
	require.NoError(t, err)
	assert.Equal(t, l.Payload, got.Payload)
}
