package document

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSortsKeysAtEveryLevel(t *testing.T) {
	doc := map[string]any{
		"zeta": 1,
		"alpha": map[string]any{
			"y": true,
			"x": "v",
		},
	}
	out, err := Encode(doc)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"x":"v","y":true},"zeta":1}`, string(out))
}

func TestEncodeIsDeterministic(t *testing.T) {
	doc := map[string]any{
		"b": []any{1, "two", nil, false},
		"a": map[string]any{"nested": 3.5},
	}
	first, err := Encode(doc)
	require.NoError(t, err)
	second, err := Encode(doc)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEncodeDoesNotEscapeHTML(t *testing.T) {
	out, err := Encode(map[string]any{"html": "<a href=\"x\">&</a>"})
	require.NoError(t, err)
	assert.Equal(t, `{"html":"<a href=\"x\">&</a>"}`, string(out))
}

func TestEncodeNormalizesNFC(t *testing.T) {
	// "é" decomposed (e + combining acute) versus precomposed.
	decomposed := map[string]any{"name": "José"}
	precomposed := map[string]any{"name": "José"}

	a, err := Encode(decomposed)
	require.NoError(t, err)
	b, err := Encode(precomposed)
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

func TestEncodeValueKinds(t *testing.T) {
	doc := map[string]any{
		"null":   nil,
		"bool":   true,
		"int":    42,
		"int64":  int64(7),
		"float":  2.5,
		"number": json.Number("9007199254740993"),
		"list":   []any{1, 2},
	}
	out, err := Encode(doc)
	require.NoError(t, err)
	assert.Equal(t,
		`{"bool":true,"float":2.5,"int":42,"int64":7,"list":[1,2],"null":null,"number":9007199254740993}`,
		string(out))
}

func TestEncodeRejectsUnsupportedTypes(t *testing.T) {
	_, err := Encode(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)

	_, err = Encode(nil)
	assert.Error(t, err)
}

func TestDecodeRoundTrip(t *testing.T) {
	doc := map[string]any{
		"name": "John",
		"age":  json.Number("30"),
		"tags": []any{"a", "b"},
	}
	blob, err := Encode(doc)
	require.NoError(t, err)

	got, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestDecodePreservesLargeIntegers(t *testing.T) {
	got, err := Decode([]byte(`{"id":9007199254740993}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), got["id"])
}

func TestDecodeRejectsInvalidJSON(t *testing.T) {
	_, err := Decode([]byte(`{"unterminated`))
	assert.Error(t, err)
}

func TestNewPKIsTimeOrderedUUID(t *testing.T) {
	pk := NewPK()
	parsed, err := uuid.Parse(pk)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	// Two keys generated in sequence never collide.
	assert.NotEqual(t, pk, NewPK())
}
