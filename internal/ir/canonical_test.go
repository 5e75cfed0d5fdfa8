package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_Primitives(t *testing.T) {
	got, err := MarshalCanonical("hello")
	require.NoError(t, err)
	assert.Equal(t, `"hello"`, string(got))

	got, err = MarshalCanonical(int64(-42))
	require.NoError(t, err)
	assert.Equal(t, "-42", string(got))

	got, err = MarshalCanonical(true)
	require.NoError(t, err)
	assert.Equal(t, "true", string(got))
}

func TestMarshalCanonical_RejectsFloatsAndNull(t *testing.T) {
	_, err := MarshalCanonical(3.14)
	assert.Error(t, err)

	_, err = MarshalCanonical(nil)
	assert.Error(t, err)

	// Rejection applies recursively.
	_, err = MarshalCanonical(map[string]any{"x": 1.5})
	assert.Error(t, err)
	_, err = MarshalCanonical([]any{int64(1), nil})
	assert.Error(t, err)
}

func TestMarshalCanonical_SortedKeys(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"b": int64(2),
		"a": int64(1),
		"c": int64(3),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2,"c":3}`, string(got))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	got, err := MarshalCanonical("a<b>&c")
	require.NoError(t, err)
	assert.Equal(t, `"a<b>&c"`, string(got))
}

func TestMarshalCanonical_NFCNormalisation(t *testing.T) {
	// e + combining acute normalises to the precomposed form.
	decomposed := "e\u0301"
	precomposed := "\u00e9"

	a, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	b, err := MarshalCanonical(precomposed)
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))
	assert.Equal(t, `"`+precomposed+`"`, string(a))
}

func TestMarshalCanonical_UTF16KeyOrder(t *testing.T) {
	// U+1D306 encodes as a surrogate pair starting 0xD834, which sorts
	// before U+FF01 in UTF-16 order despite coming after it in UTF-8
	// byte order.
	got, err := MarshalCanonical(map[string]any{
		"\U0001D306": int64(1),
		"！":     int64(2),
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001D306\":1,\"！\":2}", string(got))
}

func TestMarshalCanonical_NestedDeterminism(t *testing.T) {
	doc := map[string]any{
		"outputs": []any{
			map[string]any{"device": "ao0", "ticks": int64(12)},
		},
		"name": "shot",
	}
	a, err := MarshalCanonical(doc)
	require.NoError(t, err)
	b, err := MarshalCanonical(doc)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, `{"name":"shot","outputs":[{"device":"ao0","ticks":12}]}`, string(a))
}
