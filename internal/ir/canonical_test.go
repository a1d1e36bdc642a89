package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_Scalars(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", IRString("hello"), `"hello"`},
		{"empty string", IRString(""), `""`},
		{"int", IRInt(42), "42"},
		{"negative int", IRInt(-100), "-100"},
		{"min int64", IRInt(-9223372036854775808), "-9223372036854775808"},
		{"bool", IRBool(false), "false"},
		{"empty array", IRArray{}, "[]"},
		{"empty object", IRObject{}, "{}"},
		{"go int", 7, "7"},
		{"go string", "x", `"x"`},
		{"integral float", 3.0, "3"},
		{"go slice", []any{1, "a", true}, `[1,"a",true]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshalCanonical_KeyOrdering(t *testing.T) {
	obj := IRObject{
		"zebra": IRInt(1),
		"alpha": IRObject{"b": IRInt(1), "a": IRInt(2)},
		"beta":  IRInt(3),
	}
	got, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"a":2,"b":1},"beta":3,"zebra":1}`, string(got))

	// U+1F600 is encoded as the surrogate pair D83D DE00, so it sorts before
	// U+E000 by UTF-16 code units even though its UTF-8 bytes sort after.
	got, err = MarshalCanonical(IRObject{"\U0001F600": IRInt(1), "\uE000": IRInt(2)})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":1,\"\uE000\":2}", string(got))
}

func TestMarshalCanonical_Strings(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no html escaping", "<a & b>", `"<a & b>"`},
		{"quote and backslash", `say "hi" \ bye`, `"say \"hi\" \\ bye"`},
		{"control chars", "a\nb\tc", `"a\nb\tc"`},
		{"line separator literal", "a\u2028b", "\"a\u2028b\""},
		{"paragraph separator literal", "a\u2029b", "\"a\u2029b\""},
		{"escaped backslash before u2028 text", `\u2028`, `"\\u2028"`},
		{"nfc normalization", "e\u0301", "\"\u00e9\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(IRString(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	for name, input := range map[string]any{
		"fractional float": 1.5,
		"nil":              nil,
		"IRNull":           IRNull{},
		"nested null":      IRArray{IRInt(1), IRNull{}},
		"channel":          make(chan int),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := MarshalCanonical(input)
			assert.Error(t, err)
		})
	}
}

func TestMarshalCanonical_Deterministic(t *testing.T) {
	obj := IRObject{"c": IRArray{IRInt(1)}, "a": IRString("x"), "b": IRBool(true)}
	first, err := MarshalCanonical(obj)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := MarshalCanonical(obj)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
