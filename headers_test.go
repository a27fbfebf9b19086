package jembatan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateHeaderName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"simple", "X-Api-Key", true},
		{"underscore", "x_trace_id", true},
		{"digits", "X1", true},
		{"max length", strings.Repeat("a", MaxHeaderNameLength), true},
		{"too long", strings.Repeat("a", MaxHeaderNameLength+1), false},
		{"empty", "", false},
		{"blank", "   ", false},
		{"space", "X Api", false},
		{"colon", "X:Api", false},
		{"non ascii", "X-Äpi", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHeaderName(tt.input)
			if tt.valid {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidHeader)
			require.True(t, IsValidation(err))
		})
	}
}

func TestValidateHeaderValue(t *testing.T) {
	valid := []string{
		"",
		"Bearer abc.def-ghi",
		`text/html; q=0.9, "quoted" 'single' (a) {b} [c] <d> @e`,
		"_ :;.,\\/\"'?!(){}[]@<>=-+*#$&`|~^%",
	}
	for _, v := range valid {
		require.NoError(t, ValidateHeaderValue(v), v)
	}

	invalid := []string{"tab\there", "new\nline", "café", "å", "x\x00"}
	for _, v := range invalid {
		require.ErrorIs(t, ValidateHeaderValue(v), ErrInvalidHeader, v)
	}
}

func TestHeadersAddAndSet(t *testing.T) {
	h := NewHeaders()
	require.NoError(t, h.Add("X-Api-Key", "one"))

	err := h.Add("x-api-key", "two")
	require.ErrorIs(t, err, ErrDuplicateHeader)

	value, ok := h.Get("X-API-KEY")
	require.True(t, ok)
	require.Equal(t, "one", value)

	require.NoError(t, h.Set("x-api-key", "two"))
	value, _ = h.Get("X-Api-Key")
	require.Equal(t, "two", value)
	require.Equal(t, 1, h.Len())

	require.Error(t, h.Set("bad name", "x"))
	require.Equal(t, 1, h.Len())

	require.True(t, h.Remove("X-Api-Key"))
	require.False(t, h.Contains("X-Api-Key"))
	require.False(t, h.Remove("X-Api-Key"))
}

func TestHeadersAllKeepsOrder(t *testing.T) {
	h := NewHeaders()
	require.NoError(t, h.Add("B", "2"))
	require.NoError(t, h.Add("A", "1"))

	all := h.All()
	require.Equal(t, []Header{{"B", "2"}, {"A", "1"}}, all)

	all[0].Value = "changed"
	v, _ := h.Get("B")
	require.Equal(t, "2", v)
}
