package textutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollapseAndTitle(t *testing.T) {
	assert.Equal(t, "a b c", CollapseSpaces("  a   b\tc "))
	assert.Equal(t, "Social Studies", TitleWords("  sOCIAL   studies "))
	assert.Equal(t, "O'neil", Capitalize("O'NEIL"))
	assert.Equal(t, "", TitleWords("   "))
}

func TestParseLenientInt(t *testing.T) {
	cases := []struct {
		in   interface{}
		want int
		ok   bool
	}{
		{"4", 4, true},
		{"4.0", 4, true},
		{4.0, 4, true},
		{7, 7, true},
		{"4.5", 0, false},
		{"", 0, false},
		{"abc", 0, false},
		{true, 0, false},
		{nil, 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseLenientInt(tc.in)
		assert.Equal(t, tc.ok, ok, "%v", tc.in)
		assert.Equal(t, tc.want, got, "%v", tc.in)
	}
}

func TestParseStrictInt(t *testing.T) {
	v, ok := ParseStrictInt(" 12 ")
	assert.True(t, ok)
	assert.Equal(t, 12, v)

	_, ok = ParseStrictInt("12.0")
	assert.False(t, ok)
	_, ok = ParseStrictInt("")
	assert.False(t, ok)
}

func TestParseBoolFlag(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", "on"} {
		assert.True(t, ParseBoolFlag(v), v)
	}
	for _, v := range []string{"", "0", "off", "no", "maybe"} {
		assert.False(t, ParseBoolFlag(v), v)
	}
}

func TestLooseUnmarshal(t *testing.T) {
	var v struct {
		A Loose `json:"a"`
		B Loose `json:"b"`
		C Loose `json:"c"`
		D Loose `json:"d"`
	}
	err := json.Unmarshal([]byte(`{"a":"24","b":12,"c":true,"d":null}`), &v)
	assert.NoError(t, err)
	assert.Equal(t, "24", v.A.String())
	assert.Equal(t, "12", v.B.String())
	assert.Equal(t, "true", v.C.String())
	assert.Equal(t, "", v.D.String())
}
