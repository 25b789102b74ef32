package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelRoundTrip(t *testing.T) {
	cases := []struct{ area, name string }{
		{"A", "Filosofía Política"},
		{"B", "Límites, derivadas e integrales"},
		{"C", "Biología: células y tejidos"},
		{"Artes", "Interpretación musical"},
	}
	for _, tc := range cases {
		label := EncodeLabel(tc.area, tc.name)
		area, name, err := DecodeLabel(label)
		require.NoError(t, err, label)
		assert.Equal(t, tc.area, area)
		assert.Equal(t, tc.name, name)
	}
}

func TestDecodeLabelRejectsMalformed(t *testing.T) {
	for _, label := range []string{
		"",
		"Filosofía Política",
		"Area A: Filosofía",
		"Área A Filosofía",
		"Área : Filosofía",
		"Área A: ",
	} {
		_, _, err := DecodeLabel(label)
		assert.True(t, errors.Is(err, ErrMalformedLabel), "label %q", label)
	}
}

func TestSameArea(t *testing.T) {
	assert.True(t, SameArea("A", "A", "A"))
	assert.False(t, SameArea("A", "A", "B"))
	assert.False(t, SameArea("B", "A", "A"))
	assert.False(t, SameArea("A"))
}

func TestElectiveGroupByLevel(t *testing.T) {
	e := Elective{GroupThird: 2, GroupFourth: 3, EnabledThird: true}
	assert.Equal(t, 2, e.Group(LevelThird))
	assert.Equal(t, 0, e.Group(LevelFourth))
	assert.Equal(t, "Área A: Química", Elective{Area: "A", Name: "Química"}.Label())
}
