package languages

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableIsBijective(t *testing.T) {
	assert.Len(t, codeToName, 18)
	for code, name := range codeToName {
		c, ok := Code(name)
		require.True(t, ok)
		assert.Equal(t, code, c)
	}
}

func TestChoicesSorted(t *testing.T) {
	c := Choices()
	assert.Len(t, c, 18)
	assert.True(t, sort.StringsAreSorted(c))
	assert.Equal(t, "Catalan", c[0])
}

func TestResolvePair(t *testing.T) {
	s, tg, err := ResolvePair("English", "Vietnamese")
	require.NoError(t, err)
	assert.Equal(t, "en", s)
	assert.Equal(t, "vi", tg)

	_, _, err = ResolvePair("English", "Klingon")
	require.Error(t, err)
	assert.Equal(t, "Unsupported language: English to Klingon", err.Error())
}

func TestNameLookup(t *testing.T) {
	n, ok := Name("tl")
	assert.True(t, ok)
	assert.Equal(t, "Tagalog", n)
	_, ok = Name("xx")
	assert.False(t, ok)
	assert.Equal(t, "xx", MustName("xx"))
}
