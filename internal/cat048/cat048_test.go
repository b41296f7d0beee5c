package cat048

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCategory tests that the embedded definition compiles
func TestCategory(t *testing.T) {
	cat, err := Category()
	require.NoError(t, err)

	assert.Equal(t, uint8(48), cat.Number)
	assert.Equal(t, "Monoradar Target Reports", cat.Title)
	assert.Equal(t, "1.21", cat.Edition.String())
	assert.Equal(t, 14, cat.MaxFRN())
	assert.Len(t, cat.Catalogue, 14)

	item, ok := cat.ItemByFRN(1)
	require.True(t, ok)
	assert.Equal(t, "010", item.Name)

	frn, ok := cat.FRN("170")
	require.True(t, ok)
	assert.Equal(t, 14, frn)

	_, ok = cat.Item("040")
	assert.True(t, ok)
}

// TestCategory_Shared tests that compilation happens once
func TestCategory_Shared(t *testing.T) {
	first, err := Category()
	require.NoError(t, err)
	second, err := Category()
	require.NoError(t, err)

	assert.Same(t, first, second)
}

// TestDefinition_Copy tests that callers cannot mutate the embedded YAML
func TestDefinition_Copy(t *testing.T) {
	buf := Definition()
	require.NotEmpty(t, buf)

	buf[0] = '#'
	assert.NotEqual(t, byte('#'), Definition()[0])
}
