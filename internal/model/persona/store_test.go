package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLookup(t *testing.T) {
	store := NewMemoryStore(Seed())

	p, ok := store.FindByID(" KiddyBot ")
	require.True(t, ok)
	assert.Equal(t, "Gab", p.Name)

	_, ok = store.FindByID("pirate")
	assert.False(t, ok)
}

func TestMemoryStoreSkipsDuplicateAndBlankIDs(t *testing.T) {
	store := NewMemoryStore([]Persona{
		{ID: "owl", Name: "Hoot"},
		{ID: "OWL", Name: "Impostor"},
		{ID: " ", Name: "Nameless"},
	})

	list := store.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Hoot", list[0].Name)

	list[0].Name = "changed"
	p, _ := store.FindByID("owl")
	assert.Equal(t, "Hoot", p.Name)
}

func TestMemoryStoreDefault(t *testing.T) {
	p, ok := NewMemoryStore(Seed()).Default()
	require.True(t, ok)
	assert.Equal(t, DefaultID, p.ID)

	p, ok = NewMemoryStore([]Persona{{ID: "owl"}, {ID: "fox"}}).Default()
	require.True(t, ok)
	assert.Equal(t, "owl", p.ID)

	_, ok = NewMemoryStore(nil).Default()
	assert.False(t, ok)
}
