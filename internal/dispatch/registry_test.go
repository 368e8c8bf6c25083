package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_LastRegistrationWins(t *testing.T) {
	reg := NewRegistry()
	var got string
	reg.Register("E", func(context.Context, Event) error { got = "first"; return nil })
	reg.Register("E", func(context.Context, Event) error { got = "second"; return nil })

	h, ok := reg.Lookup("E")
	require.True(t, ok)
	require.NoError(t, h(context.Background(), Event{}))
	assert.Equal(t, "second", got)
}

func TestRegistry_LookupKind(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterKind(KindAppState, func(context.Context, Event) error { return nil })

	_, ok := reg.LookupKind(KindAppState)
	assert.True(t, ok)
	_, ok = reg.LookupKind(KindToast)
	assert.False(t, ok)
	_, ok = reg.LookupKind(KindUnknown)
	assert.False(t, ok)
}

func TestRegistry_Names(t *testing.T) {
	reg := NewRegistry()
	reg.Register("b", nil)
	reg.Register("a", func(context.Context, Event) error { return nil })
	assert.Equal(t, []string{"a", "b"}, reg.Names())
}

func TestEventKind_RoundTrip(t *testing.T) {
	kinds := []EventKind{KindWorkflowChanged, KindComposite, KindDirtyState, KindAppState, KindToast, KindUpdateAvailable}
	for _, k := range kinds {
		assert.Equal(t, k, ParseKind(k.String()), k.String())
	}
	assert.Equal(t, KindUnknown, ParseKind("SomethingElse"))
	assert.Equal(t, "", KindUnknown.String())
	assert.Equal(t, "", EventKind(99).String())
}
