package grid_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"gridkit/internal/grid"
)

// remoteString is a fake remote source holding one string value.
type remoteString struct {
	value string
}

func newStringControl(remote *remoteString, paginated, enabled bool) *grid.Control[string, string, string] {
	identity := func(s string) string { return s }
	return grid.NewControl(grid.ControlConfig[string, string, string]{
		DraftToApplied:        strings.TrimSpace,
		AppliedToServer:       strings.ToLower,
		ServerToDraft:         identity,
		ServerValuesAreEqual:  func(a, b string) bool { return a == b },
		GetCurrentServerValue: func() string { return remote.value },
		GetResetValue:         func() string { return "reset" },
		IsEnabled:             enabled,
		DisabledValue:         "off",
		Paginated:             paginated,
	})
}

func TestControl_DerivesAppliedAndServer(t *testing.T) {
	c := newStringControl(&remoteString{value: "start"}, false, true)
	assert.Equal(t, "start", c.Draft())

	c.Set("  Hello ")

	assert.Equal(t, "  Hello ", c.Draft())
	assert.Equal(t, "Hello", c.Applied())
	assert.Equal(t, "hello", c.Server())

	c.Update(func(d string) string { return d + "!" })
	assert.Equal(t, "hello !", c.Server())

	c.Reset()
	assert.Equal(t, "reset", c.Draft())
}

func TestControl_StaleDetection(t *testing.T) {
	remote := &remoteString{value: "a"}
	c := newStringControl(remote, true, true)
	assert.False(t, c.IsServerValueStale())

	c.Set("B")
	assert.True(t, c.IsServerValueStale())

	// Remote confirms the edit.
	remote.value = "b"
	assert.False(t, c.IsServerValueStale())
}

func TestControl_SyncDiscardsLocalEdits(t *testing.T) {
	remote := &remoteString{value: "a"}
	c := newStringControl(remote, true, true)

	c.Set("local")
	assert.False(t, c.Sync(), "unchanged remote keeps local edits")
	assert.Equal(t, "local", c.Draft())

	remote.value = "remote"
	assert.True(t, c.Sync())
	assert.Equal(t, "remote", c.Draft())
	assert.False(t, c.IsServerValueStale())

	assert.False(t, c.Sync(), "each remote value is applied once")
}

func TestControl_NotPaginated(t *testing.T) {
	remote := &remoteString{value: "a"}
	c := newStringControl(remote, false, true)

	c.Set("zzz")
	remote.value = "other"

	assert.False(t, c.IsServerValueStale())
	assert.False(t, c.Sync())
	assert.Equal(t, "zzz", c.Draft())
}

func TestControl_Disabled(t *testing.T) {
	remote := &remoteString{value: "a"}
	c := newStringControl(remote, true, false)

	assert.Equal(t, "off", c.Draft())
	c.Set("ignored")
	assert.Equal(t, "off", c.Draft())
	c.Reset()
	assert.Equal(t, "off", c.Draft())

	c.SetIsEnabled(true)
	assert.True(t, c.IsEnabled())
	assert.Equal(t, "a", c.Draft())

	c.SetIsEnabled(false)
	assert.Equal(t, "off", c.Server())
}
