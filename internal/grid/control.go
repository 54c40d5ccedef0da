package grid

// ─────────────────────────────────────────────────────────────
// Control: draft / applied / server synchronization
// ─────────────────────────────────────────────────────────────

// ControlConfig wires a Control to its conversions and to the outside
// world. D is the editable draft, A the validated value, S the server form.
type ControlConfig[D, A, S any] struct {
	DraftToApplied       func(D) A
	AppliedToServer      func(A) S
	ServerToDraft        func(S) D
	ServerValuesAreEqual func(a, b S) bool

	// GetCurrentServerValue polls the value the remote source last reported
	// (or, without a remote, the value the table should start from).
	GetCurrentServerValue func() S
	// GetResetValue is what Reset restores.
	GetResetValue func() S

	IsEnabled     bool
	DisabledValue S
	// Paginated means changes to this aspect need a remote round trip.
	Paginated bool
}

// Control holds the three representations of one data operation. Applied
// and server are always derived from draft; nothing else writes them.
//
// A Control is not safe for concurrent use; Table serializes access.
type Control[D, A, S any] struct {
	cfg     ControlConfig[D, A, S]
	enabled bool

	draft   D
	applied A
	server  S

	// lastRemote is the remote value seen by the previous Sync.
	lastRemote S
}

// NewControl builds a control initialised from the current server value,
// or from the disabled value when the control starts disabled.
func NewControl[D, A, S any](cfg ControlConfig[D, A, S]) *Control[D, A, S] {
	c := &Control[D, A, S]{cfg: cfg, enabled: cfg.IsEnabled}
	c.lastRemote = cfg.GetCurrentServerValue()
	if c.enabled {
		c.store(cfg.ServerToDraft(c.lastRemote))
	} else {
		c.store(cfg.ServerToDraft(cfg.DisabledValue))
	}
	return c
}

func (c *Control[D, A, S]) store(draft D) {
	c.draft = draft
	c.applied = c.cfg.DraftToApplied(draft)
	c.server = c.cfg.AppliedToServer(c.applied)
}

// Draft returns the live editable value.
func (c *Control[D, A, S]) Draft() D { return c.draft }

// Applied returns the validated value derived from the draft.
func (c *Control[D, A, S]) Applied() A { return c.applied }

// Server returns the server form derived from the applied value.
func (c *Control[D, A, S]) Server() S { return c.server }

// IsEnabled reports whether the control accepts edits.
func (c *Control[D, A, S]) IsEnabled() bool { return c.enabled }

// Set replaces the draft. It is a no-op while disabled.
func (c *Control[D, A, S]) Set(draft D) {
	if !c.enabled {
		return
	}
	c.store(draft)
}

// Update applies fn to the current draft.
func (c *Control[D, A, S]) Update(fn func(D) D) {
	c.Set(fn(c.draft))
}

// Reset restores the reset value, or the disabled value when disabled.
func (c *Control[D, A, S]) Reset() {
	if !c.enabled {
		c.store(c.cfg.ServerToDraft(c.cfg.DisabledValue))
		return
	}
	c.store(c.cfg.ServerToDraft(c.cfg.GetResetValue()))
}

// SetIsEnabled toggles the control. Disabling collapses every
// representation to the disabled value; enabling re-derives the draft from
// the current remote value.
func (c *Control[D, A, S]) SetIsEnabled(enabled bool) {
	if enabled == c.enabled {
		return
	}
	c.enabled = enabled
	if !enabled {
		c.Reset()
		return
	}
	c.Set(c.cfg.ServerToDraft(c.cfg.GetCurrentServerValue()))
}

// Sync is the once-per-pass passive resync. In paginated mode, when the
// remote value changed since the last pass, local edits are discarded and
// the draft is re-derived from it. It reports whether that happened.
func (c *Control[D, A, S]) Sync() bool {
	if !c.cfg.Paginated {
		return false
	}
	remote := c.cfg.GetCurrentServerValue()
	if c.cfg.ServerValuesAreEqual(c.lastRemote, remote) {
		return false
	}
	c.lastRemote = remote
	c.Set(c.cfg.ServerToDraft(remote))
	return true
}

// IsServerValueStale is true when, in paginated mode, the local server
// form differs from what the remote source last reported.
func (c *Control[D, A, S]) IsServerValueStale() bool {
	if !c.cfg.Paginated {
		return false
	}
	return !c.cfg.ServerValuesAreEqual(c.server, c.cfg.GetCurrentServerValue())
}
