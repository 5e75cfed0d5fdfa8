package phase

// NodeID identifies a node within its shot's arena. The context never
// dereferences IDs; it only uses them as bookkeeping keys, so any scheme
// that is unique per shot works.
type NodeID int64

type callKey struct {
	node NodeID
	op   Op
}

type obligation struct {
	node  NodeID
	name  string
	phase Phase
	op    Op
}

// Context is the phase controller for one shot. It is created in
// AddDevices and lives exactly as long as the shot: bookkeeping is never
// shared between shots and never reset, which is why a failed compilation
// cannot be resumed.
//
// Not safe for concurrent use; compilation is single-threaded by design.
type Context struct {
	current     Phase
	called      map[callKey]bool
	obligations []obligation
	names       map[NodeID]string
}

// NewContext creates a controller in the AddDevices phase.
func NewContext() *Context {
	return &Context{
		current: AddDevices,
		called:  make(map[callKey]bool),
		names:   make(map[NodeID]string),
	}
}

// Current returns the shot's current phase.
func (c *Context) Current() Phase {
	return c.current
}

// Register records that the named node owes the given exactly-once
// operations in the given phase. Called at node construction; the
// obligations are audited when that phase is exited.
func (c *Context) Register(node NodeID, name string, p Phase, ops ...Op) {
	c.names[node] = name
	for _, op := range ops {
		c.obligations = append(c.obligations, obligation{
			node:  node,
			name:  name,
			phase: p,
			op:    op,
		})
	}
}

// Require fails with a WrongPhaseError unless the shot is currently in
// phase want. node and op name the operation for the error message.
func (c *Context) Require(want Phase, node string, op Op) error {
	if c.current != want {
		return &WrongPhaseError{Node: node, Op: op, Want: want, Current: c.current}
	}
	return nil
}

// CallOnce gates an exactly-once operation: it fails with a
// WrongPhaseError outside the declared phase and with an
// AlreadyCalledError on a repeat call, and otherwise records the call.
func (c *Context) CallOnce(node NodeID, want Phase, op Op) error {
	name := c.names[node]
	if err := c.Require(want, name, op); err != nil {
		return err
	}
	key := callKey{node: node, op: op}
	if c.called[key] {
		return &AlreadyCalledError{Node: name, Op: op, Phase: want}
	}
	c.called[key] = true
	return nil
}

// Called reports whether the exactly-once operation has fired on the
// node.
func (c *Context) Called(node NodeID, op Op) bool {
	return c.called[callKey{node: node, op: op}]
}

// Advance moves the machine to the next phase. It fails with a SkipError
// if to is not the immediately following phase, and with a NotCalledError
// if any obligation of the phase being exited has not fired. On failure
// the phase is left unadvanced.
func (c *Context) Advance(to Phase) error {
	if to != c.current+1 {
		return &SkipError{From: c.current, To: to}
	}
	for _, ob := range c.obligations {
		if ob.phase != c.current {
			continue
		}
		if !c.called[callKey{node: ob.node, op: ob.op}] {
			return &NotCalledError{Node: ob.name, Op: ob.op, Phase: c.current}
		}
	}
	c.current = to
	return nil
}
