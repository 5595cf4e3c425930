package editor

import (
	"fmt"
	"sync"

	"github.com/designpm/designpm-core/internal/core/domain"
)

// Action is a user interaction on a fragment or field.
type Action string

const (
	// ActionEdit is an in-progress change (keystroke level)
	ActionEdit Action = "edit"

	// ActionCommit is a focus-loss commit of a field value
	ActionCommit Action = "commit"

	// ActionDelete removes a fragment; it requires confirmation
	ActionDelete Action = "delete"

	// ActionView opens a media item or document
	ActionView Action = "view"

	// ActionAdd appends a blank fragment to a container
	ActionAdd Action = "add"
)

// PersistMode tells the caller how an action's result should reach storage.
type PersistMode int

const (
	PersistNone PersistMode = iota
	PersistDebounced
	PersistImmediate
)

// Event is one dispatched interaction. Field events (header, dashboard) carry
// Role and Field; fragment events carry NodeID and are routed by the role of
// the container holding the node.
type Event struct {
	Role      Role   `json:"role,omitempty"`
	Action    Action `json:"action"`
	NodeID    string `json:"nodeId,omitempty"`
	Field     string `json:"field,omitempty"`
	Cell      int    `json:"cell,omitempty"`
	Value     string `json:"value,omitempty"`
	Confirmed bool   `json:"confirmed,omitempty"`
}

// Outcome is what a handler did.
type Outcome struct {
	Persist   PersistMode       `json:"persist"`
	Recompute bool              `json:"recompute"`
	View      *domain.MediaItem `json:"view,omitempty"`
	Removed   []string          `json:"removed,omitempty"`
	Created   string            `json:"created,omitempty"`
}

// Handler applies one action. n is nil for field events.
type Handler func(s *Surface, n *Node, ev Event) (Outcome, error)

// Binder registers its handlers on a dispatcher.
type Binder interface {
	Bind(d *Dispatcher)
}

// BinderFunc adapts a function to Binder.
type BinderFunc func(d *Dispatcher)

// Bind calls f(d).
func (f BinderFunc) Bind(d *Dispatcher) { f(d) }

type dispatchKey struct {
	role   Role
	action Action
}

// Dispatcher is the central table mapping (container role, action) to a handler.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[dispatchKey]Handler
	binders  []Binder
}

// NewDispatcher creates a dispatcher with handlers from every binder registered.
func NewDispatcher(binders ...Binder) *Dispatcher {
	d := &Dispatcher{handlers: make(map[dispatchKey]Handler)}
	d.Rebind(binders...)
	return d
}

// Register sets the handler for (role, action), replacing any existing one.
func (d *Dispatcher) Register(role Role, action Action, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[dispatchKey{role, action}] = h
}

// Handles reports whether (role, action) has a handler.
func (d *Dispatcher) Handles(role Role, action Action) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[dispatchKey{role, action}]
	return ok
}

// Rebind clears the table and re-registers every binder. Called with no
// arguments it re-registers the binders from the previous Rebind.
func (d *Dispatcher) Rebind(binders ...Binder) {
	d.mu.Lock()
	if len(binders) == 0 {
		binders = d.binders
	}
	d.binders = binders
	d.handlers = make(map[dispatchKey]Handler)
	d.mu.Unlock()

	for _, b := range binders {
		b.Bind(d)
	}
}

// Dispatch routes ev to its handler and recomputes derived displays when the
// handler asks for it. Deletes without confirmation are refused before any mutation.
func (d *Dispatcher) Dispatch(s *Surface, ev Event) (Outcome, error) {
	var node *Node
	role := ev.Role
	if ev.NodeID != "" {
		n, ok := s.Find(ev.NodeID)
		if !ok {
			return Outcome{}, fmt.Errorf("node %s: %w", ev.NodeID, domain.ErrTargetGone)
		}
		if !n.Supports(ev.Action) {
			return Outcome{}, fmt.Errorf("%s on %s: %w", ev.Action, n.Kind, domain.ErrInvalidInput)
		}
		node = n
		role = n.parent.Role
	}

	d.mu.RLock()
	h, ok := d.handlers[dispatchKey{role, ev.Action}]
	d.mu.RUnlock()
	if !ok {
		return Outcome{}, fmt.Errorf("no handler for %s/%s: %w", role, ev.Action, domain.ErrInvalidInput)
	}

	if ev.Action == ActionDelete && !ev.Confirmed {
		return Outcome{}, domain.ErrConfirmationRequired
	}

	out, err := h(s, node, ev)
	if err != nil {
		return Outcome{}, err
	}
	if out.Recompute {
		Recompute(s)
	}
	return out, nil
}
