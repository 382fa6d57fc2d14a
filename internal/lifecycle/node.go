// Package lifecycle provides the start/stop state machine shared by every
// long-lived component. Components embed a *Node and register children so
// that stopping a parent stops the whole subtree.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State of a component.
type State int

const (
	StateNew State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Hooks are the component specific halves of Start and Stop.
type Hooks struct {
	// StartUp runs after the NEW check. An error leaves the node in NEW.
	StartUp func() error
	// Shutdown runs after children were asked to stop. It must eventually
	// call MarkStopped; a nil Shutdown marks the node stopped immediately.
	Shutdown func()
}

// Component is anything carrying a lifecycle Node, usually by embedding.
type Component interface {
	Name() string
	Start() error
	Stop() error
	State() State
	lifecycleNode() *Node
}

// Node is the lifecycle state machine. The zero value is not usable; create
// one with NewNode.
type Node struct {
	name  string
	hooks Hooks

	mu       sync.Mutex
	state    State
	parent   *Node
	children []*Node
}

// NewNode creates a node in StateNew.
func NewNode(name string, hooks Hooks) *Node {
	return &Node{name: name, hooks: hooks, state: StateNew}
}

func (n *Node) lifecycleNode() *Node { return n }

// Name identifies the component in logs.
func (n *Node) Name() string {
	return n.name
}

// Start moves NEW to RUNNING and runs the StartUp hook. A failing hook
// returns the node to NEW.
func (n *Node) Start() error {
	n.mu.Lock()
	if n.state != StateNew {
		state := n.state
		n.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrAlreadyStarted, n.name, state)
	}
	// Loops launched by StartUp must observe RUNNING.
	n.state = StateRunning
	n.mu.Unlock()

	if n.hooks.StartUp != nil {
		if err := n.hooks.StartUp(); err != nil {
			n.mu.Lock()
			n.state = StateNew
			n.mu.Unlock()
			return fmt.Errorf("%w: %s: %w", ErrStartupFailed, n.name, err)
		}
	}
	slog.Debug("component started", "component", n.name)
	return nil
}

// Stop moves RUNNING to STOPPING, stops every running child, then runs the
// Shutdown hook.
func (n *Node) Stop() error {
	n.mu.Lock()
	if n.state != StateRunning {
		state := n.state
		n.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrNotRunning, n.name, state)
	}
	n.state = StateStopping
	children := append([]*Node(nil), n.children...)
	n.mu.Unlock()

	for _, child := range children {
		if child.ownState() != StateRunning {
			continue
		}
		if err := child.Stop(); err != nil {
			slog.Debug("child already stopping", "component", n.name, "child", child.name, "error", err)
		}
	}

	if n.hooks.Shutdown != nil {
		n.hooks.Shutdown()
	} else {
		n.MarkStopped()
	}
	return nil
}

// MarkStopped records that the component finished shutting down. Loops that
// end on their own call it while still RUNNING.
func (n *Node) MarkStopped() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == StateRunning || n.state == StateStopping {
		n.state = StateStopped
		slog.Debug("component stopped", "component", n.name)
	}
}

// State returns the externally observed state: a stopped node with any
// child not yet stopped still reports STOPPING.
func (n *Node) State() State {
	n.mu.Lock()
	state := n.state
	children := append([]*Node(nil), n.children...)
	n.mu.Unlock()

	if state != StateStopped {
		return state
	}
	for _, child := range children {
		if child.State() != StateStopped {
			return StateStopping
		}
	}
	return StateStopped
}

func (n *Node) ownState() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// AddChild registers c under n. A child already owned elsewhere is moved.
func (n *Node) AddChild(c Component) {
	child := c.lifecycleNode()
	if child == n {
		return
	}
	if old := child.Parent(); old != nil && old != n {
		old.removeNode(child)
	}

	n.mu.Lock()
	for _, existing := range n.children {
		if existing == child {
			n.mu.Unlock()
			return
		}
	}
	n.children = append(n.children, child)
	n.mu.Unlock()

	child.mu.Lock()
	child.parent = n
	child.mu.Unlock()
}

// RemoveChild unregisters c without changing its state.
func (n *Node) RemoveChild(c Component) {
	n.removeNode(c.lifecycleNode())
}

func (n *Node) removeNode(child *Node) {
	n.mu.Lock()
	for i, existing := range n.children {
		if existing == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			break
		}
	}
	n.mu.Unlock()

	child.mu.Lock()
	if child.parent == n {
		child.parent = nil
	}
	child.mu.Unlock()
}

// Detach removes n from its parent, if any.
func (n *Node) Detach() {
	if parent := n.Parent(); parent != nil {
		parent.removeNode(n)
	}
}

// Parent returns the owning node or nil.
func (n *Node) Parent() *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.parent
}

// ChildCount returns the number of registered children.
func (n *Node) ChildCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.children)
}

// WaitStopped polls until the observed state is STOPPED or ctx ends.
func (n *Node) WaitStopped(ctx context.Context, poll time.Duration) error {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		if n.State() == StateStopped {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s did not stop: %w", n.name, ctx.Err())
		case <-ticker.C:
		}
	}
}
