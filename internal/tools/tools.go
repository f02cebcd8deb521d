// Package tools tracks which interaction tool owns each input gesture. The
// primary button is owned by exactly one of rotate/pan/zoom; the wheel is
// permanently bound to zoom.
package tools

// Tool identifies an interaction tool.
type Tool uint8

const (
	Rotate Tool = iota
	Pan
	Zoom
)

var toolNames = map[string]Tool{
	"rotate": Rotate,
	"pan":    Pan,
	"zoom":   Zoom,
}

// Parse maps a tool name to a Tool.
func Parse(s string) (Tool, bool) {
	t, ok := toolNames[s]
	return t, ok
}

func (t Tool) String() string {
	switch t {
	case Rotate:
		return "rotate"
	case Pan:
		return "pan"
	case Zoom:
		return "zoom"
	}
	return "?"
}

// Gesture identifies an abstract input channel.
type Gesture uint8

const (
	PrimaryButton Gesture = iota
	Wheel
)

// Bindings maps gestures to tools. The zero value is not usable; use New.
type Bindings struct {
	active map[Gesture]Tool
}

// New returns the initial bindings: rotate on the primary button, zoom on
// the wheel.
func New() *Bindings {
	b := &Bindings{active: make(map[Gesture]Tool, 2)}
	b.SetActiveTool(Rotate)
	return b
}

// SetActiveTool passivates all primary-button bindings, re-asserts the
// wheel-to-zoom binding and activates the requested tool for the primary
// button. Calling it twice with the same tool leaves the state unchanged.
func (b *Bindings) SetActiveTool(t Tool) {
	delete(b.active, PrimaryButton)
	// Always re-applied, even though nothing should ever unbind it.
	b.active[Wheel] = Zoom
	b.active[PrimaryButton] = t
}

// ActiveTool returns the tool bound to the primary button.
func (b *Bindings) ActiveTool() Tool {
	return b.active[PrimaryButton]
}

// ToolFor returns the tool bound to a gesture.
func (b *Bindings) ToolFor(g Gesture) (Tool, bool) {
	t, ok := b.active[g]
	return t, ok
}
