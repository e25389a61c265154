package input

// KeyType distinguishes the two keyboard notifications the router listens to.
type KeyType string

const (
	KeyPress KeyType = "keypress"
	KeyDown  KeyType = "keydown"
)

// KeyEvent is a keyboard notification with its DOM key value.
type KeyEvent struct {
	Type KeyType
	Key  string
}

// TouchType is the DOM touch event type, forwarded to the module as the phase.
type TouchType string

const (
	TouchStart  TouchType = "touchstart"
	TouchMove   TouchType = "touchmove"
	TouchEnd    TouchType = "touchend"
	TouchCancel TouchType = "touchcancel"
)

// Touch is one touch point in page coordinates.
type Touch struct {
	Identifier int
	PageX      float64
	PageY      float64
}

// TouchEvent carries the touches that changed in this notification.
type TouchEvent struct {
	Type           TouchType
	ChangedTouches []Touch
}

// Rect is the canvas bounding rectangle in page coordinates.
type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Kind tags a normalized Event.
type Kind string

const (
	KindKey   Kind = "key"
	KindTouch Kind = "touch"
)

// Event is the normalized record forwarded to the module.
// Key is set for KindKey; X, Y and Phase for KindTouch.
type Event struct {
	Kind  Kind
	Key   string
	X     float64
	Y     float64
	Phase TouchType
}

// KeyHandler handles a key event and reports whether the default action is suppressed.
type KeyHandler func(KeyEvent) bool

// TouchHandler handles a touch event and reports whether the default action is suppressed.
type TouchHandler func(TouchEvent) bool

// Subscription is a registered listener with an explicit teardown.
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func()

func (f SubscriptionFunc) Unsubscribe() { f() }

// Group tears down several subscriptions at once, in reverse order.
type Group []Subscription

func (g Group) Unsubscribe() {
	for i := len(g) - 1; i >= 0; i-- {
		if g[i] != nil {
			g[i].Unsubscribe()
		}
	}
}

// Source delivers DOM-like input notifications to handlers.
type Source interface {
	OnKey(typ KeyType, h KeyHandler) Subscription
	OnTouch(typ TouchType, h TouchHandler) Subscription
}

// Canvas reports the canvas bounding rectangle.
type Canvas interface {
	BoundingRect() Rect
}
