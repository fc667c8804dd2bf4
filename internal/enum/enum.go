package enum

// ── Group A: Roles carried in JWT claims ──

const (
	RoleShopper = "SHOPPER"
	RoleAdmin   = "ADMIN"
)

// ── Group B: WebSocket event types pushed to a session room ──

const (
	EventTotalsUpdated = "totals.updated"
	EventSubmitState   = "submit.state"
	EventOrderPlaced   = "order.placed"
	EventSessionClosed = "session.closed"
)

// ── Group C: Row events accepted from the page ──

const (
	RowEventProduct   = "product"
	RowEventQuantity  = "quantity"
	RowEventBlur      = "blur"
	RowEventIncrement = "increment"
	RowEventDecrement = "decrement"
	RowEventNotes     = "notes"
	RowEventFocus     = "focus"
	RowEventWheel     = "wheel"
)

// RowEvents lists every accepted row event type.
var RowEvents = []string{
	RowEventProduct,
	RowEventQuantity,
	RowEventBlur,
	RowEventIncrement,
	RowEventDecrement,
	RowEventNotes,
	RowEventFocus,
	RowEventWheel,
}
