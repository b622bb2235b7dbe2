// Package chat implements the conversational state machine as a pure
// reducer. Given the current session state and one inbound message it
// decides the reply, the next session state, and any side effect the caller
// must perform (listing the catalog, submitting an order). The reducer does
// no I/O at all, which keeps the state machine unit-testable without a live
// messaging channel, session store, or database; services.ConversationService
// is the thin adapter that interprets the outcome.
package chat

import (
	"fmt"
	"strconv"
	"strings"
)

// State identifies where a conversation currently is.
type State string

const (
	// StateIdle is the resting state; an absent session means idle.
	StateIdle State = "idle"
	// StateAwaitingOrderItems means the previous message was the "order"
	// command and the next message is parsed as an item list.
	StateAwaitingOrderItems State = "awaiting_order_items"
)

// Action tells the adapter which side effect, if any, the outcome requires.
type Action int

const (
	// ActionNone: send the reply as-is.
	ActionNone Action = iota
	// ActionListProducts: fetch the catalog and format it as the reply.
	ActionListProducts
	// ActionSubmitOrder: submit Outcome.Order and format the result (or the
	// failure) as the reply.
	ActionSubmitOrder
)

// Input is one inbound message plus the channel metadata that rides along
// with it.
type Input struct {
	// From is the conversation identifier (the sender's phone number).
	From string
	// Text is the message body, already trimmed and lowercased by the caller.
	Text string
	// ProfileName is the sender's display name when the channel supplies it.
	ProfileName string
}

// ItemRequest is one parsed order line: a free-text product name and a
// positive quantity.
type ItemRequest struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// OrderRequest is the order-submission side effect produced by a successful
// parse of an item list.
type OrderRequest struct {
	Items         []ItemRequest
	CustomerPhone string
	CustomerName  string
}

// Outcome is the reducer's decision for one inbound message.
type Outcome struct {
	// Reply is the canned reply text. For ActionListProducts and
	// ActionSubmitOrder the adapter replaces it with the formatted result.
	Reply string
	// Next is the session state after this message. StateIdle means the
	// session is cleared (idle sessions are not stored).
	Next State
	// Action is the side effect the adapter must perform.
	Action Action
	// Order is set when Action is ActionSubmitOrder.
	Order *OrderRequest
}

// Canned reply texts. These are customer-facing strings sent verbatim over
// the messaging channel.
const (
	ReplyGreeting = "👋 Hey there! Welcome to our WhatsApp bot."
	ReplyHelp     = "Here are some commands you can try:\n- 'products' \n- 'order'\n- 'status'\n- 'hi'"
	ReplyOrderArm = "📦 Please send your order items like: 2 apples, 1 milk"
	ReplyStatus   = "🔎 Checking your order status... (this will connect to DB later)"
	ReplyBadOrder = "❌ I couldn't understand your order. Please try again with format: '2 apples, 1 milk'"
)

// Reduce interprets one inbound message against the current state.
//
// In StateIdle the fixed commands hi/hello, help, products, status, and
// order are recognized; anything else yields a fallback reply and the
// session stays absent. The "order" command arms StateAwaitingOrderItems.
//
// In StateAwaitingOrderItems the message is parsed as an item list. The
// session exits back to idle after exactly one attempt, successful or not:
// a customer whose list did not parse must send "order" again. This mirrors
// the shipped behavior and is deliberate; do not re-arm the session here.
func Reduce(state State, in Input) Outcome {
	if state == StateAwaitingOrderItems {
		items := ParseOrderItems(in.Text)
		if len(items) == 0 {
			return Outcome{Reply: ReplyBadOrder, Next: StateIdle}
		}
		return Outcome{
			Next:   StateIdle,
			Action: ActionSubmitOrder,
			Order: &OrderRequest{
				Items:         items,
				CustomerPhone: in.From,
				CustomerName:  in.ProfileName,
			},
		}
	}

	switch in.Text {
	case "hi", "hello":
		return Outcome{Reply: ReplyGreeting, Next: StateIdle}
	case "help":
		return Outcome{Reply: ReplyHelp, Next: StateIdle}
	case "order":
		return Outcome{Reply: ReplyOrderArm, Next: StateAwaitingOrderItems}
	case "status":
		return Outcome{Reply: ReplyStatus, Next: StateIdle}
	case "products":
		return Outcome{Next: StateIdle, Action: ActionListProducts}
	default:
		return Outcome{
			Reply: fmt.Sprintf("I didn't understand %q. Type 'help' to see options.", in.Text),
			Next:  StateIdle,
		}
	}
}

// ParseOrderItems parses a comma-separated list of "<quantity> <name>"
// segments. Each segment splits on the first whitespace run into quantity
// and name; a segment counts only when the quantity parses as a positive
// integer and the name is non-empty. Invalid segments are dropped silently,
// so "2 apples, nonsense, 1 milk" yields two items and a fully invalid
// input yields none.
func ParseOrderItems(text string) []ItemRequest {
	var out []ItemRequest
	for _, seg := range strings.Split(text, ",") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		fields := strings.Fields(seg)
		if len(fields) < 2 {
			continue
		}
		qty, err := strconv.Atoi(fields[0])
		if err != nil || qty <= 0 {
			continue
		}
		name := strings.Join(fields[1:], " ")
		out = append(out, ItemRequest{Name: name, Quantity: qty})
	}
	return out
}
