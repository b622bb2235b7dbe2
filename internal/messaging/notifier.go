package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Notifier sends customer-facing status updates over any TextSender.
// Every notification is best effort: failures are logged and swallowed so
// order processing never depends on provider availability.
type Notifier struct {
	sender TextSender
	log    zerolog.Logger
}

// NewNotifier wraps a sender.
func NewNotifier(sender TextSender, log zerolog.Logger) *Notifier {
	return &Notifier{sender: sender, log: log}
}

// PhotoCaptured tells the customer the delivery is underway.
func (n *Notifier) PhotoCaptured(ctx context.Context, phone, orderID string) {
	msg := fmt.Sprintf(`📸 Great news! Your delivery is in progress.

Order #%s
✅ Photo captured by our delivery agent
🚚 Your order is on its way!

You'll get another update once delivery is completed.`, orderID)
	n.send(ctx, phone, "photo_captured", msg)
}

// DeliveryCompleted confirms delivery with the signature holder's name.
func (n *Notifier) DeliveryCompleted(ctx context.Context, phone, orderID, customerName string) {
	msg := fmt.Sprintf(`✅ Delivery Completed!

Order #%s
✍️ Signature collected from: %s
📦 Your order has been successfully delivered

Thank you for choosing our service! 🙏`, orderID, customerName)
	n.send(ctx, phone, "delivery_completed", msg)
}

// KYCCompleted confirms identity verification.
func (n *Notifier) KYCCompleted(ctx context.Context, phone, orderID, customerName string) {
	msg := fmt.Sprintf(`👤 KYC Verification Complete

Order #%s
✅ Identity verification completed for: %s
📋 All documentation is now on file

Your order is fully processed. Thank you! 🎉`, orderID, customerName)
	n.send(ctx, phone, "kyc_completed", msg)
}

// StatusChanged reports a status transition. Known target statuses get a
// tailored message; anything else gets a generic transition line.
func (n *Notifier) StatusChanged(ctx context.Context, phone, orderID, oldStatus, newStatus string) {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Order Status Update\n\nOrder #%s\n", orderID)
	switch strings.ToLower(newStatus) {
	case "in_progress":
		b.WriteString(`🚀 Status: In Progress
📸 Our agent has started processing your delivery
⏱️ Expected completion within 2-4 hours`)
	case "delivered":
		b.WriteString(`✅ Status: Delivered
📦 Your order has been delivered
✍️ Signature collected for confirmation`)
	case "completed":
		b.WriteString(`🎉 Status: Completed
✅ All processing complete
📋 Documentation finalized
Thank you for your business!`)
	default:
		fmt.Fprintf(&b, "Status changed from %s → %s", oldStatus, newStatus)
	}
	n.send(ctx, phone, "status_changed", b.String())
}

func (n *Notifier) send(ctx context.Context, phone, kind, msg string) {
	if phone == "" {
		return
	}
	if err := n.sender.SendText(ctx, phone, msg); err != nil {
		n.log.Warn().Err(err).Str("to", phone).Str("notification", kind).
			Msg("customer notification failed")
	}
}
