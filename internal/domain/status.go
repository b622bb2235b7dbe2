// Package domain – order status derivation.
//
// An order's coarse status is a pure function of the three agent action
// flags (photo, signature, KYC). The derivation lives here, next to the
// persisted flags it is computed from, so there is exactly one place that
// decides what an order's status is.
package domain

// Status is the coarse, customer-visible order state.
type Status string

const (
	// StatusPending means no agent action has been recorded yet.
	StatusPending Status = "pending"
	// StatusInProgress means at least one action is recorded but delivery
	// is not yet confirmed.
	StatusInProgress Status = "in_progress"
	// StatusDelivered means delivery is confirmed (photo and signature),
	// even if KYC paperwork trails behind.
	StatusDelivered Status = "delivered"
	// StatusCompleted means all three agent actions are recorded.
	StatusCompleted Status = "completed"

	// Manually assignable states for orders that have no agent actions yet.
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusShipped   Status = "shipped"
	StatusCancelled Status = "cancelled"
)

// ManualStatuses enumerates the states a caller may assign through the
// status-update endpoint. Once any agent action exists the status is managed
// by DeriveStatus and manual assignment is rejected.
var ManualStatuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

// IsManual reports whether s is one of the manually assignable statuses.
func (s Status) IsManual() bool {
	for _, v := range ManualStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// AgentActions is the triple of delivery-step flags recorded by field agents.
type AgentActions struct {
	PhotoCaptured     bool
	SignatureCaptured bool
	KYCCompleted      bool
}

// Any reports whether at least one action has been recorded.
func (a AgentActions) Any() bool {
	return a.PhotoCaptured || a.SignatureCaptured || a.KYCCompleted
}

// DeriveStatus maps the recorded agent actions to the order status:
//
//	none recorded            -> pending
//	all three recorded       -> completed
//	photo + signature        -> delivered (KYC may still be outstanding)
//	anything else            -> in_progress
//
// Delivery confirmation (photo + signature) outranks partial KYC-only
// progress: delivery is the customer-visible milestone, paperwork can trail.
func DeriveStatus(a AgentActions) Status {
	switch {
	case !a.Any():
		return StatusPending
	case a.PhotoCaptured && a.SignatureCaptured && a.KYCCompleted:
		return StatusCompleted
	case a.PhotoCaptured && a.SignatureCaptured:
		return StatusDelivered
	default:
		return StatusInProgress
	}
}
