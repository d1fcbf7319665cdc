package sync

import "time"

const (
	InvoiceStatusPaid    = "Paid"
	InvoiceStatusPartial = "Partial"
	InvoiceStatusOverdue = "Overdue"
	InvoiceStatusSent    = "Sent"
	InvoiceStatusDraft   = "Draft"
)

const emailStatusSent = "EmailSent"

// DeriveInvoiceStatus classifies an invoice.  The precedence order
// matters: a fully paid invoice is Paid even when past due, and a
// partially paid one is Partial for the same reason.
func DeriveInvoiceStatus(balance float64, total float64, dueDate time.Time, emailStatus string, now time.Time) string {

	if balance == 0 {
		return InvoiceStatusPaid
	}

	if balance < total {
		return InvoiceStatusPartial
	}

	if !dueDate.IsZero() && dueDate.Before(now) {
		return InvoiceStatusOverdue
	}

	if emailStatus == emailStatusSent {
		return InvoiceStatusSent
	}

	return InvoiceStatusDraft
}
