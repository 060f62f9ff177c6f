package domain

type InvoiceStatus string

const (
	InvoicePaid              InvoiceStatus = "paid"
	InvoicePartial           InvoiceStatus = "partial"
	InvoiceDue               InvoiceStatus = "due"
	InvoiceReturned          InvoiceStatus = "returned"
	InvoicePartiallyReturned InvoiceStatus = "partially_returned"
)

// SettlementStatus derives the status of a freshly completed sale from its
// payment amounts.
func SettlementStatus(paidCents, dueCents int64) InvoiceStatus {
	if dueCents <= 0 {
		return InvoicePaid
	}
	if paidCents > 0 {
		return InvoicePartial
	}
	return InvoiceDue
}

// ReturnStatus transitions an invoice status after a return has been applied
// to its items. An invoice never reverts out of the returned states: once
// returned or partially_returned, the only remaining transition is
// partially_returned -> returned when the last line is fully returned.
func ReturnStatus(current InvoiceStatus, items []InvoiceItem) InvoiceStatus {
	if current == InvoiceReturned {
		return InvoiceReturned
	}
	fully := true
	any := false
	for _, item := range items {
		if item.ReturnedQuantity > 0 {
			any = true
		}
		if item.ReturnedQuantity < item.Quantity {
			fully = false
		}
	}
	if fully && len(items) > 0 {
		return InvoiceReturned
	}
	if any || current == InvoicePartiallyReturned {
		return InvoicePartiallyReturned
	}
	return current
}

// IsReturnState reports whether the status is one of the terminal-ish return
// states.
func IsReturnState(status InvoiceStatus) bool {
	return status == InvoiceReturned || status == InvoicePartiallyReturned
}
