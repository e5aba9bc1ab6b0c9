package billing

// DisplayStatus is the three-way label shown for a client in lists and
// search results. It is derived from the latest payment and latest
// consumption record only.
type DisplayStatus string

const (
	StatusExcess  DisplayStatus = "excess"
	StatusPaid    DisplayStatus = "paid"
	StatusPending DisplayStatus = "pending"
)

// DisplayStatus derives the client's badge. Priority order matters: excess
// consumption on the latest reading wins over a paid latest payment, so a
// client that both overconsumed and paid is shown as excess.
func (v ClientStatusView) DisplayStatus() DisplayStatus {
	switch {
	case v.ExcessConsumption > 0:
		return StatusExcess
	case v.PaymentStatus == PaymentPaid:
		return StatusPaid
	default:
		return StatusPending
	}
}
