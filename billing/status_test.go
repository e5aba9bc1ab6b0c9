package billing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aguaflow/waterdesk/billing"
)

func TestDisplayStatus_Priority(t *testing.T) {
	tests := []struct {
		name   string
		excess float64
		paySt  string
		want   billing.DisplayStatus
	}{
		{"no history", 0, billing.PaymentPending, billing.StatusPending},
		{"paid latest payment", 0, billing.PaymentPaid, billing.StatusPaid},
		{"pending latest payment", 0, billing.PaymentPending, billing.StatusPending},
		{"excess overrides paid", 5, billing.PaymentPaid, billing.StatusExcess},
		{"excess overrides pending", 0.5, billing.PaymentPending, billing.StatusExcess},
		{"zero excess is not excess", 0, billing.PaymentPaid, billing.StatusPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := billing.ClientStatusView{
				ExcessConsumption: tt.excess,
				PaymentStatus:     tt.paySt,
			}
			assert.Equal(t, tt.want, v.DisplayStatus())
		})
	}
}
