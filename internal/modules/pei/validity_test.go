package pei

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeValidity(t *testing.T) {
	approval := time.Date(2025, 2, 10, 14, 30, 0, 0, time.UTC)
	day := 24 * time.Hour

	cases := []struct {
		name       string
		period     int
		now        time.Time
		wantDays   int
		wantStatus ValidityStatus
		wantRenew  bool
	}{
		{"fresh approval", 12, approval, 360, ValidityValid, false},
		{"just before window", 12, approval.Add(329 * day), 31, ValidityValid, false},
		{"window boundary", 12, approval.Add(330 * day), 30, ValidityExpiringSoon, true},
		{"exactly elapsed", 12, approval.Add(360 * day), 0, ValidityExpired, true},
		{"long elapsed", 12, approval.Add(400 * day), -40, ValidityExpired, true},
		{"one month period", 1, approval.Add(25 * day), 5, ValidityExpiringSoon, true},
		{"partial day floors", 1, approval.Add(25*day + time.Hour), 4, ValidityExpiringSoon, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeValidity(approval, tc.period, tc.now)
			assert.Equal(t, tc.wantDays, got.DaysUntilExpiry)
			assert.Equal(t, tc.wantStatus, got.Status)
			assert.Equal(t, tc.wantRenew, got.NeedsRenewal)
			assert.Equal(t, approval.Add(time.Duration(tc.period*30)*day), got.ExpiryDate)
			assert.Equal(t, approval, got.ApprovalDate)
		})
	}
}
