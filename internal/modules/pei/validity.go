package pei

import (
	"math"
	"time"
)

type ValidityStatus string

const (
	ValidityValid        ValidityStatus = "valid"
	ValidityExpiringSoon ValidityStatus = "expiring_soon"
	ValidityExpired      ValidityStatus = "expired"
)

const (
	DefaultValidityMonths = 12
	daysPerMonth          = 30
	renewalWindowDays     = 30
)

type ValidityInfo struct {
	ApprovalDate    time.Time      `json:"approval_date"`
	ExpiryDate      time.Time      `json:"expiry_date"`
	DaysUntilExpiry int            `json:"days_until_expiry"`
	Status          ValidityStatus `json:"status"`
	NeedsRenewal    bool           `json:"needs_renewal"`
}

// ExpiryDate uses fixed 30-day months.
func ExpiryDate(approval time.Time, periodMonths int) time.Time {
	return approval.Add(time.Duration(periodMonths*daysPerMonth) * 24 * time.Hour)
}

func ComputeValidity(approval time.Time, periodMonths int, now time.Time) ValidityInfo {
	expiry := ExpiryDate(approval, periodMonths)
	days := int(math.Floor(expiry.Sub(now).Hours() / 24))

	status := ValidityValid
	switch {
	case days <= 0:
		status = ValidityExpired
	case days <= renewalWindowDays:
		status = ValidityExpiringSoon
	}
	return ValidityInfo{
		ApprovalDate:    approval,
		ExpiryDate:      expiry,
		DaysUntilExpiry: days,
		Status:          status,
		NeedsRenewal:    days <= renewalWindowDays,
	}
}
