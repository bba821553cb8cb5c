// Package domain contains the core entities for LAI-PrEP bridge period assessment:
// the configuration records that parameterize the risk model, the patient profile,
// intervention recommendations and the resulting assessment.
//
// Reference: Demidont & Backus (2025). Bridging the Gap: The PrEP Cascade Paradigm
// Shift for Long-Acting Injectable HIV Prevention.
package domain

import (
	"errors"
	"fmt"
)

// PrEPStatus is the patient's current relationship to oral PrEP.
type PrEPStatus string

const (
	PrEPNaive            PrEPStatus = "naive"
	PrEPOral             PrEPStatus = "oral_prep"
	PrEPDiscontinuedOral PrEPStatus = "discontinued_oral"
)

// IsValid reports whether s is one of the recognised PrEP statuses.
func (s PrEPStatus) IsValid() bool {
	switch s {
	case PrEPNaive, PrEPOral, PrEPDiscontinuedOral:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status.
func (s PrEPStatus) String() string {
	return string(s)
}

// InsuranceStatus describes how the patient's care is paid for.
type InsuranceStatus string

const (
	InsuranceInsured      InsuranceStatus = "insured"
	InsuranceUninsured    InsuranceStatus = "uninsured"
	InsuranceUnderinsured InsuranceStatus = "underinsured"
	InsuranceParental     InsuranceStatus = "parental"
)

// IsValid reports whether s is one of the recognised insurance statuses.
func (s InsuranceStatus) IsValid() bool {
	switch s {
	case InsuranceInsured, InsuranceUninsured, InsuranceUnderinsured, InsuranceParental:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status.
func (s InsuranceStatus) String() string {
	return string(s)
}

// Priority orders recommendations. Critical sorts before High before Moderate;
// anything else sorts last.
type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityModerate Priority = "Moderate"
)

// Rank returns the sort rank of the priority (lower is more urgent).
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityModerate:
		return 2
	default:
		return 3
	}
}

// String returns the string representation of the priority.
func (p Priority) String() string {
	return string(p)
}

// Method identifies the numeric strategy used to aggregate barrier risk.
type Method string

const (
	MethodLinear Method = "linear"
	MethodLogit  Method = "logit_space"
)

// DisplayName returns the label used in human-readable reports.
func (m Method) DisplayName() string {
	switch m {
	case MethodLogit:
		return "Logit Space"
	case MethodLinear:
		return "Linear"
	default:
		return "Unknown"
	}
}

// DayRange is an inclusive (min, max) bridge duration in days.
// It decodes from and encodes to a two-element JSON array.
type DayRange [2]int

// Min returns the lower bound in days.
func (r DayRange) Min() int { return r[0] }

// Max returns the upper bound in days.
func (r DayRange) Max() int { return r[1] }

// String renders the range as "min-max days".
func (r DayRange) String() string {
	return fmt.Sprintf("%d-%d days", r[0], r[1])
}

// Interval is a (lower, upper) confidence interval in percentage points.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Validation errors for patient input
var (
	ErrInvalidPrEPStatus      = errors.New("invalid PrEP status")
	ErrInvalidInsuranceStatus = errors.New("invalid insurance status")
)
