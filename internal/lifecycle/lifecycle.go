// Package lifecycle holds the pure state-transition rules for a lead's
// outreach status and its eligibility for conversion to a client record.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/leadscout/internal/model"
)

// transitions is the directed edge table for lead statuses. Self-transitions
// are always allowed (a no-op update) and are not listed here.
var transitions = map[model.LeadStatus][]model.LeadStatus{
	model.LeadStatusPending:   {model.LeadStatusApproved, model.LeadStatusRejected},
	model.LeadStatusApproved:  {model.LeadStatusContacted, model.LeadStatusRejected},
	model.LeadStatusContacted: {model.LeadStatusResponded, model.LeadStatusInactive},
	model.LeadStatusResponded: {model.LeadStatusInactive},
	model.LeadStatusRejected:  {},
	model.LeadStatusInactive:  {},
}

// TransitionError reports an attempted move along a disallowed edge.
// Callers can present it as a client error rather than an internal fault.
type TransitionError struct {
	From    model.LeadStatus
	To      model.LeadStatus
	Allowed []model.LeadStatus
}

func (e *TransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("invalid transition %s -> %s: %s is terminal", e.From, e.To, e.From)
	}
	names := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		names[i] = string(s)
	}
	return fmt.Sprintf("invalid transition %s -> %s (valid: %s)", e.From, e.To, strings.Join(names, ", "))
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to model.LeadStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AssertTransition returns a *TransitionError when to is unreachable from
// from, naming the disallowed edge and the valid alternatives.
func AssertTransition(from, to model.LeadStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return &TransitionError{From: from, To: to, Allowed: transitions[from]}
}

// ConversionError reports a rejected lead-to-client conversion attempt.
type ConversionError struct {
	Reason string
}

func (e *ConversionError) Error() string {
	return e.Reason
}

// AssertConvertible checks the conversion gate: only approved leads that are
// not already clients may be converted.
func AssertConvertible(lead *model.Lead) error {
	if lead.Converted {
		return &ConversionError{Reason: "already a client"}
	}
	if lead.Status != model.LeadStatusApproved {
		return &ConversionError{
			Reason: fmt.Sprintf("only approved leads can be converted, current status: %s", lead.Status),
		}
	}
	return nil
}

// Convert marks the lead as a client after the conversion gate passes.
// Conversion is orthogonal to the status machine: it sets a one-way flag
// plus converter metadata and does not change the lead's status.
func Convert(lead *model.Lead, convertedBy string, now time.Time) error {
	if err := AssertConvertible(lead); err != nil {
		return err
	}
	ts := now.UTC()
	lead.Converted = true
	lead.ConvertedBy = convertedBy
	lead.ConvertedAt = &ts
	return nil
}
