package domain

import (
	"strings"
	"unicode/utf8"
)

// Guard names a transition precondition. A violated guard surfaces to
// callers as a conflict carrying the guard name.
type Guard string

const (
	GuardNotAssignable      Guard = "NotAssignable"
	GuardAlreadyAssigned    Guard = "AlreadyAssigned"
	GuardNotAssignedToActor Guard = "NotAssignedToActor"
	GuardNotEligible        Guard = "NotEligible"
	GuardWrongState         Guard = "WrongState"
	GuardResolutionTooShort Guard = "ResolutionTooShort"
)

// CheckAccept validates a technician self-service accept against the
// current ticket state. The store-level conditional write remains the
// authority under concurrency; this pre-check exists so ineligible or
// plainly invalid attempts never touch the store.
func CheckAccept(t *Ticket, tech *Technician) (Guard, bool) {
	if !tech.Eligible() {
		return GuardNotEligible, false
	}
	if t.Status != TicketStatusOpen || t.AssignedTo != nil {
		return GuardAlreadyAssigned, false
	}
	return "", true
}

// CheckComplete validates resolution of a ticket by its assignee.
// Guard order follows the operation contract: resolution length first,
// then state, then ownership.
func CheckComplete(t *Ticket, technicianID, resolution string) (Guard, bool) {
	if utf8.RuneCountInString(strings.TrimSpace(resolution)) < MinResolutionLength {
		return GuardResolutionTooShort, false
	}
	if t.Status != TicketStatusInProgress {
		return GuardWrongState, false
	}
	if t.AssignedTo == nil || *t.AssignedTo != technicianID {
		return GuardNotAssignedToActor, false
	}
	return "", true
}

// CheckManualTransition validates an administrative status override.
// Closing is allowed from any non-closed state (resolvedAt back-fills at
// close time so resolvedAt <= closedAt always holds). Moving into an
// assigned state requires a current assignee; reopening to ABERTO is the
// only transition that sheds the assignee.
func CheckManualTransition(t *Ticket, next TicketStatus, resolution string) (Guard, bool) {
	if !ValidStatus(next) {
		return GuardWrongState, false
	}
	if AssignedStatus(next) && t.AssignedTo == nil {
		return GuardNotAssignable, false
	}
	switch next {
	case TicketStatusClosed:
		if t.Status == TicketStatusClosed {
			return GuardWrongState, false
		}
	case TicketStatusResolved:
		if t.Resolution == nil && utf8.RuneCountInString(strings.TrimSpace(resolution)) < MinResolutionLength {
			return GuardResolutionTooShort, false
		}
	case TicketStatusOpen:
		// reopen: always permitted, assignment is cleared by the caller
	}
	return "", true
}
