// Package policy maps a principal's role to the actions it may perform.
// Every function here is pure.
package policy

import (
	"github.com/google/uuid"

	"github.com/zenbook/service-booking/internal/domain/booking"
	"github.com/zenbook/service-booking/internal/domain/identity"
	"github.com/zenbook/service-booking/internal/domain/therapist"
	"github.com/zenbook/service-booking/internal/platform/apperror"
)

// Action names an operation subject to role checks.
type Action string

const (
	ActionCreateBooking         Action = "create_booking"
	ActionViewOwnBookings       Action = "view_own_bookings"
	ActionUpdatePendingBooking  Action = "update_pending_booking"
	ActionDeletePendingBooking  Action = "delete_pending_booking"
	ActionAcceptBooking         Action = "accept_booking"
	ActionDeclineBooking        Action = "decline_booking"
	ActionAdvanceStatus         Action = "advance_status"
	ActionToggleOwnAvailability Action = "toggle_own_availability"
	ActionManageUsers           Action = "manage_users"
	ActionManageTherapists      Action = "manage_therapists"
	ActionManageAdmins          Action = "manage_admins"
	ActionViewAllBookings       Action = "view_all_bookings"
	ActionForceDeleteBooking    Action = "force_delete_booking"
	ActionDeleteAdmin           Action = "delete_admin"
)

// Target is the entity an action applies to. Unused fields stay zero.
type Target struct {
	Booking *booking.Booking
	Profile *therapist.Profile
	UserID  uuid.UUID
}

// roleActions lists the actions each role may attempt; entity checks follow in CanPerform.
var roleActions = map[identity.Role]map[Action]bool{
	identity.RoleCustomer: {
		ActionCreateBooking:        true,
		ActionViewOwnBookings:      true,
		ActionUpdatePendingBooking: true,
		ActionDeletePendingBooking: true,
	},
	identity.RoleTherapist: {
		ActionViewOwnBookings:       true,
		ActionAcceptBooking:         true,
		ActionDeclineBooking:        true,
		ActionAdvanceStatus:         true,
		ActionToggleOwnAvailability: true,
	},
	identity.RoleStaff: {
		ActionManageUsers:        true,
		ActionManageTherapists:   true,
		ActionViewAllBookings:    true,
		ActionForceDeleteBooking: true,
	},
	identity.RoleSuperAdmin: {
		ActionManageUsers:        true,
		ActionManageTherapists:   true,
		ActionViewAllBookings:    true,
		ActionForceDeleteBooking: true,
		ActionManageAdmins:       true,
		ActionDeleteAdmin:        true,
	},
}

// RoleAllows reports whether role may attempt action at all, before any entity check.
func RoleAllows(role identity.Role, action Action) bool {
	return roleActions[role][action]
}

// CanPerform reports whether p may perform action on target.
func CanPerform(p identity.Principal, action Action, target Target) bool {
	if p.IsZero() || !roleActions[p.Role][action] {
		return false
	}

	switch action {
	case ActionUpdatePendingBooking, ActionDeletePendingBooking:
		b := target.Booking
		return b != nil && b.IsCustomer(p.ID) && b.IsPending()
	case ActionAcceptBooking, ActionDeclineBooking, ActionAdvanceStatus:
		return target.Booking != nil && target.Booking.IsAssignedTo(p.ID)
	case ActionToggleOwnAvailability:
		return target.Profile != nil && target.Profile.IsOwnedBy(p.ID)
	case ActionDeleteAdmin:
		return target.UserID != uuid.Nil && target.UserID != p.ID
	}
	return true
}

// Authorize is CanPerform returning a Forbidden error on refusal.
func Authorize(p identity.Principal, action Action, target Target) error {
	if p.IsZero() {
		return apperror.NewUnauthenticatedError("Unauthenticated.")
	}
	if CanPerform(p, action, target) {
		return nil
	}
	if action == ActionDeleteAdmin && target.UserID == p.ID && roleActions[p.Role][action] {
		return apperror.NewForbiddenError("You cannot delete your own account.")
	}
	return apperror.NewForbiddenError("You are not allowed to perform this action.")
}
