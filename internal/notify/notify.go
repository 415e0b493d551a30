// Package notify is the outbound event port of the reservation engine. Publishing is
// fire-and-forget: a failed delivery is logged and never rolls back a committed change.
package notify

import "github.com/google/uuid"

// Event names published after committed transitions.
const (
	EventReservationCreated   = "reservation_created"
	EventReservationApproved  = "reservation_approved"
	EventReservationDenied    = "reservation_denied"
	EventReservationCancelled = "reservation_cancelled"
	EventReservationStarted   = "reservation_started"
	EventReservationEnded     = "reservation_ended"
	EventReservationExpired   = "reservation_expired"
	EventReservationCompleted = "reservation_completed"
	EventExtensionRequested   = "extension_requested"
	EventExtensionApproved    = "extension_approved"
	EventExtensionDenied      = "extension_denied"
	EventAvailabilityChanged  = "availability_changed"
)

// Audience selects who receives an event.
type Audience struct {
	Kind   AudienceKind
	UserID uuid.UUID
}

// AudienceKind is one of user, admins, broadcast.
type AudienceKind string

const (
	AudienceUser      AudienceKind = "user"
	AudienceAdmins    AudienceKind = "admins"
	AudienceBroadcast AudienceKind = "broadcast"
)

var (
	// Admins reaches every administrator session.
	Admins = Audience{Kind: AudienceAdmins}
	// Broadcast reaches everyone watching availability.
	Broadcast = Audience{Kind: AudienceBroadcast}
)

// User addresses a single user.
func User(id uuid.UUID) Audience {
	return Audience{Kind: AudienceUser, UserID: id}
}

// Channel returns the pub/sub channel for the audience.
func (a Audience) Channel() string {
	switch a.Kind {
	case AudienceUser:
		return channelPrefix + "user:" + a.UserID.String()
	case AudienceAdmins:
		return channelPrefix + "admins"
	default:
		return channelPrefix + "broadcast"
	}
}

// Nop drops every event.
type Nop struct{}

// Notify implements the port.
func (Nop) Notify(Audience, string, any) {}
