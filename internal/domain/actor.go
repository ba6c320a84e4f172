package domain

// ActorType differentiates who performed an action on a ticket.
type ActorType string

const (
	ActorTypeGuest     ActorType = "GUEST"
	ActorTypeStaff     ActorType = "STAFF"
	ActorTypeSystem    ActorType = "SYSTEM"
	ActorTypeFrontDesk ActorType = "FRONT_DESK"
)

// Valid reports whether t is a known actor type.
func (t ActorType) Valid() bool {
	switch t {
	case ActorTypeGuest, ActorTypeStaff, ActorTypeSystem, ActorTypeFrontDesk:
		return true
	}
	return false
}

// Actor is the shared shape of everyone acting on a ticket. ID is nil for SYSTEM.
type Actor struct {
	Type         ActorType
	ID           *string
	Role         *StaffRole
	LocationID   string
	DepartmentID *string
}

// SystemActor returns the actor used by background workers.
func SystemActor(locationID string) Actor {
	return Actor{Type: ActorTypeSystem, LocationID: locationID}
}

// IDValue returns the actor identifier or an empty string.
func (a Actor) IDValue() string {
	if a.ID == nil {
		return ""
	}
	return *a.ID
}

// IsSupervisor reports whether the actor may decide escalations.
func (a Actor) IsSupervisor() bool {
	if a.Type != ActorTypeStaff || a.Role == nil {
		return false
	}
	return *a.Role == StaffRoleSupervisor || *a.Role == StaffRoleManager
}
