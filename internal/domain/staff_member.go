package domain

// StaffRole enumerates internal operator roles.
type StaffRole string

const (
	StaffRoleAgent      StaffRole = "AGENT"
	StaffRoleSupervisor StaffRole = "SUPERVISOR"
	StaffRoleManager    StaffRole = "MANAGER"
)

// StaffMember is a read-only view of a hotel employee as published by the
// identity system. Only on-duty members are eligible for auto-assignment.
type StaffMember struct {
	ID           string
	Name         string
	LocationID   string
	DepartmentID string
	Role         StaffRole
	OnDuty       bool
}
