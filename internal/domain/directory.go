package domain

// OrgUnit is an organizational unit; units form a tree via ParentID.
type OrgUnit struct {
	ID       ID     `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	ParentID *ID    `json:"parent_id,omitempty"`
}

// Location is a physical place owned by exactly one org unit. Location codes
// are unique within their org unit.
type Location struct {
	ID        ID     `json:"id"`
	OrgUnitID ID     `json:"org_unit_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
}

// Lab performs verifications and calibrations.
type Lab struct {
	ID              ID                `json:"id"`
	Code            string            `json:"code"`
	Name            string            `json:"name"`
	AccreditationNo *string           `json:"accreditation_no,omitempty"`
	Contacts        map[string]string `json:"contacts,omitempty"`
}

// Specialist is a person performing checks, optionally attached to a lab.
type Specialist struct {
	ID       ID      `json:"id"`
	LabID    *ID     `json:"lab_id,omitempty"`
	FullName string  `json:"full_name"`
	Position *string `json:"position,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}
