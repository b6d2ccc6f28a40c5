package domain

import "time"

// InstrumentType is the top of the instrument taxonomy (e.g. manometer).
type InstrumentType struct {
	ID   ID     `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// InstrumentModel identifies a manufacturer model within a type. Check
// cadence requirements attach to the model, not to individual instruments.
type InstrumentModel struct {
	ID               ID      `json:"id"`
	InstrumentTypeID ID      `json:"instrument_type_id"`
	Manufacturer     string  `json:"manufacturer"`
	ModelName        string  `json:"model_name"`
	Description      *string `json:"description,omitempty"`
}

// Instrument is one physical measuring device. LocationID must always point
// at a location owned by OrgUnitID; the consistency guard enforces this on
// every write.
type Instrument struct {
	ID      ID `json:"id"`
	ModelID ID `json:"instrument_model_id"`

	InventoryNo string  `json:"inventory_no"`
	SerialNo    *string `json:"serial_no,omitempty"`

	RangeMin      *float64 `json:"range_min,omitempty"`
	RangeMax      *float64 `json:"range_max,omitempty"`
	RangeUnit     *string  `json:"range_unit,omitempty"`
	ErrorLimit    *float64 `json:"error_limit,omitempty"`
	ErrorUnit     *string  `json:"error_unit,omitempty"`
	AccuracyClass *string  `json:"accuracy_class,omitempty"`

	OrgUnitID   ID         `json:"org_unit_id"`
	LocationID  ID         `json:"location_id"`
	InstalledAt *time.Time `json:"installed_at,omitempty"`

	StatusID     ID  `json:"status_id"`
	ReplacedByID *ID `json:"replaced_by_instrument_id,omitempty"`

	DecommissionedAt   *time.Time `json:"decommissioned_at,omitempty"`
	DecommissionReason *string    `json:"decommission_reason,omitempty"`
}

// StatusHistoryEntry is one interval of the instrument's status timeline:
// [ValidFrom, ValidTo), with the open interval having ValidTo == nil.
type StatusHistoryEntry struct {
	ID           ID         `json:"id"`
	InstrumentID ID         `json:"instrument_id"`
	StatusID     ID         `json:"status_id"`
	ValidFrom    time.Time  `json:"valid_from"`
	ValidTo      *time.Time `json:"valid_to,omitempty"`
	Reason       string     `json:"reason"`
}
