package core

// ChangeKind names one of the outbound change signals.
type ChangeKind string

const (
	ChangeRowAdded         ChangeKind = "row_added"
	ChangeRowUpdated       ChangeKind = "row_updated"
	ChangeCellUpdated      ChangeKind = "cell_updated"
	ChangePeriodAdded      ChangeKind = "period_added"
	ChangeStructureChanged ChangeKind = "structure_changed"
)

// StructureChange is the sub-kind of a structure_changed signal.
type StructureChange string

const (
	StructurePeriodDeleted StructureChange = "period_deleted"
	StructureRowDeleted    StructureChange = "row_deleted"
)

// ChangeEvent carries the minimal data an external system needs to replay
// one mutation. Only the fields relevant to Kind are set, except Value which
// is always encoded so a cleared cell reads as null.
type ChangeEvent struct {
	Kind      ChangeKind      `json:"kind"`
	Structure StructureChange `json:"structure,omitempty"`
	RowID     int64           `json:"row_id,omitempty"`
	PeriodID  int64           `json:"period_id,omitempty"`
	ParentID  *int64          `json:"parent_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Order     *int            `json:"order,omitempty"`
	Fields    *RowFields      `json:"fields,omitempty"`
	Value     *float64        `json:"value"`
}

// RowAddedEvent describes a newly created row.
func RowAddedEvent(r Row) ChangeEvent {
	fields := r.Fields()
	return ChangeEvent{
		Kind:     ChangeRowAdded,
		RowID:    r.ID,
		ParentID: r.ParentID,
		Fields:   &fields,
	}
}

// RowUpdatedEvent describes the resulting text fields of an updated row.
func RowUpdatedEvent(id int64, fields RowFields) ChangeEvent {
	return ChangeEvent{
		Kind:   ChangeRowUpdated,
		RowID:  id,
		Fields: &fields,
	}
}

// CellUpdatedEvent describes a cell value write. A nil value clears the cell.
func CellUpdatedEvent(rowID, periodID int64, value *float64) ChangeEvent {
	return ChangeEvent{
		Kind:     ChangeCellUpdated,
		RowID:    rowID,
		PeriodID: periodID,
		Value:    value,
	}
}

// PeriodAddedEvent describes a newly created period.
func PeriodAddedEvent(p Period) ChangeEvent {
	order := p.Order
	return ChangeEvent{
		Kind:     ChangePeriodAdded,
		PeriodID: p.ID,
		Name:     p.Name,
		Order:    &order,
	}
}

// PeriodDeletedEvent describes a removed period.
func PeriodDeletedEvent(id int64) ChangeEvent {
	return ChangeEvent{
		Kind:      ChangeStructureChanged,
		Structure: StructurePeriodDeleted,
		PeriodID:  id,
	}
}

// RowDeletedEvent describes a removed row (and, implicitly, its subtree).
func RowDeletedEvent(id int64) ChangeEvent {
	return ChangeEvent{
		Kind:      ChangeStructureChanged,
		Structure: StructureRowDeleted,
		RowID:     id,
	}
}
