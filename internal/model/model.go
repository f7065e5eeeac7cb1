package model

import (
	"time"
)

type Condition string

const (
	ConditionExcellent        Condition = "EXCELLENT"
	ConditionGood             Condition = "GOOD"
	ConditionFair             Condition = "FAIR"
	ConditionPoor             Condition = "POOR"
	ConditionUnderMaintenance Condition = "UNDER_MAINTENANCE"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusIssued   Status = "ISSUED"
	StatusReturned Status = "RETURNED"
	StatusRejected Status = "REJECTED"
	StatusOverdue  Status = "OVERDUE"
)

// ActiveStatuses are the statuses that commit stock against an equipment type.
var ActiveStatuses = []Status{StatusApproved, StatusIssued, StatusOverdue}

type RepairStatus string

const (
	RepairReported   RepairStatus = "REPORTED"
	RepairUnderway   RepairStatus = "UNDER_REPAIR"
	RepairRepaired   RepairStatus = "REPAIRED"
	RepairWrittenOff RepairStatus = "WRITTEN_OFF"
)

type Equipment struct {
	ID             int       `json:"-" db:"id"`
	EquipmentUid   string    `json:"equipmentUid" db:"equipment_uid"`
	Name           string    `json:"name" db:"name"`
	Description    string    `json:"description" db:"description"`
	Condition      Condition `json:"condition" db:"condition"`
	TotalCount     int       `json:"totalCount" db:"total_count"`
	AvailableCount int       `json:"availableCount" db:"available_count"`
	Active         bool      `json:"active" db:"active"`
	CreatedAt      time.Time `json:"-" db:"created_at"`
	UpdatedAt      time.Time `json:"-" db:"updated_at"`
}

// DamageReport is embedded in its reservation row; it exists iff the item
// came back in a different condition than it left.
type DamageReport struct {
	Description  string       `json:"description" db:"damage_description"`
	ReportedAt   time.Time    `json:"reportedAt" db:"damage_reported_at"`
	ReportedBy   string       `json:"reportedBy" db:"damage_reported_by"`
	RepairStatus RepairStatus `json:"repairStatus" db:"repair_status"`
}

type Reservation struct {
	ID              int           `json:"-" db:"id"`
	ReservationUid  string        `json:"reservationUid" db:"reservation_uid"`
	EquipmentUid    string        `json:"equipmentUid" db:"equipment_uid"`
	Username        string        `json:"username" db:"username"`
	Quantity        int           `json:"quantity" db:"quantity"`
	Status          Status        `json:"status" db:"status"`
	BorrowDate      time.Time     `json:"borrowDate" db:"borrow_date"`
	DueDate         time.Time     `json:"dueDate" db:"due_date"`
	ReturnDate      *time.Time    `json:"returnDate,omitempty" db:"return_date"`
	ApprovedBy      *string       `json:"approvedBy,omitempty" db:"approved_by"`
	ApprovedAt      *time.Time    `json:"approvedAt,omitempty" db:"approved_at"`
	IssuedAt        *time.Time    `json:"issuedAt,omitempty" db:"issued_at"`
	ConditionBefore Condition     `json:"conditionBefore" db:"condition_before"`
	ConditionAfter  *Condition    `json:"conditionAfter,omitempty" db:"condition_after"`
	Notes           *string       `json:"notes,omitempty" db:"notes"`
	Damage          *DamageReport `json:"damageReport,omitempty" db:"-"`
	CreatedAt       time.Time     `json:"-" db:"created_at"`
}

type CreateEquipmentRequest struct {
	Name        string    `json:"name" validate:"required"`
	Description string    `json:"description"`
	Condition   Condition `json:"condition" validate:"required,oneof=EXCELLENT GOOD FAIR POOR UNDER_MAINTENANCE"`
	TotalCount  int       `json:"totalCount" validate:"gte=0"`
}

type UpdateEquipmentRequest struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Condition   *Condition `json:"condition,omitempty" validate:"omitempty,oneof=EXCELLENT GOOD FAIR POOR UNDER_MAINTENANCE"`
	TotalCount  *int       `json:"totalCount,omitempty" validate:"omitempty,gte=0"`
}

type ListEquipment struct {
	Paging `json:",inline"`
	Items  []Equipment `json:"items"`
}

type Paging struct {
	Page          int `json:"page"`
	PageSize      int `json:"pageSize"`
	TotalElements int `json:"totalElements"`
}

type CreateReservationRequest struct {
	EquipmentUid string    `json:"equipmentUid" validate:"required"`
	Quantity     int       `json:"quantity" validate:"required"`
	DueDate      time.Time `json:"dueDate" validate:"required"`
	Username     string    `json:"-"`
}

type RejectRequest struct {
	Notes string `json:"notes"`
}

type ReturnRequest struct {
	Condition Condition `json:"condition" validate:"required,oneof=EXCELLENT GOOD FAIR POOR UNDER_MAINTENANCE"`
	Notes     string    `json:"notes"`
}

type ReservationFilter struct {
	Username string
	Status   Status
}

// ResizeMsg travels over the equipment-stock topic whenever a total count is
// edited. Old and new totals ride together so the ledger never has to guess
// the delta from hidden state.
type ResizeMsg struct {
	EquipmentUid string `json:"equipmentUid"`
	OldTotal     int    `json:"oldTotal"`
	NewTotal     int    `json:"newTotal"`
}

type SweepReport struct {
	StartedAt        time.Time     `json:"startedAt"`
	Duration         time.Duration `json:"duration"`
	OverduePromoted  int           `json:"overduePromoted"`
	EquipmentChecked int           `json:"equipmentChecked"`
	DriftCorrected   int           `json:"driftCorrected"`
	Errors           int           `json:"errors"`
}
