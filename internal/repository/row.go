package repository

import (
	"database/sql"
	"time"

	"github.com/campusops/equipment-service/internal/model"
)

// reservationRow is the flat scan target: the damage report lives in nullable
// columns of the reservation table and folds into the embedded struct only
// when present.
type reservationRow struct {
	ID                int              `db:"id"`
	ReservationUid    string           `db:"reservation_uid"`
	EquipmentUid      string           `db:"equipment_uid"`
	Username          string           `db:"username"`
	Quantity          int              `db:"quantity"`
	Status            model.Status     `db:"status"`
	BorrowDate        time.Time        `db:"borrow_date"`
	DueDate           time.Time        `db:"due_date"`
	ReturnDate        *time.Time       `db:"return_date"`
	ApprovedBy        *string          `db:"approved_by"`
	ApprovedAt        *time.Time       `db:"approved_at"`
	IssuedAt          *time.Time       `db:"issued_at"`
	ConditionBefore   model.Condition  `db:"condition_before"`
	ConditionAfter    *model.Condition `db:"condition_after"`
	Notes             *string          `db:"notes"`
	DamageDescription sql.NullString   `db:"damage_description"`
	DamageReportedAt  sql.NullTime     `db:"damage_reported_at"`
	DamageReportedBy  sql.NullString   `db:"damage_reported_by"`
	RepairStatus      sql.NullString   `db:"repair_status"`
	CreatedAt         time.Time        `db:"created_at"`
}

func (row reservationRow) toModel() model.Reservation {
	rsv := model.Reservation{
		ID:              row.ID,
		ReservationUid:  row.ReservationUid,
		EquipmentUid:    row.EquipmentUid,
		Username:        row.Username,
		Quantity:        row.Quantity,
		Status:          row.Status,
		BorrowDate:      row.BorrowDate,
		DueDate:         row.DueDate,
		ReturnDate:      row.ReturnDate,
		ApprovedBy:      row.ApprovedBy,
		ApprovedAt:      row.ApprovedAt,
		IssuedAt:        row.IssuedAt,
		ConditionBefore: row.ConditionBefore,
		ConditionAfter:  row.ConditionAfter,
		Notes:           row.Notes,
		CreatedAt:       row.CreatedAt,
	}
	if row.RepairStatus.Valid {
		rsv.Damage = &model.DamageReport{
			Description:  row.DamageDescription.String,
			ReportedAt:   row.DamageReportedAt.Time,
			ReportedBy:   row.DamageReportedBy.String,
			RepairStatus: model.RepairStatus(row.RepairStatus.String),
		}
	}
	return rsv
}
