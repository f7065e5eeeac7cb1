package repository

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/campusops/equipment-service/internal/errs"
	"github.com/campusops/equipment-service/internal/model"
)

// Transition is one conditional status move: applied only if the current
// status is in From, together with the fields the move sets.
type Transition struct {
	From           []model.Status
	To             model.Status
	ApprovedBy     *string
	ApprovedAt     *time.Time
	IssuedAt       *time.Time
	ReturnDate     *time.Time
	ConditionAfter *model.Condition
	Notes          *string
	Damage         *model.DamageReport
}

type Store interface {
	CreateEquipment(ctx context.Context, eq model.Equipment) (model.Equipment, error)
	GetEquipment(ctx context.Context, uid string) (model.Equipment, error)
	ListEquipment(ctx context.Context, showAll bool, page, size int) (model.ListEquipment, error)
	UpdateEquipmentMeta(ctx context.Context, uid string, req model.UpdateEquipmentRequest) (model.Equipment, error)
	DeactivateEquipment(ctx context.Context, uid string) error

	ReserveStock(ctx context.Context, uid string, quantity int) error
	ReleaseStock(ctx context.Context, uid string, quantity int) error
	ResizeStock(ctx context.Context, uid string, oldTotal, newTotal int) error
	ReconcileStock(ctx context.Context, uid string) (available int, changed bool, err error)
	ActiveEquipmentUids(ctx context.Context) ([]string, error)

	CreateReservation(ctx context.Context, rsv model.Reservation) (model.Reservation, error)
	GetReservation(ctx context.Context, uid string) (model.Reservation, error)
	ListReservations(ctx context.Context, filter model.ReservationFilter) ([]model.Reservation, error)
	TransitionReservation(ctx context.Context, uid string, tr Transition) (model.Reservation, error)
	PromoteOverdue(ctx context.Context, now time.Time) (int, error)
}

type repository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

const (
	equipmentTableName   = `equipment`
	reservationTableName = `reservation`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var equipmentColumns = []string{
	"id", "equipment_uid", "name", "description", "condition",
	"total_count", "available_count", "active", "created_at", "updated_at",
}

func (r *repository) CreateEquipment(ctx context.Context, eq model.Equipment) (model.Equipment, error) {
	q, args, err := qb.Insert(equipmentTableName).
		Columns("equipment_uid", "name", "description", "condition", "total_count", "available_count", "active").
		Values(eq.EquipmentUid, eq.Name, eq.Description, eq.Condition, eq.TotalCount, eq.AvailableCount, true).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.Equipment{}, err
	}
	var res model.Equipment
	if err := r.db.GetContext(ctx, &res, q, args...); err != nil {
		r.log.Error("CreateEquipment", zap.String("q", q), zap.Any("args", args))
		return model.Equipment{}, err
	}
	return res, nil
}

func (r *repository) GetEquipment(ctx context.Context, uid string) (model.Equipment, error) {
	q, args, err := qb.Select(equipmentColumns...).
		From(equipmentTableName).
		Where(sq.Eq{"equipment_uid": uid}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Equipment{}, err
	}
	var eq model.Equipment
	if err := r.db.GetContext(ctx, &eq, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Equipment{}, errs.ErrNotFound
		}
		return model.Equipment{}, err
	}
	return eq, nil
}

func (r *repository) ListEquipment(ctx context.Context, showAll bool, page, size int) (model.ListEquipment, error) {
	q := qb.Select(equipmentColumns...).
		From(equipmentTableName).
		OrderBy("id")
	if !showAll {
		q = q.Where(sq.Eq{"active": true})
	}
	if page != 0 && size != 0 {
		q = q.Limit(uint64(size)).Offset(uint64((page - 1) * size))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return model.ListEquipment{}, err
	}
	var items []model.Equipment
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return model.ListEquipment{}, err
	}
	return model.ListEquipment{
		Paging: model.Paging{
			Page:          page,
			PageSize:      size,
			TotalElements: len(items),
		},
		Items: items,
	}, nil
}

func (r *repository) UpdateEquipmentMeta(ctx context.Context, uid string, req model.UpdateEquipmentRequest) (model.Equipment, error) {
	q := qb.Update(equipmentTableName).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"equipment_uid": uid})
	if req.Name != nil {
		q = q.Set("name", *req.Name)
	}
	if req.Description != nil {
		q = q.Set("description", *req.Description)
	}
	if req.Condition != nil {
		q = q.Set("condition", *req.Condition)
	}
	query, args, err := q.Suffix("returning *").ToSql()
	if err != nil {
		return model.Equipment{}, err
	}
	var eq model.Equipment
	if err := r.db.GetContext(ctx, &eq, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Equipment{}, errs.ErrNotFound
		}
		return model.Equipment{}, err
	}
	return eq, nil
}

func (r *repository) DeactivateEquipment(ctx context.Context, uid string) error {
	q := `update equipment set active = false, updated_at = now() where equipment_uid = $1`
	res, err := r.db.ExecContext(ctx, q, uid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ReserveStock is the single atomic check-and-decrement: the predicate and
// the write are one statement, so concurrent approvals serialize on the row.
func (r *repository) ReserveStock(ctx context.Context, uid string, quantity int) error {
	q := `
	update equipment
	set available_count = available_count - $2, updated_at = now()
	where equipment_uid = $1 and active and available_count >= $2`
	res, err := r.db.ExecContext(ctx, q, uid, quantity)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation {
			return errs.ErrInsufficientStock
		}
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	eq, err := r.GetEquipment(ctx, uid)
	if err != nil {
		return err
	}
	if !eq.Active {
		return errs.ErrInactive
	}
	return errs.ErrInsufficientStock
}

// ReleaseStock clamps at total_count so a double release cannot push the
// available count past what exists.
func (r *repository) ReleaseStock(ctx context.Context, uid string, quantity int) error {
	q := `
	update equipment
	set available_count = least(total_count, available_count + $2), updated_at = now()
	where equipment_uid = $1`
	res, err := r.db.ExecContext(ctx, q, uid, quantity)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *repository) ResizeStock(ctx context.Context, uid string, oldTotal, newTotal int) error {
	q := `
	update equipment
	set total_count     = $3,
	    available_count = greatest(0, least($3, available_count + ($3 - $2))),
	    updated_at      = now()
	where equipment_uid = $1`
	res, err := r.db.ExecContext(ctx, q, uid, oldTotal, newTotal)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ReconcileStock recomputes the available count from the active reservations,
// erasing whatever drift partial failures left behind. Idempotent.
func (r *repository) ReconcileStock(ctx context.Context, uid string) (int, bool, error) {
	// the prev subquery reads the pre-update snapshot, so RETURNING can
	// report whether the recompute actually moved the count
	q := `
	update equipment e
	set available_count = greatest(0, e.total_count - coalesce((
	        select sum(quantity) from reservation
	        where equipment_uid = e.equipment_uid
	          and status = any($2)
	    ), 0)),
	    updated_at = now()
	from (select equipment_uid, available_count as prev_available
	      from equipment where equipment_uid = $1) prev
	where e.equipment_uid = prev.equipment_uid
	returning e.available_count, prev.prev_available`
	var available, prev int
	err := r.db.QueryRowContext(ctx, q, uid, statusList(model.ActiveStatuses)).Scan(&available, &prev)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, errs.ErrNotFound
		}
		return 0, false, err
	}
	return available, available != prev, nil
}

func (r *repository) ActiveEquipmentUids(ctx context.Context) ([]string, error) {
	q, args, err := qb.Select("equipment_uid").
		From(equipmentTableName).
		Where(sq.Eq{"active": true}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	var uids []string
	if err := r.db.SelectContext(ctx, &uids, q, args...); err != nil {
		return nil, err
	}
	return uids, nil
}

func (r *repository) CreateReservation(ctx context.Context, rsv model.Reservation) (model.Reservation, error) {
	q, args, err := qb.Insert(reservationTableName).
		Columns("reservation_uid", "equipment_uid", "username", "quantity", "status",
			"borrow_date", "due_date", "condition_before").
		Values(rsv.ReservationUid, rsv.EquipmentUid, rsv.Username, rsv.Quantity, rsv.Status,
			rsv.BorrowDate, rsv.DueDate, rsv.ConditionBefore).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.Reservation{}, err
	}
	var row reservationRow
	if err := r.db.GetContext(ctx, &row, q, args...); err != nil {
		r.log.Error("CreateReservation", zap.String("q", q), zap.Any("args", args))
		return model.Reservation{}, err
	}
	return row.toModel(), nil
}

func (r *repository) GetReservation(ctx context.Context, uid string) (model.Reservation, error) {
	q, args, err := qb.Select("*").
		From(reservationTableName).
		Where(sq.Eq{"reservation_uid": uid}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Reservation{}, err
	}
	var row reservationRow
	if err := r.db.GetContext(ctx, &row, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Reservation{}, errs.ErrNotFound
		}
		return model.Reservation{}, err
	}
	return row.toModel(), nil
}

func (r *repository) ListReservations(ctx context.Context, filter model.ReservationFilter) ([]model.Reservation, error) {
	q := qb.Select("*").
		From(reservationTableName).
		OrderBy("id")
	if filter.Username != "" {
		q = q.Where(sq.Eq{"username": filter.Username})
	}
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": filter.Status})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	var rows []reservationRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	items := make([]model.Reservation, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toModel())
	}
	return items, nil
}

// TransitionReservation applies the move only when the current status is in
// tr.From, so two concurrent calls yield exactly one winner.
func (r *repository) TransitionReservation(ctx context.Context, uid string, tr Transition) (model.Reservation, error) {
	q := qb.Update(reservationTableName).
		Set("status", tr.To).
		Where(sq.Eq{"reservation_uid": uid}).
		Where(sq.Eq{"status": statusList(tr.From)})
	if tr.ApprovedBy != nil {
		q = q.Set("approved_by", *tr.ApprovedBy)
	}
	if tr.ApprovedAt != nil {
		q = q.Set("approved_at", *tr.ApprovedAt)
	}
	if tr.IssuedAt != nil {
		q = q.Set("issued_at", *tr.IssuedAt)
	}
	if tr.ReturnDate != nil {
		q = q.Set("return_date", *tr.ReturnDate)
	}
	if tr.ConditionAfter != nil {
		q = q.Set("condition_after", *tr.ConditionAfter)
	}
	if tr.Notes != nil {
		q = q.Set("notes", *tr.Notes)
	}
	if tr.Damage != nil {
		q = q.Set("damage_description", tr.Damage.Description).
			Set("damage_reported_at", tr.Damage.ReportedAt).
			Set("damage_reported_by", tr.Damage.ReportedBy).
			Set("repair_status", tr.Damage.RepairStatus)
	}
	query, args, err := q.Suffix("returning *").ToSql()
	if err != nil {
		return model.Reservation{}, err
	}
	var row reservationRow
	if err := r.db.GetContext(ctx, &row, query, args...); err == nil {
		return row.toModel(), nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, err
	}
	// no row moved: missing uid vs wrong source status
	current, err := r.GetReservation(ctx, uid)
	if err != nil {
		return model.Reservation{}, err
	}
	return current, errs.ErrInvalidTransition
}

// PromoteOverdue flips every lapsed active reservation to OVERDUE in one
// statement. No ledger effect: the stock was already counted as committed.
func (r *repository) PromoteOverdue(ctx context.Context, now time.Time) (int, error) {
	q := `
	update reservation
	set status = $1
	where status = any($2) and due_date < $3 and return_date is null`
	res, err := r.db.ExecContext(ctx, q, model.StatusOverdue,
		statusList([]model.Status{model.StatusApproved, model.StatusIssued}), now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func statusList(statuses []model.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
