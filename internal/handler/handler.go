package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/campusops/equipment-service/internal/errs"
	"github.com/campusops/equipment-service/internal/model"
	"github.com/campusops/equipment-service/pkg/auth"
	"github.com/campusops/equipment-service/pkg/validate"
)

type Handler struct {
	equipmentSvc EquipmentService
	borrowingSvc BorrowingService
	sweepSvc     SweepService
	authCfg      auth.Config
	log          *zap.Logger
}

func New(equipmentSvc EquipmentService, borrowingSvc BorrowingService, sweepSvc SweepService, authCfg auth.Config, log *zap.Logger) *Handler {
	return &Handler{
		equipmentSvc: equipmentSvc,
		borrowingSvc: borrowingSvc,
		sweepSvc:     sweepSvc,
		authCfg:      authCfg,
		log:          log,
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", newRateLimiterMW(baseRPS))
	base.GET("/manage/health", h.Health)

	e.Validator = validate.NewCustomValidator()

	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(requestLoggerConfig(h.log)),
		middleware.RequestID(),
		newRateLimiterMW(apiRPS),
		auth.Middleware(h.authCfg),
	)

	staff := auth.Require(auth.RoleStaff, auth.RoleAdmin)
	admin := auth.Require(auth.RoleAdmin)

	api.GET("/equipment", h.ListEquipment)
	api.GET("/equipment/:equipmentUid", h.GetEquipment)
	api.POST("/equipment", h.CreateEquipment, admin)
	api.PATCH("/equipment/:equipmentUid", h.UpdateEquipment, admin)
	api.DELETE("/equipment/:equipmentUid", h.DeleteEquipment, admin)

	api.GET("/reservations", h.ListReservations)
	api.GET("/reservations/:reservationUid", h.GetReservation)
	api.POST("/reservations", h.CreateReservation)
	api.POST("/reservations/:reservationUid/approve", h.ApproveReservation, staff)
	api.POST("/reservations/:reservationUid/reject", h.RejectReservation, staff)
	api.POST("/reservations/:reservationUid/issue", h.IssueReservation, staff)
	api.POST("/reservations/:reservationUid/return", h.ReturnReservation, staff)

	api.POST("/reconciliation", h.RunReconciliation, admin)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) CreateEquipment(c echo.Context) error {
	var req model.CreateEquipmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	eq, err := h.equipmentSvc.Create(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, eq)
}

func (h *Handler) ListEquipment(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	showAll := c.QueryParam("all") == "true"
	list, err := h.equipmentSvc.List(c.Request().Context(), showAll, page, size)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) GetEquipment(c echo.Context) error {
	eq, err := h.equipmentSvc.Get(c.Request().Context(), c.Param("equipmentUid"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, eq)
}

func (h *Handler) UpdateEquipment(c echo.Context) error {
	var req model.UpdateEquipmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	eq, err := h.equipmentSvc.Update(c.Request().Context(), c.Param("equipmentUid"), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, eq)
}

func (h *Handler) DeleteEquipment(c echo.Context) error {
	if err := h.equipmentSvc.Delete(c.Request().Context(), c.Param("equipmentUid")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CreateReservation(c echo.Context) error {
	var req model.CreateReservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := auth.FromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	req.Username = p.Username

	if err := c.Validate(req); err != nil {
		return err
	}
	rsv, err := h.borrowingSvc.Create(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rsv)
}

func (h *Handler) ListReservations(c echo.Context) error {
	p, err := auth.FromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	filter := model.ReservationFilter{
		Username: p.Username,
		Status:   model.Status(c.QueryParam("status")),
	}
	// staff may look across requesters
	if p.Role == auth.RoleStaff || p.Role == auth.RoleAdmin {
		filter.Username = c.QueryParam("username")
	}
	items, err := h.borrowingSvc.List(c.Request().Context(), filter)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetReservation(c echo.Context) error {
	p, err := auth.FromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	rsv, err := h.borrowingSvc.Get(c.Request().Context(), c.Param("reservationUid"))
	if err != nil {
		return httpError(err)
	}
	if rsv.Username != p.Username && p.Role != auth.RoleStaff && p.Role != auth.RoleAdmin {
		return echo.NewHTTPError(http.StatusNotFound, errs.ErrNotFound.Error())
	}
	return c.JSON(http.StatusOK, rsv)
}

func (h *Handler) ApproveReservation(c echo.Context) error {
	p, err := auth.FromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	rsv, err := h.borrowingSvc.Approve(c.Request().Context(), c.Param("reservationUid"), p.Username)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rsv)
}

func (h *Handler) RejectReservation(c echo.Context) error {
	p, err := auth.FromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	var req model.RejectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rsv, err := h.borrowingSvc.Reject(c.Request().Context(), c.Param("reservationUid"), p.Username, req.Notes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rsv)
}

func (h *Handler) IssueReservation(c echo.Context) error {
	rsv, err := h.borrowingSvc.Issue(c.Request().Context(), c.Param("reservationUid"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rsv)
}

func (h *Handler) ReturnReservation(c echo.Context) error {
	p, err := auth.FromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	var req model.ReturnRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	rsv, err := h.borrowingSvc.Return(c.Request().Context(), c.Param("reservationUid"), req.Condition, req.Notes, p.Username)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rsv)
}

func (h *Handler) RunReconciliation(c echo.Context) error {
	report, err := h.sweepSvc.RunSweep(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrInactive),
		errors.Is(err, errs.ErrInsufficientStock),
		errors.Is(err, errs.ErrAlreadyProcessed),
		errors.Is(err, errs.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
