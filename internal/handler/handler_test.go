package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusops/equipment-service/internal/errs"
	"github.com/campusops/equipment-service/internal/handler"
	service_mocks "github.com/campusops/equipment-service/internal/handler/mocks"
	"github.com/campusops/equipment-service/internal/model"
	"github.com/campusops/equipment-service/pkg/auth"
	"github.com/campusops/equipment-service/pkg/validate"
)

func newTestRouter(t *testing.T) (*echo.Echo, *service_mocks.MockEquipmentService, *service_mocks.MockBorrowingService, *service_mocks.MockSweepService) {
	t.Helper()
	c := gomock.NewController(t)
	t.Cleanup(c.Finish)
	equipmentSvc := service_mocks.NewMockEquipmentService(c)
	borrowingSvc := service_mocks.NewMockBorrowingService(c)
	sweepSvc := service_mocks.NewMockSweepService(c)
	log := zap.NewExample().Named("test")

	h := handler.New(equipmentSvc, borrowingSvc, sweepSvc, auth.Config{TrustHeaders: true}, log)
	e := echo.New()
	e.Validator = validate.NewCustomValidator()

	mw := auth.AuthContext
	e.POST("/api/v1/reservations", h.CreateReservation, mw)
	e.POST("/api/v1/reservations/:reservationUid/approve", h.ApproveReservation, mw, auth.Require(auth.RoleStaff, auth.RoleAdmin))
	e.POST("/api/v1/reservations/:reservationUid/return", h.ReturnReservation, mw, auth.Require(auth.RoleStaff, auth.RoleAdmin))
	e.POST("/api/v1/reconciliation", h.RunReconciliation, mw, auth.Require(auth.RoleAdmin))
	return e, equipmentSvc, borrowingSvc, sweepSvc
}

func TestHandler_CreateReservation(t *testing.T) {
	t.Parallel()
	dueDate := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	var tests = []struct {
		name         string
		body         string
		mockBehavior func(r *service_mocks.MockBorrowingService)
		expectedCode int
	}{
		{
			name: "ok",
			body: `{"equipmentUid":"83575e12-7ce0-48ee-9931-51919ff3c9ee","quantity":2,"dueDate":"2024-04-01T00:00:00Z"}`,
			mockBehavior: func(r *service_mocks.MockBorrowingService) {
				r.EXPECT().
					Create(gomock.Any(), model.CreateReservationRequest{
						EquipmentUid: "83575e12-7ce0-48ee-9931-51919ff3c9ee",
						Quantity:     2,
						DueDate:      dueDate,
						Username:     "alice",
					}).
					Return(model.Reservation{
						ReservationUid: "f7cdc58f-2caf-4b15-9727-f89dcc629b27",
						EquipmentUid:   "83575e12-7ce0-48ee-9931-51919ff3c9ee",
						Username:       "alice",
						Quantity:       2,
						Status:         model.StatusPending,
						DueDate:        dueDate,
					}, nil)
			},
			expectedCode: http.StatusCreated,
		},
		{
			name:         "err. missing equipmentUid",
			body:         `{"quantity":2,"dueDate":"2024-04-01T00:00:00Z"}`,
			mockBehavior: func(r *service_mocks.MockBorrowingService) {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "err. past due date",
			body: `{"equipmentUid":"83575e12-7ce0-48ee-9931-51919ff3c9ee","quantity":2,"dueDate":"2024-04-01T00:00:00Z"}`,
			mockBehavior: func(r *service_mocks.MockBorrowingService) {
				r.EXPECT().
					Create(gomock.Any(), gomock.Any()).
					Return(model.Reservation{}, errs.ErrValidation)
			},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "err. inactive equipment",
			body: `{"equipmentUid":"83575e12-7ce0-48ee-9931-51919ff3c9ee","quantity":2,"dueDate":"2024-04-01T00:00:00Z"}`,
			mockBehavior: func(r *service_mocks.MockBorrowingService) {
				r.EXPECT().
					Create(gomock.Any(), gomock.Any()).
					Return(model.Reservation{}, errs.ErrInactive)
			},
			expectedCode: http.StatusConflict,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, _, borrowingSvc, _ := newTestRouter(t)
			tt.mockBehavior(borrowingSvc)

			r := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			r.Header.Set(auth.XUserNameHeader, "alice")
			r.Header.Set(auth.XUserRoleHeader, auth.RoleUser)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.expectedCode, w.Code)
		})
	}
}

func TestHandler_ApproveReservation(t *testing.T) {
	t.Parallel()
	const uid = "f7cdc58f-2caf-4b15-9727-f89dcc629b27"

	var tests = []struct {
		name         string
		role         string
		mockBehavior func(r *service_mocks.MockBorrowingService)
		expectedCode int
	}{
		{
			name: "ok",
			role: auth.RoleStaff,
			mockBehavior: func(r *service_mocks.MockBorrowingService) {
				r.EXPECT().
					Approve(gomock.Any(), uid, "bob").
					Return(model.Reservation{ReservationUid: uid, Status: model.StatusApproved}, nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "err. already processed",
			role: auth.RoleStaff,
			mockBehavior: func(r *service_mocks.MockBorrowingService) {
				r.EXPECT().
					Approve(gomock.Any(), uid, "bob").
					Return(model.Reservation{}, errs.ErrAlreadyProcessed)
			},
			expectedCode: http.StatusConflict,
		},
		{
			name: "err. insufficient stock",
			role: auth.RoleAdmin,
			mockBehavior: func(r *service_mocks.MockBorrowingService) {
				r.EXPECT().
					Approve(gomock.Any(), uid, "bob").
					Return(model.Reservation{}, errs.ErrInsufficientStock)
			},
			expectedCode: http.StatusConflict,
		},
		{
			name:         "err. requester role forbidden",
			role:         auth.RoleUser,
			mockBehavior: func(r *service_mocks.MockBorrowingService) {},
			expectedCode: http.StatusForbidden,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, _, borrowingSvc, _ := newTestRouter(t)
			tt.mockBehavior(borrowingSvc)

			r := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/"+uid+"/approve", http.NoBody)
			r.Header.Set(auth.XUserNameHeader, "bob")
			r.Header.Set(auth.XUserRoleHeader, tt.role)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.expectedCode, w.Code)
		})
	}
}

func TestHandler_ReturnReservation(t *testing.T) {
	t.Parallel()
	const uid = "f7cdc58f-2caf-4b15-9727-f89dcc629b27"

	e, _, borrowingSvc, _ := newTestRouter(t)
	borrowingSvc.EXPECT().
		Return(gomock.Any(), uid, model.ConditionPoor, "bent leg", "bob").
		Return(model.Reservation{
			ReservationUid: uid,
			Status:         model.StatusReturned,
			Damage: &model.DamageReport{
				RepairStatus: model.RepairReported,
			},
		}, nil)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/"+uid+"/return",
		strings.NewReader(`{"condition":"POOR","notes":"bent leg"}`))
	r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	r.Header.Set(auth.XUserNameHeader, "bob")
	r.Header.Set(auth.XUserRoleHeader, auth.RoleStaff)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"repairStatus":"REPORTED"`)
}

func TestHandler_RunReconciliation(t *testing.T) {
	t.Parallel()
	e, _, _, sweepSvc := newTestRouter(t)
	sweepSvc.EXPECT().
		RunSweep(gomock.Any()).
		Return(model.SweepReport{OverduePromoted: 3, EquipmentChecked: 7}, nil)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/reconciliation", http.NoBody)
	r.Header.Set(auth.XUserNameHeader, "root")
	r.Header.Set(auth.XUserRoleHeader, auth.RoleAdmin)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"overduePromoted":3`)
}
