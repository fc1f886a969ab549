package appointment

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/booking-api/internal/clock"
	"github.com/clinicore/booking-api/internal/model"
	"github.com/clinicore/booking-api/internal/repository/memory"
	"github.com/clinicore/booking-api/internal/service/lifecycle"
	"github.com/clinicore/booking-api/pkg/logger"
)

var handlerBase = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type dropEmitter struct{}

func (dropEmitter) Emit(context.Context, string, *model.LifecycleEvent) {}

func setupHandler(t *testing.T) (*gin.Engine, *memory.AppointmentRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := memory.NewAppointmentRepository()
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	svc := lifecycle.NewService(repo, dropEmitter{}, clock.NewFixed(handlerBase), log, nil)

	engine := gin.New()
	NewHandler(svc).RegisterRoutes(engine.Group("/api/v1"))
	return engine, repo
}

func seedHandlerAppointment(t *testing.T, repo *memory.AppointmentRepository, status model.AppointmentStatus, start time.Time) *model.Appointment {
	t.Helper()
	apt := &model.Appointment{
		ID:             uuid.New(),
		ClientID:       uuid.New(),
		TherapistID:    uuid.New(),
		ScheduledStart: start,
		ScheduledEnd:   start.Add(time.Hour),
		Status:         status,
		Amount:         decimal.RequireFromString("100.00"),
		Currency:       "EUR",
		PaymentStatus:  model.PaymentStatusUnpaid,
	}
	require.NoError(t, repo.Create(context.Background(), apt))
	return apt
}

type envelope struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestGetAppointment(t *testing.T) {
	engine, repo := setupHandler(t)
	apt := seedHandlerAppointment(t, repo, model.AppointmentStatusConfirmed, handlerBase.Add(50*time.Hour))

	rec, env := doJSON(t, engine, http.MethodGet, "/api/v1/appointments/"+apt.ID.String(), nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, apt.ID.String(), env.Data["id"])
	assert.Equal(t, string(model.AppointmentStatusConfirmed), env.Data["status"])
}

func TestGetAppointmentNotFound(t *testing.T) {
	engine, _ := setupHandler(t)

	rec, env := doJSON(t, engine, http.MethodGet, "/api/v1/appointments/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
}

func TestGetAppointmentInvalidID(t *testing.T) {
	engine, _ := setupHandler(t)

	rec, _ := doJSON(t, engine, http.MethodGet, "/api/v1/appointments/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCancellationPolicy(t *testing.T) {
	engine, repo := setupHandler(t)
	apt := seedHandlerAppointment(t, repo, model.AppointmentStatusConfirmed, handlerBase.Add(50*time.Hour))

	rec, env := doJSON(t, engine, http.MethodGet, "/api/v1/appointments/"+apt.ID.String()+"/cancellation-policy", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "full_refund", env.Data["tier"])
	assert.Equal(t, "100", env.Data["refund_amount"])
}

func TestCancelAppointment(t *testing.T) {
	engine, repo := setupHandler(t)
	apt := seedHandlerAppointment(t, repo, model.AppointmentStatusConfirmed, handlerBase.Add(10*time.Hour))

	rec, env := doJSON(t, engine, http.MethodPost, "/api/v1/appointments/"+apt.ID.String()+"/cancel",
		gin.H{"reason": "illness"}, map[string]string{"X-Actor": "reception"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(model.AppointmentStatusCancelled), env.Data["status"])

	cancellation, ok := env.Data["cancellation"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "fee_applied", cancellation["policy_applied"])
	assert.Equal(t, "illness", cancellation["reason"])

	stored, err := repo.Get(context.Background(), apt.ID)
	require.NoError(t, err)
	require.Len(t, stored.History, 1)
	assert.Equal(t, "reception", stored.History[0].Actor)
}

func TestCancelAppointmentUnknownReason(t *testing.T) {
	engine, repo := setupHandler(t)
	apt := seedHandlerAppointment(t, repo, model.AppointmentStatusConfirmed, handlerBase.Add(10*time.Hour))

	rec, _ := doJSON(t, engine, http.MethodPost, "/api/v1/appointments/"+apt.ID.String()+"/cancel",
		gin.H{"reason": "because"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelAppointmentFromTerminal(t *testing.T) {
	engine, repo := setupHandler(t)
	apt := seedHandlerAppointment(t, repo, model.AppointmentStatusCompleted, handlerBase.Add(-3*time.Hour))

	rec, env := doJSON(t, engine, http.MethodPost, "/api/v1/appointments/"+apt.ID.String()+"/cancel",
		gin.H{"reason": "client_request"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.False(t, env.Success)
}

func TestRescheduleAppointment(t *testing.T) {
	engine, repo := setupHandler(t)
	apt := seedHandlerAppointment(t, repo, model.AppointmentStatusConfirmed, handlerBase.Add(5*time.Hour))

	newStart := handlerBase.Add(96 * time.Hour)
	rec, env := doJSON(t, engine, http.MethodPost, "/api/v1/appointments/"+apt.ID.String()+"/reschedule",
		gin.H{"start_time": newStart, "end_time": newStart.Add(time.Hour)}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(model.AppointmentStatusUpcoming), env.Data["status"])
}

func TestRescheduleAppointmentBadWindow(t *testing.T) {
	engine, repo := setupHandler(t)
	apt := seedHandlerAppointment(t, repo, model.AppointmentStatusConfirmed, handlerBase.Add(5*time.Hour))

	newStart := handlerBase.Add(96 * time.Hour)
	rec, _ := doJSON(t, engine, http.MethodPost, "/api/v1/appointments/"+apt.ID.String()+"/reschedule",
		gin.H{"start_time": newStart, "end_time": newStart.Add(-time.Hour)}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestMarkCompletedTooEarly(t *testing.T) {
	engine, repo := setupHandler(t)
	apt := seedHandlerAppointment(t, repo, model.AppointmentStatusConfirmed, handlerBase.Add(2*time.Hour))

	rec, _ := doJSON(t, engine, http.MethodPost, "/api/v1/appointments/"+apt.ID.String()+"/complete", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestMarkPaid(t *testing.T) {
	engine, repo := setupHandler(t)
	apt := seedHandlerAppointment(t, repo, model.AppointmentStatusConfirmed, handlerBase.Add(5*time.Hour))

	rec, env := doJSON(t, engine, http.MethodPost, "/api/v1/appointments/"+apt.ID.String()+"/payment",
		gin.H{"method": "bizum"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(model.PaymentStatusPaid), env.Data["payment_status"])
	assert.Equal(t, "bizum", env.Data["payment_method"])
}

func TestMarkPaidUnknownMethod(t *testing.T) {
	engine, repo := setupHandler(t)
	apt := seedHandlerAppointment(t, repo, model.AppointmentStatusConfirmed, handlerBase.Add(5*time.Hour))

	rec, _ := doJSON(t, engine, http.MethodPost, "/api/v1/appointments/"+apt.ID.String()+"/payment",
		gin.H{"method": "check"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshStatus(t *testing.T) {
	engine, repo := setupHandler(t)
	apt := seedHandlerAppointment(t, repo, model.AppointmentStatusConfirmed, handlerBase.Add(-26*time.Hour))

	rec, env := doJSON(t, engine, http.MethodPost, "/api/v1/appointments/"+apt.ID.String()+"/refresh", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(model.AppointmentStatusNoShow), env.Data["status"])
}
