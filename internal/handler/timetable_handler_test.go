package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-ops/institute-api/internal/dto"
	"github.com/campus-ops/institute-api/internal/middleware"
	"github.com/campus-ops/institute-api/internal/models"
	appErrors "github.com/campus-ops/institute-api/pkg/errors"
)

type timetableServiceMock struct {
	generateResp *dto.GenerateWeekResult
	generateErr  error
	weekResp     *dto.TimetableWeek
}

func (m *timetableServiceMock) GenerateWeek(ctx context.Context, req dto.GenerateWeekRequest, actor *models.JWTClaims) (*dto.GenerateWeekResult, error) {
	if m.generateErr != nil {
		return nil, m.generateErr
	}
	return m.generateResp, nil
}

func (m *timetableServiceMock) Week(ctx context.Context, weekStart string) (*dto.TimetableWeek, error) {
	return m.weekResp, nil
}

type refresherMock struct {
	weeks []string
}

func (m *refresherMock) EnqueueRefresh(weekStart string) {
	m.weeks = append(m.weeks, weekStart)
}

func TestTimetableHandlerGenerateEnqueuesRefresh(t *testing.T) {
	gin.SetMode(gin.TestMode)
	refresher := &refresherMock{}
	handler := NewTimetableHandler(&timetableServiceMock{
		generateResp: &dto.GenerateWeekResult{WeekStart: "2026-03-02", WeekEnd: "2026-03-08", Created: 10},
	}, refresher)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.GenerateWeekRequest{WeekStart: "2026-03-02"})
	req, _ := http.NewRequest(http.MethodPost, "/timetable/generate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Generate(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"2026-03-02"}, refresher.weeks)

	var envelope struct {
		Data dto.GenerateWeekResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, 10, envelope.Data.Created)
}

func TestTimetableHandlerGenerateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTimetableHandler(&timetableServiceMock{}, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/timetable/generate", bytes.NewReader([]byte(`invalid`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Generate(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerGeneratePropagatesServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	refresher := &refresherMock{}
	handler := NewTimetableHandler(&timetableServiceMock{
		generateErr: appErrors.Clone(appErrors.ErrValidation, "week start must be a Monday"),
	}, refresher)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.GenerateWeekRequest{WeekStart: "2026-03-03"})
	req, _ := http.NewRequest(http.MethodPost, "/timetable/generate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Generate(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, refresher.weeks)
}

func TestTimetableHandlerWeek(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTimetableHandler(&timetableServiceMock{
		weekResp: &dto.TimetableWeek{WeekStart: "2026-03-02", WeekEnd: "2026-03-08", MaxDayHours: 6, MaxWeekHours: 30},
	}, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/timetable/week?weekStart=2026-03-02", nil)
	c.Request = req

	handler.Week(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.TimetableWeek `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, 6, envelope.Data.MaxDayHours)
}
