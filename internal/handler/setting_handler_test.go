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

type policyServiceMock struct {
	listResp  []dto.SettingItem
	updateErr error
}

func (m *policyServiceMock) List(ctx context.Context) ([]dto.SettingItem, error) {
	return m.listResp, nil
}

func (m *policyServiceMock) Get(ctx context.Context, key string) (*dto.SettingItem, error) {
	return &dto.SettingItem{Key: key, Value: "true", Type: "BOOLEAN"}, nil
}

func (m *policyServiceMock) Update(ctx context.Context, key, value string, actor *models.JWTClaims) (*dto.SettingItem, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return &dto.SettingItem{Key: key, Value: value, Type: "INTEGER"}, nil
}

func (m *policyServiceMock) BulkUpdate(ctx context.Context, req dto.BulkUpdateSettingsRequest, actor *models.JWTClaims) ([]dto.SettingItem, error) {
	return []dto.SettingItem{}, nil
}

func TestSettingHandlerUpdate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSettingHandler(&policyServiceMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.UpdateSettingRequest{Value: "4"})
	req, _ := http.NewRequest(http.MethodPut, "/settings/max_sessions_per_teacher_per_day", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "key", Value: "max_sessions_per_teacher_per_day"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Update(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.SettingItem `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "4", envelope.Data.Value)
}

func TestSettingHandlerUpdateRejectedValue(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSettingHandler(&policyServiceMock{
		updateErr: appErrors.Clone(appErrors.ErrValidation, "value must be a non-negative integer"),
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.UpdateSettingRequest{Value: "-1"})
	req, _ := http.NewRequest(http.MethodPut, "/settings/max_sessions_per_teacher_per_day", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "key", Value: "max_sessions_per_teacher_per_day"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Update(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSettingHandlerBulkInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSettingHandler(&policyServiceMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/settings", bytes.NewReader([]byte(`invalid`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.BulkUpdate(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
