package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-ops/institute-api/internal/dto"
	"github.com/campus-ops/institute-api/internal/models"
	"github.com/campus-ops/institute-api/pkg/config"
	appErrors "github.com/campus-ops/institute-api/pkg/errors"
)

type memorySettingRepo struct {
	rows map[string]models.Setting
}

func newMemorySettingRepo() *memorySettingRepo {
	return &memorySettingRepo{rows: map[string]models.Setting{}}
}

func (m *memorySettingRepo) ListAll(ctx context.Context) ([]models.Setting, error) {
	out := make([]models.Setting, 0, len(m.rows))
	for _, row := range m.rows {
		out = append(out, row)
	}
	return out, nil
}

func (m *memorySettingRepo) Get(ctx context.Context, key string) (*models.Setting, error) {
	row, ok := m.rows[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &row, nil
}

func (m *memorySettingRepo) Upsert(ctx context.Context, setting *models.Setting) error {
	m.rows[setting.Key] = *setting
	return nil
}

func (m *memorySettingRepo) BulkUpsert(ctx context.Context, settings []models.Setting) error {
	for _, setting := range settings {
		m.rows[setting.Key] = setting
	}
	return nil
}

func testSchedulingConfig() config.SchedulingConfig {
	return config.SchedulingConfig{
		AllowWeekendSessions:   false,
		CourseMaxSessionsWeek:  10,
		TeacherMaxSessionsDay:  4,
		TeacherMaxSessionsWeek: 20,
		LeaveApprovalRequired:  true,
		SessionDurationHours:   1,
		HoursPerCredit:         15,
		ProjectSessionKeyword:  "Project",
		ProjectMinSpacingDays:  7,
		LabSessionKeyword:      "Lab",
		LabMinSpacingDays:      3,
		TeacherMaxHoursPerDay:  6,
		TeacherMaxHoursPerWeek: 30,
	}
}

func newPolicyFixture() (*PolicyService, *memorySettingRepo, *recordingAuditLogger) {
	repo := newMemorySettingRepo()
	audit := &recordingAuditLogger{}
	service := NewPolicyService(repo, audit, nil, nil, testSchedulingConfig(), config.WorkloadConfig{
		TargetWeeklyHours: 24,
		ToleranceHours:    4,
	})
	return service, repo, audit
}

func TestPolicySnapshotUsesConfigBase(t *testing.T) {
	service, _, _ := newPolicyFixture()

	snapshot, err := service.Snapshot(context.Background())
	require.NoError(t, err)

	assert.False(t, snapshot.Bool(KeyAllowWeekendSessions, true))
	assert.Equal(t, 10, snapshot.Int(KeyCourseMaxSessionsWeek, 99))
	assert.Equal(t, "Project", snapshot.String(KeyProjectSessionKeyword, "x"))
	assert.Equal(t, 24, snapshot.Int(KeyWorkloadTargetWeekHours, 0))
}

func TestPolicySnapshotOverlaysStoredRows(t *testing.T) {
	service, repo, _ := newPolicyFixture()
	repo.rows[KeyCourseMaxSessionsWeek] = models.Setting{
		Key: KeyCourseMaxSessionsWeek, Value: "2", Type: models.SettingTypeInteger,
	}
	repo.rows[KeyAllowWeekendSessions] = models.Setting{
		Key: KeyAllowWeekendSessions, Value: "true", Type: models.SettingTypeBoolean,
	}
	// Unknown keys in the table never leak into a snapshot.
	repo.rows["ROGUE_KEY"] = models.Setting{Key: "ROGUE_KEY", Value: "1"}

	snapshot, err := service.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, snapshot.Int(KeyCourseMaxSessionsWeek, 10))
	assert.True(t, snapshot.Bool(KeyAllowWeekendSessions, false))
	assert.Equal(t, 0, snapshot.Int("ROGUE_KEY", 0))
}

func TestPolicySnapshotAccessorFallbacks(t *testing.T) {
	snapshot := PolicySnapshot{values: map[string]string{
		"INT":  "not-a-number",
		"BOOL": "maybe",
	}}

	assert.Equal(t, 7, snapshot.Int("INT", 7), "unparsable values fall back")
	assert.True(t, snapshot.Bool("BOOL", true))
	assert.Equal(t, 3, snapshot.Int("MISSING", 3))
	assert.Equal(t, "d", snapshot.String("MISSING", "d"))
}

func TestPolicyUpdateValidatesValue(t *testing.T) {
	service, _, _ := newPolicyFixture()
	actor := &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin}

	_, err := service.Update(context.Background(), KeyTeacherMaxSessionsDay, "minus one", actor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = service.Update(context.Background(), KeyTeacherMaxSessionsDay, "-3", actor)
	require.Error(t, err)

	_, err = service.Update(context.Background(), "NOT_A_KEY", "1", actor)
	require.Error(t, err)
}

func TestPolicyUpdatePersistsAndAudits(t *testing.T) {
	service, repo, audit := newPolicyFixture()
	actor := &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin}

	item, err := service.Update(context.Background(), KeyTeacherMaxSessionsDay, "2", actor)
	require.NoError(t, err)
	assert.Equal(t, "2", item.Value)
	assert.Equal(t, "2", repo.rows[KeyTeacherMaxSessionsDay].Value)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionSettingUpdate, audit.logs[0].Action)
	assert.Contains(t, audit.logs[0].Details, KeyTeacherMaxSessionsDay)
}

func TestPolicyBulkUpdate(t *testing.T) {
	service, repo, audit := newPolicyFixture()
	actor := &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin}

	items, err := service.BulkUpdate(context.Background(), dto.BulkUpdateSettingsRequest{
		Items: []dto.BulkSettingItem{
			{Key: KeyAllowWeekendSessions, Value: "TRUE"},
			{Key: KeyLabGenerateEveryN, Value: "3"},
		},
	}, actor)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "true", repo.rows[KeyAllowWeekendSessions].Value, "boolean values are normalised")
	assert.Equal(t, "3", repo.rows[KeyLabGenerateEveryN].Value)
	assert.Len(t, audit.logs, 2)
}

func TestPolicyBulkUpdateRejectsBadItem(t *testing.T) {
	service, repo, _ := newPolicyFixture()
	actor := &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin}

	_, err := service.BulkUpdate(context.Background(), dto.BulkUpdateSettingsRequest{
		Items: []dto.BulkSettingItem{
			{Key: KeyLabGenerateEveryN, Value: "3"},
			{Key: KeyLeaveApprovalRequired, Value: "sometimes"},
		},
	}, actor)
	require.Error(t, err)
	assert.Empty(t, repo.rows, "a bad item rejects the whole batch")
}

func TestPolicyBulkUpdateRequiresActor(t *testing.T) {
	service, _, _ := newPolicyFixture()

	_, err := service.BulkUpdate(context.Background(), dto.BulkUpdateSettingsRequest{
		Items: []dto.BulkSettingItem{{Key: KeyLabGenerateEveryN, Value: "3"}},
	}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestPolicyListIncludesEveryAllowedKey(t *testing.T) {
	service, repo, _ := newPolicyFixture()
	repo.rows[KeyHoursPerCredit] = models.Setting{
		Key: KeyHoursPerCredit, Value: "12", Type: models.SettingTypeInteger,
	}

	items, err := service.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, len(allowedSettingKeys))

	byKey := make(map[string]dto.SettingItem, len(items))
	for _, item := range items {
		byKey[item.Key] = item
	}
	assert.Equal(t, "12", byKey[KeyHoursPerCredit].Value, "stored rows win")
	assert.Equal(t, "10", byKey[KeyCourseMaxSessionsWeek].Value, "config base fills the gaps")
}
