package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campus-ops/institute-api/internal/dto"
	"github.com/campus-ops/institute-api/internal/models"
	"github.com/campus-ops/institute-api/pkg/config"
	appErrors "github.com/campus-ops/institute-api/pkg/errors"
)

// Canonical scheduling policy keys. Database settings rows overlay the
// config-file base values under these names.
const (
	KeyAllowWeekendSessions    = "ALLOW_WEEKEND_SESSIONS"
	KeyCourseMaxSessionsWeek   = "COURSE_MAX_SESSIONS_PER_WEEK"
	KeyTeacherMaxSessionsDay   = "TEACHER_MAX_SESSIONS_PER_DAY"
	KeyTeacherMaxSessionsWeek  = "TEACHER_MAX_SESSIONS_PER_WEEK"
	KeyLeaveApprovalRequired   = "LEAVE_APPROVAL_REQUIRED"
	KeySessionDurationHours    = "SESSION_DEFAULT_DURATION_HOURS"
	KeyHoursPerCredit          = "HOURS_PER_CREDIT"
	KeyProjectSessionKeyword   = "PROJECT_SESSION_KEYWORD"
	KeyProjectGenerateEveryN   = "PROJECT_GENERATE_EVERY_N"
	KeyProjectMinSpacingDays   = "PROJECT_MIN_SPACING_DAYS"
	KeyLabSessionKeyword       = "LAB_SESSION_KEYWORD"
	KeyLabGenerateEveryN       = "LAB_GENERATE_EVERY_N"
	KeyLabMinSpacingDays       = "LAB_MIN_SPACING_DAYS"
	KeyWorkloadTargetWeekHours = "WORKLOAD_TARGET_WEEKLY_HOURS"
	KeyWorkloadToleranceHours  = "WORKLOAD_TOLERANCE_HOURS"
	KeyTeacherMaxHoursPerDay   = "TEACHER_MAX_HOURS_PER_DAY"
	KeyTeacherMaxHoursPerWeek  = "TEACHER_MAX_HOURS_PER_WEEK"
)

type settingRepository interface {
	ListAll(ctx context.Context) ([]models.Setting, error)
	Get(ctx context.Context, key string) (*models.Setting, error)
	Upsert(ctx context.Context, setting *models.Setting) error
	BulkUpsert(ctx context.Context, settings []models.Setting) error
}

type policyAuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type allowedSetting struct {
	Key         string
	Type        models.SettingType
	Description string
}

var allowedSettingKeys = []string{
	KeyAllowWeekendSessions,
	KeyCourseMaxSessionsWeek,
	KeyTeacherMaxSessionsDay,
	KeyTeacherMaxSessionsWeek,
	KeyLeaveApprovalRequired,
	KeySessionDurationHours,
	KeyHoursPerCredit,
	KeyProjectSessionKeyword,
	KeyProjectGenerateEveryN,
	KeyProjectMinSpacingDays,
	KeyLabSessionKeyword,
	KeyLabGenerateEveryN,
	KeyLabMinSpacingDays,
	KeyWorkloadTargetWeekHours,
	KeyWorkloadToleranceHours,
	KeyTeacherMaxHoursPerDay,
	KeyTeacherMaxHoursPerWeek,
}

var allowedSettings = map[string]allowedSetting{
	KeyAllowWeekendSessions: {
		Key:         KeyAllowWeekendSessions,
		Type:        models.SettingTypeBoolean,
		Description: "Permit session placement on Saturday and Sunday",
	},
	KeyCourseMaxSessionsWeek: {
		Key:         KeyCourseMaxSessionsWeek,
		Type:        models.SettingTypeInteger,
		Description: "Default weekly session cap per course",
	},
	KeyTeacherMaxSessionsDay: {
		Key:         KeyTeacherMaxSessionsDay,
		Type:        models.SettingTypeInteger,
		Description: "Daily session cap per teacher across all courses",
	},
	KeyTeacherMaxSessionsWeek: {
		Key:         KeyTeacherMaxSessionsWeek,
		Type:        models.SettingTypeInteger,
		Description: "Weekly session cap per teacher across all courses",
	},
	KeyLeaveApprovalRequired: {
		Key:         KeyLeaveApprovalRequired,
		Type:        models.SettingTypeBoolean,
		Description: "Whether only approved leave blocks scheduling",
	},
	KeySessionDurationHours: {
		Key:         KeySessionDurationHours,
		Type:        models.SettingTypeInteger,
		Description: "Assumed duration in hours of a single session",
	},
	KeyHoursPerCredit: {
		Key:         KeyHoursPerCredit,
		Type:        models.SettingTypeInteger,
		Description: "Required contact hours per course credit",
	},
	KeyProjectSessionKeyword: {
		Key:         KeyProjectSessionKeyword,
		Type:        models.SettingTypeString,
		Description: "Title assigned to project checkpoint sessions",
	},
	KeyProjectGenerateEveryN: {
		Key:         KeyProjectGenerateEveryN,
		Type:        models.SettingTypeInteger,
		Description: "Rotation interval for project sessions, 0 disables",
	},
	KeyProjectMinSpacingDays: {
		Key:         KeyProjectMinSpacingDays,
		Type:        models.SettingTypeInteger,
		Description: "Minimum days between two project sessions",
	},
	KeyLabSessionKeyword: {
		Key:         KeyLabSessionKeyword,
		Type:        models.SettingTypeString,
		Description: "Title assigned to lab sessions",
	},
	KeyLabGenerateEveryN: {
		Key:         KeyLabGenerateEveryN,
		Type:        models.SettingTypeInteger,
		Description: "Rotation interval for lab sessions, 0 disables",
	},
	KeyLabMinSpacingDays: {
		Key:         KeyLabMinSpacingDays,
		Type:        models.SettingTypeInteger,
		Description: "Minimum days between two lab sessions",
	},
	KeyWorkloadTargetWeekHours: {
		Key:         KeyWorkloadTargetWeekHours,
		Type:        models.SettingTypeInteger,
		Description: "Target weekly teaching hours per teacher",
	},
	KeyWorkloadToleranceHours: {
		Key:         KeyWorkloadToleranceHours,
		Type:        models.SettingTypeInteger,
		Description: "Tolerance band around the weekly workload target",
	},
	KeyTeacherMaxHoursPerDay: {
		Key:         KeyTeacherMaxHoursPerDay,
		Type:        models.SettingTypeInteger,
		Description: "Daily hour ceiling flagged in the timetable view",
	},
	KeyTeacherMaxHoursPerWeek: {
		Key:         KeyTeacherMaxHoursPerWeek,
		Type:        models.SettingTypeInteger,
		Description: "Weekly hour ceiling flagged in the timetable view",
	},
}

// PolicySnapshot is an immutable view of the effective scheduling policy.
// Typed accessors take a fallback so call sites keep their own defaults.
type PolicySnapshot struct {
	values map[string]string
}

// Bool resolves a boolean policy value.
func (p PolicySnapshot) Bool(key string, fallback bool) bool {
	raw, ok := p.values[key]
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1":
		return true
	case "false", "0":
		return false
	}
	return fallback
}

// Int resolves an integer policy value.
func (p PolicySnapshot) Int(key string, fallback int) int {
	raw, ok := p.values[key]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return n
}

// String resolves a string policy value.
func (p PolicySnapshot) String(key, fallback string) string {
	raw, ok := p.values[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}
	return strings.TrimSpace(raw)
}

// PolicyService resolves policy snapshots and handles admin edits of the
// persisted overrides.
type PolicyService struct {
	repo      settingRepository
	audit     policyAuditLogger
	validator *validator.Validate
	logger    *zap.Logger
	base      map[string]string
}

// NewPolicyService constructs a PolicyService with base values taken from
// the loaded configuration.
func NewPolicyService(repo settingRepository, audit policyAuditLogger, validate *validator.Validate, logger *zap.Logger, sched config.SchedulingConfig, workload config.WorkloadConfig) *PolicyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyService{
		repo:      repo,
		audit:     audit,
		validator: validate,
		logger:    logger,
		base:      baseValues(sched, workload),
	}
}

func baseValues(sched config.SchedulingConfig, workload config.WorkloadConfig) map[string]string {
	return map[string]string{
		KeyAllowWeekendSessions:    strconv.FormatBool(sched.AllowWeekendSessions),
		KeyCourseMaxSessionsWeek:   strconv.Itoa(sched.CourseMaxSessionsWeek),
		KeyTeacherMaxSessionsDay:   strconv.Itoa(sched.TeacherMaxSessionsDay),
		KeyTeacherMaxSessionsWeek:  strconv.Itoa(sched.TeacherMaxSessionsWeek),
		KeyLeaveApprovalRequired:   strconv.FormatBool(sched.LeaveApprovalRequired),
		KeySessionDurationHours:    strconv.Itoa(sched.SessionDurationHours),
		KeyHoursPerCredit:          strconv.Itoa(sched.HoursPerCredit),
		KeyProjectSessionKeyword:   sched.ProjectSessionKeyword,
		KeyProjectGenerateEveryN:   strconv.Itoa(sched.ProjectGenerateEveryN),
		KeyProjectMinSpacingDays:   strconv.Itoa(sched.ProjectMinSpacingDays),
		KeyLabSessionKeyword:       sched.LabSessionKeyword,
		KeyLabGenerateEveryN:       strconv.Itoa(sched.LabGenerateEveryN),
		KeyLabMinSpacingDays:       strconv.Itoa(sched.LabMinSpacingDays),
		KeyWorkloadTargetWeekHours: strconv.Itoa(workload.TargetWeeklyHours),
		KeyWorkloadToleranceHours:  strconv.Itoa(workload.ToleranceHours),
		KeyTeacherMaxHoursPerDay:   strconv.Itoa(sched.TeacherMaxHoursPerDay),
		KeyTeacherMaxHoursPerWeek:  strconv.Itoa(sched.TeacherMaxHoursPerWeek),
	}
}

// Snapshot copies the base values and overlays persisted settings rows.
// The returned snapshot never changes after this call, so a scheduling run
// sees one coherent policy even if an admin edits settings mid-run.
func (s *PolicyService) Snapshot(ctx context.Context) (PolicySnapshot, error) {
	values := make(map[string]string, len(s.base))
	for key, value := range s.base {
		values[key] = value
	}
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return PolicySnapshot{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load policy settings")
	}
	for _, row := range rows {
		if _, ok := allowedSettings[row.Key]; !ok {
			continue
		}
		values[row.Key] = row.Value
	}
	return PolicySnapshot{values: values}, nil
}

// List returns every allowed policy key with its effective value.
func (s *PolicyService) List(ctx context.Context) ([]dto.SettingItem, error) {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list settings")
	}
	existing := make(map[string]models.Setting, len(rows))
	for _, row := range rows {
		existing[row.Key] = row
	}

	items := make([]dto.SettingItem, 0, len(allowedSettingKeys))
	for _, key := range allowedSettingKeys {
		meta := allowedSettings[key]
		item := dto.SettingItem{
			Key:         key,
			Value:       s.base[key],
			Type:        string(meta.Type),
			Description: meta.Description,
		}
		if row, ok := existing[key]; ok {
			item.Value = row.Value
		}
		items = append(items, item)
	}
	return items, nil
}

// Get retrieves a single policy entry, falling back to the base value.
func (s *PolicyService) Get(ctx context.Context, key string) (*dto.SettingItem, error) {
	meta, err := s.requireAllowedKey(key)
	if err != nil {
		return nil, err
	}
	row, err := s.repo.Get(ctx, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return &dto.SettingItem{
				Key:         key,
				Value:       s.base[key],
				Type:        string(meta.Type),
				Description: meta.Description,
			}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get setting")
	}
	return &dto.SettingItem{
		Key:         row.Key,
		Value:       row.Value,
		Type:        string(meta.Type),
		Description: meta.Description,
	}, nil
}

// Update upserts a single policy override.
func (s *PolicyService) Update(ctx context.Context, key, value string, actor *models.JWTClaims) (*dto.SettingItem, error) {
	meta, err := s.requireAllowedKey(key)
	if err != nil {
		return nil, err
	}
	value, err = validateSettingValue(meta, value)
	if err != nil {
		return nil, err
	}

	prev, err := s.repo.Get(ctx, key)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch setting")
	}

	setting := &models.Setting{
		Key:         key,
		Value:       value,
		Type:        meta.Type,
		Description: strPtr(meta.Description),
		UpdatedBy:   userIDPtr(actor),
	}
	if err := s.repo.Upsert(ctx, setting); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update setting")
	}

	s.emitAudit(ctx, actor, key, prevSettingValue(prev), value)

	return &dto.SettingItem{
		Key:         key,
		Value:       value,
		Type:        string(meta.Type),
		Description: meta.Description,
	}, nil
}

// BulkUpdate applies several overrides in one transaction.
func (s *PolicyService) BulkUpdate(ctx context.Context, req dto.BulkUpdateSettingsRequest, actor *models.JWTClaims) ([]dto.SettingItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk payload")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	existingRows, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing settings")
	}
	existing := make(map[string]models.Setting, len(existingRows))
	for _, row := range existingRows {
		existing[row.Key] = row
	}

	toUpsert := make([]models.Setting, 0, len(req.Items))
	for _, item := range req.Items {
		meta, err := s.requireAllowedKey(item.Key)
		if err != nil {
			return nil, err
		}
		normalized, err := validateSettingValue(meta, item.Value)
		if err != nil {
			return nil, err
		}
		toUpsert = append(toUpsert, models.Setting{
			Key:         item.Key,
			Value:       normalized,
			Type:        meta.Type,
			Description: strPtr(meta.Description),
			UpdatedBy:   userIDPtr(actor),
		})
	}

	if err := s.repo.BulkUpsert(ctx, toUpsert); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bulk update settings")
	}

	result := make([]dto.SettingItem, 0, len(toUpsert))
	for _, setting := range toUpsert {
		result = append(result, dto.SettingItem{
			Key:         setting.Key,
			Value:       setting.Value,
			Type:        string(setting.Type),
			Description: allowedSettings[setting.Key].Description,
		})
		prev := existing[setting.Key]
		s.emitAudit(ctx, actor, setting.Key, prev.Value, setting.Value)
	}
	return result, nil
}

func (s *PolicyService) requireAllowedKey(key string) (allowedSetting, error) {
	meta, ok := allowedSettings[key]
	if !ok {
		return allowedSetting{}, appErrors.Clone(appErrors.ErrValidation, "unsupported setting key")
	}
	return meta, nil
}

func validateSettingValue(meta allowedSetting, value string) (string, error) {
	value = strings.TrimSpace(value)
	switch meta.Type {
	case models.SettingTypeBoolean:
		switch strings.ToLower(value) {
		case "true":
			return "true", nil
		case "false":
			return "false", nil
		default:
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s expects boolean value", meta.Key))
		}
	case models.SettingTypeInteger:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s expects non-negative integer", meta.Key))
		}
		return strconv.Itoa(n), nil
	case models.SettingTypeString:
		if value == "" {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s requires a value", meta.Key))
		}
		return value, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "unsupported setting type")
	}
}

func (s *PolicyService) emitAudit(ctx context.Context, actor *models.JWTClaims, key, oldValue, newValue string) {
	if s.audit == nil {
		return
	}
	details, _ := json.Marshal(map[string]string{
		"key": key,
		"old": oldValue,
		"new": newValue,
	})
	log := &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     models.AuditActionSettingUpdate,
		Resource:   "setting",
		ResourceID: &key,
		Details:    string(details),
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record setting audit", zap.Error(err))
	}
}

func prevSettingValue(setting *models.Setting) string {
	if setting == nil {
		return ""
	}
	return setting.Value
}

func strPtr(s string) *string {
	return &s
}

func userIDPtr(actor *models.JWTClaims) *string {
	if actor == nil {
		return nil
	}
	id := actor.UserID
	return &id
}
