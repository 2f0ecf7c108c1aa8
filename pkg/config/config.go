package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Scheduling SchedulingConfig
	Workload   WorkloadConfig
	Reports    ReportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulingConfig carries the base policy values for the session allocator.
// Settings rows stored in the database overlay these at snapshot time.
type SchedulingConfig struct {
	AllowWeekendSessions   bool
	CourseMaxSessionsWeek  int
	TeacherMaxSessionsDay  int
	TeacherMaxSessionsWeek int
	LeaveApprovalRequired  bool
	SessionDurationHours   int
	HoursPerCredit         int
	ProjectSessionKeyword  string
	ProjectGenerateEveryN  int
	ProjectMinSpacingDays  int
	LabSessionKeyword      string
	LabGenerateEveryN      int
	LabMinSpacingDays      int
	TeacherMaxHoursPerDay  int
	TeacherMaxHoursPerWeek int
}

// WorkloadConfig tunes the fairness report.
type WorkloadConfig struct {
	TargetWeeklyHours int
	ToleranceHours    int
	CacheTTL          time.Duration
}

// ReportsConfig governs export storage and analytics caching.
type ReportsConfig struct {
	AnalyticsCacheTTL time.Duration
	ExportDir         string
	ExportTTL         time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduling = SchedulingConfig{
		AllowWeekendSessions:   v.GetBool("ALLOW_WEEKEND_SESSIONS"),
		CourseMaxSessionsWeek:  v.GetInt("COURSE_MAX_SESSIONS_PER_WEEK"),
		TeacherMaxSessionsDay:  v.GetInt("TEACHER_MAX_SESSIONS_PER_DAY"),
		TeacherMaxSessionsWeek: v.GetInt("TEACHER_MAX_SESSIONS_PER_WEEK"),
		LeaveApprovalRequired:  v.GetBool("LEAVE_APPROVAL_REQUIRED"),
		SessionDurationHours:   v.GetInt("SESSION_DEFAULT_DURATION_HOURS"),
		HoursPerCredit:         v.GetInt("HOURS_PER_CREDIT"),
		ProjectSessionKeyword:  v.GetString("PROJECT_SESSION_KEYWORD"),
		ProjectGenerateEveryN:  v.GetInt("PROJECT_GENERATE_EVERY_N"),
		ProjectMinSpacingDays:  v.GetInt("PROJECT_MIN_SPACING_DAYS"),
		LabSessionKeyword:      v.GetString("LAB_SESSION_KEYWORD"),
		LabGenerateEveryN:      v.GetInt("LAB_GENERATE_EVERY_N"),
		LabMinSpacingDays:      v.GetInt("LAB_MIN_SPACING_DAYS"),
		TeacherMaxHoursPerDay:  v.GetInt("TEACHER_MAX_HOURS_PER_DAY"),
		TeacherMaxHoursPerWeek: v.GetInt("TEACHER_MAX_HOURS_PER_WEEK"),
	}

	cfg.Workload = WorkloadConfig{
		TargetWeeklyHours: v.GetInt("WORKLOAD_TARGET_WEEKLY_HOURS"),
		ToleranceHours:    v.GetInt("WORKLOAD_TOLERANCE_HOURS"),
		CacheTTL:          parseDuration(v.GetString("WORKLOAD_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Reports = ReportsConfig{
		AnalyticsCacheTTL: parseDuration(v.GetString("ANALYTICS_CACHE_TTL"), 10*time.Minute),
		ExportDir:         v.GetString("EXPORT_DIR"),
		ExportTTL:         parseDuration(v.GetString("EXPORT_RESULT_TTL"), 24*time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "institute_records")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ALLOW_WEEKEND_SESSIONS", false)
	v.SetDefault("COURSE_MAX_SESSIONS_PER_WEEK", 10)
	v.SetDefault("TEACHER_MAX_SESSIONS_PER_DAY", 4)
	v.SetDefault("TEACHER_MAX_SESSIONS_PER_WEEK", 20)
	v.SetDefault("LEAVE_APPROVAL_REQUIRED", true)
	v.SetDefault("SESSION_DEFAULT_DURATION_HOURS", 1)
	v.SetDefault("HOURS_PER_CREDIT", 15)
	v.SetDefault("PROJECT_SESSION_KEYWORD", "Project")
	v.SetDefault("PROJECT_GENERATE_EVERY_N", 0)
	v.SetDefault("PROJECT_MIN_SPACING_DAYS", 7)
	v.SetDefault("LAB_SESSION_KEYWORD", "Lab")
	v.SetDefault("LAB_GENERATE_EVERY_N", 0)
	v.SetDefault("LAB_MIN_SPACING_DAYS", 3)
	v.SetDefault("TEACHER_MAX_HOURS_PER_DAY", 6)
	v.SetDefault("TEACHER_MAX_HOURS_PER_WEEK", 30)

	v.SetDefault("WORKLOAD_TARGET_WEEKLY_HOURS", 24)
	v.SetDefault("WORKLOAD_TOLERANCE_HOURS", 4)
	v.SetDefault("WORKLOAD_CACHE_TTL", "5m")
	v.SetDefault("ANALYTICS_CACHE_TTL", "10m")
	v.SetDefault("EXPORT_DIR", "./exports")
	v.SetDefault("EXPORT_RESULT_TTL", "24h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
