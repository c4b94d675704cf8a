// Package config 提供配置管理
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/quekou/quekou/pkg/analysis"
	"github.com/quekou/quekou/pkg/model"
)

// Config 应用配置
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name     string `yaml:"name"`
	Env      string `yaml:"env"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// APIConfig API配置
type APIConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// AnalysisConfig 分析引擎默认配置
//
// 封顶阈值、归一化基准等历史上散落各处的常量统一收敛到这里，
// 运行时可被请求级配置覆盖，但覆盖值走同一套校验。
type AnalysisConfig struct {
	SlotDurationMinutes        int     `yaml:"slot_duration_minutes"`
	StatisticMethod            string  `yaml:"statistic_method"` // mean/median/percentile
	PercentileValue            float64 `yaml:"percentile_value"`
	ByWeekday                  bool    `yaml:"by_weekday"`
	NormalizationBaseDays      int     `yaml:"normalization_base_days"`
	NormalizationToleranceDays int     `yaml:"normalization_tolerance_days"`
	MaxShortagePerDayHours     float64 `yaml:"max_shortage_per_day_hours"`
	NeedCeilingPerSlot         float64 `yaml:"need_ceiling_per_slot"`
	BaselineFallback           string  `yaml:"baseline_fallback"` // error/facility_default
	RecordPolicy               string  `yaml:"record_policy"`     // reject_batch/skip_and_log
	ScenarioWorkers            int     `yaml:"scenario_workers"`
}

// ToAnalysisConfig 转换为引擎配置（窗口由调用方填充）
func (c *AnalysisConfig) ToAnalysisConfig() analysis.Config {
	return analysis.Config{
		SlotDurationMinutes:        c.SlotDurationMinutes,
		Statistic:                  analysis.StatisticMethod(c.StatisticMethod),
		PercentileValue:            c.PercentileValue,
		ByWeekday:                  c.ByWeekday,
		NormalizationBaseDays:      c.NormalizationBaseDays,
		NormalizationToleranceDays: c.NormalizationToleranceDays,
		MaxShortagePerDayHours:     c.MaxShortagePerDayHours,
		NeedCeilingPerSlot:         c.NeedCeilingPerSlot,
		BaselineFallback:           analysis.BaselineFallback(c.BaselineFallback),
		RecordPolicy:               model.RecordPolicy(c.RecordPolicy),
	}
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	defaults := analysis.DefaultConfig()

	cfg := &Config{
		App: AppConfig{
			Name:     getEnv("APP_NAME", "quekou"),
			Env:      getEnv("APP_ENV", "development"),
			Port:     getEnvInt("APP_PORT", 7031),
			LogLevel: getEnv("APP_LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Enabled:         getEnvBool("DB_ENABLED", false),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "quekou"),
			User:            getEnv("DB_USER", "quekou"),
			Password:        getEnv("DB_PASSWORD", "quekou123"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		API: APIConfig{
			Timeout: getEnvDuration("API_TIMEOUT", 60*time.Second),
		},
		Analysis: AnalysisConfig{
			SlotDurationMinutes:        getEnvInt("ANALYSIS_SLOT_DURATION_MINUTES", defaults.SlotDurationMinutes),
			StatisticMethod:            getEnv("ANALYSIS_STATISTIC_METHOD", string(defaults.Statistic)),
			PercentileValue:            getEnvFloat("ANALYSIS_PERCENTILE_VALUE", defaults.PercentileValue),
			ByWeekday:                  getEnvBool("ANALYSIS_BY_WEEKDAY", defaults.ByWeekday),
			NormalizationBaseDays:      getEnvInt("ANALYSIS_NORMALIZATION_BASE_DAYS", defaults.NormalizationBaseDays),
			NormalizationToleranceDays: getEnvInt("ANALYSIS_NORMALIZATION_TOLERANCE_DAYS", defaults.NormalizationToleranceDays),
			MaxShortagePerDayHours:     getEnvFloat("ANALYSIS_MAX_SHORTAGE_PER_DAY_HOURS", defaults.MaxShortagePerDayHours),
			NeedCeilingPerSlot:         getEnvFloat("ANALYSIS_NEED_CEILING_PER_SLOT", defaults.NeedCeilingPerSlot),
			BaselineFallback:           getEnv("ANALYSIS_BASELINE_FALLBACK", string(defaults.BaselineFallback)),
			RecordPolicy:               getEnv("ANALYSIS_RECORD_POLICY", string(defaults.RecordPolicy)),
			ScenarioWorkers:            getEnvInt("ANALYSIS_SCENARIO_WORKERS", 4),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	return cfg, nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// IsTest 检查是否为测试环境
func (c *Config) IsTest() bool {
	return c.App.Env == "test"
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
