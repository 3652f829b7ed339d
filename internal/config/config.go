package config

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel     zapcore.Level
	MQTT         MQTTConfig         `mapstructure:"mqtt"`
	InfluxDB     InfluxDBConfig     `mapstructure:"influxdb"`
	Battery      BatteryConfig      `mapstructure:"battery"`
	CurrentState CurrentStateConfig `mapstructure:"current_state"`
	Search       SearchConfig       `mapstructure:"search"`
	Estimate     EstimateConfig     `mapstructure:"estimate"`
	StateFile    string             `mapstructure:"state_file"`
	Port         uint               `mapstructure:"port"`
	HttpLog      bool               `mapstructure:"http_log"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string          `mapstructure:"base_topic"`
	HADiscoveryEnable bool            `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string          `mapstructure:"ha_discovery_topic"`
	Telemetry         TelemetryConfig `mapstructure:"telemetry"`
}

// TelemetryConfig names the topics carrying battery readings in tenths of V / A.
type TelemetryConfig struct {
	VoltageTopic string `mapstructure:"voltage_topic"`
	CurrentTopic string `mapstructure:"current_topic"`
}

type InfluxDBConfig struct {
	URL                string `mapstructure:"url"`
	Token              string `mapstructure:"token"`
	Org                string `mapstructure:"org"`
	Bucket             string `mapstructure:"bucket"`
	Measurement        string `mapstructure:"measurement"`
	VoltageField       string `mapstructure:"voltage_field"`
	CurrentField       string `mapstructure:"current_field"`
	PowerField         string `mapstructure:"power_field"`
	LookbackDays       uint   `mapstructure:"lookback_days"`
	QueryTimeoutMillis uint32 `mapstructure:"query_timeout_millis"`
}

func (c InfluxDBConfig) Enabled() bool {
	return c.URL != ""
}

func (c InfluxDBConfig) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutMillis) * time.Millisecond
}

type BatteryConfig struct {
	EmptyAt                  float64 `mapstructure:"battery_empty_at"`
	FullVoltage              float64 `mapstructure:"full_battery_voltage"`
	StopChargingBelowCurrent float64 `mapstructure:"stop_charging_below_current"`
	CapacityPerCellFromWh    int     `mapstructure:"capacity_per_cell_from_wh"`
	CapacityPerCellToWh      int     `mapstructure:"capacity_per_cell_to_wh"`
	NumberOfCells            int     `mapstructure:"number_of_cells"`
	ParasiticConsumptionFrom int     `mapstructure:"parasitic_consumption_from"`
	ParasiticConsumptionTo   int     `mapstructure:"parasitic_consumption_to"`
}

// CapacityRange is the whole-pack capacity search range in Wh.
func (c BatteryConfig) CapacityRange() (int, int) {
	return c.CapacityPerCellFromWh * c.NumberOfCells, c.CapacityPerCellToWh * c.NumberOfCells
}

func (c BatteryConfig) ParasiticRange() (int, int) {
	return c.ParasiticConsumptionFrom, c.ParasiticConsumptionTo
}

type CurrentStateConfig struct {
	Capacity             float64 `mapstructure:"capacity"`
	ParasiticConsumption float64 `mapstructure:"parasitic_consumption"`
}

type SearchConfig struct {
	Workers         int     `mapstructure:"workers"`
	IntervalSeconds uint32  `mapstructure:"interval_seconds"`
	CooldownSeconds uint32  `mapstructure:"cooldown_seconds"`
	Tolerance       float64 `mapstructure:"tolerance"`
	ResultLogDir    string  `mapstructure:"result_log_dir"`
}

func (c SearchConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c SearchConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

type EstimateConfig struct {
	PublishIntervalMillis uint32 `mapstructure:"publish_interval_millis"`
	HistoryRetrySeconds   uint32 `mapstructure:"history_retry_seconds"`
}

func (c EstimateConfig) HistoryRetry() time.Duration {
	return time.Duration(c.HistoryRetrySeconds) * time.Second
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// Validate checks the bounds the estimation engine relies on.
func (c *Config) Validate() error {
	if c.Search.Workers < 1 {
		return errors.New("config param search.workers should be >= 1")
	}
	if c.Search.Tolerance <= 0 {
		return errors.New("config param search.tolerance should be > 0")
	}
	if c.Search.IntervalSeconds < 1 {
		return errors.New("config param search.interval_seconds should be >= 1")
	}
	if c.Battery.NumberOfCells < 1 {
		return errors.New("config param battery.number_of_cells should be >= 1")
	}
	if c.Battery.CapacityPerCellFromWh > c.Battery.CapacityPerCellToWh {
		return errors.New("config param battery.capacity_per_cell_from_wh must be <= battery.capacity_per_cell_to_wh")
	}
	if c.Battery.ParasiticConsumptionFrom > c.Battery.ParasiticConsumptionTo {
		return errors.New("config param battery.parasitic_consumption_from must be <= battery.parasitic_consumption_to")
	}
	if c.Battery.ParasiticConsumptionFrom < 0 {
		return errors.New("config param battery.parasitic_consumption_from should be >= 0")
	}
	if c.CurrentState.Capacity < 0 {
		return errors.New("config param current_state.capacity should be >= 0, 0 meaning unknown")
	}
	if c.CurrentState.ParasiticConsumption < 0 {
		return errors.New("config param current_state.parasitic_consumption should be >= 0")
	}
	return nil
}
