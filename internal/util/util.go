package util

import (
	"github.com/danieltroger/mpi-15k-controller/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "mpi",
			HADiscoveryTopic: "homeassistant",
			Telemetry: config.TelemetryConfig{
				VoltageTopic: "mpi/telemetry/battery_voltage",
				CurrentTopic: "mpi/telemetry/battery_current",
			},
		},
		InfluxDB: config.InfluxDBConfig{
			Measurement:        "mpi",
			VoltageField:       "battery_voltage",
			CurrentField:       "battery_current",
			PowerField:         "battery_power",
			LookbackDays:       30,
			QueryTimeoutMillis: 2000,
		},
		Battery: config.BatteryConfig{
			EmptyAt:                  46,
			FullVoltage:              55.2,
			StopChargingBelowCurrent: 5,
			CapacityPerCellFromWh:    600,
			CapacityPerCellToWh:      700,
			NumberOfCells:            16,
			ParasiticConsumptionFrom: 0,
			ParasiticConsumptionTo:   50,
		},
		CurrentState: config.CurrentStateConfig{
			Capacity:             10000,
			ParasiticConsumption: 20,
		},
		Search: config.SearchConfig{
			Workers:         2,
			IntervalSeconds: 3600,
			CooldownSeconds: 1,
			Tolerance:       0.01,
		},
		Estimate: config.EstimateConfig{
			PublishIntervalMillis: 100,
			HistoryRetrySeconds:   1,
		},
		Port: 8080,
	}
}
