package influx

import (
	"context"
	"fmt"
	"time"

	"github.com/danieltroger/mpi-15k-controller/internal/config"
	"github.com/danieltroger/mpi-15k-controller/internal/core/port"
	"github.com/danieltroger/mpi-15k-controller/internal/core/soc"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// HistoryClient answers history queries from the InfluxDB bucket the inverter
// logger writes to. Voltage and current are stored in tenths, power in W.
type HistoryClient struct {
	client  influxdb2.Client
	query   api.QueryAPI
	cfg     config.InfluxDBConfig
	battery config.BatteryConfig
}

var _ port.HistoryClient = (*HistoryClient)(nil)

// NewHistoryClient returns port.NoHistory when no server is configured.
func NewHistoryClient(cfg *config.Config) port.HistoryClient {
	if !cfg.InfluxDB.Enabled() {
		return port.NoHistory{}
	}
	client := influxdb2.NewClient(cfg.InfluxDB.URL, cfg.InfluxDB.Token)
	return &HistoryClient{
		client:  client,
		query:   client.QueryAPI(cfg.InfluxDB.Org),
		cfg:     cfg.InfluxDB,
		battery: cfg.Battery,
	}
}

func (c *HistoryClient) PowerSamples(ctx context.Context, from, to int64) ([]soc.PowerSample, error) {
	result, err := c.query.Query(ctx, powerQuery(c.cfg, from, to))
	if err != nil {
		return nil, fmt.Errorf("influx power query: %w", err)
	}
	defer result.Close()

	var samples []soc.PowerSample
	for result.Next() {
		value, ok := toFloat(result.Record().Value())
		if !ok {
			continue
		}
		samples = append(samples, soc.PowerSample{
			Time:  result.Record().Time().UnixMilli(),
			Value: value,
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("influx power query: %w", err)
	}
	return samples, nil
}

func (c *HistoryClient) LastFull(ctx context.Context) (*int64, error) {
	return c.latestTime(ctx, lastFullQuery(c.cfg, c.battery))
}

func (c *HistoryClient) LastEmpty(ctx context.Context) (*int64, error) {
	return c.latestTime(ctx, lastEmptyQuery(c.cfg, c.battery))
}

func (c *HistoryClient) Close() {
	c.client.Close()
}

func (c *HistoryClient) latestTime(ctx context.Context, flux string) (*int64, error) {
	result, err := c.query.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("influx reference query: %w", err)
	}
	defer result.Close()

	var latest *int64
	for result.Next() {
		t := result.Record().Time().UnixMilli()
		if latest == nil || t > *latest {
			latest = &t
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("influx reference query: %w", err)
	}
	return latest, nil
}

func powerQuery(cfg config.InfluxDBConfig, from, to int64) string {
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %q and r._field == %q)
  |> group()
  |> sort(columns: ["_time"])`,
		cfg.Bucket, fluxTime(from), fluxTime(to+1), cfg.Measurement, cfg.PowerField)
}

// stored voltage and current are tenths, the thresholds are volts and amps
func lastFullQuery(cfg config.InfluxDBConfig, battery config.BatteryConfig) string {
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: -%dd)
  |> filter(fn: (r) => r._measurement == %q and (r._field == %q or r._field == %q))
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> filter(fn: (r) => r[%q] >= %s and r[%q] < %s)
  |> group()
  |> sort(columns: ["_time"], desc: true)
  |> limit(n: 1)`,
		cfg.Bucket, cfg.LookbackDays, cfg.Measurement, cfg.VoltageField, cfg.CurrentField,
		cfg.VoltageField, fluxFloat(battery.FullVoltage*10), cfg.CurrentField, fluxFloat(battery.StopChargingBelowCurrent*10))
}

func lastEmptyQuery(cfg config.InfluxDBConfig, battery config.BatteryConfig) string {
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: -%dd)
  |> filter(fn: (r) => r._measurement == %q and r._field == %q)
  |> filter(fn: (r) => r._value <= %s)
  |> group()
  |> sort(columns: ["_time"], desc: true)
  |> limit(n: 1)`,
		cfg.Bucket, cfg.LookbackDays, cfg.Measurement, cfg.VoltageField, fluxFloat(battery.EmptyAt*10))
}

func fluxTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano)
}

// flux refuses to compare an int literal against a float column
func fluxFloat(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
