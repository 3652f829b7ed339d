package mqtt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var ErrEmptyPayload = errors.New("empty telemetry payload")

type telemetryPayload struct {
	Value *float64 `json:"value"`
	Time  *int64   `json:"time"`
}

// ParseTelemetryPayload accepts either {"value": <number>, "time": <epoch ms>}
// or a bare number. Missing times default to arrival.
func ParseTelemetryPayload(payload []byte, arrival time.Time) (float64, int64, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return 0, 0, ErrEmptyPayload
	}
	if payload[0] == '{' {
		var p telemetryPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return 0, 0, fmt.Errorf("decoding telemetry payload: %w", err)
		}
		if p.Value == nil {
			return 0, 0, errors.New("telemetry payload has no value")
		}
		t := arrival.UnixMilli()
		if p.Time != nil {
			t = *p.Time
		}
		return *p.Value, t, nil
	}
	v, err := strconv.ParseFloat(string(payload), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing telemetry payload: %w", err)
	}
	return v, arrival.UnixMilli(), nil
}
