package web

import (
	"sync/atomic"
	"time"

	"tdisplay-ng/internal/panel"
)

// Panel is the slice of *panel.State the web UI reads and drives.
type Panel interface {
	Snapshot() panel.Snapshot
	LastView() panel.View
	SetStep(step uint8, fade time.Duration) error
	SetPct(pct uint8, fade time.Duration) error
}

var _ Panel = (*panel.State)(nil)

type Status struct {
	startUnixNano int64
	backend       atomic.Value // string
	battery       atomic.Value // string
	mqttConnected atomic.Bool
	published     atomic.Uint64
}

func NewStatus() *Status {
	s := &Status{}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.backend.Store("")
	s.battery.Store("")
	return s
}

func (s *Status) SetStatic(backend, batterySource string) {
	if backend != "" {
		s.backend.Store(backend)
	}
	if batterySource != "" {
		s.battery.Store(batterySource)
	}
}

// MarkPublish records the outcome of one telemetry publish.
func (s *Status) MarkPublish(ok bool) {
	s.mqttConnected.Store(ok)
	if ok {
		s.published.Add(1)
	}
}

type StatusSnapshot struct {
	Service       string         `json:"service"`
	NowUTC        string         `json:"now_utc"`
	UptimeSec     int64          `json:"uptime_sec"`
	Backend       string         `json:"backend"`
	BatterySource string         `json:"battery_source"`
	MQTTConnected bool           `json:"mqtt_connected"`
	MQTTPublished uint64         `json:"mqtt_published"`
	Panel         panel.Snapshot `json:"panel"`
	View          panel.View     `json:"view"`
}

func (s *Status) Snapshot(nowUTC time.Time, p Panel) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()
	snap := StatusSnapshot{
		Service:       "tdisplay-ng",
		NowUTC:        nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:     int64(nowUTC.Sub(start).Seconds()),
		Backend:       s.backend.Load().(string),
		BatterySource: s.battery.Load().(string),
		MQTTConnected: s.mqttConnected.Load(),
		MQTTPublished: s.published.Load(),
	}
	if p != nil {
		snap.Panel = p.Snapshot()
		snap.View = p.LastView()
	}
	return snap
}
