package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Pump          string       `json:"pump"`
	Command       string       `json:"command"`
	CommandAt     string       `json:"command_at,omitempty"`
	Flow1         ChannelJSON  `json:"flow1"`
	Flow2         ChannelJSON  `json:"flow2"`
	Leak          bool         `json:"leak"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Store         StoreJSON    `json:"store"`
	Counts        CountsJSON   `json:"counts"`
	Recent        []SampleJSON `json:"recent"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ChannelJSON is the JSON representation of one flow channel.
type ChannelJSON struct {
	Rate    float64 `json:"rate_lpm"`
	Pending uint64  `json:"pending_pulses"`
	Liters  float64 `json:"liters"`
	Cost    float64 `json:"cost"`
	Flowing bool    `json:"flowing"`
}

// StoreJSON reports the remote store state.
type StoreJSON struct {
	Backend   string `json:"backend"`
	Addr      string `json:"addr"`
	Connected bool   `json:"connected"`
	Breaker   string `json:"breaker,omitempty"`
}

// CountsJSON is the JSON representation of loop counters.
type CountsJSON struct {
	Cycles        int `json:"cycles"`
	Windows       int `json:"windows"`
	Publishes     int `json:"publishes"`
	PublishErrors int `json:"publish_errors"`
	FetchErrors   int `json:"fetch_errors"`
	BadCommands   int `json:"bad_commands"`
}

// SampleJSON is one recent rate sample.
type SampleJSON struct {
	Channel   string  `json:"channel"`
	Rate      float64 `json:"rate_lpm"`
	Count     uint64  `json:"count"`
	ElapsedMs int64   `json:"elapsed_ms"`
	At        string  `json:"at"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs        int64   `json:"poll_ms"`
	WindowMs      int64   `json:"window_ms"`
	DebounceMs    int64   `json:"debounce_ms"`
	PulsesPerUnit float64 `json:"pulses_per_unit"`
	CorrectDrift  bool    `json:"correct_drift"`
	HTTPAddr      string  `json:"http_addr"`
	History       bool    `json:"history"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func channelJSON(c ChannelStatus) ChannelJSON {
	return ChannelJSON{
		Rate:    round2(c.Rate),
		Pending: c.Pending,
		Liters:  round2(c.Liters),
		Cost:    round2(c.Cost),
		Flowing: c.Flowing,
	}
}

func buildInner(snap Snapshot) StatusInner {
	pump := string(snap.Actuator)
	if pump == "" {
		pump = "UNKNOWN"
	}
	cmd := string(snap.Command)
	if cmd == "" {
		cmd = "UNKNOWN"
	}

	inner := StatusInner{
		Pump:          pump,
		Command:       cmd,
		Flow1:         channelJSON(snap.Flow1),
		Flow2:         channelJSON(snap.Flow2),
		Leak:          snap.Leak,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Store: StoreJSON{
			Backend:   snap.Config.Backend,
			Addr:      snap.Config.StoreAddr,
			Connected: snap.StoreConnected,
			Breaker:   snap.Breaker,
		},
		Counts: CountsJSON{
			Cycles:        snap.Counts.Cycles,
			Windows:       snap.Counts.Windows,
			Publishes:     snap.Counts.Publishes,
			PublishErrors: snap.Counts.PublishErrors,
			FetchErrors:   snap.Counts.FetchErrors,
			BadCommands:   snap.Counts.BadCommands,
		},
		Recent: make([]SampleJSON, 0, len(snap.Recent)),
		Config: ConfigJSON{
			PollMs:        snap.Config.PollMs,
			WindowMs:      snap.Config.WindowMs,
			DebounceMs:    snap.Config.DebounceMs,
			PulsesPerUnit: snap.Config.PulsesPerUnit,
			CorrectDrift:  snap.Config.CorrectDrift,
			HTTPAddr:      snap.Config.HTTPAddr,
			History:       snap.Config.History,
		},
	}
	if !snap.CommandAt.IsZero() {
		inner.CommandAt = snap.CommandAt.UTC().Format(time.RFC3339)
	}
	for _, s := range snap.Recent {
		inner.Recent = append(inner.Recent, SampleJSON{
			Channel:   s.Channel.String(),
			Rate:      round2(s.Rate),
			Count:     s.Count,
			ElapsedMs: s.Elapsed.Milliseconds(),
			At:        s.At.UTC().Format(time.RFC3339Nano),
		})
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}
