package main

import (
	"context"
	"time"

	"github.com/spf13/viper"

	"github.com/yugeshweb/AquaFlow/internal/status"
)

// networkEnvFile is rewritten by pi-helper whenever the link changes.
const networkEnvFile = "/run/pi-helper.env"

// Keys pi-helper writes, lowercased as viper stores them.
const (
	keyNetworkType       = "network_type"
	keyNetworkIP         = "network_ip"
	keyNetworkStatus     = "network_status"
	keyNetworkGateway    = "network_gateway"
	keyNetworkWifiStatus = "network_wifi_status"
	keyNetworkWifiSSID   = "network_wifi_ssid"
)

// readNetworkInfo sources the pi-helper env file at path. When the file
// cannot be read it falls back to the process environment, which systemd
// fills from the same file at start. Returns nil when no status is known.
func readNetworkInfo(path string) *status.NetworkInfo {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		v.AutomaticEnv()
	}

	s := v.GetString(keyNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       v.GetString(keyNetworkType),
		IP:         v.GetString(keyNetworkIP),
		Status:     s,
		Gateway:    v.GetString(keyNetworkGateway),
		WifiStatus: v.GetString(keyNetworkWifiStatus),
		SSID:       v.GetString(keyNetworkWifiSSID),
	}
}

// refreshNetwork re-reads path every interval until ctx is done.
func refreshNetwork(ctx context.Context, tracker *status.Tracker, path string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if net := readNetworkInfo(path); net != nil {
				tracker.SetNetwork(net)
			}
		}
	}
}
