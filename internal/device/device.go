// Package device reports host identity and the uncalibrated CPU temperature
// used as the auxiliary reading.
package device

import (
	"context"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	psnet "github.com/shirou/gopsutil/v3/net"
)

// Info describes the device for /infoDevices.
type Info struct {
	DeviceID string
	Hostname string
	Platform string
	Kernel   string
	MAC      string
	IP       string
	Iface    string
}

// Source provides device information.
type Source interface {
	// CPUTemperature returns the internal temperature in °C, or 0 when the
	// host exposes no thermal sensor. It never fails.
	CPUTemperature() float64

	// Info returns host identity; missing fields are left empty.
	Info() Info
}

// cpuSensorKeys are thermal zone names that denote the SoC/CPU, in
// preference order.
var cpuSensorKeys = []string{"cpu_thermal", "soc_thermal", "coretemp", "k10temp", "cpu", "soc"}

// HostSource reads the running host through gopsutil.
type HostSource struct {
	deviceID string
	timeout  time.Duration
}

// NewHostSource returns a HostSource. deviceID overrides the host ID when
// non-empty.
func NewHostSource(deviceID string) *HostSource {
	return &HostSource{deviceID: deviceID, timeout: time.Second}
}

// CPUTemperature implements Source.
func (h *HostSource) CPUTemperature() float64 {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	// Partial results come back alongside a warnings error; use what we got.
	temps, _ := host.SensorsTemperaturesWithContext(ctx)
	return pickCPUTemperature(temps)
}

func pickCPUTemperature(temps []host.TemperatureStat) float64 {
	for _, key := range cpuSensorKeys {
		for _, t := range temps {
			if strings.Contains(strings.ToLower(t.SensorKey), key) && t.Temperature > 0 {
				return t.Temperature
			}
		}
	}
	for _, t := range temps {
		if t.Temperature > 0 {
			return t.Temperature
		}
	}
	return 0
}

// Info implements Source.
func (h *HostSource) Info() Info {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	info := Info{DeviceID: h.deviceID}
	if hi, err := host.InfoWithContext(ctx); err == nil {
		info.Hostname = hi.Hostname
		info.Platform = hi.Platform
		info.Kernel = hi.KernelVersion
		if info.DeviceID == "" {
			info.DeviceID = hi.HostID
		}
	}

	if ifaces, err := psnet.InterfacesWithContext(ctx); err == nil {
		name, mac, ip := primaryInterface(ifaces)
		info.Iface = name
		info.MAC = mac
		info.IP = ip
	}
	return info
}

// primaryInterface picks the first up, non-loopback interface with an IPv4
// address.
func primaryInterface(ifaces psnet.InterfaceStatList) (name, mac, ip string) {
	for _, iface := range ifaces {
		if !hasFlag(iface.Flags, "up") || hasFlag(iface.Flags, "loopback") {
			continue
		}
		for _, a := range iface.Addrs {
			addr, _, _ := strings.Cut(a.Addr, "/")
			if strings.Contains(addr, ".") {
				return iface.Name, iface.HardwareAddr, addr
			}
		}
	}
	return "", "", ""
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}

// StaticSource returns fixed values. Used by tests and --print-state.
type StaticSource struct {
	Temp float64
	Host Info
}

// CPUTemperature implements Source.
func (s StaticSource) CPUTemperature() float64 { return s.Temp }

// Info implements Source.
func (s StaticSource) Info() Info { return s.Host }
