// Package config loads a bifrostd instance's configuration from a YAML
// file, the way controlplane/pkg/yncp loads yanet's controlplane config:
// a Config struct with yaml tags, a DefaultConfig that fills in every
// field a bare-minimum deployment needs, and a LoadConfig that unmarshals
// onto those defaults so a config file only has to override what it cares
// about.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bifrost-project/bifrost/common/go/logging"
)

// Config is the top-level configuration for the bifrostd binary.
type Config struct {
	// Logging configures the process-wide logger.
	Logging logging.Config `yaml:"logging"`
	// Rings configures every ring this instance manages, keyed by ring
	// name.
	Rings map[string]RingConfig `yaml:"rings"`
	// Telemetry configures this instance's telemetry service.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// RingConfig configures one ring and the capture pipeline feeding it.
type RingConfig struct {
	// Space is the memory space backing the ring's buffer ("host",
	// "host-pinned", "device", or "device-managed").
	Space string `yaml:"space"`
	// ContiguousSpan is the largest single span the writer may reserve,
	// in bytes.
	ContiguousSpan uint64 `yaml:"contiguous_span"`
	// Capacity is the ring's total buffer size, in bytes.
	Capacity uint64 `yaml:"capacity"`
	// Nringlets is the striping factor passed to Ring.Resize.
	Nringlets int `yaml:"nringlets"`

	// Capture configures the source feeding this ring, if any. A ring
	// with no Capture section is write-driven by some other process
	// (e.g. a pipeline stage) instead of a packet source.
	Capture *CaptureConfig `yaml:"capture"`
}

// CaptureConfig configures one capture engine.
type CaptureConfig struct {
	// Source selects the packet origin: "udp", "sniffer", "verbs", or
	// "disk".
	Source string `yaml:"source"`
	// Address is the source-specific endpoint: a UDP listen address, an
	// interface name, an RDMA device/queue-pair spec, or a file path.
	Address string `yaml:"address"`

	// NSrc is the number of distinct sources multiplexed onto this
	// ring (e.g. antennas or polarizations).
	NSrc int `yaml:"nsrc"`
	// BufferNTime is the number of time samples per capture slot.
	BufferNTime uint64 `yaml:"buffer_ntime"`
	// SlotNTime is the number of time samples between forced periodic
	// sequence breaks.
	SlotNTime uint64 `yaml:"slot_ntime"`
	// BytesPerSample is the size of one channel's sample, in bytes.
	BytesPerSample int `yaml:"bytes_per_sample"`
	// Timeout bounds how long one Recv call waits for a packet before
	// returning NoData.
	Timeout time.Duration `yaml:"timeout"`
	// MaxPacketSize bounds the receive buffer, in bytes.
	MaxPacketSize int `yaml:"max_packet_size"`

	// Core pins the capture goroutine to a CPU core when set.
	Core *int `yaml:"core"`
	// CorePriority is the scheduling priority applied alongside Core.
	CorePriority int `yaml:"core_priority"`
}

// TelemetryConfig configures the Telemetry gRPC service and its periodic
// log publisher.
type TelemetryConfig struct {
	// Endpoint is the address the telemetry gRPC service listens on.
	// Empty disables the service.
	Endpoint string `yaml:"endpoint"`
	// PublishInterval is how often ring snapshots are logged. Zero
	// disables the log publisher.
	PublishInterval time.Duration `yaml:"publish_interval"`
}

// DefaultConfig returns the configuration used for any field a loaded
// config file omits.
func DefaultConfig() *Config {
	return &Config{
		Logging:   logging.DefaultConfig(),
		Rings:     map[string]RingConfig{},
		Telemetry: TelemetryConfig{Endpoint: "127.0.0.1:4501", PublishInterval: 30 * time.Second},
	}
}

// LoadConfig reads and parses the YAML config file at path, starting from
// DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to deserialize config: %w", err)
	}

	return cfg, nil
}
