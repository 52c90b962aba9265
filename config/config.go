// Package config loads bridge settings from an optional TOML file with
// environment-variable overrides. Settings are fixed for the lifetime of
// a run; changing them requires a stop/start.
package config

import (
	"net"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Duration lets TOML express intervals as "250ms", "1s" and so on.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Sink selection values.
const (
	SinkSerial = "serial"
	SinkCAN    = "can"
)

type Config struct {
	// UDP listener for the game's Data Out feed.
	ListenAddress string `toml:"listen_address"`
	ListenPort    int    `toml:"listen_port"`

	// Serial link to the actuator controller.
	SerialPort string `toml:"serial_port"`
	BaudRate   int    `toml:"baud_rate"`

	// Sink selects the transmit transport: "serial" or "can".
	Sink         string `toml:"sink"`
	CANInterface string `toml:"can_interface"`
	CANFrameID   uint32 `toml:"can_frame_id"`

	// LegacyFrames selects the 3-field line format for older firmware.
	LegacyFrames bool `toml:"legacy_frames"`

	// RefreshInterval is the reporting cadence (console line, websocket
	// push). PollInterval bounds the receive poll; it is the only
	// suspension in the ingestion loop.
	RefreshInterval Duration `toml:"refresh_interval"`
	PollInterval    Duration `toml:"poll_interval"`

	// HTTPListen is the status server address in the web variant.
	HTTPListen string `toml:"http_listen"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		ListenAddress:   "127.0.0.1",
		ListenPort:      12345,
		SerialPort:      "/dev/ttyACM0",
		BaudRate:        115200,
		Sink:            SinkSerial,
		CANInterface:    "can0",
		CANFrameID:      0x200,
		RefreshInterval: Duration{time.Second},
		PollInterval:    Duration{time.Millisecond},
		HTTPListen:      ":8080",
	}
}

// Load reads fileName if it exists, then applies environment overrides.
// A missing file is not an error; a malformed one is.
func Load(fileName string) (Config, error) {
	// optional .env for the overrides below
	_ = godotenv.Load()

	cfg := Default()
	if fileName != "" {
		if _, err := os.Stat(fileName); err == nil {
			if _, err := toml.DecodeFile(fileName, &cfg); err != nil {
				return Config{}, errors.Wrapf(err, "unable to load configuration %s", fileName)
			}
		}
	}
	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Sink != SinkSerial && c.Sink != SinkCAN {
		return errors.Errorf("unknown sink %q", c.Sink)
	}
	if c.BaudRate <= 0 {
		return errors.Errorf("invalid baud rate %d", c.BaudRate)
	}
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return errors.Errorf("invalid listen port %d", c.ListenPort)
	}
	if c.PollInterval.Duration <= 0 {
		return errors.New("poll interval must be positive")
	}
	if c.RefreshInterval.Duration <= 0 {
		return errors.New("refresh interval must be positive")
	}
	return nil
}

// Addr is the UDP listen endpoint as host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.ListenAddress, strconv.Itoa(c.ListenPort))
}

func applyEnv(cfg *Config) {
	setString(&cfg.ListenAddress, "BRIDGE_LISTEN_ADDRESS")
	setInt(&cfg.ListenPort, "BRIDGE_LISTEN_PORT")
	setString(&cfg.SerialPort, "BRIDGE_SERIAL_PORT")
	setInt(&cfg.BaudRate, "BRIDGE_BAUD_RATE")
	setString(&cfg.Sink, "BRIDGE_SINK")
	setString(&cfg.CANInterface, "BRIDGE_CAN_INTERFACE")
	setBool(&cfg.LegacyFrames, "BRIDGE_LEGACY_FRAMES")
	setDuration(&cfg.RefreshInterval, "BRIDGE_REFRESH_INTERVAL")
	setDuration(&cfg.PollInterval, "BRIDGE_POLL_INTERVAL")
	setString(&cfg.HTTPListen, "BRIDGE_HTTP_LISTEN")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
