package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/relay-switch/internal/domain/relay"
	"github.com/oshokin/relay-switch/internal/logger"
)

// Config holds the settings of the relay-switch daemon and its subcommands.
type Config struct {
	// Name is the stream name; it also prefixes the cursor and snapshot keys.
	Name string `yaml:"name"`
	// Scheme is the addressing scheme: "fixed" or "tristate".
	Scheme string `yaml:"scheme"`
	// Switches lists the known relays in their textual form ("Relay1", "10000-B").
	// The fixed scheme defaults to all eight relays.
	Switches []string `yaml:"switches"`
	// SeedOff writes an all-Off snapshot for the known relays on first run.
	SeedOff bool `yaml:"seed_off"`
	// BlockTimeout bounds how long one read waits for new entries.
	BlockTimeout time.Duration `yaml:"block_timeout"`
	// Store selects and configures the command store.
	Store Store `yaml:"store"`
	// Transmitter configures the hardware output.
	Transmitter Transmitter `yaml:"transmitter"`
	// Governor configures the forced-off watchdog.
	Governor Governor `yaml:"governor"`
	// HTTPAddress serves metrics, health and command ingress. Empty disables it.
	HTTPAddress string `yaml:"http_addr"`
	// GRPCAddress serves the gRPC health service and is dialed by "status".
	GRPCAddress string `yaml:"grpc_addr"`
	// UpdateFolder is the URL where self-update artifacts are hosted.
	UpdateFolder string `yaml:"update_folder"`
	// Timeout is the duration for network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the minimum log level when no verbosity flag is given.
	LogLevel string `yaml:"log_level"`
	// AllowConcurrent disables the check for another running daemon.
	AllowConcurrent bool `yaml:"allow_concurrent"`

	scheme relay.Scheme
	known  []relay.Address
}

// Store selects the command store backend.
type Store struct {
	// Driver is "redis" or "badger".
	Driver string `yaml:"driver"`
	// Address is the Redis host:port.
	Address string `yaml:"address"`
	// Password is the Redis password.
	Password string `yaml:"password"`
	// DB is the Redis database number.
	DB int `yaml:"db"`
	// Path is the Badger directory. Empty keeps the database in memory.
	Path string `yaml:"path"`
}

// Transmitter configures the hardware output.
type Transmitter struct {
	// Kind is "rf" (433 MHz on one pin) or "direct" (one pin per relay).
	Kind string `yaml:"kind"`
	// Pin is the RF transmitter data pin.
	Pin string `yaml:"pin"`
	// Pins are the eight relay pins of the direct transmitter, relay 1 first.
	Pins []string `yaml:"pins"`
	// InvertOutputs drives active-low hardware.
	InvertOutputs bool `yaml:"invert_outputs"`
	// PulseLength is the RF unit pulse.
	PulseLength time.Duration `yaml:"pulse_length"`
	// Repeats is how many times each RF codeword is sent.
	Repeats int `yaml:"repeats"`
}

// Governor configures the forced-off watchdog.
type Governor struct {
	// Threshold is how long a relay may stay uncommanded before it is forced off.
	Threshold time.Duration `yaml:"threshold"`
	// Disabled turns the watchdog off.
	Disabled bool `yaml:"disabled"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "relay-switch.yaml"
	// DefaultName is the default stream name.
	DefaultName = "rm8"
	// DefaultBlockTimeout is the default read block window.
	DefaultBlockTimeout = 5 * time.Second
	// DefaultRedisAddress is the default Redis address.
	DefaultRedisAddress = "localhost:6379"
	// DefaultPin is the default RF data pin.
	DefaultPin = "17"
	// DefaultPulseLength is the default RF unit pulse.
	DefaultPulseLength = 300 * time.Microsecond
	// DefaultRepeats is the default number of RF codeword repetitions.
	DefaultRepeats = 10
	// DefaultGovernorThreshold is the default forced-off threshold.
	DefaultGovernorThreshold = 5 * time.Second
	// DefaultGRPCAddress is the default gRPC health listen address.
	DefaultGRPCAddress = "127.0.0.1:50051"
	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second
	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"
	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// Store drivers.
const (
	DriverRedis  = "redis"
	DriverBadger = "badger"
)

// Transmitter kinds.
const (
	TransmitterRF     = "rf"
	TransmitterDirect = "direct"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// ErrUnknownDriver is returned for store drivers other than redis and badger.
	ErrUnknownDriver = errors.New("unknown store driver")
	// ErrUnknownTransmitter is returned for transmitter kinds other than rf and direct.
	ErrUnknownTransmitter = errors.New("unknown transmitter kind")
	// ErrDirectNeedsFixed is returned when the direct transmitter is combined with Tri-State addresses.
	ErrDirectNeedsFixed = errors.New("direct transmitter requires the fixed scheme")
	// ErrDirectPins is returned when the direct transmitter has the wrong number of pins.
	ErrDirectPins = errors.New("direct transmitter requires one pin per relay")
	// ErrDuplicateSwitch is returned when a switch is listed twice.
	ErrDuplicateSwitch = errors.New("duplicate switch")
	// ErrUnknownLogLevel is returned for log levels zap does not know.
	ErrUnknownLogLevel = errors.New("unknown log level")
)

// Default returns a validated configuration with every default applied.
func Default() *Config {
	cfg := new(Config)

	// A zero Config always validates.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrDefault is Load that falls back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return cfg, err
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks every field. It must be called again
// after fields are changed, since it also resolves the known addresses.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	scheme, err := relay.ParseScheme(cfg.Scheme)
	if err != nil {
		return err
	}

	cfg.scheme = scheme

	if cfg.known, err = parseSwitches(scheme, cfg.Switches); err != nil {
		return err
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLogLevel, cfg.LogLevel)
	}

	if err = validateStore(&cfg.Store); err != nil {
		return err
	}

	if err = validateTransmitter(&cfg.Transmitter, scheme); err != nil {
		return err
	}

	if _, err = net.ResolveTCPAddr("tcp", cfg.GRPCAddress); err != nil {
		return fmt.Errorf("invalid grpc address: %w", err)
	}

	if cfg.HTTPAddress != "" {
		if _, err = net.ResolveTCPAddr("tcp", cfg.HTTPAddress); err != nil {
			return fmt.Errorf("invalid http address: %w", err)
		}
	}

	if cfg.UpdateFolder == "" {
		return nil
	}

	if _, err = url.ParseRequestURI(cfg.UpdateFolder); err != nil {
		return fmt.Errorf("invalid update folder URI: %w", err)
	}

	return nil
}

// AddressScheme returns the parsed addressing scheme. Valid after Validate.
func (c *Config) AddressScheme() relay.Scheme {
	return c.scheme
}

// KnownAddresses returns the parsed switches. Valid after Validate.
func (c *Config) KnownAddresses() []relay.Address {
	return append([]relay.Address(nil), c.known...)
}

func applyDefaults(cfg *Config) {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}

	if cfg.Scheme == "" {
		cfg.Scheme = relay.SchemeFixed.String()
	}

	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = DefaultBlockTimeout
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverRedis
	}

	if cfg.Transmitter.Kind == "" {
		cfg.Transmitter.Kind = TransmitterRF
	}

	if cfg.Transmitter.Pin == "" {
		cfg.Transmitter.Pin = DefaultPin
	}

	if cfg.Transmitter.PulseLength <= 0 {
		cfg.Transmitter.PulseLength = DefaultPulseLength
	}

	if cfg.Transmitter.Repeats <= 0 {
		cfg.Transmitter.Repeats = DefaultRepeats
	}

	if cfg.Governor.Threshold <= 0 {
		cfg.Governor.Threshold = DefaultGovernorThreshold
	}

	if cfg.GRPCAddress == "" {
		cfg.GRPCAddress = DefaultGRPCAddress
	}

	// Set default timeout if not specified
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
}

func parseSwitches(scheme relay.Scheme, switches []string) ([]relay.Address, error) {
	if len(switches) == 0 && scheme == relay.SchemeFixed {
		return relay.FixedAddresses(), nil
	}

	var (
		result = make([]relay.Address, 0, len(switches))
		seen   = make(map[relay.Address]struct{}, len(switches))
	)

	for _, s := range switches {
		addr, err := relay.ParseAddress(scheme, s)
		if err != nil {
			return nil, fmt.Errorf("invalid switch: %w", err)
		}

		if _, ok := seen[addr]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSwitch, s)
		}

		seen[addr] = struct{}{}
		result = append(result, addr)
	}

	return result, nil
}

func validateStore(store *Store) error {
	switch store.Driver {
	case DriverRedis:
		if store.Address == "" {
			store.Address = DefaultRedisAddress
		}

		if _, _, err := net.SplitHostPort(store.Address); err != nil {
			return fmt.Errorf("invalid redis address: %w", err)
		}
	case DriverBadger:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, store.Driver)
	}

	return nil
}

func validateTransmitter(tx *Transmitter, scheme relay.Scheme) error {
	switch tx.Kind {
	case TransmitterRF:
	case TransmitterDirect:
		if scheme != relay.SchemeFixed {
			return ErrDirectNeedsFixed
		}

		if len(tx.Pins) != relay.FixedRelayCount {
			return fmt.Errorf("%w: got %d, want %d", ErrDirectPins, len(tx.Pins), relay.FixedRelayCount)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTransmitter, tx.Kind)
	}

	return nil
}
