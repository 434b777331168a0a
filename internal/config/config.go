package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "otaportal"
	configFile = "config.yaml"
)

// Options holds the portal daemon configuration.
type Options struct {
	// APSSID and APPassword are the device's own broadcast identity.
	APSSID     string `yaml:"ap_ssid"`
	APPassword string `yaml:"ap_password"`

	// Domain is the mDNS hostname, without the ".local" suffix.
	Domain string `yaml:"domain"`

	PortalTitle     string `yaml:"portal_title"`
	ProductName     string `yaml:"product_name"`
	FirmwareVersion string `yaml:"firmware_version"`

	ListenAddr string `yaml:"listen_addr"`

	// StoragePath backs the persistent credential region.
	StoragePath   string `yaml:"storage_path"`
	StorageSize   int    `yaml:"storage_size"`
	StorageOffset int    `yaml:"storage_offset"`

	// StagingPath receives uploaded firmware images.
	StagingPath string `yaml:"staging_path"`

	DebugLogMax int `yaml:"debug_log_max"`

	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ConnectTimeout       time.Duration `yaml:"connect_timeout"`

	TickInterval time.Duration `yaml:"tick_interval"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the options used when no config file exists.
func Default() Options {
	return Options{
		APSSID:               "OTA-Portal",
		APPassword:           "otaportal",
		Domain:               "otaportal",
		PortalTitle:          "OTA Portal",
		ProductName:          "Network Node",
		FirmwareVersion:      "Not Configured",
		ListenAddr:           ":8080",
		StoragePath:          "otaportal-nvs.bin",
		StorageSize:          64,
		StorageOffset:        0,
		StagingPath:          "otaportal-firmware.bin",
		DebugLogMax:          200,
		ReconnectDelay:       5 * time.Second,
		MaxReconnectAttempts: 3,
		ConnectTimeout:       20 * time.Second,
		TickInterval:         50 * time.Millisecond,
		LogLevel:             "",
	}
}

// Validate checks option consistency before the daemon starts.
func (o *Options) Validate() error {
	if o.APSSID == "" {
		return fmt.Errorf("ap_ssid cannot be empty")
	}
	if o.StorageSize <= 0 {
		return fmt.Errorf("storage_size must be positive, got %d", o.StorageSize)
	}
	if o.StorageOffset < 0 {
		return fmt.Errorf("storage_offset cannot be negative, got %d", o.StorageOffset)
	}
	if o.DebugLogMax <= 0 {
		return fmt.Errorf("debug_log_max must be positive, got %d", o.DebugLogMax)
	}
	if o.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %v", o.TickInterval)
	}
	return nil
}

// DefaultPath returns the config file location under the user config dir.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(base, appName, configFile), nil
}

// Load reads options from path. A missing file yields the defaults; any
// field absent from the file keeps its default value.
func Load(path string) (Options, error) {
	opts := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return opts, nil
	}
	if err != nil {
		return opts, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("invalid config: %w", err)
	}
	return opts, nil
}

// Save writes options to path atomically (temp file + rename) so a crash
// mid-save never leaves a corrupt config behind.
func (o *Options) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# OTA Portal Configuration File
#
# Security Note: network credentials entered through the portal are NOT
# stored here. They live in the reserved storage region (storage_path).

`)
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}
