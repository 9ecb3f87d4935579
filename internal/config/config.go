package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/KevinKickass/PowerInsight/internal/transfer"
	"github.com/KevinKickass/PowerInsight/internal/types"
	"github.com/spf13/viper"
)

// Debug flag bits.
const (
	DebugConfig = 0x10 // trace board loading and registration
	DebugSPI    = 0x20 // hex dump every bus transfer
	DebugWait   = 0x40 // trace DRDY polls
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Debug    DebugFlags     `mapstructure:"debug"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Transfer TransferConfig `mapstructure:"transfer"`
	SPI      SPIConfig      `mapstructure:"spi"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
}

type PathsConfig struct {
	// LibexecDir holds the board files applied during finalization.
	LibexecDir string `mapstructure:"libexec_dir"`
	// ConfigFile is the user board file applied after them.
	ConfigFile string `mapstructure:"config_file"`
}

type DebugFlags struct {
	Flags   int  `mapstructure:"flags"`
	Verbose int  `mapstructure:"verbose"`
	Quiet   bool `mapstructure:"quiet"`
}

// Has reports whether every bit of flag is set.
func (d DebugFlags) Has(flag int) bool {
	return d.Flags&flag == flag
}

type DispatchConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Priority        []string      `mapstructure:"priority"`
}

type TransferConfig struct {
	RangePolicy string `mapstructure:"range_policy"`
}

type SPIConfig struct {
	DefaultSpeedHz int64 `mapstructure:"default_speed_hz"`
	DefaultMode    int   `mapstructure:"default_mode"`
}

// SetDefaults installs the default for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "powerinsight")
	v.SetDefault("paths.libexec_dir", "/usr/lib/powerinsight")
	v.SetDefault("paths.config_file", "")
	v.SetDefault("debug.flags", 0)
	v.SetDefault("debug.verbose", 0)
	v.SetDefault("debug.quiet", false)
	v.SetDefault("dispatch.refresh_interval", "60s")
	v.SetDefault("dispatch.priority", []string{"power", "volt", "amp", "temp", "reading"})
	v.SetDefault("transfer.range_policy", "error")
	v.SetDefault("spi.default_speed_hz", 1000000)
	v.SetDefault("spi.default_mode", 1)
}

// Load reads settings from v. A non-empty path is read as a YAML settings
// file first; environment variables prefixed PI_ override both.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)

	v.SetEnvPrefix("PI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the values Load cannot type-check.
func (c *Config) Validate() error {
	if _, err := c.PriorityKinds(); err != nil {
		return fmt.Errorf("dispatch.priority: %w", err)
	}
	if _, err := c.RangePolicy(); err != nil {
		return fmt.Errorf("transfer.range_policy: %w", err)
	}
	if c.Dispatch.RefreshInterval < 0 {
		return fmt.Errorf("dispatch.refresh_interval: negative duration %s", c.Dispatch.RefreshInterval)
	}
	if c.SPI.DefaultMode < 0 || c.SPI.DefaultMode > 3 {
		return fmt.Errorf("spi.default_mode: %d not in [0,3]", c.SPI.DefaultMode)
	}
	return nil
}

func (c *Config) PriorityKinds() ([]types.Kind, error) {
	return types.ParsePriority(c.Dispatch.Priority)
}

func (c *Config) RangePolicy() (transfer.Policy, error) {
	return transfer.ParsePolicy(c.Transfer.RangePolicy)
}
