package types

import (
	"github.com/google/uuid"
)

// BoardFile is one board description: the buses, converters and connector
// headers of a carrier.
type BoardFile struct {
	Board     BoardInfo        `yaml:"board" json:"board"`
	Buses     []BusConfig      `yaml:"buses,omitempty" json:"buses,omitempty"`
	Banks     *BankConfig      `yaml:"banks,omitempty" json:"banks,omitempty"`
	Chips     []ChipConfig     `yaml:"chips,omitempty" json:"chips,omitempty"`
	Templates []TemplateConfig `yaml:"templates,omitempty" json:"templates,omitempty"`
	Headers   []HeaderConfig   `yaml:"headers,omitempty" json:"headers,omitempty"`
	Sensors   []SensorConfig   `yaml:"sensors,omitempty" json:"sensors,omitempty"`
}

type BoardInfo struct {
	ID          string `yaml:"id" json:"id"`
	Vendor      string `yaml:"vendor,omitempty" json:"vendor,omitempty"`
	Model       string `yaml:"model,omitempty" json:"model,omitempty"`
	Version     string `yaml:"version,omitempty" json:"version,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// BusConfig names a spidev node.
type BusConfig struct {
	Name        string `yaml:"name" json:"name"`
	Device      string `yaml:"device" json:"device"`
	Mode        *int   `yaml:"mode,omitempty" json:"mode,omitempty"`
	SpeedHz     int64  `yaml:"speed_hz,omitempty" json:"speed_hz,omitempty"`
	BitsPerWord uint8  `yaml:"bits_per_word,omitempty" json:"bits_per_word,omitempty"`
}

// BankConfig lists the GPIO lines selecting the analog bank, LSB first.
type BankConfig struct {
	Lines []string `yaml:"lines" json:"lines"`
}

type ChipFamily string

const (
	ChipADS1256 ChipFamily = "ads1256"
	ChipADS8344 ChipFamily = "ads8344"
	ChipMCP3008 ChipFamily = "mcp3008"
)

// ChipConfig describes one converter on a bus.
type ChipConfig struct {
	Name     string     `yaml:"name" json:"name"`
	Family   ChipFamily `yaml:"family" json:"family"`
	Bus      string     `yaml:"bus" json:"bus"`
	SpeedHz  int64      `yaml:"speed_hz,omitempty" json:"speed_hz,omitempty"`
	MaxAgeMs int        `yaml:"max_age_ms,omitempty" json:"max_age_ms,omitempty"`
	Filter   float64    `yaml:"filter,omitempty" json:"filter,omitempty"`

	// SAR converters
	Scale float64 `yaml:"scale,omitempty" json:"scale,omitempty"`
	Shift *int    `yaml:"shift,omitempty" json:"shift,omitempty"`

	// ADS1256
	Rate      float64 `yaml:"rate,omitempty" json:"rate,omitempty"`
	Gain      int     `yaml:"gain,omitempty" json:"gain,omitempty"`
	Buffer    bool    `yaml:"buffer,omitempty" json:"buffer,omitempty"`
	SettleUs  int     `yaml:"settle_us,omitempty" json:"settle_us,omitempty"`
	TimeoutMs int     `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
}

// ConnectorInfo is the runtime view of a registered connector.
type ConnectorInfo struct {
	ID       uuid.UUID
	Index    int
	Conn     string
	Name     string
	Header   string
	Template string
	Kinds    []Kind
}
