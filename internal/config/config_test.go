package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KevinKickass/PowerInsight/internal/transfer"
	"github.com/KevinKickass/PowerInsight/internal/types"
	"github.com/spf13/viper"
	"go.viam.com/test"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.App.Name, test.ShouldEqual, "powerinsight")
	test.That(t, cfg.Dispatch.RefreshInterval, test.ShouldEqual, 60*time.Second)
	test.That(t, cfg.SPI.DefaultMode, test.ShouldEqual, 1)

	kinds, err := cfg.PriorityKinds()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, kinds, test.ShouldResemble, types.Kinds)

	policy, err := cfg.RangePolicy()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, policy, test.ShouldEqual, transfer.PolicyError)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	err := os.WriteFile(path, []byte(`
debug:
  flags: 0x30
dispatch:
  refresh_interval: 5s
  priority: [power, temp, volt, amp, reading]
transfer:
  range_policy: nan
`), 0o644)
	test.That(t, err, test.ShouldBeNil)

	t.Setenv("PI_APP_NAME", "bench")

	cfg, err := Load(viper.New(), path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.App.Name, test.ShouldEqual, "bench")
	test.That(t, cfg.Dispatch.RefreshInterval, test.ShouldEqual, 5*time.Second)
	test.That(t, cfg.Debug.Has(DebugSPI), test.ShouldBeTrue)
	test.That(t, cfg.Debug.Has(DebugConfig), test.ShouldBeTrue)
	test.That(t, cfg.Debug.Has(DebugWait), test.ShouldBeFalse)

	kinds, err := cfg.PriorityKinds()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, kinds[1], test.ShouldEqual, types.KindTemp)

	policy, _ := cfg.RangePolicy()
	test.That(t, policy, test.ShouldEqual, transfer.PolicyNaN)
}

func TestLoadRejectsBadValues(t *testing.T) {
	for _, tc := range []struct {
		key   string
		value interface{}
	}{
		{"dispatch.priority", []string{"power", "power"}},
		{"transfer.range_policy", "clamp"},
		{"spi.default_mode", 4},
	} {
		t.Run(tc.key, func(t *testing.T) {
			v := viper.New()
			v.Set(tc.key, tc.value)
			_, err := Load(v, "")
			test.That(t, err, test.ShouldNotBeNil)
		})
	}

	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	test.That(t, err, test.ShouldNotBeNil)
}
