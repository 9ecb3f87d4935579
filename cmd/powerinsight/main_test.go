package main

import (
	"testing"

	"github.com/KevinKickass/PowerInsight/internal/config"
	"go.viam.com/test"
)

func TestParseDebug(t *testing.T) {
	flags, err := parseDebug([]string{"0x10", "64"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, flags, test.ShouldEqual, config.DebugConfig|config.DebugWait)

	flags, err = parseDebug(nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, flags, test.ShouldEqual, 0)

	_, err = parseDebug([]string{"spi"})
	test.That(t, err, test.ShouldNotBeNil)
}
