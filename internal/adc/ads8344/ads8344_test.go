package ads8344

import (
	"context"
	"math/bits"
	"testing"

	"github.com/KevinKickass/PowerInsight/internal/adc"
	"github.com/KevinKickass/PowerInsight/internal/spi"
	"go.viam.com/test"
)

// fakeConn answers every frame with value aligned behind the start bit.
type fakeConn struct {
	value uint32
	calls int
}

func (f *fakeConn) Tx(frames ...spi.Frame) ([][]byte, error) {
	f.calls++
	tx := frames[0].Tx
	word := f.value << (bits.Len8(tx[0]) - 1)
	return [][]byte{{0, byte(word >> 16), byte(word >> 8), byte(word)}}, nil
}

func TestMakeMessage(t *testing.T) {
	tx, err := MakeMessage(0, DefaultShift)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tx, test.ShouldResemble, []byte{0x43, 0x80, 0x00, 0x00})

	tx, err = MakeMessage(7, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tx, test.ShouldResemble, []byte{0xf7, 0x00, 0x00, 0x00})

	_, err = MakeMessage(8, 1)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = MakeMessage(0, 8)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDecode(t *testing.T) {
	tx, err := MakeMessage(3, DefaultShift)
	test.That(t, err, test.ShouldBeNil)

	// 0x1234 behind a start bit at bit 6
	v, err := Decode(tx, []byte{0x00, 0x04, 0x8d, 0x00}, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, float64(0x1234)/65536)

	_, err = Decode(tx, []byte{0, 0, 0}, 1)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestChipPrimesOnce(t *testing.T) {
	conn := &fakeConn{value: 0x8000}
	chip, err := New(conn, Config{Shift: DefaultShift, Scale: 2}, nil)
	test.That(t, err, test.ShouldBeNil)

	v, err := chip.Convert(context.Background(), adc.Mux(5))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, 1.0)
	test.That(t, conn.calls, test.ShouldEqual, 2)

	_, err = chip.Convert(context.Background(), adc.Mux(5))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conn.calls, test.ShouldEqual, 3)

	_, err = chip.Convert(context.Background(), adc.Mux(9))
	test.That(t, err, test.ShouldNotBeNil)
}
