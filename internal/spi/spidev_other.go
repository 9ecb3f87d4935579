//go:build !linux

package spi

import "errors"

func openSpidev(path string, opts Options) (Transport, error) {
	return nil, errors.New("spidev is only available on linux")
}
