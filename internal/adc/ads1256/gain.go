package ads1256

import "fmt"

const maxGainCode = 6

// GainToReg maps a PGA gain to its ADCON code by bit decomposition. Gains
// above 64 saturate.
func GainToReg(gain int) byte {
	code := byte(0)
	for g := gain >> 1; g > 0 && code < maxGainCode; g >>= 1 {
		code++
	}
	return code
}

// RegToGain is the inverse of GainToReg.
func RegToGain(code byte) int {
	code &= 0x07
	if code > maxGainCode {
		code = maxGainCode
	}
	return 1 << code
}

func validGain(gain int) error {
	if gain < 1 || gain > 64 || gain&(gain-1) != 0 {
		return fmt.Errorf("gain %d is not a power of two in [1,64]", gain)
	}
	return nil
}
