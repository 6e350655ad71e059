package audioio

// G.711 mu-law constants.
const (
	muLawBias = 0x84  // 132
	muLawClip = 32635 // largest magnitude representable after biasing
)

// muLawTable maps every mu-law byte to its linear PCM16 sample.
var muLawTable = buildMuLawTable()

func buildMuLawTable() [256]int16 {
	var table [256]int16
	for i := 0; i < 256; i++ {
		// Mu-law stores the complement of sign|exponent|mantissa.
		mu := ^byte(i)
		sign := mu & 0x80
		exponent := (mu >> 4) & 0x07
		mantissa := mu & 0x0F

		sample := ((int32(mantissa) << 3) + muLawBias) << exponent
		sample -= muLawBias

		if sign != 0 {
			sample = -sample
		}
		table[i] = int16(sample)
	}
	return table
}

// DecodeMuLaw converts one mu-law byte to a linear PCM16 sample.
// Results lie in [-32124, 32124].
func DecodeMuLaw(b byte) int16 {
	return muLawTable[b]
}

// EncodeMuLaw converts one linear PCM16 sample to a mu-law byte.
// The encoding is logarithmic and lossy: decode(encode(x)) is within one
// quantization step of x, not bit-exact.
func EncodeMuLaw(s int16) byte {
	sample := int32(s)

	sign := byte((sample >> 8) & 0x80)
	if sign != 0 {
		sample = -sample
	}
	if sample > muLawClip {
		sample = muLawClip
	}
	sample += muLawBias

	exponent := int32(7)
	for mask := int32(0x4000); exponent > 0 && sample&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((sample >> (uint(exponent) + 3)) & 0x0F)

	return ^(sign | byte(exponent)<<4 | mantissa)
}

// DecodeMuLawBuffer converts mu-law bytes to linear PCM16 samples.
func DecodeMuLawBuffer(data []byte) []int16 {
	samples := make([]int16, len(data))
	for i, b := range data {
		samples[i] = muLawTable[b]
	}
	return samples
}

// EncodeMuLawBuffer converts linear PCM16 samples to mu-law bytes.
func EncodeMuLawBuffer(samples []int16) []byte {
	data := make([]byte, len(samples))
	for i, s := range samples {
		data[i] = EncodeMuLaw(s)
	}
	return data
}
