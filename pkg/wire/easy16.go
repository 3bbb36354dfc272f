package wire

import (
	"strings"

	"armorycore/pkg/utils"
)

// Easy16Alphabet is the fixed ordered nibble alphabet used by the paper
// backup codec, nibble value == index.
var Easy16Alphabet = [16]byte{'a', 's', 'd', 'f', 'g', 'h', 'j', 'k', 'w', 'e', 'r', 't', 'u', 'i', 'o', 'n'}

var easy16Reverse = func() map[byte]byte {
	m := make(map[byte]byte, 16)
	for i, c := range Easy16Alphabet {
		m[c] = byte(i)
	}
	return m
}()

// Easy16Encode renders data (any length) as Easy16 letters with decorative
// spacing: a space every 2 bytes (two letter pairs) and an extra space every
// 8 bytes, per spec.md §4.5.
func Easy16Encode(data []byte) string {
	var b strings.Builder
	for i, by := range data {
		hi := by >> 4
		lo := by & 0x0f
		b.WriteByte(Easy16Alphabet[hi])
		b.WriteByte(Easy16Alphabet[lo])
		if i != len(data)-1 {
			if (i+1)%8 == 0 {
				b.WriteString("  ")
			} else if (i+1)%2 == 0 {
				b.WriteByte(' ')
			}
		}
	}
	return b.String()
}

// Easy16Decode strips spacing and decodes letter pairs back to bytes. It
// rejects odd letter counts and unknown letters.
func Easy16Decode(s string) ([]byte, error) {
	stripped := strings.ReplaceAll(s, " ", "")
	stripped = strings.ToLower(stripped)
	if len(stripped)%2 != 0 {
		return nil, utils.NewKind(utils.InvalidArgument, "easy16: odd letter count")
	}
	out := make([]byte, len(stripped)/2)
	for i := 0; i < len(out); i++ {
		hiChar := stripped[2*i]
		loChar := stripped[2*i+1]
		hi, ok := easy16Reverse[hiChar]
		if !ok {
			return nil, utils.NewKind(utils.InvalidArgument, "easy16: unknown letter")
		}
		lo, ok := easy16Reverse[loChar]
		if !ok {
			return nil, utils.NewKind(utils.InvalidArgument, "easy16: unknown letter")
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}
