// Package wire implements the on-wire encoding primitives shared by the
// wallet store, asset tree, and backup codec: Bitcoin-style VarInt, base58
// check encoding, BIP-32 node serialization, and the Easy16 paper-backup
// alphabet. Modeled on the base58check helpers in the example wallet tools
// (OKaluzny-wallet-demo's internal/wallet/btc.go), generalized into a
// reusable package rather than inlined per-caller helpers.
package wire

import (
	"encoding/binary"

	"armorycore/pkg/utils"
)

// VarInt thresholds, Bitcoin convention: the first byte selects the encoded
// width.
const (
	varIntPrefix16 = 0xfd
	varIntPrefix32 = 0xfe
	varIntPrefix64 = 0xff
)

// PutVarInt appends the VarInt encoding of v to dst and returns the result.
func PutVarInt(dst []byte, v uint64) []byte {
	switch {
	case v < varIntPrefix16:
		return append(dst, byte(v))
	case v <= 0xffff:
		buf := make([]byte, 3)
		buf[0] = varIntPrefix16
		binary.LittleEndian.PutUint16(buf[1:], uint16(v))
		return append(dst, buf...)
	case v <= 0xffffffff:
		buf := make([]byte, 5)
		buf[0] = varIntPrefix32
		binary.LittleEndian.PutUint32(buf[1:], uint32(v))
		return append(dst, buf...)
	default:
		buf := make([]byte, 9)
		buf[0] = varIntPrefix64
		binary.LittleEndian.PutUint64(buf[1:], v)
		return append(dst, buf...)
	}
}

// VarIntSize returns the number of bytes PutVarInt would emit for v.
func VarIntSize(v uint64) int {
	switch {
	case v < varIntPrefix16:
		return 1
	case v <= 0xffff:
		return 3
	case v <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// ReadVarInt decodes a VarInt from the front of b, returning the value and
// the number of bytes consumed.
func ReadVarInt(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, utils.NewKind(utils.InvalidArgument, "varint: empty input")
	}
	switch b[0] {
	case varIntPrefix16:
		if len(b) < 3 {
			return 0, 0, utils.NewKind(utils.InvalidArgument, "varint: truncated 3-byte form")
		}
		return uint64(binary.LittleEndian.Uint16(b[1:3])), 3, nil
	case varIntPrefix32:
		if len(b) < 5 {
			return 0, 0, utils.NewKind(utils.InvalidArgument, "varint: truncated 5-byte form")
		}
		return uint64(binary.LittleEndian.Uint32(b[1:5])), 5, nil
	case varIntPrefix64:
		if len(b) < 9 {
			return 0, 0, utils.NewKind(utils.InvalidArgument, "varint: truncated 9-byte form")
		}
		return binary.LittleEndian.Uint64(b[1:9]), 9, nil
	default:
		return uint64(b[0]), 1, nil
	}
}
