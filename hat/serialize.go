package hat

import (
	"encoding/binary"

	"armorycore/pkg/utils"
	"armorycore/pkg/wire"
)

// Serialize encodes entry as
// varint(total_len) ‖ version(u32) ‖ type(u8) ‖ type-specific body,
// per spec.md §4.4.
func Serialize(entry AssetEntry) ([]byte, error) {
	body, err := encodeBody(entry)
	if err != nil {
		return nil, err
	}
	inner := make([]byte, 0, 5+len(body))
	var verBuf [4]byte
	binary.BigEndian.PutUint32(verBuf[:], entryFormatVersion)
	inner = append(inner, verBuf[:]...)
	inner = append(inner, byte(entry.Type()))
	inner = append(inner, body...)

	out := wire.PutVarInt(nil, uint64(len(inner)))
	out = append(out, inner...)
	return out, nil
}

// Deserialize reverses Serialize, rejecting unknown format versions or type
// tags as Unsupported rather than silently upgrading (spec.md §7).
func Deserialize(b []byte) (AssetEntry, error) {
	totalLen, n, err := wire.ReadVarInt(b)
	if err != nil {
		return nil, utils.Wrap(err, "hat: malformed entry length prefix")
	}
	if n+int(totalLen) > len(b) {
		return nil, utils.NewKind(utils.InvalidArgument, "hat: truncated entry")
	}
	inner := b[n : n+int(totalLen)]
	if len(inner) < 5 {
		return nil, utils.NewKind(utils.InvalidArgument, "hat: entry too short for header")
	}
	version := binary.BigEndian.Uint32(inner[0:4])
	if version != entryFormatVersion {
		return nil, utils.NewKind(utils.Unsupported, "hat: unknown entry format version")
	}
	typ := AssetType(inner[4])
	return decodeBody(typ, inner[5:])
}

func writeBytes(dst, b []byte) []byte {
	dst = wire.PutVarInt(dst, uint64(len(b)))
	return append(dst, b...)
}

func readBytes(b []byte) ([]byte, int, error) {
	ln, n, err := wire.ReadVarInt(b)
	if err != nil {
		return nil, 0, err
	}
	if n+int(ln) > len(b) {
		return nil, 0, utils.NewKind(utils.InvalidArgument, "hat: truncated length-prefixed field")
	}
	return b[n : n+int(ln)], n + int(ln), nil
}

const (
	pubKeyHasCompressed   byte = 0x01
	pubKeyHasUncompressed byte = 0x02
)

func encodePubKey(pk PubKeyEntry) []byte {
	marker := byte(0)
	if len(pk.Compressed) != 0 {
		marker |= pubKeyHasCompressed
	}
	if len(pk.Uncompressed) != 0 {
		marker |= pubKeyHasUncompressed
	}
	out := []byte{marker}
	if marker&pubKeyHasCompressed != 0 {
		out = writeBytes(out, pk.Compressed)
	}
	if marker&pubKeyHasUncompressed != 0 {
		out = writeBytes(out, pk.Uncompressed)
	}
	return out
}

func decodePubKey(b []byte) (PubKeyEntry, int, error) {
	if len(b) < 1 {
		return PubKeyEntry{}, 0, utils.NewKind(utils.InvalidArgument, "hat: truncated pubkey marker")
	}
	marker := b[0]
	offset := 1
	var pk PubKeyEntry
	if marker&pubKeyHasCompressed != 0 {
		v, n, err := readBytes(b[offset:])
		if err != nil {
			return PubKeyEntry{}, 0, err
		}
		pk.Compressed = v
		offset += n
	}
	if marker&pubKeyHasUncompressed != 0 {
		v, n, err := readBytes(b[offset:])
		if err != nil {
			return PubKeyEntry{}, 0, err
		}
		pk.Uncompressed = v
		offset += n
	}
	if err := pk.Validate(); err != nil {
		return PubKeyEntry{}, 0, err
	}
	return pk, offset, nil
}

func encodePrivKey(pk *PrivKeyEntry) []byte {
	out := writeBytes(nil, pk.KDFID)
	out = writeBytes(out, pk.EncryptionKeyID)
	out = writeBytes(out, pk.IV)
	out = writeBytes(out, pk.Ciphertext)
	return out
}

func decodePrivKey(b []byte) (*PrivKeyEntry, int, error) {
	offset := 0
	kdfID, n, err := readBytes(b[offset:])
	if err != nil {
		return nil, 0, err
	}
	offset += n
	keyID, n, err := readBytes(b[offset:])
	if err != nil {
		return nil, 0, err
	}
	offset += n
	iv, n, err := readBytes(b[offset:])
	if err != nil {
		return nil, 0, err
	}
	offset += n
	ct, n, err := readBytes(b[offset:])
	if err != nil {
		return nil, 0, err
	}
	offset += n
	return &PrivKeyEntry{KDFID: kdfID, EncryptionKeyID: keyID, IV: iv, Ciphertext: ct}, offset, nil
}

func encodeSingle(s SingleEntry) []byte {
	out := writeBytes(nil, s.ID)
	out = append(out, encodePubKey(s.PubKey)...)
	if s.PrivKey != nil {
		out = append(out, 0x01)
		out = append(out, encodePrivKey(s.PrivKey)...)
	} else {
		out = append(out, 0x00)
	}
	return out
}

func decodeSingle(b []byte) (SingleEntry, int, error) {
	offset := 0
	id, n, err := readBytes(b[offset:])
	if err != nil {
		return SingleEntry{}, 0, err
	}
	offset += n
	pk, n, err := decodePubKey(b[offset:])
	if err != nil {
		return SingleEntry{}, 0, err
	}
	offset += n
	if offset >= len(b) {
		return SingleEntry{}, 0, utils.NewKind(utils.InvalidArgument, "hat: truncated single entry")
	}
	hasPriv := b[offset]
	offset++
	var priv *PrivKeyEntry
	if hasPriv == 0x01 {
		priv, n, err = decodePrivKey(b[offset:])
		if err != nil {
			return SingleEntry{}, 0, err
		}
		offset += n
	}
	return SingleEntry{ID: id, PubKey: pk, PrivKey: priv}, offset, nil
}

func encodeBody(entry AssetEntry) ([]byte, error) {
	switch e := entry.(type) {
	case PubKeyEntry:
		if err := e.Validate(); err != nil {
			return nil, err
		}
		return encodePubKey(e), nil
	case *PrivKeyEntry:
		return encodePrivKey(e), nil
	case *SingleEntry:
		return encodeSingle(*e), nil
	case *Bip32RootEntry:
		if err := e.Validate(); err != nil {
			return nil, err
		}
		out := encodeSingle(e.Single)
		out = append(out, e.Chaincode[:]...)
		var depthBuf, childBuf [4]byte
		binary.BigEndian.PutUint32(depthBuf[:], e.Depth)
		binary.BigEndian.PutUint32(childBuf[:], e.ChildNum)
		out = append(out, depthBuf[:]...)
		out = append(out, childBuf[:]...)
		out = append(out, e.ParentFingerprint[:]...)
		out = append(out, e.SeedFingerprint[:]...)
		out = wire.PutVarInt(out, uint64(len(e.DerivationPath)))
		for _, idx := range e.DerivationPath {
			var idxBuf [4]byte
			binary.BigEndian.PutUint32(idxBuf[:], idx)
			out = append(out, idxBuf[:]...)
		}
		return out, nil
	case *LegacyRootEntry:
		out := encodeSingle(e.Single)
		out = append(out, e.Chaincode[:]...)
		return out, nil
	case *MultisigEntry:
		if err := e.Validate(); err != nil {
			return nil, err
		}
		out := []byte{byte(e.M)}
		out = wire.PutVarInt(out, uint64(len(e.Members)))
		for _, m := range e.Members {
			out = append(out, encodeSingle(m)...)
		}
		return out, nil
	case *EncryptedSeedEntry:
		out := writeBytes(nil, e.KDFID)
		out = writeBytes(out, e.EncryptionKeyID)
		out = writeBytes(out, e.IV)
		out = writeBytes(out, e.Ciphertext)
		return out, nil
	default:
		return nil, utils.NewKind(utils.Unsupported, "hat: unknown asset entry variant")
	}
}

func decodeBody(typ AssetType, body []byte) (AssetEntry, error) {
	switch typ {
	case AssetTypePubKey:
		pk, _, err := decodePubKey(body)
		if err != nil {
			return nil, err
		}
		return pk, nil
	case AssetTypePrivKey:
		pk, _, err := decodePrivKey(body)
		if err != nil {
			return nil, err
		}
		return pk, nil
	case AssetTypeSingle:
		s, _, err := decodeSingle(body)
		if err != nil {
			return nil, err
		}
		return &s, nil
	case AssetTypeBIP32Root:
		s, n, err := decodeSingle(body)
		if err != nil {
			return nil, err
		}
		rest := body[n:]
		if len(rest) < 32+4+4+4+4 {
			return nil, utils.NewKind(utils.InvalidArgument, "hat: truncated bip32 root")
		}
		e := &Bip32RootEntry{Single: s}
		copy(e.Chaincode[:], rest[0:32])
		e.Depth = binary.BigEndian.Uint32(rest[32:36])
		e.ChildNum = binary.BigEndian.Uint32(rest[36:40])
		copy(e.ParentFingerprint[:], rest[40:44])
		copy(e.SeedFingerprint[:], rest[44:48])
		pathLen, n2, err := wire.ReadVarInt(rest[48:])
		if err != nil {
			return nil, err
		}
		offset := 48 + n2
		for i := uint64(0); i < pathLen; i++ {
			if offset+4 > len(rest) {
				return nil, utils.NewKind(utils.InvalidArgument, "hat: truncated derivation path")
			}
			e.DerivationPath = append(e.DerivationPath, binary.BigEndian.Uint32(rest[offset:offset+4]))
			offset += 4
		}
		if err := e.Validate(); err != nil {
			return nil, err
		}
		return e, nil
	case AssetTypeLegacyRoot:
		s, n, err := decodeSingle(body)
		if err != nil {
			return nil, err
		}
		rest := body[n:]
		if len(rest) < 32 {
			return nil, utils.NewKind(utils.InvalidArgument, "hat: truncated legacy root")
		}
		e := &LegacyRootEntry{Single: s}
		copy(e.Chaincode[:], rest[0:32])
		return e, nil
	case AssetTypeMultisig:
		if len(body) < 1 {
			return nil, utils.NewKind(utils.InvalidArgument, "hat: truncated multisig")
		}
		m := int(body[0])
		count, n, err := wire.ReadVarInt(body[1:])
		if err != nil {
			return nil, err
		}
		offset := 1 + n
		members := make([]SingleEntry, 0, count)
		for i := uint64(0); i < count; i++ {
			s, n2, err := decodeSingle(body[offset:])
			if err != nil {
				return nil, err
			}
			members = append(members, s)
			offset += n2
		}
		e := &MultisigEntry{M: m, Members: members}
		if err := e.Validate(); err != nil {
			return nil, err
		}
		return e, nil
	case AssetTypeEncryptedSeed:
		offset := 0
		kdfID, n, err := readBytes(body[offset:])
		if err != nil {
			return nil, err
		}
		offset += n
		keyID, n, err := readBytes(body[offset:])
		if err != nil {
			return nil, err
		}
		offset += n
		iv, n, err := readBytes(body[offset:])
		if err != nil {
			return nil, err
		}
		offset += n
		ct, _, err := readBytes(body[offset:])
		if err != nil {
			return nil, err
		}
		return &EncryptedSeedEntry{KDFID: kdfID, EncryptionKeyID: keyID, IV: iv, Ciphertext: ct}, nil
	default:
		return nil, utils.NewKind(utils.Unsupported, "hat: unknown asset type tag")
	}
}
