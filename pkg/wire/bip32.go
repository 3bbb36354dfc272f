package wire

import (
	"encoding/binary"

	"armorycore/pkg/utils"
)

// Network selects which BIP-32 version-byte pair a node serializes under.
type Network int

const (
	Mainnet Network = iota
	Testnet
)

// BIP-32 version bytes, the standard xprv/xpub (mainnet) and tprv/tpub
// (testnet) constants.
const (
	versionMainnetPriv uint32 = 0x0488ade4
	versionMainnetPub  uint32 = 0x0488b21e
	versionTestnetPriv uint32 = 0x04358394
	versionTestnetPub  uint32 = 0x043587cf
)

// Bip32Node is the 78-byte on-wire record for a BIP-32 hierarchical node,
// independent of whether it carries a private or public key.
type Bip32Node struct {
	Network          Network
	Depth            byte
	ParentFingerprint [4]byte
	ChildNum         uint32
	Chaincode        [32]byte
	// PrivKey, if non-nil, must be exactly 32 bytes; the record is then
	// serialized as 0x00‖privkey. Otherwise PubKey (33-byte compressed) is
	// required.
	PrivKey []byte
	PubKey  []byte
}

func versionBytes(n Network, priv bool) uint32 {
	switch {
	case n == Mainnet && priv:
		return versionMainnetPriv
	case n == Mainnet && !priv:
		return versionMainnetPub
	case n == Testnet && priv:
		return versionTestnetPriv
	default:
		return versionTestnetPub
	}
}

// SerializeBip32 encodes n into the 78-byte BIP-32 wire record and wraps it
// in base58check.
func SerializeBip32(n Bip32Node) (string, error) {
	var keyField []byte
	var priv bool
	switch {
	case len(n.PrivKey) == 32:
		keyField = append([]byte{0x00}, n.PrivKey...)
		priv = true
	case len(n.PubKey) == 33:
		keyField = n.PubKey
		priv = false
	default:
		return "", utils.NewKind(utils.InvalidArgument, "bip32: exactly one of 32-byte privkey or 33-byte compressed pubkey required")
	}

	buf := make([]byte, 0, 78)
	var verBuf [4]byte
	binary.BigEndian.PutUint32(verBuf[:], versionBytes(n.Network, priv))
	buf = append(buf, verBuf[:]...)
	buf = append(buf, n.Depth)
	buf = append(buf, n.ParentFingerprint[:]...)
	var childBuf [4]byte
	binary.BigEndian.PutUint32(childBuf[:], n.ChildNum)
	buf = append(buf, childBuf[:]...)
	buf = append(buf, n.Chaincode[:]...)
	buf = append(buf, keyField...)

	if len(buf) != 78 {
		return "", utils.NewKind(utils.InvalidArgument, "bip32: serialized record must be 78 bytes")
	}
	return Base58CheckEncode(buf), nil
}

// DeserializeBip32 reverses SerializeBip32.
func DeserializeBip32(s string) (Bip32Node, error) {
	raw, err := Base58CheckDecode(s)
	if err != nil {
		return Bip32Node{}, err
	}
	if len(raw) != 78 {
		return Bip32Node{}, utils.NewKind(utils.InvalidArgument, "bip32: decoded record must be 78 bytes")
	}

	version := binary.BigEndian.Uint32(raw[0:4])
	var n Bip32Node
	switch version {
	case versionMainnetPriv, versionMainnetPub:
		n.Network = Mainnet
	case versionTestnetPriv, versionTestnetPub:
		n.Network = Testnet
	default:
		return Bip32Node{}, utils.NewKind(utils.Unsupported, "bip32: unknown version bytes")
	}

	n.Depth = raw[4]
	copy(n.ParentFingerprint[:], raw[5:9])
	n.ChildNum = binary.BigEndian.Uint32(raw[9:13])
	copy(n.Chaincode[:], raw[13:45])

	keyField := raw[45:78]
	if keyField[0] == 0x00 && (version == versionMainnetPriv || version == versionTestnetPriv) {
		n.PrivKey = append([]byte(nil), keyField[1:]...)
	} else {
		n.PubKey = append([]byte(nil), keyField...)
	}
	return n, nil
}
