package hat

import (
	"encoding/binary"

	"armorycore/pkg/primitives"
	"armorycore/pkg/utils"
)

// HardenedOffset marks a hardened child index, BIP-32 convention.
const HardenedOffset uint32 = 0x80000000

// ErrHardenedPublicDerivation is returned when a hardened index is
// requested against a neutered (public-only) node; supplemented from
// original_source/'s public-derivation guard (see SPEC_FULL.md).
var ErrHardenedPublicDerivation = utils.NewKind(utils.InvalidArgument, "hat: hardened derivation requires a private key")

// DerivationNode is the minimal BIP-32 state needed to derive children,
// independent of how the node is ultimately stored as an AssetEntry.
type DerivationNode struct {
	PrivKey   []byte // 32 bytes, nil for a neutered (public-only) node
	PubKey    []byte // 33 bytes compressed, always present
	Chaincode [32]byte
	Depth     uint32
	ChildNum  uint32
}

// Neuter returns a public-only copy of n.
func (n DerivationNode) Neuter() DerivationNode {
	return DerivationNode{
		PubKey:    append([]byte(nil), n.PubKey...),
		Chaincode: n.Chaincode,
		Depth:     n.Depth,
		ChildNum:  n.ChildNum,
	}
}

// ParentFingerprint returns first4(hash160(n.PubKey)), the value a derived
// child must record as its parent fingerprint.
func (n DerivationNode) ParentFingerprint() [4]byte {
	h := primitives.Hash160(n.PubKey)
	var out [4]byte
	copy(out[:], h[:4])
	return out
}

// DerivePriv derives child index i from a private node (the reference
// BIP-32 algorithm): hardened indices hash the parent private key, plain
// indices hash the parent public key.
func DerivePriv(n DerivationNode, index uint32) (DerivationNode, error) {
	if len(n.PrivKey) != 32 {
		return DerivationNode{}, utils.NewKind(utils.InvalidArgument, "hat: private derivation requires a 32-byte private key")
	}
	var data []byte
	if index >= HardenedOffset {
		data = append(data, 0x00)
		data = append(data, n.PrivKey...)
	} else {
		data = append(data, n.PubKey...)
	}
	var idxBuf [4]byte
	binary.BigEndian.PutUint32(idxBuf[:], index)
	data = append(data, idxBuf[:]...)

	i := primitives.HMAC512(n.Chaincode[:], data)
	il, ir := i[:32], i[32:]

	childPriv, err := primitives.AddModOrder(il, n.PrivKey)
	if err != nil {
		return DerivationNode{}, err
	}
	childPub, err := primitives.PubkeyFromPriv(childPriv)
	if err != nil {
		return DerivationNode{}, err
	}

	var cc [32]byte
	copy(cc[:], ir)
	return DerivationNode{
		PrivKey:   childPriv,
		PubKey:    childPub,
		Chaincode: cc,
		Depth:     n.Depth + 1,
		ChildNum:  index,
	}, nil
}

// DerivePub derives child index i from a neutered (public-only) node.
// Hardened indices are impossible without the private key and fail with
// ErrHardenedPublicDerivation, matching derive_pub(N(x), i) = N(derive_priv(x, i))
// for non-hardened i (spec.md §8 invariant).
func DerivePub(n DerivationNode, index uint32) (DerivationNode, error) {
	if index >= HardenedOffset {
		return DerivationNode{}, ErrHardenedPublicDerivation
	}
	var idxBuf [4]byte
	binary.BigEndian.PutUint32(idxBuf[:], index)
	data := append(append([]byte(nil), n.PubKey...), idxBuf[:]...)

	i := primitives.HMAC512(n.Chaincode[:], data)
	il, ir := i[:32], i[32:]

	childPub, err := primitives.AddPoint(il, n.PubKey)
	if err != nil {
		return DerivationNode{}, err
	}

	var cc [32]byte
	copy(cc[:], ir)
	return DerivationNode{
		PubKey:    childPub,
		Chaincode: cc,
		Depth:     n.Depth + 1,
		ChildNum:  index,
	}, nil
}

// bip32MasterSeedDomainTag is the fixed HMAC key the BIP-32 reference
// algorithm uses to generate a master node from a seed.
const bip32MasterSeedDomainTag = "Bitcoin seed"

// NewMasterNode derives the root BIP-32 node from a seed, per the reference
// algorithm: HMAC-SHA512("Bitcoin seed", seed) split into the master
// private key and chaincode.
func NewMasterNode(seed []byte) (DerivationNode, error) {
	if len(seed) == 0 {
		return DerivationNode{}, utils.NewKind(utils.InvalidArgument, "hat: seed must be non-empty")
	}
	i := primitives.HMAC512([]byte(bip32MasterSeedDomainTag), seed)
	priv := append([]byte(nil), i[:32]...)
	pub, err := primitives.PubkeyFromPriv(priv)
	if err != nil {
		return DerivationNode{}, err
	}
	var cc [32]byte
	copy(cc[:], i[32:])
	return DerivationNode{PrivKey: priv, PubKey: pub, Chaincode: cc, Depth: 0, ChildNum: 0}, nil
}

// DerivePath walks successive indices from root via DerivePriv.
func DerivePath(root DerivationNode, path []uint32) (DerivationNode, error) {
	node := root
	var err error
	for _, idx := range path {
		node, err = DerivePriv(node, idx)
		if err != nil {
			return DerivationNode{}, err
		}
	}
	return node, nil
}
