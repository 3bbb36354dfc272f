package hat

import (
	"armorycore/pkg/primitives"
	"armorycore/pkg/utils"
)

// AddressType classifies which script/address form an asset resolves to;
// an AddressAccount only admits asset types consistent with its policy.
type AddressType byte

const (
	AddressTypeP2PKH AddressType = iota + 1
	AddressTypeP2SH
	AddressTypeP2WPKH
)

// AddressAccountPolicy fixes which address types an account may mint and
// how its three chains (main/outer/change) track usage.
type AddressAccountPolicy struct {
	AddressTypes []AddressType
	MainIndex    uint32
	OuterIndex   uint32
	ChangeIndex  uint32
}

func (p AddressAccountPolicy) admits(t AddressType) bool {
	for _, candidate := range p.AddressTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// AddressAccount is an ordered set of asset IDs plus a minting policy and a
// reverse hash index used by the script-to-key resolver.
type AddressAccount struct {
	AssetIDs [][]byte
	Policy   AddressAccountPolicy

	// hashIndex maps hash160(pubkey) (hex-ish raw string key) to the owning
	// asset id and the address type it was minted as.
	hashIndex map[string]hashIndexEntry
}

type hashIndexEntry struct {
	assetID     []byte
	addressType AddressType
}

// NewAddressAccount constructs an empty account under policy.
func NewAddressAccount(policy AddressAccountPolicy) *AddressAccount {
	return &AddressAccount{Policy: policy, hashIndex: make(map[string]hashIndexEntry)}
}

// AddAsset registers assetID's compressed pubkey under addressType,
// rejecting address types the account's policy does not admit (spec.md §9
// "address-type policy mismatch" / Conflict kind).
func (a *AddressAccount) AddAsset(assetID []byte, pubKeyCompressed []byte, addressType AddressType) error {
	if !a.Policy.admits(addressType) {
		return utils.NewKind(utils.Conflict, "hat: address type not admitted by account policy")
	}
	h := primitives.Hash160(pubKeyCompressed)
	key := string(h[:])
	if _, exists := a.hashIndex[key]; exists {
		return utils.NewKind(utils.Conflict, "hat: duplicate address hash in account")
	}
	a.AssetIDs = append(a.AssetIDs, assetID)
	a.hashIndex[key] = hashIndexEntry{assetID: assetID, addressType: addressType}
	return nil
}

// Resolve looks up the asset id and address type owning scriptHash (a
// hash160 of a pubkey), the script-to-key resolver's core operation.
func (a *AddressAccount) Resolve(scriptHash [20]byte) (assetID []byte, addressType AddressType, ok bool) {
	e, found := a.hashIndex[string(scriptHash[:])]
	if !found {
		return nil, 0, false
	}
	return e.assetID, e.addressType, true
}

// WalletHeader is the immutable-after-creation record naming a wallet's
// default keys and the control subspace used for master-key wrapping.
type WalletHeader struct {
	WalletID               []byte
	DBName                 string
	DefaultEncryptionKeyID []byte
	DefaultKDFID           []byte
	MasterEncryptionKeyID  []byte
	ControlSalt            []byte
}

// MetadataKind distinguishes the four metadata-account record subtypes,
// each with its own key prefix (spec.md §6 prefixes 0x06-0x09).
type MetadataKind byte

const (
	MetadataComment MetadataKind = iota + 1
	MetadataAuthorisedPeer
	MetadataPeerRoot
	MetadataRootSignature
)

// MetadataRecord is one entry of a MetadataAccount, keyed by an opaque id
// (e.g. an asset id for a comment, or a peer identity pubkey for a peer
// record). Supplemented from original_source/ per SPEC_FULL.md: the
// original carries free-text comment records and authorised-peer/peer-root
// bookkeeping that the distilled spec only gestures at via the prefix table.
type MetadataRecord struct {
	Kind MetadataKind
	Key  []byte
	Data []byte
}

// MetadataAccount indexes comment, authorised-peer, peer-root, and
// root-signature records by (kind, key).
type MetadataAccount struct {
	records map[MetadataKind]map[string][]byte
}

// NewMetadataAccount constructs an empty metadata account.
func NewMetadataAccount() *MetadataAccount {
	return &MetadataAccount{records: make(map[MetadataKind]map[string][]byte)}
}

// Put inserts or overwrites a metadata record.
func (m *MetadataAccount) Put(kind MetadataKind, key, data []byte) {
	bucket, ok := m.records[kind]
	if !ok {
		bucket = make(map[string][]byte)
		m.records[kind] = bucket
	}
	bucket[string(key)] = append([]byte(nil), data...)
}

// Get retrieves a metadata record by (kind, key).
func (m *MetadataAccount) Get(kind MetadataKind, key []byte) ([]byte, bool) {
	bucket, ok := m.records[kind]
	if !ok {
		return nil, false
	}
	v, ok := bucket[string(key)]
	return v, ok
}

// VerifyRootSignature checks a stored root-signature record against the
// corresponding peer root public key, supplemented from original_source/'s
// RootSignature verify operation (see SPEC_FULL.md): a mismatch surfaces as
// PermissionDenied rather than a bare false, since a failed root-signature
// check is a trust-bootstrap failure, not a routine negative lookup.
func (m *MetadataAccount) VerifyRootSignature(peerIdentityPub []byte, rootPub []byte) error {
	sig, ok := m.Get(MetadataRootSignature, peerIdentityPub)
	if !ok {
		return utils.NewKind(utils.NotFound, "hat: no root signature recorded for peer")
	}
	digest := primitives.Hash256(rootPub)
	ok, err := primitives.Verify(peerIdentityPub, digest[:], sig)
	if err != nil {
		return err
	}
	if !ok {
		return utils.NewKind(utils.PermissionDenied, "hat: root signature verification failed")
	}
	return nil
}
