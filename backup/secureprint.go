package backup

import (
	"crypto/sha256"

	"armorycore/pkg/primitives"
	"armorycore/pkg/utils"
	"github.com/mr-tron/base58"
)

// Salt suffixes are the "nothing up my sleeve" digits of e and pi, matching
// the literal constants carried by the original codec (ArmoryBackups.cpp).
const (
	kdfSaltPrefix = "ARMORY_KEY_DERIVATION_FUNCTION_SALT_"
	kdfSaltDigits = "7182818284590452353602874713526624977572470936999595749669676277" +
		"2407663035354759457138217852516642742746639193200305992181741359" +
		"6629043572900334295260595630738132328627943490763233829880753195" +
		"2510190115738341879307021540891499348841675092447614606680822648"

	ivPrefix = "ARMORY_ENCRYPTION_INITIALIZATION_VECTOR_"
	ivDigits = "1415926535897932384626433832795028841971693993751058209749445923" +
		"0781640628620899862803482534211706798214808651328230664709384460" +
		"9550582231725359408128481117450284102701938521105559644622948954" +
		"9303819644288109756659334461284756482337867831652712019091456485"

	secureprintKDFMemoryBytes = 16 * 1024 * 1024
	secureprintKDFIterations  = 1

	passphraseBodyBytes = 7
)

func kdfSalt() []byte {
	h := sha256.Sum256([]byte(kdfSaltPrefix + kdfSaltDigits))
	return h[:]
}

func ivSeed() [32]byte {
	return sha256.Sum256([]byte(ivPrefix + ivDigits))
}

// derivePassphrase computes the self-derived printable passphrase for a
// root (and optional chaincode): HMAC512 keyed by hash256(root‖chaincode)
// over the KDF salt, truncated to 7 bytes with a 1-byte checksum appended,
// base58-encoded. The key/message order matches ArmoryBackups.cpp's
// getHMAC512(rootHash, salt), not the reverse.
func derivePassphrase(root, chaincode []byte) string {
	keyed := append(append([]byte(nil), root...), chaincode...)
	digest := primitives.Hash256(keyed)
	mac := primitives.HMAC512(digest[:], kdfSalt())
	body := mac[:passphraseBodyBytes]
	check := primitives.Hash256(body)
	full := append(append([]byte(nil), body...), check[0])
	return base58.Encode(full)
}

// VerifyPassphraseChecksum validates a candidate passphrase's embedded
// checksum without deriving any key material. A wrong passphrase is
// rejected here, before the KDF ever runs.
func VerifyPassphraseChecksum(passphrase string) error {
	raw, err := base58.Decode(passphrase)
	if err != nil {
		return utils.NewKind(utils.InvalidArgument, "backup: malformed secureprint passphrase")
	}
	if len(raw) != passphraseBodyBytes+1 {
		return utils.NewKind(utils.IntegrityFailure, "backup: secureprint passphrase has the wrong length")
	}
	body, check := raw[:passphraseBodyBytes], raw[passphraseBodyBytes]
	want := primitives.Hash256(body)
	if want[0] != check {
		return utils.NewKind(utils.IntegrityFailure, "backup: secureprint passphrase checksum mismatch")
	}
	return nil
}

func secureprintKDFParams() primitives.KDFParams {
	return primitives.KDFParams{MemoryBytes: secureprintKDFMemoryBytes, Iterations: secureprintKDFIterations, Salt: kdfSalt()}
}

func secureprintIV() []byte {
	seed := ivSeed()
	return seed[:16]
}

// Envelope is the SecurePrint-encrypted form of a wallet root, optionally
// with its legacy chaincode.
type Envelope struct {
	Passphrase     string
	EncryptedRoot  []byte
	EncryptedChain []byte
	HasChaincode   bool
}

// Encrypt derives the self-derived passphrase for root(+chaincode) and
// encrypts each 32-byte field independently under the resulting key, per
// spec.md §4.5.
func Encrypt(root, chaincode []byte) (Envelope, error) {
	if len(root) != 32 {
		return Envelope{}, utils.NewKind(utils.InvalidArgument, "backup: root must be 32 bytes")
	}
	if len(chaincode) != 0 && len(chaincode) != 32 {
		return Envelope{}, utils.NewKind(utils.InvalidArgument, "backup: chaincode must be empty or 32 bytes")
	}

	passphrase := derivePassphrase(root, chaincode)
	key, err := primitives.ROMix([]byte(passphrase), secureprintKDFParams())
	if err != nil {
		return Envelope{}, err
	}
	iv := secureprintIV()

	encRoot, err := primitives.AES256CBCEncrypt(key, iv, root)
	if err != nil {
		return Envelope{}, err
	}
	env := Envelope{Passphrase: passphrase, EncryptedRoot: encRoot}
	if len(chaincode) == 32 {
		encChain, err := primitives.AES256CBCEncrypt(key, iv, chaincode)
		if err != nil {
			return Envelope{}, err
		}
		env.EncryptedChain = encChain
		env.HasChaincode = true
	}
	return env, nil
}

// Decrypt recovers root(+chaincode) from env given a candidate passphrase.
// The passphrase's checksum is validated before the KDF runs, so a wrong
// passphrase fails cheaply.
func Decrypt(env Envelope, passphrase string) (root, chaincode []byte, err error) {
	if err := VerifyPassphraseChecksum(passphrase); err != nil {
		return nil, nil, err
	}
	key, err := primitives.ROMix([]byte(passphrase), secureprintKDFParams())
	if err != nil {
		return nil, nil, err
	}
	iv := secureprintIV()

	root, err = primitives.AES256CBCDecrypt(key, iv, env.EncryptedRoot)
	if err != nil {
		return nil, nil, err
	}
	if env.HasChaincode {
		chaincode, err = primitives.AES256CBCDecrypt(key, iv, env.EncryptedChain)
		if err != nil {
			return nil, nil, err
		}
	}
	return root, chaincode, nil
}
