package primitives

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"armorycore/pkg/utils"
)

// PubkeyFromPriv returns the compressed public key for a 32-byte private
// scalar.
func PubkeyFromPriv(priv []byte) ([]byte, error) {
	if len(priv) != 32 {
		return nil, utils.NewKind(utils.InvalidArgument, "private key must be 32 bytes")
	}
	priK := secp256k1.PrivKeyFromBytes(priv)
	return priK.PubKey().SerializeCompressed(), nil
}

// Compress converts an uncompressed (65-byte) public key to its compressed
// (33-byte) form.
func Compress(uncompressed []byte) ([]byte, error) {
	pub, err := secp256k1.ParsePubKey(uncompressed)
	if err != nil {
		return nil, utils.Wrap(err, "parse uncompressed pubkey")
	}
	return pub.SerializeCompressed(), nil
}

// Uncompress converts a compressed (33-byte) public key to its uncompressed
// (65-byte) form.
func Uncompress(compressed []byte) ([]byte, error) {
	pub, err := secp256k1.ParsePubKey(compressed)
	if err != nil {
		return nil, utils.Wrap(err, "parse compressed pubkey")
	}
	return pub.SerializeUncompressed(), nil
}

// ECDHMul computes the shared secret point priv*pub and returns its
// compressed encoding, matching the IES envelope's `ecdh_mul` contract
// (spec.md §4.3).
func ECDHMul(priv []byte, pub []byte) ([]byte, error) {
	if len(priv) != 32 {
		return nil, utils.NewKind(utils.InvalidArgument, "private scalar must be 32 bytes")
	}
	pk, err := secp256k1.ParsePubKey(pub)
	if err != nil {
		return nil, utils.Wrap(err, "parse pubkey")
	}
	var privScalar secp256k1.ModNScalar
	privScalar.SetByteSlice(priv)

	var point secp256k1.JacobianPoint
	pk.AsJacobian(&point)

	var result secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&privScalar, &point, &result)
	result.ToAffine()
	shared := secp256k1.NewPublicKey(&result.X, &result.Y)
	return shared.SerializeCompressed(), nil
}

// SignDeterministic signs a 32-byte digest with RFC 6979 deterministic k and
// returns the 64-byte compact (r||s) signature, low-S normalized by the
// underlying library.
func SignDeterministic(priv []byte, digest []byte) ([]byte, error) {
	if len(priv) != 32 {
		return nil, utils.NewKind(utils.InvalidArgument, "private key must be 32 bytes")
	}
	if len(digest) != 32 {
		return nil, utils.NewKind(utils.InvalidArgument, "digest must be 32 bytes")
	}
	priK := secp256k1.PrivKeyFromBytes(priv)
	sig := ecdsa.Sign(priK, digest)
	r := sig.R()
	s := sig.S()
	rb := r.Bytes()
	sb := s.Bytes()
	out := make([]byte, 64)
	copy(out[0:32], rb[:])
	copy(out[32:64], sb[:])
	return out, nil
}

// Verify checks a 64-byte compact (r||s) signature over digest under pub.
func Verify(pub []byte, digest []byte, sig []byte) (bool, error) {
	if len(sig) != 64 {
		return false, utils.NewKind(utils.InvalidArgument, "signature must be 64 bytes")
	}
	pk, err := secp256k1.ParsePubKey(pub)
	if err != nil {
		return false, utils.Wrap(err, "parse pubkey")
	}
	var r, s secp256k1.ModNScalar
	r.SetByteSlice(sig[0:32])
	s.SetByteSlice(sig[32:64])
	signature := ecdsa.NewSignature(&r, &s)
	return signature.Verify(digest, pk), nil
}

// AddModOrder returns (a+b) mod n as a 32-byte scalar, the private-key-side
// half of BIP-32 child derivation.
func AddModOrder(a, b []byte) ([]byte, error) {
	if len(a) != 32 || len(b) != 32 {
		return nil, utils.NewKind(utils.InvalidArgument, "scalar add: both operands must be 32 bytes")
	}
	var sa, sb secp256k1.ModNScalar
	sa.SetByteSlice(a)
	sb.SetByteSlice(b)
	sa.Add(&sb)
	out := sa.Bytes()
	res := make([]byte, 32)
	copy(res, out[:])
	return res, nil
}

// AddPoint returns the compressed encoding of (a*G) + pub, the public-key-
// side half of BIP-32 child derivation.
func AddPoint(a []byte, pub []byte) ([]byte, error) {
	if len(a) != 32 {
		return nil, utils.NewKind(utils.InvalidArgument, "point add: scalar must be 32 bytes")
	}
	pk, err := secp256k1.ParsePubKey(pub)
	if err != nil {
		return nil, utils.Wrap(err, "point add: parse pubkey")
	}
	var scalar secp256k1.ModNScalar
	scalar.SetByteSlice(a)

	var aG secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&scalar, &aG)

	var pubJ secp256k1.JacobianPoint
	pk.AsJacobian(&pubJ)

	var sum secp256k1.JacobianPoint
	secp256k1.AddNonConst(&aG, &pubJ, &sum)
	sum.ToAffine()
	result := secp256k1.NewPublicKey(&sum.X, &sum.Y)
	return result.SerializeCompressed(), nil
}

// LowSNormalize rewrites a 64-byte compact signature's S value to its low-S
// form if necessary, returning the (possibly unchanged) signature.
func LowSNormalize(sig []byte) ([]byte, error) {
	if len(sig) != 64 {
		return nil, utils.NewKind(utils.InvalidArgument, "signature must be 64 bytes")
	}
	var s secp256k1.ModNScalar
	s.SetByteSlice(sig[32:64])
	if s.IsOverHalfOrder() {
		s.Negate()
	}
	sb := s.Bytes()
	out := make([]byte, 64)
	copy(out[0:32], sig[0:32])
	copy(out[32:64], sb[:])
	return out, nil
}
