package transport

import (
	"crypto/sha256"

	"armorycore/pkg/primitives"
	"armorycore/pkg/utils"
)

// CipherSuiteChaCha20Poly1305 is the only cipher suite this handshake
// negotiates; the byte is still carried on the wire so a future suite can
// be added without breaking the message shape.
const CipherSuiteChaCha20Poly1305 byte = 0x01

// EncInit is the 34-byte message that opens one direction's key
// agreement: an ephemeral pubkey plus a one-byte cipher suite selector.
type EncInit struct {
	Pubkey      []byte
	CipherSuite byte
}

// Marshal renders m as its 34-byte wire form.
func (m EncInit) Marshal() []byte {
	out := make([]byte, 34)
	copy(out, m.Pubkey)
	out[33] = m.CipherSuite
	return out
}

// UnmarshalEncInit parses a 34-byte EncInit message.
func UnmarshalEncInit(b []byte) (EncInit, error) {
	if len(b) != 34 {
		return EncInit{}, utils.NewKind(utils.InvalidArgument, "transport: EncInit must be 34 bytes")
	}
	return EncInit{Pubkey: append([]byte(nil), b[:33]...), CipherSuite: b[33]}, nil
}

// EncAck is the 33-byte response carrying the responder's own ephemeral
// pubkey for this direction.
type EncAck struct {
	Pubkey []byte
}

// Marshal renders m as its 33-byte wire form.
func (m EncAck) Marshal() []byte {
	return append([]byte(nil), m.Pubkey...)
}

// UnmarshalEncAck parses a 33-byte EncAck message.
func UnmarshalEncAck(b []byte) (EncAck, error) {
	if len(b) != 33 {
		return EncAck{}, utils.NewKind(utils.InvalidArgument, "transport: EncAck must be 33 bytes")
	}
	return EncAck{Pubkey: append([]byte(nil), b...)}, nil
}

func newEphemeralKeypair() (priv, pub []byte, err error) {
	priv, err = primitives.CryptoRandBytes(32)
	if err != nil {
		return nil, nil, err
	}
	pub, err = primitives.PubkeyFromPriv(priv)
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

// directionKeys derives the session key and session id for one direction.
// initiatorPub fixes the byte order of session_id (initiator pub first)
// so both sides of the direction compute the identical value regardless of
// who is doing the computing.
func directionKeys(myPriv, peerPub, initiatorPub, responderPub []byte) (sessionKey, sessionID []byte, err error) {
	shared, err := primitives.ECDHMul(myPriv, peerPub)
	if err != nil {
		return nil, nil, err
	}
	key := sha256.Sum256(shared)
	id := sha256.Sum256(append(append([]byte(nil), initiatorPub...), responderPub...))
	return key[:32], id[:], nil
}

// DirEstablishInitiator begins one direction's key agreement from the
// initiating side: it generates the ephemeral keypair and the EncInit
// message to send. Call DirEstablishInitiator.Finish once the peer's
// EncAck arrives.
type DirEstablishInitiator struct {
	priv []byte
	pub  []byte
}

// StartDirection generates the ephemeral keypair for this direction and returns the
// EncInit message to send to the peer.
func StartDirection() (*DirEstablishInitiator, EncInit, error) {
	priv, pub, err := newEphemeralKeypair()
	if err != nil {
		return nil, EncInit{}, err
	}
	return &DirEstablishInitiator{priv: priv, pub: pub}, EncInit{Pubkey: pub, CipherSuite: CipherSuiteChaCha20Poly1305}, nil
}

// Finish consumes the peer's EncAck and completes the direction,
// returning the FrameCipher for this direction plus its session id.
func (d *DirEstablishInitiator) Finish(ack EncAck) (*FrameCipher, []byte, error) {
	key, id, err := directionKeys(d.priv, ack.Pubkey, d.pub, ack.Pubkey)
	if err != nil {
		return nil, nil, err
	}
	fc, err := newFrameCipher(key)
	if err != nil {
		return nil, nil, err
	}
	return fc, id, nil
}

// RespondDirection answers an incoming EncInit: it generates its own
// ephemeral keypair, derives the direction's key and session id
// immediately (the responder needs no further message), and returns both
// the FrameCipher and the EncAck to send back.
func RespondDirection(init EncInit) (*FrameCipher, []byte, EncAck, error) {
	priv, pub, err := newEphemeralKeypair()
	if err != nil {
		return nil, nil, EncAck{}, err
	}
	key, id, err := directionKeys(priv, init.Pubkey, init.Pubkey, pub)
	if err != nil {
		return nil, nil, EncAck{}, err
	}
	fc, err := newFrameCipher(key)
	if err != nil {
		return nil, nil, EncAck{}, err
	}
	return fc, id, EncAck{Pubkey: pub}, nil
}

// Session bundles the two independently-keyed directions of one
// connection: the outbound direction we initiated (EncInit1/EncAck1 in
// spec.md's state diagram) and the inbound direction the peer initiated
// (EncInit2/EncAck2).
type Session struct {
	Outbound        *FrameCipher
	Inbound         *FrameCipher
	OutboundID      []byte
	InboundID       []byte
	bytesSinceRekey uint64
}

// RekeyThresholdBytes triggers a rekey recommendation once a direction has
// sent this many plaintext bytes, per spec.md §4.6's "byte-count
// threshold" rekey trigger.
const RekeyThresholdBytes = 64 * 1024 * 1024

// PendingRekey holds the local ephemeral state for an outbound rekey that
// has been started but not yet finished. Call Finish once the peer's EncAck
// for this rekey arrives; an unfinished PendingRekey has no effect on the
// Session it was started from.
type PendingRekey struct {
	init *DirEstablishInitiator
}

// RekeyInit begins rotating the session's outbound direction key, per
// spec.md §4.6's byte-count-threshold or explicit-request rekey trigger: it
// generates a fresh ephemeral keypair and returns the EncInit to send to the
// peer. The peer answers with RekeyRespond; its EncAck is then passed to
// PendingRekey.Finish to complete the rotation on this side.
func (s *Session) RekeyInit() (*PendingRekey, EncInit, error) {
	init, encInit, err := StartDirection()
	if err != nil {
		return nil, EncInit{}, err
	}
	return &PendingRekey{init: init}, encInit, nil
}

// Finish completes a pending outbound rekey using the peer's real EncAck
// for this rekey (the pubkey the peer generated in RekeyRespond, not our
// own). When myIdentityPriv and peerIdentityPub are both non-nil, their ECDH
// product is mixed into the rotated key, matching the bind done once upon
// handshake Success to fold the authenticated identities into the session
// keys and foreclose cross-session replay.
func (p *PendingRekey) Finish(s *Session, ack EncAck, myIdentityPriv, peerIdentityPub []byte) error {
	fc, id, err := p.init.Finish(ack)
	if err != nil {
		return err
	}
	if len(myIdentityPriv) > 0 && len(peerIdentityPub) > 0 {
		mixed, err := primitives.ECDHMul(myIdentityPriv, peerIdentityPub)
		if err != nil {
			return err
		}
		rekeyed := sha256.Sum256(append(append([]byte(nil), mixed...), fc.nonceBytes()...))
		if err := fc.replaceKey(rekeyed[:32]); err != nil {
			return err
		}
	}
	s.Outbound = fc
	s.OutboundID = id
	s.bytesSinceRekey = 0
	return nil
}

// RekeyRespond answers a peer's rekey EncInit. From the peer's point of view
// this rotates its outbound direction; from this side it rotates the
// session's inbound direction. It returns the EncAck to send back, which the
// peer passes to its own PendingRekey.Finish.
func (s *Session) RekeyRespond(init EncInit) (EncAck, error) {
	fc, id, ack, err := RespondDirection(init)
	if err != nil {
		return EncAck{}, err
	}
	s.Inbound = fc
	s.InboundID = id
	return ack, nil
}

// NoteSent tracks outbound plaintext bytes for the caller's own rekey
// scheduling decision; it does not trigger a rekey itself.
func (s *Session) NoteSent(n int) {
	s.bytesSinceRekey += uint64(n)
}

// RekeyDue reports whether NoteSent has accumulated past the threshold.
func (s *Session) RekeyDue() bool {
	return s.bytesSinceRekey >= RekeyThresholdBytes
}
