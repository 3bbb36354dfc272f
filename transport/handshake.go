package transport

import (
	"bytes"

	"armorycore/pkg/primitives"
	"armorycore/pkg/utils"
	"armorycore/pkg/wire"
)

// State names every step of the optional identity-authentication layer,
// bound on top of an already-Established encryption session. Any
// out-of-order or malformed message moves both sides to StateError, which
// is terminal.
type State int

const (
	StateEstablished State = iota
	StateChallenge1
	StateReply1
	StatePropose
	StateChallenge2
	StateReply2
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateEstablished:
		return "established"
	case StateChallenge1:
		return "challenge1"
	case StateReply1:
		return "reply1"
	case StatePropose:
		return "propose"
	case StateChallenge2:
		return "challenge2"
	case StateReply2:
		return "reply2"
	case StateSuccess:
		return "success"
	default:
		return "error"
	}
}

func bindValue(clientIdentityPub []byte, tag byte, ids ...[]byte) []byte {
	msg := append([]byte{tag}, bytes.Join(ids, nil)...)
	return primitives.HMAC256(clientIdentityPub, msg)
}

// ClientHandshake drives the client side of the identity-authentication
// state machine. anonymous selects spec.md's "one-way mode": the client
// skips asserting its own identity and the server accepts any client.
type ClientHandshake struct {
	state            State
	identityPriv     []byte // nil in anonymous mode
	identityPub      []byte // nil in anonymous mode
	outboundID       []byte
	inboundID        []byte
	serverIdentityPub []byte
	challenge1       []byte
	challenge2       []byte
}

// NewClientHandshake starts a client-side identity handshake bound to the
// session's two direction ids. identityPriv may be nil for anonymous mode.
func NewClientHandshake(identityPriv []byte, outboundID, inboundID []byte) (*ClientHandshake, error) {
	h := &ClientHandshake{state: StateEstablished, outboundID: outboundID, inboundID: inboundID}
	if len(identityPriv) > 0 {
		pub, err := primitives.PubkeyFromPriv(identityPriv)
		if err != nil {
			return nil, err
		}
		h.identityPriv = identityPriv
		h.identityPub = pub
	}
	return h, nil
}

// anonymousIdentityPub is used as the HMAC key in one-way mode: the
// binding values still need a client_identity_pub per the spec's table,
// so an anonymous client uses a fixed well-known public label instead of
// a real identity key.
var anonymousIdentityPub = []byte("armorycore-transport-anonymous-client")

func (h *ClientHandshake) identityKey() []byte {
	if h.identityPub != nil {
		return h.identityPub
	}
	return anonymousIdentityPub
}

// Challenge1 emits the client's opening identity-authentication message.
func (h *ClientHandshake) Challenge1() ([]byte, error) {
	if h.state != StateEstablished {
		h.state = StateError
		return nil, utils.NewKind(utils.PermissionDenied, "transport: Challenge1 issued out of order")
	}
	h.challenge1 = bindValue(h.identityKey(), 'i', h.outboundID)
	h.state = StateChallenge1
	return h.challenge1, nil
}

// ReceiveReply1 verifies the server's signature over Challenge1 against
// the claimed server identity pubkey.
func (h *ClientHandshake) ReceiveReply1(serverIdentityPub, sig []byte) error {
	if h.state != StateChallenge1 {
		h.state = StateError
		return utils.NewKind(utils.PermissionDenied, "transport: Reply1 received out of order")
	}
	ok, err := primitives.Verify(serverIdentityPub, h.challenge1, sig)
	if err != nil {
		h.state = StateError
		return err
	}
	if !ok {
		h.state = StateError
		return utils.NewKind(utils.PermissionDenied, "transport: server Reply1 signature invalid")
	}
	h.serverIdentityPub = append([]byte(nil), serverIdentityPub...)
	h.state = StateReply1
	return nil
}

// Propose emits the client's Propose message binding both direction ids.
func (h *ClientHandshake) Propose() ([]byte, error) {
	if h.state != StateReply1 {
		h.state = StateError
		return nil, utils.NewKind(utils.PermissionDenied, "transport: Propose issued out of order")
	}
	msg := bindValue(h.identityKey(), 'p', h.inboundID, h.outboundID)
	h.state = StatePropose
	return msg, nil
}

// ReceiveChallenge2 records the server's session-binding challenge.
func (h *ClientHandshake) ReceiveChallenge2(challenge2 []byte) error {
	if h.state != StatePropose {
		h.state = StateError
		return utils.NewKind(utils.PermissionDenied, "transport: Challenge2 received out of order")
	}
	want := bindValue(h.identityKey(), 'c', h.outboundID, h.inboundID)
	if !bytes.Equal(want, challenge2) {
		h.state = StateError
		return utils.NewKind(utils.PermissionDenied, "transport: Challenge2 binding mismatch")
	}
	h.challenge2 = append([]byte(nil), challenge2...)
	h.state = StateChallenge2
	return nil
}

// Reply2 emits the client's closing message: a signature over Challenge2
// in two-way mode, or the client's raw pubkey in one-way (anonymous) mode.
func (h *ClientHandshake) Reply2() ([]byte, error) {
	if h.state != StateChallenge2 {
		h.state = StateError
		return nil, utils.NewKind(utils.PermissionDenied, "transport: Reply2 issued out of order")
	}
	h.state = StateReply2
	if h.identityPriv == nil {
		return append([]byte(nil), anonymousIdentityPub...), nil
	}
	return primitives.SignDeterministic(h.identityPriv, h.challenge2)
}

// Finish marks the handshake Success once the server has confirmed it
// (there is no further message for the client to validate).
func (h *ClientHandshake) Finish() {
	if h.state == StateReply2 {
		h.state = StateSuccess
	} else {
		h.state = StateError
	}
}

func (h *ClientHandshake) State() State { return h.state }

// ServerHandshake drives the server side of the identity-authentication
// state machine.
type ServerHandshake struct {
	state        State
	identityPriv []byte
	identityPub  []byte
	outboundID   []byte
	inboundID    []byte
	clientIdentityPub []byte
	challenge1   []byte
	challenge2   []byte
	anonymous    bool
}

// NewServerHandshake starts a server-side identity handshake bound to the
// session's two direction ids, from the server's perspective (its
// outboundID is the client's inboundID and vice versa).
func NewServerHandshake(identityPriv []byte, outboundID, inboundID []byte) (*ServerHandshake, error) {
	pub, err := primitives.PubkeyFromPriv(identityPriv)
	if err != nil {
		return nil, err
	}
	return &ServerHandshake{state: StateEstablished, identityPriv: identityPriv, identityPub: pub, outboundID: outboundID, inboundID: inboundID}, nil
}

// ReceiveChallenge1 records the client's opening bound value; the actual
// client identity pubkey is not known yet (Challenge1 is itself HMAC-keyed
// by it), so verification is deferred to Propose.
func (h *ServerHandshake) ReceiveChallenge1(challenge1 []byte) error {
	if h.state != StateEstablished {
		h.state = StateError
		return utils.NewKind(utils.PermissionDenied, "transport: Challenge1 received out of order")
	}
	h.challenge1 = append([]byte(nil), challenge1...)
	h.state = StateChallenge1
	return nil
}

// Reply1 emits the server's signature over the received Challenge1.
func (h *ServerHandshake) Reply1() ([]byte, error) {
	if h.state != StateChallenge1 {
		h.state = StateError
		return nil, utils.NewKind(utils.PermissionDenied, "transport: Reply1 issued out of order")
	}
	sig, err := primitives.SignDeterministic(h.identityPriv, h.challenge1)
	if err != nil {
		h.state = StateError
		return nil, err
	}
	h.state = StateReply1
	return sig, nil
}

// ReceivePropose verifies the client's Propose message against a claimed
// client identity pubkey (or, in one-way mode, accepts unconditionally and
// records no client identity).
func (h *ServerHandshake) ReceivePropose(claimedClientPub, propose []byte, oneWay bool) error {
	if h.state != StateReply1 {
		h.state = StateError
		return utils.NewKind(utils.PermissionDenied, "transport: Propose received out of order")
	}
	key := claimedClientPub
	if oneWay {
		h.anonymous = true
		key = anonymousIdentityPub
	}
	want := bindValue(key, 'p', h.outboundID, h.inboundID)
	if !bytes.Equal(want, propose) {
		h.state = StateError
		return utils.NewKind(utils.PermissionDenied, "transport: Propose binding mismatch")
	}
	if !oneWay {
		h.clientIdentityPub = append([]byte(nil), claimedClientPub...)
	}
	h.state = StatePropose
	return nil
}

// Challenge2 emits the server's session-binding challenge.
func (h *ServerHandshake) Challenge2() ([]byte, error) {
	if h.state != StatePropose {
		h.state = StateError
		return nil, utils.NewKind(utils.PermissionDenied, "transport: Challenge2 issued out of order")
	}
	key := h.clientIdentityPub
	if h.anonymous {
		key = anonymousIdentityPub
	}
	h.challenge2 = bindValue(key, 'c', h.inboundID, h.outboundID)
	h.state = StateChallenge2
	return h.challenge2, nil
}

// ReceiveReply2 verifies the client's closing message: a signature in
// two-way mode, or the anonymous label in one-way mode.
func (h *ServerHandshake) ReceiveReply2(reply2 []byte) error {
	if h.state != StateChallenge2 {
		h.state = StateError
		return utils.NewKind(utils.PermissionDenied, "transport: Reply2 received out of order")
	}
	if h.anonymous {
		if !bytes.Equal(reply2, anonymousIdentityPub) {
			h.state = StateError
			return utils.NewKind(utils.PermissionDenied, "transport: anonymous Reply2 mismatch")
		}
		h.state = StateSuccess
		return nil
	}
	ok, err := primitives.Verify(h.clientIdentityPub, h.challenge2, reply2)
	if err != nil {
		h.state = StateError
		return err
	}
	if !ok {
		h.state = StateError
		return utils.NewKind(utils.PermissionDenied, "transport: client Reply2 signature invalid")
	}
	h.state = StateSuccess
	return nil
}

func (h *ServerHandshake) State() State { return h.state }

// ClientIdentityPub returns the authenticated client's identity pubkey, or
// nil in one-way mode.
func (h *ServerHandshake) ClientIdentityPub() []byte { return h.clientIdentityPub }

// Fingerprint renders a printable identity fingerprint for out-of-band
// verification: base58check of hash160(identityPub).
func Fingerprint(identityPub []byte) string {
	h := primitives.Hash160(identityPub)
	return wire.Base58CheckEncode(h[:])
}
