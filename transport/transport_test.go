package transport

import (
	"bytes"
	"testing"

	"armorycore/pkg/primitives"
)

func fixedPriv(b byte) []byte {
	priv := make([]byte, 32)
	priv[31] = b
	priv[0] ^= 0x01
	return priv
}

// establishSession runs the two directional EncInit/EncAck exchanges that
// together establish a full-duplex session between a client and a server,
// mirroring spec.md §4.6's state diagram (direction A = client outbound /
// server inbound, direction B = server outbound / client inbound).
func establishSession(t *testing.T) (client, server *Session) {
	t.Helper()

	// Direction A: client initiates.
	initA, encInitA, err := StartDirection()
	if err != nil {
		t.Fatalf("start direction A: %v", err)
	}
	serverInboundCipher, serverInboundID, ackA, err := RespondDirection(encInitA)
	if err != nil {
		t.Fatalf("respond direction A: %v", err)
	}
	clientOutboundCipher, clientOutboundID, err := initA.Finish(ackA)
	if err != nil {
		t.Fatalf("finish direction A: %v", err)
	}

	// Direction B: server initiates.
	initB, encInitB, err := StartDirection()
	if err != nil {
		t.Fatalf("start direction B: %v", err)
	}
	clientInboundCipher, clientInboundID, ackB, err := RespondDirection(encInitB)
	if err != nil {
		t.Fatalf("respond direction B: %v", err)
	}
	serverOutboundCipher, serverOutboundID, err := initB.Finish(ackB)
	if err != nil {
		t.Fatalf("finish direction B: %v", err)
	}

	client = &Session{Outbound: clientOutboundCipher, Inbound: clientInboundCipher, OutboundID: clientOutboundID, InboundID: clientInboundID}
	server = &Session{Outbound: serverOutboundCipher, Inbound: serverInboundCipher, OutboundID: serverOutboundID, InboundID: serverInboundID}
	return client, server
}

func TestDirectionKeysAgreeBothSides(t *testing.T) {
	client, server := establishSession(t)
	if !bytes.Equal(client.OutboundID, server.InboundID) {
		t.Fatalf("direction A session id mismatch")
	}
	if !bytes.Equal(client.InboundID, server.OutboundID) {
		t.Fatalf("direction B session id mismatch")
	}
}

func TestFrameRoundTripBothDirections(t *testing.T) {
	client, server := establishSession(t)

	msg := []byte("hello from the client")
	frame := client.Outbound.Seal(msg)
	got, consumed, ok, err := server.Inbound.Open(frame)
	if err != nil || !ok {
		t.Fatalf("server open: ok=%v err=%v", ok, err)
	}
	if consumed != len(frame) || !bytes.Equal(got, msg) {
		t.Fatalf("frame round trip mismatch")
	}

	reply := []byte("hello from the server")
	frame2 := server.Outbound.Seal(reply)
	got2, _, ok2, err2 := client.Inbound.Open(frame2)
	if err2 != nil || !ok2 || !bytes.Equal(got2, reply) {
		t.Fatalf("reverse frame round trip mismatch")
	}
}

func TestFrameBitflipFailsAuthentication(t *testing.T) {
	client, server := establishSession(t)
	frame := client.Outbound.Seal([]byte("payload"))
	frame[len(frame)-1] ^= 0xff
	if _, _, ok, err := server.Inbound.Open(frame); ok || err == nil {
		t.Fatalf("expected authentication failure on corrupted frame")
	}
}

func TestFullIdentityHandshakeSuccess(t *testing.T) {
	client, server := establishSession(t)

	clientIdentityPriv := fixedPriv(0x30)
	serverIdentityPriv := fixedPriv(0x31)
	serverIdentityPub, err := primitives.PubkeyFromPriv(serverIdentityPriv)
	if err != nil {
		t.Fatalf("server identity pub: %v", err)
	}
	clientIdentityPub, err := primitives.PubkeyFromPriv(clientIdentityPriv)
	if err != nil {
		t.Fatalf("client identity pub: %v", err)
	}

	ch, err := NewClientHandshake(clientIdentityPriv, client.OutboundID, client.InboundID)
	if err != nil {
		t.Fatalf("new client handshake: %v", err)
	}
	sh, err := NewServerHandshake(serverIdentityPriv, server.OutboundID, server.InboundID)
	if err != nil {
		t.Fatalf("new server handshake: %v", err)
	}

	c1, err := ch.Challenge1()
	if err != nil {
		t.Fatalf("challenge1: %v", err)
	}
	if err := sh.ReceiveChallenge1(c1); err != nil {
		t.Fatalf("receive challenge1: %v", err)
	}
	r1, err := sh.Reply1()
	if err != nil {
		t.Fatalf("reply1: %v", err)
	}
	if err := ch.ReceiveReply1(serverIdentityPub, r1); err != nil {
		t.Fatalf("receive reply1: %v", err)
	}
	prop, err := ch.Propose()
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := sh.ReceivePropose(clientIdentityPub, prop, false); err != nil {
		t.Fatalf("receive propose: %v", err)
	}
	c2, err := sh.Challenge2()
	if err != nil {
		t.Fatalf("challenge2: %v", err)
	}
	if err := ch.ReceiveChallenge2(c2); err != nil {
		t.Fatalf("receive challenge2: %v", err)
	}
	r2, err := ch.Reply2()
	if err != nil {
		t.Fatalf("reply2: %v", err)
	}
	if err := sh.ReceiveReply2(r2); err != nil {
		t.Fatalf("receive reply2: %v", err)
	}
	ch.Finish()

	if ch.State() != StateSuccess || sh.State() != StateSuccess {
		t.Fatalf("expected both sides to reach Success: client=%v server=%v", ch.State(), sh.State())
	}
	if !bytes.Equal(sh.ClientIdentityPub(), clientIdentityPub) {
		t.Fatalf("server did not record the client's identity pubkey")
	}
}

func TestOneWayAnonymousModeSkipsClientIdentity(t *testing.T) {
	client, server := establishSession(t)
	serverIdentityPriv := fixedPriv(0x40)
	serverIdentityPub, err := primitives.PubkeyFromPriv(serverIdentityPriv)
	if err != nil {
		t.Fatalf("server identity pub: %v", err)
	}

	ch, err := NewClientHandshake(nil, client.OutboundID, client.InboundID)
	if err != nil {
		t.Fatalf("new anonymous client handshake: %v", err)
	}
	sh, err := NewServerHandshake(serverIdentityPriv, server.OutboundID, server.InboundID)
	if err != nil {
		t.Fatalf("new server handshake: %v", err)
	}

	c1, _ := ch.Challenge1()
	if err := sh.ReceiveChallenge1(c1); err != nil {
		t.Fatalf("receive challenge1: %v", err)
	}
	r1, _ := sh.Reply1()
	if err := ch.ReceiveReply1(serverIdentityPub, r1); err != nil {
		t.Fatalf("receive reply1: %v", err)
	}
	prop, _ := ch.Propose()
	if err := sh.ReceivePropose(nil, prop, true); err != nil {
		t.Fatalf("receive anonymous propose: %v", err)
	}
	c2, _ := sh.Challenge2()
	if err := ch.ReceiveChallenge2(c2); err != nil {
		t.Fatalf("receive challenge2: %v", err)
	}
	r2, _ := ch.Reply2()
	if err := sh.ReceiveReply2(r2); err != nil {
		t.Fatalf("receive anonymous reply2: %v", err)
	}
	if sh.State() != StateSuccess {
		t.Fatalf("expected server Success in one-way mode, got %v", sh.State())
	}
	if sh.ClientIdentityPub() != nil {
		t.Fatalf("expected no recorded client identity in one-way mode")
	}
}

func TestIllegalTransitionMovesToError(t *testing.T) {
	client, _ := establishSession(t)
	ch, err := NewClientHandshake(fixedPriv(0x50), client.OutboundID, client.InboundID)
	if err != nil {
		t.Fatalf("new client handshake: %v", err)
	}
	// Calling Propose before Challenge1/ReceiveReply1 is out of order.
	if _, err := ch.Propose(); err == nil {
		t.Fatalf("expected error for out-of-order Propose")
	}
	if ch.State() != StateError {
		t.Fatalf("expected state Error after illegal transition, got %v", ch.State())
	}
}

func TestRekeyRoundTripThenFrame(t *testing.T) {
	client, server := establishSession(t)

	clientIdentityPriv := fixedPriv(0x70)
	serverIdentityPriv := fixedPriv(0x71)
	serverIdentityPub, err := primitives.PubkeyFromPriv(serverIdentityPriv)
	if err != nil {
		t.Fatalf("server identity pub: %v", err)
	}

	prevOutboundID := append([]byte(nil), client.OutboundID...)
	prevInboundID := append([]byte(nil), server.InboundID...)

	pending, encInit, err := client.RekeyInit()
	if err != nil {
		t.Fatalf("rekey init: %v", err)
	}
	ack, err := server.RekeyRespond(encInit)
	if err != nil {
		t.Fatalf("rekey respond: %v", err)
	}
	if err := pending.Finish(client, ack, clientIdentityPriv, serverIdentityPub); err != nil {
		t.Fatalf("rekey finish: %v", err)
	}

	if bytes.Equal(client.OutboundID, prevOutboundID) {
		t.Fatalf("expected outbound session id to change after rekey")
	}
	if bytes.Equal(server.InboundID, prevInboundID) {
		t.Fatalf("expected inbound session id to change after rekey")
	}
	if !bytes.Equal(client.OutboundID, server.InboundID) {
		t.Fatalf("rekeyed direction id mismatch between client and server")
	}

	client.NoteSent(RekeyThresholdBytes)
	if !client.RekeyDue() {
		t.Fatalf("expected RekeyDue once threshold bytes have been noted")
	}

	msg := []byte("payload sent on the rekeyed direction")
	frame := client.Outbound.Seal(msg)
	got, _, ok, err := server.Inbound.Open(frame)
	if err != nil || !ok {
		t.Fatalf("server open after rekey: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, msg) {
		t.Fatalf("rekeyed frame round trip mismatch")
	}
}

func TestFingerprintIsBase58CheckOfHash160(t *testing.T) {
	priv := fixedPriv(0x60)
	pub, err := primitives.PubkeyFromPriv(priv)
	if err != nil {
		t.Fatalf("pubkey: %v", err)
	}
	fp1 := Fingerprint(pub)
	fp2 := Fingerprint(pub)
	if fp1 != fp2 || fp1 == "" {
		t.Fatalf("expected stable, non-empty fingerprint")
	}
}
