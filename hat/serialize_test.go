package hat

import (
	"bytes"
	"testing"
)

func mustPub(t *testing.T, priv []byte) []byte {
	t.Helper()
	pub, err := testPubkeyFromPriv(priv)
	if err != nil {
		t.Fatalf("pubkey: %v", err)
	}
	return pub
}

func TestSerializeDeserializeSingle(t *testing.T) {
	priv := fixedPriv(0x01)
	pub := mustPub(t, priv)
	s := &SingleEntry{
		ID:     []byte{0x00, 0x00, 0x00, 0x01},
		PubKey: PubKeyEntry{Compressed: pub},
		PrivKey: &PrivKeyEntry{
			Ciphertext:      []byte("ciphertext-bytes"),
			EncryptionKeyID: []byte("enc-key-id"),
			KDFID:           []byte("kdf-id"),
			IV:              []byte("0123456789abcdef"),
		},
	}
	buf, err := Serialize(s)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := Deserialize(buf)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	gotSingle, ok := got.(*SingleEntry)
	if !ok {
		t.Fatalf("expected *SingleEntry, got %T", got)
	}
	if !bytes.Equal(gotSingle.ID, s.ID) {
		t.Fatalf("id mismatch")
	}
	if !bytes.Equal(gotSingle.PubKey.Compressed, s.PubKey.Compressed) {
		t.Fatalf("pubkey mismatch")
	}
	if gotSingle.PrivKey == nil || !bytes.Equal(gotSingle.PrivKey.Ciphertext, s.PrivKey.Ciphertext) {
		t.Fatalf("privkey ciphertext mismatch")
	}
}

func TestSerializeDeserializeBip32Root(t *testing.T) {
	priv := fixedPriv(0x02)
	pub := mustPub(t, priv)
	e := &Bip32RootEntry{
		Single:          SingleEntry{ID: []byte{0x01}, PubKey: PubKeyEntry{Compressed: pub}},
		Depth:           1,
		ChildNum:        0x80000000,
		SeedFingerprint: [4]byte{0xAA, 0xBB, 0xCC, 0xDD},
		DerivationPath:  []uint32{0x80000000},
	}
	for i := range e.Chaincode {
		e.Chaincode[i] = byte(i)
	}
	buf, err := Serialize(e)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := Deserialize(buf)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	gotRoot, ok := got.(*Bip32RootEntry)
	if !ok {
		t.Fatalf("expected *Bip32RootEntry, got %T", got)
	}
	if gotRoot.Depth != e.Depth || gotRoot.ChildNum != e.ChildNum {
		t.Fatalf("header mismatch")
	}
	if gotRoot.Chaincode != e.Chaincode {
		t.Fatalf("chaincode mismatch")
	}
	if len(gotRoot.DerivationPath) != 1 || gotRoot.DerivationPath[0] != 0x80000000 {
		t.Fatalf("derivation path mismatch: %v", gotRoot.DerivationPath)
	}
}

func TestBip32RootValidateRejectsDepthMismatch(t *testing.T) {
	e := &Bip32RootEntry{
		Depth:           2,
		SeedFingerprint: [4]byte{0x01, 0x02, 0x03, 0x04},
		DerivationPath:  []uint32{0x01},
	}
	if err := e.Validate(); err == nil {
		t.Fatalf("expected validation error for depth/path mismatch")
	}
}

func TestSerializeDeserializeMultisig(t *testing.T) {
	priv1 := fixedPriv(0x03)
	priv2 := fixedPriv(0x04)
	e := &MultisigEntry{
		M: 1,
		Members: []SingleEntry{
			{ID: []byte{0x01}, PubKey: PubKeyEntry{Compressed: mustPub(t, priv1)}},
			{ID: []byte{0x02}, PubKey: PubKeyEntry{Compressed: mustPub(t, priv2)}},
		},
	}
	buf, err := Serialize(e)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := Deserialize(buf)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	gotMulti, ok := got.(*MultisigEntry)
	if !ok {
		t.Fatalf("expected *MultisigEntry, got %T", got)
	}
	if gotMulti.M != 1 || len(gotMulti.Members) != 2 {
		t.Fatalf("multisig header mismatch: M=%d members=%d", gotMulti.M, len(gotMulti.Members))
	}
}

func TestMultisigValidateRejectsBadM(t *testing.T) {
	e := &MultisigEntry{M: 3, Members: []SingleEntry{{ID: []byte{1}}, {ID: []byte{2}}}}
	if err := e.Validate(); err == nil {
		t.Fatalf("expected validation error for M > N")
	}
}

func TestPubKeyEntryValidateRequiresAtLeastOneForm(t *testing.T) {
	var pk PubKeyEntry
	if err := pk.Validate(); err == nil {
		t.Fatalf("expected error for empty pubkey entry")
	}
}
