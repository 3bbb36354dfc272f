package hat

import "armorycore/pkg/primitives"

func fixedPriv(b byte) []byte {
	priv := make([]byte, 32)
	for i := range priv {
		priv[i] = b
	}
	priv[31] ^= 0x01
	return priv
}

func testPubkeyFromPriv(priv []byte) ([]byte, error) {
	return primitives.PubkeyFromPriv(priv)
}
