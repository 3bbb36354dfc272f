package hat

import (
	"sync"

	"armorycore/pkg/primitives"
	"armorycore/pkg/utils"
)

// PassphrasePrompt is invoked at most once per distinct key id during an
// unlock scope to obtain the passphrase protecting that key's KDF.
type PassphrasePrompt func(keyID []byte) ([]byte, error)

// unwrappedKey is the plaintext key material held for the duration of an
// unlock scope.
type unwrappedKey struct {
	secret *primitives.SecureBytes
}

// DecryptedDataContainer holds the unwrapped master keys for the duration
// of an explicit "unlock" scope. Unlock acquires a reentrant lock and
// invokes the passphrase prompt at most once per distinct key id; Lock
// zeroises the unwrapped material. Models spec.md §4.4's "reentrant lock"
// requirement with an explicit depth counter rather than a recursive
// primitive (spec.md §9 redesign note on the recursive reentrant wallet
// lock).
type DecryptedDataContainer struct {
	mu     sync.Mutex
	owner  uint64 // goroutine-scoped token of the current holder, 0 if unlocked
	depth  int
	keys   map[string]unwrappedKey
	prompt PassphrasePrompt
}

// NewDecryptedDataContainer constructs a locked container using prompt to
// ask for passphrases on demand.
func NewDecryptedDataContainer(prompt PassphrasePrompt) *DecryptedDataContainer {
	return &DecryptedDataContainer{keys: make(map[string]unwrappedKey), prompt: prompt}
}

// Unlock enters the unlock scope, incrementing the reentrant depth counter.
// The caller must call Lock exactly once per Unlock to release the scope.
func (c *DecryptedDataContainer) Unlock(token uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.depth > 0 && c.owner != token {
		return utils.NewKind(utils.PermissionDenied, "hat: container already held by another scope")
	}
	c.owner = token
	c.depth++
	return nil
}

// Lock releases one level of the unlock scope. At depth zero it zeroises
// all unwrapped key material.
func (c *DecryptedDataContainer) Lock(token uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.depth == 0 || c.owner != token {
		return utils.NewKind(utils.InvalidArgument, "hat: lock without matching unlock")
	}
	c.depth--
	if c.depth == 0 {
		for id, k := range c.keys {
			k.secret.Wipe()
			delete(c.keys, id)
		}
		c.owner = 0
	}
	return nil
}

// Key returns the unwrapped key material for keyID, invoking the
// passphrase prompt and deriving it via deriveFn if not already cached in
// this unlock scope.
func (c *DecryptedDataContainer) Key(token uint64, keyID []byte, deriveFn func(passphrase []byte) ([]byte, error)) (*primitives.SecureBytes, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.depth == 0 || c.owner != token {
		return nil, utils.NewKind(utils.PermissionDenied, "hat: key access outside an unlock scope")
	}
	idStr := string(keyID)
	if k, ok := c.keys[idStr]; ok {
		return k.secret, nil
	}
	passphrase, err := c.prompt(keyID)
	if err != nil {
		return nil, err
	}
	plain, err := deriveFn(passphrase)
	if err != nil {
		return nil, err
	}
	secret := primitives.NewSecureBytes(plain)
	c.keys[idStr] = unwrappedKey{secret: secret}
	return secret, nil
}
