package primitives

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"sync"

	"armorycore/pkg/utils"
)

// fortunaRekeyBlocks bounds how many 16-byte blocks a single AES-CTR key is
// used for before the generator opportunistically reseeds itself with fresh
// OS entropy (crypto/rand), limiting the blast radius of a key compromise. Modeled after
// Fortuna's own generator reseed discipline (Ferguson/Schneier), simplified
// to a single entropy pool rather than the full 32-pool rotation scheme.
const fortunaRekeyBlocks = 1 << 16

// Fortuna is a counter-mode-cipher PRNG reseeded opportunistically from an
// entropy pool. It is meant for non-critical randomness — IVs, session ids,
// ephemeral nonces — where unpredictability matters but a compromise is not
// catastrophic. Critical secrets (seed generation) must use the OS entropy
// source (crypto/rand) directly instead of this generator.
type Fortuna struct {
	mu          sync.Mutex
	pool        []byte // accumulated entropy, folded into the key on reseed
	key         [32]byte
	counter     [aes.BlockSize]byte
	blocksSince uint64
	seeded      bool
}

// NewFortuna constructs a generator and seeds it once from the OS entropy
// source.
func NewFortuna() (*Fortuna, error) {
	f := &Fortuna{}
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, utils.Wrap(err, "seed fortuna from OS entropy")
	}
	f.Reseed(seed)
	return f, nil
}

// Reseed mixes additional entropy into the pool. Safe for concurrent use.
func (f *Fortuna) Reseed(entropy []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pool = append(f.pool, entropy...)
	mixed := sha256.Sum256(append(f.key[:], f.pool...))
	f.key = mixed
	f.pool = f.pool[:0]
	f.seeded = true
	f.blocksSince = 0
}

// Read fills b with pseudorandom bytes, implementing io.Reader.
func (f *Fortuna) Read(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.seeded {
		return 0, utils.NewKind(utils.InvalidArgument, "fortuna generator not seeded")
	}

	block, err := aes.NewCipher(f.key[:])
	if err != nil {
		return 0, utils.Wrap(err, "fortuna aes cipher")
	}

	out := make([]byte, 0, len(b))
	for len(out) < len(b) {
		if f.blocksSince >= fortunaRekeyBlocks {
			reseed := make([]byte, 32)
			if _, err := rand.Read(reseed); err == nil {
				mixed := sha256.Sum256(append(f.key[:], reseed...))
				f.key = mixed
				block, _ = aes.NewCipher(f.key[:])
			}
			f.blocksSince = 0
		}
		buf := make([]byte, aes.BlockSize)
		block.Encrypt(buf, f.counter[:])
		incrementCounter(&f.counter)
		f.blocksSince++
		out = append(out, buf...)
	}
	copy(b, out[:len(b)])
	return len(b), nil
}

func incrementCounter(ctr *[aes.BlockSize]byte) {
	for i := len(ctr) - 1; i >= 0; i-- {
		ctr[i]++
		if ctr[i] != 0 {
			return
		}
	}
}

// RandomBytes is a convenience for one-shot reads from a Fortuna instance.
func (f *Fortuna) RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := f.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// CryptoRandBytes reads n bytes directly from the OS entropy source. Used
// for critical secrets such as seed generation and ephemeral ECDH scalars,
// never routed through Fortuna.
func CryptoRandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, utils.Wrap(err, "read OS entropy")
	}
	return b, nil
}
