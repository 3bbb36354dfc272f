// Package walletstore implements the Encrypted Wallet Store: a memory-mapped
// B-tree physical layer (go.etcd.io/bbolt) carrying per-record IES+HMAC
// encrypted packets, grouped into named subspaces with an overlay
// transaction model. Modeled on the teacher's former core/wallet.go
// persistence helpers, generalized from a single flat keystore to the
// subspace/overlay design spec.md §4.3 describes.
package walletstore

import (
	"time"

	bolt "go.etcd.io/bbolt"

	"armorycore/pkg/utils"
)

// Env is the physical mmap B-tree handle. Each named subspace is backed by
// its own top-level bbolt bucket so that per-subspace iteration stays in
// storage-key order without cross-subspace interference.
type Env struct {
	db *bolt.DB
}

// OpenEnv memory-maps path, creating it if absent.
func OpenEnv(path string) (*Env, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, utils.Wrap(err, "walletstore: open environment")
	}
	return &Env{db: db}, nil
}

// Close unmaps the environment.
func (e *Env) Close() error {
	if err := e.db.Close(); err != nil {
		return utils.Wrap(err, "walletstore: close environment")
	}
	return nil
}

// ensureBucket physically isolates a subspace's packets under its own bbolt
// bucket, named identically to the subspace.
func (e *Env) ensureBucket(name string) error {
	return e.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
}

// loadPackets returns every raw packet in the named subspace's bucket in
// storage-key order (bbolt's cursor iterates keys in byte order, and
// storage keys are encoded big-endian so byte order equals numeric order).
func (e *Env) loadPackets(name string) ([]rawPacket, error) {
	var out []rawPacket
	err := e.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(name))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			storageKey := beUint32(k)
			packet := append([]byte(nil), v...)
			out = append(out, rawPacket{storageKey: storageKey, data: packet})
		}
		return nil
	})
	if err != nil {
		return nil, utils.Wrap(err, "walletstore: load packets")
	}
	return out, nil
}

// writePacket physically commits one packet write. Each call is its own
// atomic bbolt transaction; overlay transactions call this only at commit
// time (see Tx.Commit), never per pending op.
func (e *Env) writePacket(name string, storageKey uint32, packet []byte) error {
	return e.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return err
		}
		return b.Put(beBytes(storageKey), packet)
	})
}

// metaBucket holds small plaintext records that must be readable before any
// subspace's master secret is known — principally the KDF parameters used to
// derive that master secret from a passphrase. Nothing sensitive is ever
// stored here: a KDF salt and work factor are not secrets, only the
// passphrase and the key they derive are.
const metaBucket = "meta"

// PutMeta writes a plaintext record into the environment's meta bucket.
func (e *Env) PutMeta(key string, value []byte) error {
	return e.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(metaBucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), value)
	})
}

// GetMeta reads a plaintext record from the environment's meta bucket.
func (e *Env) GetMeta(key string) ([]byte, bool) {
	var out []byte
	var ok bool
	_ = e.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(metaBucket))
		if b == nil {
			return nil
		}
		v := b.Get([]byte(key))
		if v == nil {
			return nil
		}
		out = append([]byte(nil), v...)
		ok = true
		return nil
	})
	return out, ok
}

type rawPacket struct {
	storageKey uint32
	data       []byte
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func beBytes(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}
