package walletstore

import (
	"sync"

	"armorycore/pkg/utils"
	"armorycore/pkg/wire"
)

// Subspace is a logical named store of encrypted (data_key -> value)
// packets within an Env, with its own storage-key counter, gap set, and
// key-rotation cycle index. Opening a subspace with the wrong master key
// fails fatally at the first undecodable packet (spec.md §4.3 "Fatal
// errors").
type Subspace struct {
	env          *Env
	name         string
	masterSecret []byte

	writeMu sync.Mutex // blocks concurrent writers; overlay write transactions hold this

	mu               sync.RWMutex
	snapshot         map[string][]byte // published immutable view, swapped atomically under mu
	dataKeyToStorage map[string]uint32
	storageToDataKey map[uint32]string
	gaps             map[uint32]bool
	counter          uint32
	cycle            uint64
}

// OpenSubspace loads (or creates) the named subspace, replaying its on-disk
// packets under masterSecret and establishing a fresh session key-pair.
func OpenSubspace(env *Env, name string, masterSecret []byte) (*Subspace, error) {
	if err := env.ensureBucket(name); err != nil {
		return nil, utils.Wrap(err, "walletstore: ensure subspace bucket")
	}
	s := &Subspace{
		env:              env,
		name:             name,
		masterSecret:     append([]byte(nil), masterSecret...),
		snapshot:         map[string][]byte{},
		dataKeyToStorage: map[string]uint32{},
		storageToDataKey: map[uint32]string{},
		gaps:             map[uint32]bool{},
	}
	if err := s.replay(); err != nil {
		return nil, err
	}
	if err := s.writeCycleMarker(); err != nil {
		return nil, err
	}
	s.cycle++
	return s, nil
}

// replay walks the on-disk packets in storage-key order, decrypting each
// under the currently-active cycle key and advancing the cycle index
// whenever a "cycle" sentinel packet is encountered, per spec.md §4.3. A
// record overwritten in a later session keeps its earlier storage key but is
// sealed under that later session's keys, so a packet that fails under the
// active key is also tried under each later cycle index.
func (s *Subspace) replay() error {
	packets, err := s.env.loadPackets(s.name)
	if err != nil {
		return err
	}
	k := uint64(0)
	for _, p := range packets {
		keys := deriveCycleKeys(s.masterSecret, k)
		payload, err := decodePacket(p.data, p.storageKey, keys)
		for j := k + 1; err != nil && j <= uint64(len(packets)); j++ {
			if later, laterErr := decodePacket(p.data, p.storageKey, deriveCycleKeys(s.masterSecret, j)); laterErr == nil {
				payload, err = later, nil
			}
		}
		if err != nil {
			return utils.Wrapf(err, "walletstore: fatal replay failure at storage key %d", p.storageKey)
		}

		switch {
		case string(payload) == cycleLiteral:
			k++
		case len(payload) >= len(erasedLiteral) && string(payload[:len(erasedLiteral)]) == erasedLiteral:
			if err := s.applyTombstone(payload); err != nil {
				return err
			}
		default:
			if err := s.applyRecord(payload, p.storageKey); err != nil {
				return err
			}
		}
		if p.storageKey >= s.counter {
			s.counter = p.storageKey + 1
		}
	}
	s.cycle = k
	return nil
}

func (s *Subspace) applyTombstone(payload []byte) error {
	rest := payload[len(erasedLiteral):]
	ln, n, err := wire.ReadVarInt(rest)
	if err != nil || ln != 4 || len(rest[n:]) != 4 {
		return utils.NewKind(utils.IntegrityFailure, "walletstore: malformed tombstone")
	}
	erasedKey := beUint32(rest[n:])
	if dataKey, ok := s.storageToDataKey[erasedKey]; ok {
		delete(s.dataKeyToStorage, dataKey)
		delete(s.snapshot, dataKey)
		delete(s.storageToDataKey, erasedKey)
	}
	s.gaps[erasedKey] = true
	return nil
}

func (s *Subspace) applyRecord(payload []byte, storageKey uint32) error {
	dataKeyLen, n1, err := wire.ReadVarInt(payload)
	if err != nil {
		return utils.Wrap(err, "walletstore: malformed payload length prefix")
	}
	offset := n1
	if offset+int(dataKeyLen) > len(payload) {
		return utils.NewKind(utils.IntegrityFailure, "walletstore: truncated data_key")
	}
	dataKey := payload[offset : offset+int(dataKeyLen)]
	offset += int(dataKeyLen)

	valueLen, n2, err := wire.ReadVarInt(payload[offset:])
	if err != nil {
		return utils.Wrap(err, "walletstore: malformed value length prefix")
	}
	offset += n2
	if offset+int(valueLen) > len(payload) {
		return utils.NewKind(utils.IntegrityFailure, "walletstore: truncated value")
	}
	value := payload[offset : offset+int(valueLen)]

	dk := string(dataKey)
	s.dataKeyToStorage[dk] = storageKey
	s.storageToDataKey[storageKey] = dk
	s.snapshot[dk] = append([]byte(nil), value...)
	delete(s.gaps, storageKey)
	return nil
}

func (s *Subspace) nextCounter() uint32 {
	v := s.counter
	s.counter++
	return v
}

func (s *Subspace) writeCycleMarker() error {
	keys := deriveCycleKeys(s.masterSecret, s.cycle)
	storageKey := s.nextCounter()
	packet, err := encodePacket([]byte(cycleLiteral), storageKey, keys)
	if err != nil {
		return err
	}
	return s.env.writePacket(s.name, storageKey, packet)
}

// GapCount reports how many storage keys are currently tombstoned. Exposed
// for the key-rotation/erase test scenarios (spec.md §8 scenario 6).
func (s *Subspace) GapCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.gaps)
}

// Cycle reports the subspace's currently active key-rotation index.
func (s *Subspace) Cycle() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cycle
}

// Keys returns the data keys currently live in the subspace's published
// snapshot, in no particular order. Used to rebuild in-memory indexes (e.g.
// the asset tree's address account) that are not themselves persisted.
func (s *Subspace) Keys() [][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([][]byte, 0, len(s.snapshot))
	for k := range s.snapshot {
		out = append(out, []byte(k))
	}
	return out
}

// Put, Get, and Erase are single-operation convenience wrappers around the
// overlay transaction API for callers that don't need multi-op atomicity.
func (s *Subspace) Put(dataKey, value []byte) error {
	tx := s.BeginWrite()
	if err := tx.Put(dataKey, value); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Subspace) Get(dataKey []byte) ([]byte, bool) {
	tx := s.BeginRead()
	defer tx.Rollback()
	return tx.Get(dataKey)
}

func (s *Subspace) Erase(dataKey []byte) error {
	tx := s.BeginWrite()
	if err := tx.Erase(dataKey); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
