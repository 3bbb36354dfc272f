package walletstore

import "armorycore/pkg/utils"

const (
	opPut = iota
	opErase
)

type txOp struct {
	kind    int
	dataKey []byte
	value   []byte
}

// Tx is an overlay transaction over a Subspace's published snapshot: reads
// consult pending ops first, then the begin-time snapshot; a write
// transaction holds the subspace's write mutex until Commit or Rollback.
// Per spec.md §4.3 "Overlay transactions".
type Tx struct {
	subspace     *Subspace
	write        bool
	baseSnapshot map[string][]byte
	pendingOps   []txOp
	done         bool
}

// BeginRead opens a read-only overlay transaction against the current
// published snapshot. It never blocks on writers.
func (s *Subspace) BeginRead() *Tx {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()
	return &Tx{subspace: s, write: false, baseSnapshot: snap}
}

// BeginWrite acquires the subspace's write mutex and opens a write overlay
// transaction. The mutex is released on Commit or Rollback.
func (s *Subspace) BeginWrite() *Tx {
	s.writeMu.Lock()
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()
	return &Tx{subspace: s, write: true, baseSnapshot: snap}
}

// Get consults pending ops (most recent first) then the begin-time
// snapshot.
func (tx *Tx) Get(dataKey []byte) ([]byte, bool) {
	dk := string(dataKey)
	for i := len(tx.pendingOps) - 1; i >= 0; i-- {
		op := tx.pendingOps[i]
		if string(op.dataKey) != dk {
			continue
		}
		if op.kind == opErase {
			return nil, false
		}
		return op.value, true
	}
	v, ok := tx.baseSnapshot[dk]
	return v, ok
}

// Put appends a pending write. Only valid on a write transaction.
func (tx *Tx) Put(dataKey, value []byte) error {
	if !tx.write {
		return utils.NewKind(utils.PermissionDenied, "walletstore: put on read-only transaction")
	}
	tx.pendingOps = append(tx.pendingOps, txOp{
		kind:    opPut,
		dataKey: append([]byte(nil), dataKey...),
		value:   append([]byte(nil), value...),
	})
	return nil
}

// Erase appends a pending erasure. Only valid on a write transaction.
func (tx *Tx) Erase(dataKey []byte) error {
	if !tx.write {
		return utils.NewKind(utils.PermissionDenied, "walletstore: erase on read-only transaction")
	}
	tx.pendingOps = append(tx.pendingOps, txOp{kind: opErase, dataKey: append([]byte(nil), dataKey...)})
	return nil
}

// Iterate returns a consistent view of the snapshot at begin-time with
// pending ops applied, as an independent map.
func (tx *Tx) Iterate() map[string][]byte {
	out := make(map[string][]byte, len(tx.baseSnapshot))
	for k, v := range tx.baseSnapshot {
		out[k] = v
	}
	for _, op := range tx.pendingOps {
		dk := string(op.dataKey)
		if op.kind == opErase {
			delete(out, dk)
		} else {
			out[dk] = op.value
		}
	}
	return out
}

// Commit applies pending ops to a fresh snapshot map (copy-on-write) and
// physically persists the corresponding packets, then publishes the new
// snapshot via the subspace's guarded pointer swap. Read transactions are
// a no-op.
func (tx *Tx) Commit() error {
	if tx.done {
		return utils.NewKind(utils.InvalidArgument, "walletstore: transaction already closed")
	}
	if !tx.write {
		tx.done = true
		return nil
	}
	s := tx.subspace
	defer func() {
		s.writeMu.Unlock()
		tx.done = true
	}()

	newSnapshot := make(map[string][]byte, len(tx.baseSnapshot))
	for k, v := range tx.baseSnapshot {
		newSnapshot[k] = v
	}

	keys := deriveCycleKeys(s.masterSecret, s.cycle)
	for _, op := range tx.pendingOps {
		dk := string(op.dataKey)
		switch op.kind {
		case opPut:
			storageKey, existing := s.dataKeyToStorage[dk]
			if !existing {
				storageKey = s.nextCounter()
			}
			payload := buildPayload(op.dataKey, op.value)
			packet, err := encodePacket(payload, storageKey, keys)
			if err != nil {
				return err
			}
			if err := s.env.writePacket(s.name, storageKey, packet); err != nil {
				return err
			}
			s.dataKeyToStorage[dk] = storageKey
			s.storageToDataKey[storageKey] = dk
			delete(s.gaps, storageKey)
			newSnapshot[dk] = append([]byte(nil), op.value...)
		case opErase:
			oldStorageKey, existing := s.dataKeyToStorage[dk]
			if !existing {
				return utils.NewKind(utils.NotFound, "walletstore: erase of unknown data key")
			}
			delete(s.dataKeyToStorage, dk)
			delete(s.storageToDataKey, oldStorageKey)
			s.gaps[oldStorageKey] = true
			delete(newSnapshot, dk)

			tombstoneKey := s.nextCounter()
			packet, err := encodePacket(buildErasedPayload(oldStorageKey), tombstoneKey, keys)
			if err != nil {
				return err
			}
			if err := s.env.writePacket(s.name, tombstoneKey, packet); err != nil {
				return err
			}
		}
	}

	s.mu.Lock()
	s.snapshot = newSnapshot
	s.mu.Unlock()
	return nil
}

// Rollback discards pending ops. Safe to call after Commit (no-op).
func (tx *Tx) Rollback() {
	if tx.done {
		return
	}
	if tx.write {
		tx.subspace.writeMu.Unlock()
	}
	tx.pendingOps = nil
	tx.done = true
}
