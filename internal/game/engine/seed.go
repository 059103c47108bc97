package engine

import "hash/fnv"

// SeedFromRoomID derives the deterministic shuffle seed from a room id, so a
// room's initial layout is recoverable from the id alone.
func SeedFromRoomID(roomID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(roomID))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}
