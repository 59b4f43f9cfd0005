package value

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"math"
	"sort"
)

func float64bits(f float64) uint64 { return math.Float64bits(f) }
func float32bits(f float32) uint32 { return math.Float32bits(f) }

// ContentHash computes the deterministic storage-ID hash over sorted labels
// and sorted (key, value) property pairs, per spec.md's content-hash
// invariant: two inserts with identical labels+properties must produce the
// same ID so the second is recognized as a duplicate.
//
// Hashing is bit-exact: labels are sorted and hashed in order; properties
// are sorted by key and each (key, value) pair is hashed in order; floats
// hash their IEEE-754 bit pattern (not their decimal text, which would
// collide -0/0 differently across platforms); lists hash their length
// followed by their elements; DateTime values hash their Unix seconds.
func ContentHash(labels []string, props map[string]Value) string {
	h := fnv.New64a()

	sortedLabels := append([]string(nil), labels...)
	sort.Strings(sortedLabels)
	for _, l := range sortedLabels {
		writeString(h, l)
	}

	for _, k := range SortedPropertyKeys(props) {
		writeString(h, k)
		writeValue(h, props[k])
	}

	sum := h.Sum64()
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, sum)
	return encodeHex(buf)
}

// EdgeContentHash computes the edge storage-ID hash over (fromID, toID,
// label, sorted properties), mirroring ContentHash's determinism rules.
func EdgeContentHash(fromID, toID, label string, props map[string]Value) string {
	h := fnv.New64a()
	writeString(h, fromID)
	writeString(h, toID)
	writeString(h, label)
	for _, k := range SortedPropertyKeys(props) {
		writeString(h, k)
		writeValue(h, props[k])
	}
	sum := h.Sum64()
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, sum)
	return encodeHex(buf)
}

func writeString(h hash.Hash64, s string) {
	_, _ = h.Write([]byte{0x01}) // tag byte separates adjacent fields
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(s)))
	_, _ = h.Write(length)
	_, _ = h.Write([]byte(s))
}

func writeValue(h hash.Hash64, v Value) {
	switch v.Kind() {
	case KindNull:
		_, _ = h.Write([]byte{0x00})
	case KindBoolean:
		if v.AsBool() {
			_, _ = h.Write([]byte{0x10, 0x01})
		} else {
			_, _ = h.Write([]byte{0x10, 0x00})
		}
	case KindNumber:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, float64bits(v.AsNumber()))
		_, _ = h.Write([]byte{0x20})
		_, _ = h.Write(buf)
	case KindString:
		_, _ = h.Write([]byte{0x30})
		writeString(h, v.AsString())
	case KindVector:
		vec := v.AsVector()
		_, _ = h.Write([]byte{0x40})
		writeLength(h, len(vec))
		for _, f := range vec {
			buf := make([]byte, 4)
			binary.BigEndian.PutUint32(buf, float32bits(f))
			_, _ = h.Write(buf)
		}
	case KindList, KindArray:
		items := v.AsList()
		_, _ = h.Write([]byte{0x50})
		writeLength(h, len(items))
		for _, it := range items {
			writeValue(h, it)
		}
	case KindDateTime:
		_, _ = h.Write([]byte{0x60})
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(v.AsDateTime().Time.Unix()))
		_, _ = h.Write(buf)
	case KindTimeWindow:
		_, _ = h.Write([]byte{0x70})
		tw := v.AsTimeWindow()
		buf := make([]byte, 16)
		binary.BigEndian.PutUint64(buf[:8], uint64(tw.Start.Unix()))
		binary.BigEndian.PutUint64(buf[8:], uint64(tw.End.Unix()))
		_, _ = h.Write(buf)
	}
}

func writeLength(h hash.Hash64, n int) {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(n))
	_, _ = h.Write(buf)
}

func encodeHex(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = digits[c>>4]
		out[i*2+1] = digits[c&0x0f]
	}
	return string(out)
}
