/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package quantiles

import (
	"encoding/binary"
	"math"

	"github.com/streamsketch/datasketch/common"
	"github.com/streamsketch/datasketch/internal/errs"
)

// ToCompactSlice serializes the sketch using only the bytes the current
// state needs: the occupied base-buffer prefix and exactly the active
// levels, back to back in ascending level order.
func (s *DoublesSketch) ToCompactSlice() ([]byte, error) {
	return s.toSlice(true)
}

// ToUpdatableSlice serializes the sketch with room for every level up to
// the highest currently active one, whether or not that level itself is
// occupied; this is larger than the compact form but leaves room for a
// caller to grow levels in place without reallocating header offsets.
func (s *DoublesSketch) ToUpdatableSlice() ([]byte, error) {
	return s.toSlice(false)
}

func (s *DoublesSketch) toSlice(compact bool) ([]byte, error) {
	if s.IsEmpty() {
		buf := make([]byte, dataStartAdrEmpty)
		buf[preIntsByteAdr] = preIntsEmpty
		buf[serVerByteAdr] = serVerDoubles
		buf[familyByteAdr] = familyIDQuantiles
		buf[flagsByteAdr] = emptyBitMask | compactFlagByte(compact)
		binary.LittleEndian.PutUint16(buf[kShortAdr:], uint16(s.k))
		return buf, nil
	}

	numLevels := len(s.levels)
	var payload []float64
	if compact {
		payload = append(payload, s.baseBuffer...)
		for l := 0; l < numLevels; l++ {
			if s.levelActive(l) {
				payload = append(payload, s.levels[l]...)
			}
		}
	} else {
		padded := make([]float64, 2*s.k)
		copy(padded, s.baseBuffer)
		payload = append(payload, padded...)
		for l := 0; l < numLevels; l++ {
			lvl := make([]float64, s.k)
			if s.levelActive(l) {
				copy(lvl, s.levels[l])
			}
			payload = append(payload, lvl...)
		}
	}

	buf := make([]byte, dataStartAdrFull+8*len(payload))
	buf[preIntsByteAdr] = preIntsFull
	buf[serVerByteAdr] = serVerDoubles
	buf[familyByteAdr] = familyIDQuantiles
	buf[flagsByteAdr] = compactFlagByte(compact)
	binary.LittleEndian.PutUint16(buf[kShortAdr:], uint16(s.k))
	binary.LittleEndian.PutUint64(buf[nLongAdr:], s.n)
	binary.LittleEndian.PutUint64(buf[minItemDoubleAdr:], math.Float64bits(*s.minItem))
	binary.LittleEndian.PutUint64(buf[maxItemDoubleAdr:], math.Float64bits(*s.maxItem))
	binary.LittleEndian.PutUint64(buf[bitPatternLongAdr:], s.bitPattern)
	items := s.serde.SerializeManyToSlice(payload)
	copy(buf[dataStartAdrFull:], items)
	return buf, nil
}

func compactFlagByte(compact bool) byte {
	if compact {
		return compactBitMask
	}
	return 0
}

// NewDoublesSketchFromSlice deserializes a byte image produced by
// ToCompactSlice or ToUpdatableSlice. The returned sketch gets a fresh
// random-bit source seeded from seed; this only affects future
// compactions, never the state just restored.
func NewDoublesSketchFromSlice(mem []byte, seed int64) (*DoublesSketch, error) {
	if len(mem) < dataStartAdrEmpty {
		return nil, errs.SerializationError("input too small: %d bytes", len(mem))
	}
	if getFamilyID(mem) != familyIDQuantiles {
		return nil, errs.SerializationError("unrecognized family id: %d", getFamilyID(mem))
	}
	if getSerVer(mem) != serVerDoubles {
		return nil, errs.SerializationError("unsupported serialization version: %d", getSerVer(mem))
	}
	preInts := getPreInts(mem)
	if getEmptyFlag(mem) {
		if preInts != preIntsEmpty {
			return nil, errs.SerializationError("empty image must carry preInts=%d, got %d", preIntsEmpty, preInts)
		}
	} else if preInts != preIntsFull {
		return nil, errs.SerializationError("non-empty image must carry preInts=%d, got %d", preIntsFull, preInts)
	}
	k := getK(mem)
	sk, err := NewDoublesSketch(k, seed)
	if err != nil {
		return nil, err
	}
	if getEmptyFlag(mem) {
		return sk, nil
	}
	if len(mem) < dataStartAdrFull {
		return nil, errs.SerializationError("non-empty image too small: %d bytes", len(mem))
	}

	n := getPreambleN(mem)
	bitPattern := getPreambleBitPattern(mem)
	minItem := math.Float64frombits(binary.LittleEndian.Uint64(mem[minItemDoubleAdr:]))
	maxItem := math.Float64frombits(binary.LittleEndian.Uint64(mem[maxItemDoubleAdr:]))

	numPayloadDoubles := (len(mem) - dataStartAdrFull) / 8
	items, err := sk.serde.DeserializeManyFromSlice(mem, dataStartAdrFull, numPayloadDoubles)
	if err != nil {
		return nil, err
	}

	baseBufferCount := int(n % uint64(2*k))
	if !getCompactFlag(mem) {
		// Updatable form: base buffer region is a fixed 2k, so only the
		// first baseBufferCount doubles of it are meaningful.
		sk.baseBuffer = append(sk.baseBuffer, items[:baseBufferCount]...)
		offset := 2 * k
		for l := 0; bitPattern>>uint(l) != 0; l++ {
			lvl := items[offset : offset+k]
			if bitPattern&(1<<uint(l)) != 0 {
				sk.setLevel(l, append([]float64(nil), lvl...))
			}
			offset += k
		}
	} else {
		sk.baseBuffer = append(sk.baseBuffer, items[:baseBufferCount]...)
		offset := baseBufferCount
		for l := 0; bitPattern>>uint(l) != 0; l++ {
			if bitPattern&(1<<uint(l)) != 0 {
				sk.setLevel(l, append([]float64(nil), items[offset:offset+k]...))
				offset += k
			}
		}
	}
	sk.n = n
	sk.bitPattern = bitPattern
	sk.minItem = &minItem
	sk.maxItem = &maxItem
	return sk, nil
}

// Wrap returns a read-only *DoublesSketch view over mem, which must hold
// a valid compact or updatable image. mem is not copied and must not be
// mutated by the caller while the returned sketch is in use; Update,
// Reset, and MergeFrom against the result fail with an errs.ReadOnly
// error instead of silently operating on a private copy.
func Wrap(mem []byte, seed int64) (*DoublesSketch, error) {
	sk, err := NewDoublesSketchFromSlice(mem, seed)
	if err != nil {
		return nil, err
	}
	sk.backing = common.NewReadOnlySegment(mem)
	return sk, nil
}

// WritableWrap returns a writable *DoublesSketch view initially backed by
// mem. Updates that would grow the sketch's updatable serialized size
// past mem's capacity invoke segmentRequest for a larger backing segment;
// the sketch's reported backing changes identity to whatever
// segmentRequest returns. If segmentRequest is nil, growth past capacity
// migrates the sketch to ordinary on-heap storage instead of failing.
func WritableWrap(mem []byte, seed int64, segmentRequest common.SegmentRequestFn) (*DoublesSketch, error) {
	sk, err := NewDoublesSketchFromSlice(mem, seed)
	if err != nil {
		return nil, err
	}
	sk.backing = common.NewHeapSegment(mem)
	sk.segmentRequest = segmentRequest
	return sk, nil
}

// BackingSegment returns the Segment a Wrap/WritableWrap-constructed
// sketch is currently backed by, or nil for an ordinary on-heap sketch.
func (s *DoublesSketch) BackingSegment() common.Segment {
	return s.backing
}
