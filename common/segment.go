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

package common

import (
	"encoding/binary"

	"github.com/streamsketch/datasketch/internal/errs"
)

// Segment is a byte-addressable view over a region of memory, on-heap or
// (by a future backing implementation) off-heap, read-only or writable.
// All multi-byte access is little-endian, matching this module's wire
// format throughout.
type Segment interface {
	Len() int
	IsReadOnly() bool
	IsOffHeap() bool

	GetByte(offset int) byte
	PutByte(offset int, v byte) error

	GetUint32(offset int) uint32
	PutUint32(offset int, v uint32) error

	GetUint64(offset int) uint64
	PutUint64(offset int, v uint64) error

	// Bytes returns the live underlying slice for bulk copies and interop
	// with the []byte-oriented serialization helpers. Mutating the
	// returned slice of a read-only segment is a caller error; it is
	// exposed read-only segments anyway only so callers can read a
	// compact/updatable image back out.
	Bytes() []byte
}

// SegmentRequestFn requests a new writable segment able to hold at least
// minBytes, used when a segment-backed sketch must grow past its current
// region. A sketch with no SegmentRequestFn migrates to on-heap storage
// instead of failing the update that triggered the growth.
type SegmentRequestFn func(minBytes int) (Segment, error)

type heapSegment struct {
	buf []byte
}

// NewHeapSegment wraps buf as a writable, on-heap Segment. buf is not
// copied; callers that hand buf to a sketch must not mutate it
// concurrently.
func NewHeapSegment(buf []byte) Segment {
	return &heapSegment{buf: buf}
}

func (s *heapSegment) Len() int          { return len(s.buf) }
func (s *heapSegment) IsReadOnly() bool  { return false }
func (s *heapSegment) IsOffHeap() bool   { return false }
func (s *heapSegment) Bytes() []byte     { return s.buf }
func (s *heapSegment) GetByte(o int) byte { return s.buf[o] }

func (s *heapSegment) PutByte(o int, v byte) error {
	s.buf[o] = v
	return nil
}

func (s *heapSegment) GetUint32(o int) uint32 {
	return binary.LittleEndian.Uint32(s.buf[o : o+4])
}

func (s *heapSegment) PutUint32(o int, v uint32) error {
	binary.LittleEndian.PutUint32(s.buf[o:o+4], v)
	return nil
}

func (s *heapSegment) GetUint64(o int) uint64 {
	return binary.LittleEndian.Uint64(s.buf[o : o+8])
}

func (s *heapSegment) PutUint64(o int, v uint64) error {
	binary.LittleEndian.PutUint64(s.buf[o:o+8], v)
	return nil
}

type readOnlySegment struct {
	buf []byte
}

// NewReadOnlySegment wraps buf as a read-only Segment. Every Put method
// returns an errs.ReadOnlyError instead of touching buf.
func NewReadOnlySegment(buf []byte) Segment {
	return &readOnlySegment{buf: buf}
}

func (s *readOnlySegment) Len() int          { return len(s.buf) }
func (s *readOnlySegment) IsReadOnly() bool  { return true }
func (s *readOnlySegment) IsOffHeap() bool   { return false }
func (s *readOnlySegment) Bytes() []byte     { return s.buf }
func (s *readOnlySegment) GetByte(o int) byte { return s.buf[o] }

func (s *readOnlySegment) PutByte(int, byte) error {
	return errs.ReadOnlyError("segment is read-only")
}

func (s *readOnlySegment) GetUint32(o int) uint32 {
	return binary.LittleEndian.Uint32(s.buf[o : o+4])
}

func (s *readOnlySegment) PutUint32(int, uint32) error {
	return errs.ReadOnlyError("segment is read-only")
}

func (s *readOnlySegment) GetUint64(o int) uint64 {
	return binary.LittleEndian.Uint64(s.buf[o : o+8])
}

func (s *readOnlySegment) PutUint64(int, uint64) error {
	return errs.ReadOnlyError("segment is read-only")
}
