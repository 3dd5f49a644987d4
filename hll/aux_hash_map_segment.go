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

package hll

import (
	"fmt"

	"github.com/streamsketch/datasketch/common"
)

// segmentAuxHashMap is the segment-backed counterpart of auxHashMap: same
// open-addressing probe sequence and pair encoding, but the slot array
// lives in a common.Segment (four bytes per slot, little-endian) instead
// of a plain []int. It exists so a sparse region of a HLL_4 sketch's
// overflow table can sit inside a caller-supplied writable segment rather
// than always being promoted to a private heap allocation.
//
// Growth beyond the current segment's capacity asks segmentRequest for a
// bigger one; with no segmentRequest it spills the remaining entries into
// an ordinary auxHashMap and all further operations delegate there.
type segmentAuxHashMap struct {
	lgConfigK      int
	lgAuxArrInts   int
	auxCount       int
	seg            common.Segment
	segmentRequest common.SegmentRequestFn
	spilled        *auxHashMap
}

// newSegmentAuxHashMap returns a segmentAuxHashMap whose slot array is
// carved out of seg starting at byte offset 0. seg must be at least
// 4<<lgAuxArrInts bytes; segmentRequest may be nil, in which case growth
// spills to an on-heap auxHashMap.
func newSegmentAuxHashMap(seg common.Segment, lgAuxArrInts int, lgConfigK int, segmentRequest common.SegmentRequestFn) (*segmentAuxHashMap, error) {
	need := 4 << lgAuxArrInts
	if seg.Len() < need {
		return nil, fmt.Errorf("segment too small for aux map: need %d, have %d", need, seg.Len())
	}
	a := &segmentAuxHashMap{
		lgConfigK:      lgConfigK,
		lgAuxArrInts:   lgAuxArrInts,
		seg:            seg,
		segmentRequest: segmentRequest,
	}
	for i := 0; i < 1<<lgAuxArrInts; i++ {
		if err := seg.PutUint32(i<<2, uint32(empty)); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *segmentAuxHashMap) slotCount() int {
	return 1 << a.lgAuxArrInts
}

func (a *segmentAuxHashMap) getPair(index int) int {
	return int(int32(a.seg.GetUint32(index << 2)))
}

func (a *segmentAuxHashMap) putPair(index int, p int) error {
	return a.seg.PutUint32(index<<2, uint32(int32(p)))
}

// find mirrors findAuxHashMap's probe sequence against the segment.
func (a *segmentAuxHashMap) find(slotNo int) (int, error) {
	if a.lgAuxArrInts >= a.lgConfigK {
		return 0, fmt.Errorf("lgAuxArrInts >= lgConfigK")
	}
	auxArrMask := a.slotCount() - 1
	configKMask := (1 << a.lgConfigK) - 1
	probe := slotNo & auxArrMask
	loopIndex := probe
	for {
		arrVal := a.getPair(probe)
		if arrVal == empty {
			return ^probe, nil
		} else if slotNo == (arrVal & configKMask) {
			return probe, nil
		}
		stride := (slotNo >> a.lgAuxArrInts) | 1
		probe = (probe + stride) & auxArrMask
		if probe == loopIndex {
			return 0, fmt.Errorf("key not found and no empty slots")
		}
	}
}

func (a *segmentAuxHashMap) mustFindValueFor(slotNo int) (int, error) {
	if a.spilled != nil {
		return a.spilled.mustFindValueFor(slotNo)
	}
	index, err := a.find(slotNo)
	if err != nil {
		return 0, err
	}
	if index < 0 {
		return 0, fmt.Errorf("SlotNo not found: %d", slotNo)
	}
	return getPairValue(a.getPair(index)), nil
}

func (a *segmentAuxHashMap) mustReplace(slotNo int, value int) error {
	if a.spilled != nil {
		return a.spilled.mustReplace(slotNo, value)
	}
	index, err := a.find(slotNo)
	if err != nil {
		return err
	}
	if index < 0 {
		return fmt.Errorf("pair not found: %v", pairString(pair(slotNo, value)))
	}
	return a.putPair(index, pair(slotNo, value))
}

func (a *segmentAuxHashMap) mustAdd(slotNo int, value int) error {
	if a.spilled != nil {
		return a.spilled.mustAdd(slotNo, value)
	}
	index, err := a.find(slotNo)
	if err != nil {
		return err
	}
	p := pair(slotNo, value)
	if index >= 0 {
		return fmt.Errorf("found a slotNo that should not be there: %s", pairString(p))
	}
	if err := a.putPair(^index, p); err != nil {
		return err
	}
	a.auxCount++
	return a.checkGrow()
}

func (a *segmentAuxHashMap) getAuxCount() int {
	if a.spilled != nil {
		return a.spilled.getAuxCount()
	}
	return a.auxCount
}

func (a *segmentAuxHashMap) getLgAuxArrInts() int {
	if a.spilled != nil {
		return a.spilled.getLgAuxArrInts()
	}
	return a.lgAuxArrInts
}

func (a *segmentAuxHashMap) iterator() pairIterator {
	if a.spilled != nil {
		return a.spilled.iterator()
	}
	arr := make([]int, a.slotCount())
	for i := range arr {
		arr[i] = a.getPair(i)
	}
	return newIntArrayPairIterator(arr, a.lgConfigK)
}

// checkGrow doubles capacity (via segmentRequest, or spills to heap when
// no segmentRequest was supplied) once occupancy crosses the same 3/4
// threshold auxHashMap uses.
func (a *segmentAuxHashMap) checkGrow() error {
	if (resizeDenom * a.auxCount) <= (resizeNumber * a.slotCount()) {
		return nil
	}
	return a.grow()
}

func (a *segmentAuxHashMap) grow() error {
	oldSlots := a.slotCount()
	oldPairs := make([]int, oldSlots)
	for i := 0; i < oldSlots; i++ {
		oldPairs[i] = a.getPair(i)
	}
	newLgAuxArrInts := a.lgAuxArrInts + 1
	needBytes := 4 << newLgAuxArrInts

	if a.segmentRequest == nil {
		heapMap := newAuxHashMap(newLgAuxArrInts, a.lgConfigK)
		for _, p := range oldPairs {
			if p != empty {
				if err := heapMap.mustAdd(getPairLow26(p)&((1<<a.lgConfigK)-1), getPairValue(p)); err != nil {
					return err
				}
			}
		}
		a.spilled = heapMap
		return nil
	}

	seg, err := a.segmentRequest(needBytes)
	if err != nil {
		return err
	}
	for i := 0; i < 1<<newLgAuxArrInts; i++ {
		if err := seg.PutUint32(i<<2, uint32(empty)); err != nil {
			return err
		}
	}
	a.seg = seg
	a.lgAuxArrInts = newLgAuxArrInts
	configKMask := (1 << a.lgConfigK) - 1
	for _, p := range oldPairs {
		if p != empty {
			idx, err := a.find(p & configKMask)
			if err != nil {
				return err
			}
			if err := a.putPair(^idx, p); err != nil {
				return err
			}
		}
	}
	return nil
}
