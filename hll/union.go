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

	"github.com/streamsketch/datasketch/internal"
)

// Union merges HLL sketches of arbitrary lgK, target type, and phase into
// a single internal "gadget" sketch (always HLL_8, at the union's
// configured lgMaxK). The gadget relationship is composition: the union
// owns exactly one sketch and promotes it in place as sources arrive.
type Union interface {
	HllSketch
	UpdateSketch(sketch HllSketch) error
	GetResult(tgtHllType TgtHllType) (HllSketch, error)
}

type unionImpl struct {
	lgMaxK int
	gadget HllSketch
}

func (u *unionImpl) GetUpperBound(numStdDev int) (float64, error) {
	return u.gadget.GetUpperBound(numStdDev)
}

func (u *unionImpl) GetLowerBound(numStdDev int) (float64, error) {
	return u.gadget.GetLowerBound(numStdDev)
}

func (u *unionImpl) couponUpdate(coupon int) (hllSketchStateI, error) {
	return u.gadget.(*hllSketchState).couponUpdate(coupon)
}

func (u *unionImpl) iterator() pairIterator {
	return u.gadget.(*hllSketchState).iterator()
}

func (u *unionImpl) GetSerializationVersion() int {
	return u.gadget.GetSerializationVersion()
}

// GetResult materializes an independent sketch of the requested register
// width by copying the gadget; any pending register-scan recompute
// (after an HLL-vs-HLL merge) happens first.
func (u *unionImpl) GetResult(tgtHllType TgtHllType) (HllSketch, error) {
	if err := checkRebuildCurMinNumKxQ(u.gadget); err != nil {
		return nil, err
	}
	return u.gadget.CopyAs(tgtHllType)
}

func NewUnionWithDefault() (Union, error) {
	return NewUnion(defaultLgK)
}

func NewUnion(lgMaxK int) (Union, error) {
	lgK, err := checkLgK(lgMaxK)
	if err != nil {
		return nil, err
	}
	sk, err := NewHllSketch(lgK, TgtHllTypeHll8)
	if err != nil {
		return nil, err
	}
	return &unionImpl{
		lgMaxK: lgK,
		gadget: sk,
	}, nil
}

func DeserializeUnion(byteArray []byte) (Union, error) {
	lgK, err := checkLgK(extractLgK(byteArray))
	if err != nil {
		return nil, err
	}
	sk, err := NewHllSketchFromSlice(byteArray, false)
	if err != nil {
		return nil, err
	}
	union, err := NewUnion(lgK)
	if err != nil {
		return nil, err
	}
	if err := union.UpdateSketch(sk); err != nil {
		return nil, err
	}
	return union, nil
}

func (u *unionImpl) Copy() (HllSketch, error) {
	return u.GetResult(u.gadget.GetTgtHllType())
}

func (u *unionImpl) CopyAs(tgtHllType TgtHllType) (HllSketch, error) {
	return u.GetResult(tgtHllType)
}

func (u *unionImpl) GetCompositeEstimate() (float64, error) {
	return u.gadget.GetCompositeEstimate()
}

func (u *unionImpl) GetEstimate() (float64, error) {
	return u.gadget.GetCompositeEstimate()
}

func (u *unionImpl) UpdateUInt64(datum uint64) error {
	return u.gadget.UpdateUInt64(datum)
}

func (u *unionImpl) UpdateInt64(datum int64) error {
	return u.gadget.UpdateInt64(datum)
}

func (u *unionImpl) UpdateSlice(datum []byte) error {
	return u.gadget.UpdateSlice(datum)
}

func (u *unionImpl) UpdateString(datum string) error {
	return u.gadget.UpdateString(datum)
}

// UpdateSketch folds source into the union's gadget: coupon-phase sources are
// replayed coupon-by-coupon; HLL-phase sources are register-merged,
// downsampling whichever side has the larger lgK first when they differ.
func (u *unionImpl) UpdateSketch(source HllSketch) error {
	return u.unionInto(source)
}

func (u *unionImpl) GetLgConfigK() int {
	return u.gadget.GetLgConfigK()
}

func (u *unionImpl) GetTgtHllType() TgtHllType {
	return u.gadget.GetTgtHllType()
}

func (u *unionImpl) GetCurMode() curMode {
	return u.gadget.GetCurMode()
}

func (u *unionImpl) IsEmpty() bool {
	return u.gadget.IsEmpty()
}

func (u *unionImpl) ToCompactSlice() ([]byte, error) {
	if err := checkRebuildCurMinNumKxQ(u.gadget); err != nil {
		return nil, err
	}
	return u.gadget.ToCompactSlice()
}

func (u *unionImpl) ToUpdatableSlice() ([]byte, error) {
	if err := checkRebuildCurMinNumKxQ(u.gadget); err != nil {
		return nil, err
	}
	return u.gadget.ToUpdatableSlice()
}

func (u *unionImpl) GetUpdatableSerializationBytes() int {
	return u.gadget.GetUpdatableSerializationBytes()
}

func (u *unionImpl) Reset() error {
	sk, err := NewHllSketch(u.lgMaxK, TgtHllTypeHll8)
	if err != nil {
		return err
	}
	u.gadget = sk
	return nil
}

// unionInto is the merge-matrix dispatch. source's curMode and lgK
// relative to the gadget determine the action taken; see spec §4.2.
func (u *unionImpl) unionInto(source HllSketch) error {
	if u.gadget.GetTgtHllType() != TgtHllTypeHll8 {
		return fmt.Errorf("gadget must be HLL_8")
	}
	if source == nil || source.IsEmpty() {
		return nil
	}

	srcMode := source.GetCurMode()
	srcLgK := source.GetLgConfigK()
	gdgtLgK := u.gadget.GetLgConfigK()
	gdgtEmpty := u.gadget.IsEmpty()
	gdgtMode := u.gadget.GetCurMode()

	if srcMode != curModeHll {
		// LIST/SET source: replay coupons directly through the gadget's
		// own couponUpdate. The coupon carries the full 26-bit hash
		// address regardless of the source's configured lgK, so
		// couponUpdate's own slotNoMask (based on the gadget's lgK)
		// folds it down automatically - no separate downsampling step
		// is needed here even when the source's lgK exceeds lgMaxK.
		return source.(*hllSketchState).sketch.mergeTo(u.gadget)
	}

	// source is in HLL (dense) mode.
	if gdgtEmpty {
		if srcLgK > u.lgMaxK {
			down, err := downsampleHllArray(source, u.lgMaxK)
			if err != nil {
				return err
			}
			u.gadget = down
			u.gadget.(*hllSketchState).sketch.putOutOfOrder(true)
			return nil
		}
		asHll8, err := source.CopyAs(TgtHllTypeHll8)
		if err != nil {
			return err
		}
		u.gadget = asHll8
		u.gadget.(*hllSketchState).sketch.putOutOfOrder(true)
		return nil
	}

	if gdgtMode != curModeHll {
		// Gadget is still LIST/SET but the source already carries dense
		// registers: the gadget must become HLL first, at the smaller of
		// the two effective lgK values, before a register merge can
		// proceed.
		tgtLgK := min(gdgtLgK, srcLgK, u.lgMaxK)
		if tgtLgK != gdgtLgK {
			down, err := downsampleCoupons(u.gadget, tgtLgK)
			if err != nil {
				return err
			}
			u.gadget = down
		} else {
			promoted, err := promoteCouponGadgetToHll(u.gadget)
			if err != nil {
				return err
			}
			u.gadget = promoted
		}
		gdgtLgK = u.gadget.GetLgConfigK()
	}

	src := source
	if srcLgK > u.lgMaxK {
		var err error
		src, err = downsampleHllArray(source, u.lgMaxK)
		if err != nil {
			return err
		}
		srcLgK = u.lgMaxK
	}

	if srcLgK < gdgtLgK {
		down, err := downsampleHllArray(u.gadget, srcLgK)
		if err != nil {
			return err
		}
		u.gadget = down
		gdgtLgK = srcLgK
	} else if srcLgK > gdgtLgK {
		var err error
		src, err = downsampleHllArray(src, gdgtLgK)
		if err != nil {
			return err
		}
	}

	if err := mergeHlltoHLLmode(src, u.gadget, gdgtLgK, gdgtLgK); err != nil {
		return err
	}
	u.gadget.(*hllSketchState).sketch.putOutOfOrder(true)
	u.gadget.(*hllSketchState).sketch.putRebuildCurMinNumKxQFlag(true)
	return nil
}

// promoteCouponGadgetToHll migrates a LIST/SET-phase gadget to HLL_8 mode
// in place, preserving exact coupon content (spec §4.1 transition rule).
func promoteCouponGadgetToHll(gadget HllSketch) (HllSketch, error) {
	state := gadget.(*hllSketchState)
	c, ok := state.sketch.(hllCoupon)
	if !ok {
		return gadget, nil // already dense
	}
	hllArr, err := newHllArray(state.sketch.GetLgConfigK(), TgtHllTypeHll8)
	if err != nil {
		return nil, err
	}
	hllArr.putKxQ0(float64(uint64(1) << state.sketch.GetLgConfigK()))
	itr := c.iterator()
	for itr.nextValid() {
		p, err := itr.getPair()
		if err != nil {
			return nil, err
		}
		if _, err := hllArr.couponUpdate(p); err != nil {
			return nil, err
		}
	}
	est, err := c.GetEstimate()
	if err != nil {
		return nil, err
	}
	hllArr.putHipAccum(est)
	hllArr.putOutOfOrder(false)
	state.sketch = hllArr
	return gadget, nil
}

// downsampleCoupons replays a LIST/SET-phase sketch's coupons into a
// freshly built sketch at a smaller lgK. Coupon addresses are
// lgK-independent (26 bits regardless of configuration), so this is a
// plain replay into a smaller-lgK target rather than a bit-level fold.
func downsampleCoupons(src HllSketch, tgtLgK int) (HllSketch, error) {
	tgt, err := NewHllSketch(tgtLgK, TgtHllTypeHll8)
	if err != nil {
		return nil, err
	}
	c := src.(*hllSketchState).sketch.(hllCoupon)
	itr := c.iterator()
	for itr.nextValid() {
		p, err := itr.getPair()
		if err != nil {
			return nil, err
		}
		if _, err := tgt.(*hllSketchState).couponUpdate(p); err != nil {
			return nil, err
		}
	}
	return tgt, nil
}

// downsampleHllArray folds a dense HLL-phase sketch from its native lgK
// down to a smaller tgtLgK: each target slot absorbs 2^(lgK-tgtLgK)
// source slots (those sharing the low tgtLgK address bits) by taking
// their max register value, the same reduction a real coupon-address
// fold performs, just walked explicitly over registers instead of raw
// hashes.
func downsampleHllArray(src HllSketch, tgtLgK int) (HllSketch, error) {
	if src.GetLgConfigK() == tgtLgK {
		return src.CopyAs(TgtHllTypeHll8)
	}
	tgtArr, err := newHllArray(tgtLgK, TgtHllTypeHll8)
	if err != nil {
		return nil, err
	}
	tgtMask := (1 << tgtLgK) - 1
	srcState := src.(*hllSketchState).sketch.(hllArray)
	itr := srcState.iterator()
	numZeros := 1 << tgtLgK
	filled := make([]bool, 1<<tgtLgK)
	for itr.nextAll() {
		v, err := itr.getValue()
		if err != nil {
			return nil, err
		}
		if v == empty {
			continue
		}
		slot := itr.getKey() & tgtMask
		tgtArr.(*hll8ArrayImpl).updateSlotNoKxQ(slot, v)
		if !filled[slot] {
			filled[slot] = true
			numZeros--
		}
	}
	// Recompute KxQ accumulators from the folded registers directly
	// rather than threading them through incremental updates.
	kxq0 := 0.0
	kxq1 := 0.0
	for slot := 0; slot < (1 << tgtLgK); slot++ {
		v := tgtArr.(*hll8ArrayImpl).getSlotValue(slot)
		inv, err := internal.InvPow2(v)
		if err != nil {
			return nil, err
		}
		if v < 32 {
			kxq0 += inv
		} else {
			kxq1 += inv
		}
	}
	tgtArr.putKxQ0(kxq0)
	tgtArr.putKxQ1(kxq1)
	tgtArr.putNumAtCurMin(numZeros)
	tgtArr.putCurMin(0)
	tgtArr.putOutOfOrder(true)
	tgtArr.putRebuildCurMinNumKxQFlag(false)
	return newHllSketchState(tgtArr), nil
}

// checkRebuildCurMinNumKxQ lazily recomputes curMin/numAtCurMin/kxQ0/kxQ1
// by scanning the dense register array, used after an HLL-vs-HLL merge
// sets the gadget's rebuild flag. Only meaningful for HLL_8 gadgets.
func checkRebuildCurMinNumKxQ(sketch HllSketch) error {
	state := sketch.(*hllSketchState)
	sketchImpl := state.sketch
	curMode := sketch.GetCurMode()
	tgtHllType := sketch.GetTgtHllType()
	if curMode != curModeHll || tgtHllType != TgtHllTypeHll8 {
		return nil
	}
	if !sketchImpl.isRebuildCurMinNumKxQFlag() {
		return nil
	}

	sketchArrImpl := sketchImpl.(*hll8ArrayImpl)
	curMin := 64
	numAtCurMin := 0
	kxq0 := 0.0
	kxq1 := 0.0
	itr := sketchArrImpl.iterator()
	for itr.nextAll() {
		v, err := itr.getValue()
		if err != nil {
			return err
		}
		inv, err := internal.InvPow2(v)
		if err != nil {
			return err
		}
		if v < 32 {
			kxq0 += inv
		} else {
			kxq1 += inv
		}
		if v > curMin {
			continue
		}
		if v < curMin {
			curMin = v
			numAtCurMin = 1
		} else {
			numAtCurMin++
		}
	}

	sketchArrImpl.putKxQ0(kxq0)
	sketchArrImpl.putKxQ1(kxq1)
	sketchArrImpl.putCurMin(curMin)
	sketchArrImpl.putNumAtCurMin(numAtCurMin)
	sketchArrImpl.putRebuildCurMinNumKxQFlag(false)
	//HipAccum is not affected; HIP is disabled by oooFlag regardless.
	return nil
}

// mergeHlltoHLLmode register-merges src into tgt, both already at the
// same lgK. tgt must be HLL_8; src may be any of the three register
// encodings.
func mergeHlltoHLLmode(src HllSketch, tgt HllSketch, srcLgK int, tgtLgK int) error {
	if srcLgK != tgtLgK {
		return fmt.Errorf("mergeHlltoHLLmode requires equal lgK, got src=%d tgt=%d", srcLgK, tgtLgK)
	}
	srcK := 1 << srcLgK
	tgtAbsHllArr := tgt.(*hllSketchState).sketch.(*hll8ArrayImpl)

	switch src.GetTgtHllType() {
	case TgtHllTypeHll8:
		srcArr := src.(*hllSketchState).sketch.(*hll8ArrayImpl).hllByteArr
		tgtArr := tgtAbsHllArr.hllByteArr
		for i := 0; i < srcK; i++ {
			if srcArr[i] > tgtArr[i] {
				tgtArr[i] = srcArr[i]
			}
		}
	case TgtHllTypeHll4:
		src4 := src.(*hllSketchState).sketch.(*hll4ArrayImpl)
		for slot := 0; slot < srcK; slot++ {
			v, err := src4.getSlotValue(slot)
			if err != nil {
				return err
			}
			tgtAbsHllArr.updateSlotNoKxQ(slot, v)
		}
	case TgtHllTypeHll6:
		src6 := src.(*hllSketchState).sketch.(*hll6ArrayImpl)
		for slot := 0; slot < srcK; slot++ {
			tgtAbsHllArr.updateSlotNoKxQ(slot, src6.getSlotValue(slot))
		}
	default:
		return fmt.Errorf("unknown source TgtHllType")
	}
	tgtAbsHllArr.putRebuildCurMinNumKxQFlag(true)
	return nil
}
