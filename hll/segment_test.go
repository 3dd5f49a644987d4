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
	"testing"

	"github.com/streamsketch/datasketch/common"
	"github.com/streamsketch/datasketch/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapIsReadOnly(t *testing.T) {
	sk, err := NewHllSketch(8, TgtHllTypeHll8)
	require.NoError(t, err)
	for i := 0; i < 2000; i++ {
		require.NoError(t, sk.UpdateUInt64(uint64(i)))
	}
	bytes, err := sk.ToUpdatableSlice()
	require.NoError(t, err)

	wrapped, err := Wrap(bytes)
	require.NoError(t, err)

	estimate, err := wrapped.GetEstimate()
	require.NoError(t, err)
	assert.InDelta(t, 2000, estimate, 2000*0.1)

	err = wrapped.UpdateUInt64(99999)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.ReadOnly, kind)

	assert.Error(t, wrapped.Reset())
}

func TestWritableWrapGrowsIntoRequestedSegment(t *testing.T) {
	sk, err := NewHllSketch(4, TgtHllTypeHll4)
	require.NoError(t, err)
	bytes, err := sk.ToUpdatableSlice()
	require.NoError(t, err)

	var requested []common.Segment
	request := func(minBytes int) (common.Segment, error) {
		seg := common.NewHeapSegment(make([]byte, minBytes))
		requested = append(requested, seg)
		return seg, nil
	}

	wrapped, err := WritableWrap(bytes, request)
	require.NoError(t, err)
	original := wrapped.BackingSegment()

	for i := 0; i < 5000; i++ {
		require.NoError(t, wrapped.UpdateUInt64(uint64(i)))
	}

	estimate, err := wrapped.GetEstimate()
	require.NoError(t, err)
	assert.InDelta(t, 5000, estimate, 5000*0.1)

	current := wrapped.BackingSegment()
	if len(requested) > 0 {
		assert.NotSame(t, original, current)
	}
}

func TestWritableWrapSpillsToHeapWithoutSegmentRequest(t *testing.T) {
	sk, err := NewHllSketch(4, TgtHllTypeHll4)
	require.NoError(t, err)
	bytes, err := sk.ToUpdatableSlice()
	require.NoError(t, err)

	wrapped, err := WritableWrap(bytes, nil)
	require.NoError(t, err)

	for i := 0; i < 5000; i++ {
		require.NoError(t, wrapped.UpdateUInt64(uint64(i)))
	}

	estimate, err := wrapped.GetEstimate()
	require.NoError(t, err)
	assert.InDelta(t, 5000, estimate, 5000*0.1)
}
