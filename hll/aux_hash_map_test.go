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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustReplace(t *testing.T) {
	auxMap := newAuxHashMap(3, 7)
	require.NoError(t, auxMap.mustAdd(100, 5))
	val, err := auxMap.mustFindValueFor(100)
	require.NoError(t, err)
	assert.Equal(t, 5, val)
	require.NoError(t, auxMap.mustReplace(100, 10))
	val, err = auxMap.mustFindValueFor(100)
	require.NoError(t, err)
	assert.Equal(t, 10, val)
	assert.Error(t, auxMap.mustReplace(101, 5))
}

func TestGrowAuxSpace(t *testing.T) {
	auxMap := newAuxHashMap(3, 7)
	assert.Equal(t, 3, auxMap.getLgAuxArrInts())
	for i := 1; i <= 7; i++ {
		require.NoError(t, auxMap.mustAdd(i, i))
	}
	assert.Equal(t, 4, auxMap.getLgAuxArrInts())
	itr := auxMap.iterator()

	var (
		count1 = 0
		count2 = 0
	)

	for itr.nextAll() {
		count2++
		pair, err := itr.getPair()
		require.NoError(t, err)
		if pair != 0 {
			count1++
		}
	}
	assert.Equal(t, 7, count1)
	assert.Equal(t, 16, count2)
}

func TestAuxHashMapValueNotFound(t *testing.T) {
	auxMap := newAuxHashMap(3, 7)
	require.NoError(t, auxMap.mustAdd(100, 5))
	_, err := auxMap.mustFindValueFor(101)
	assert.Error(t, err)
}

func TestAuxHashMapDuplicateSlot(t *testing.T) {
	auxMap := newAuxHashMap(3, 7)
	require.NoError(t, auxMap.mustAdd(100, 5))
	assert.Error(t, auxMap.mustAdd(100, 6))
}

func TestSegmentAuxHashMapMatchesHeapSemantics(t *testing.T) {
	seg := common.NewHeapSegment(make([]byte, 4<<3))
	segMap, err := newSegmentAuxHashMap(seg, 3, 7, nil)
	require.NoError(t, err)

	require.NoError(t, segMap.mustAdd(100, 5))
	val, err := segMap.mustFindValueFor(100)
	require.NoError(t, err)
	assert.Equal(t, 5, val)

	require.NoError(t, segMap.mustReplace(100, 10))
	val, err = segMap.mustFindValueFor(100)
	require.NoError(t, err)
	assert.Equal(t, 10, val)

	_, err = segMap.mustFindValueFor(101)
	assert.Error(t, err)
}

func TestSegmentAuxHashMapGrowsIntoRequestedSegment(t *testing.T) {
	var requested []common.Segment
	request := func(minBytes int) (common.Segment, error) {
		seg := common.NewHeapSegment(make([]byte, minBytes))
		requested = append(requested, seg)
		return seg, nil
	}
	seg := common.NewHeapSegment(make([]byte, 4<<3))
	segMap, err := newSegmentAuxHashMap(seg, 3, 7, request)
	require.NoError(t, err)

	for i := 1; i <= 7; i++ {
		require.NoError(t, segMap.mustAdd(i, i))
	}
	assert.Equal(t, 4, segMap.getLgAuxArrInts())
	assert.Len(t, requested, 1)
	assert.Equal(t, 7, segMap.getAuxCount())

	itr := segMap.iterator()
	count := 0
	for itr.nextValid() {
		count++
	}
	assert.Equal(t, 7, count)
}

func TestSegmentAuxHashMapSpillsToHeapWithoutSegmentRequest(t *testing.T) {
	seg := common.NewHeapSegment(make([]byte, 4<<3))
	segMap, err := newSegmentAuxHashMap(seg, 3, 7, nil)
	require.NoError(t, err)

	for i := 1; i <= 7; i++ {
		require.NoError(t, segMap.mustAdd(i, i))
	}
	assert.NotNil(t, segMap.spilled)
	assert.Equal(t, 7, segMap.getAuxCount())
	val, err := segMap.mustFindValueFor(3)
	require.NoError(t, err)
	assert.Equal(t, 3, val)
}
