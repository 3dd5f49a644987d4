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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDoublesSketchRejectsBadK(t *testing.T) {
	_, err := NewDoublesSketch(1, 1)
	assert.Error(t, err)
	_, err = NewDoublesSketch(MaxK+1, 1)
	assert.Error(t, err)
	_, err = NewDoublesSketch(DefaultK, 1)
	assert.NoError(t, err)
}

func TestEmptySketchQueriesReturnArgumentError(t *testing.T) {
	sk, err := NewDoublesSketch(DefaultK, 1)
	require.NoError(t, err)
	assert.True(t, sk.IsEmpty())

	_, err = sk.GetMinItem()
	assert.Error(t, err)
	_, err = sk.GetMaxItem()
	assert.Error(t, err)
	_, err = sk.GetRank(0, Inclusive)
	assert.Error(t, err)
	_, err = sk.GetQuantile(0.5, Inclusive)
	assert.Error(t, err)
	_, err = sk.GetCDF([]float64{0}, Inclusive)
	assert.Error(t, err)
}

func TestUpdateTracksMinMaxAndN(t *testing.T) {
	sk, err := NewDoublesSketch(DefaultK, 1)
	require.NoError(t, err)
	for _, v := range []float64{5, 1, 9, 3, 7} {
		sk.Update(v)
	}
	assert.Equal(t, uint64(5), sk.GetN())
	minV, err := sk.GetMinItem()
	require.NoError(t, err)
	assert.Equal(t, 1.0, minV)
	maxV, err := sk.GetMaxItem()
	require.NoError(t, err)
	assert.Equal(t, 9.0, maxV)
}

func TestUpdateIgnoresNaN(t *testing.T) {
	sk, err := NewDoublesSketch(DefaultK, 1)
	require.NoError(t, err)
	sk.Update(1.0)
	sk.Update(nan())
	assert.Equal(t, uint64(1), sk.GetN())
}

func nan() float64 {
	var z float64
	return z / z
}

func TestExactModeRankAndQuantileAreExact(t *testing.T) {
	sk, err := NewDoublesSketch(32, 1)
	require.NoError(t, err)
	for i := 1; i <= 10; i++ {
		sk.Update(float64(i))
	}
	assert.False(t, sk.IsEstimationMode())

	minQ, err := sk.GetQuantile(0, Inclusive)
	require.NoError(t, err)
	assert.Equal(t, 1.0, minQ)

	maxQ, err := sk.GetQuantile(1, Inclusive)
	require.NoError(t, err)
	assert.Equal(t, 10.0, maxQ)

	rank, err := sk.GetRank(5, Inclusive)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, rank, 1e-9)

	rank, err = sk.GetRank(5, Exclusive)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, rank, 1e-9)
}

func TestGetQuantileRejectsExclusiveRankOne(t *testing.T) {
	sk, err := NewDoublesSketch(32, 1)
	require.NoError(t, err)
	sk.Update(1.0)
	_, err = sk.GetQuantile(1, Exclusive)
	assert.Error(t, err)
}

func TestEstimationModeStaysWithinErrorBound(t *testing.T) {
	k := 16
	sk, err := NewDoublesSketch(k, 42)
	require.NoError(t, err)
	n := 20000
	for i := 0; i < n; i++ {
		sk.Update(float64(i))
	}
	assert.True(t, sk.IsEstimationMode())

	rank, err := sk.GetRank(float64(n/2), Inclusive)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, rank, sk.NormalizedRankError()*4)
}

func TestEqualKMergeMatchesDirectUpdates(t *testing.T) {
	a, err := NewDoublesSketch(32, 1)
	require.NoError(t, err)
	b, err := NewDoublesSketch(32, 2)
	require.NoError(t, err)
	direct, err := NewDoublesSketch(32, 3)
	require.NoError(t, err)

	for i := 1; i <= 50; i++ {
		a.Update(float64(i))
		direct.Update(float64(i))
	}
	for i := 51; i <= 100; i++ {
		b.Update(float64(i))
		direct.Update(float64(i))
	}

	require.NoError(t, a.MergeFrom(b))
	assert.Equal(t, direct.GetN(), a.GetN())
	minV, err := a.GetMinItem()
	require.NoError(t, err)
	assert.Equal(t, 1.0, minV)
	maxV, err := a.GetMaxItem()
	require.NoError(t, err)
	assert.Equal(t, 100.0, maxV)
}

func TestMergeRejectsSmallerSourceK(t *testing.T) {
	a, err := NewDoublesSketch(32, 1)
	require.NoError(t, err)
	b, err := NewDoublesSketch(16, 2)
	require.NoError(t, err)
	b.Update(1.0)
	assert.Error(t, a.MergeFrom(b))
}

func TestDownsamplingMergePreservesCount(t *testing.T) {
	big, err := NewDoublesSketch(64, 1)
	require.NoError(t, err)
	small, err := NewDoublesSketch(16, 2)
	require.NoError(t, err)

	for i := 0; i < 5000; i++ {
		big.Update(float64(i))
	}
	require.NoError(t, small.MergeFrom(big))
	assert.Equal(t, big.GetN(), small.GetN())
}

func TestCompactSliceRoundTrip(t *testing.T) {
	sk, err := NewDoublesSketch(16, 7)
	require.NoError(t, err)
	for i := 0; i < 5000; i++ {
		sk.Update(float64(i))
	}

	bytes, err := sk.ToCompactSlice()
	require.NoError(t, err)
	rebuilt, err := NewDoublesSketchFromSlice(bytes, 1)
	require.NoError(t, err)

	assert.Equal(t, sk.GetN(), rebuilt.GetN())
	assert.Equal(t, sk.GetK(), rebuilt.GetK())
	minV, err := rebuilt.GetMinItem()
	require.NoError(t, err)
	assert.Equal(t, 0.0, minV)
	maxV, err := rebuilt.GetMaxItem()
	require.NoError(t, err)
	assert.Equal(t, 4999.0, maxV)

	origRank, err := sk.GetRank(2500, Inclusive)
	require.NoError(t, err)
	rebuiltRank, err := rebuilt.GetRank(2500, Inclusive)
	require.NoError(t, err)
	assert.Equal(t, origRank, rebuiltRank)
}

func TestUpdatableSliceRoundTrip(t *testing.T) {
	sk, err := NewDoublesSketch(16, 7)
	require.NoError(t, err)
	for i := 0; i < 5000; i++ {
		sk.Update(float64(i))
	}

	bytes, err := sk.ToUpdatableSlice()
	require.NoError(t, err)
	rebuilt, err := NewDoublesSketchFromSlice(bytes, 1)
	require.NoError(t, err)

	assert.Equal(t, sk.GetN(), rebuilt.GetN())
	assert.Equal(t, sk.NumRetained(), rebuilt.NumRetained())
}

func TestEmptySketchSerializationRoundTrip(t *testing.T) {
	sk, err := NewDoublesSketch(16, 7)
	require.NoError(t, err)

	bytes, err := sk.ToCompactSlice()
	require.NoError(t, err)
	rebuilt, err := NewDoublesSketchFromSlice(bytes, 1)
	require.NoError(t, err)
	assert.True(t, rebuilt.IsEmpty())
	assert.Equal(t, 16, rebuilt.GetK())
}

func TestResetClearsState(t *testing.T) {
	sk, err := NewDoublesSketch(16, 1)
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		sk.Update(float64(i))
	}
	sk.Reset()
	assert.True(t, sk.IsEmpty())
	assert.Equal(t, uint64(0), sk.GetN())
	assert.Equal(t, 0, sk.NumRetained())
}
