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

func TestGetCDFAndPMFSumToOne(t *testing.T) {
	sk, err := NewDoublesSketch(32, 1)
	require.NoError(t, err)
	for i := 1; i <= 100; i++ {
		sk.Update(float64(i))
	}

	splits := []float64{25, 50, 75}
	cdf, err := sk.GetCDF(splits, Inclusive)
	require.NoError(t, err)
	require.Len(t, cdf, len(splits)+1)
	assert.Equal(t, 1.0, cdf[len(cdf)-1])

	pmf, err := sk.GetPMF(splits, Inclusive)
	require.NoError(t, err)
	var total float64
	for _, p := range pmf {
		total += p
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestGetCDFRejectsUnsortedSplitPoints(t *testing.T) {
	sk, err := NewDoublesSketch(32, 1)
	require.NoError(t, err)
	sk.Update(1.0)
	_, err = sk.GetCDF([]float64{5, 1}, Inclusive)
	assert.Error(t, err)
}

func TestGetCDFRejectsNonFiniteSplitPoints(t *testing.T) {
	sk, err := NewDoublesSketch(32, 1)
	require.NoError(t, err)
	sk.Update(1.0)
	_, err = sk.GetCDF([]float64{nan()}, Inclusive)
	assert.Error(t, err)
}

func TestRankBoundsBracketReportedRank(t *testing.T) {
	sk, err := NewDoublesSketch(32, 1)
	require.NoError(t, err)
	for i := 1; i <= 1000; i++ {
		sk.Update(float64(i))
	}
	rank, err := sk.GetRank(500, Inclusive)
	require.NoError(t, err)

	lower := sk.GetRankLowerBound(rank)
	upper := sk.GetRankUpperBound(rank)
	assert.True(t, lower <= rank)
	assert.True(t, upper >= rank)
}

func TestFingerprintChangesOnUpdate(t *testing.T) {
	sk, err := NewDoublesSketch(32, 1)
	require.NoError(t, err)
	sk.Update(1.0)
	f1 := sk.Fingerprint()
	sk.Update(2.0)
	f2 := sk.Fingerprint()
	assert.NotEqual(t, f1, f2)
}

func TestNormalizedErrorsScaleInverselyWithK(t *testing.T) {
	small, err := NewDoublesSketch(16, 1)
	require.NoError(t, err)
	big, err := NewDoublesSketch(256, 1)
	require.NoError(t, err)
	assert.Greater(t, small.NormalizedRankError(), big.NormalizedRankError())
	assert.Greater(t, small.NormalizedPMFError(), big.NormalizedPMFError())
}
