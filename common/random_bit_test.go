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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomBitSourceIsReproducibleFromSameSeed(t *testing.T) {
	a := NewRandomBitSource(123)
	b := NewRandomBitSource(123)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.NextBit(), b.NextBit())
	}
}

func TestRandomBitSourceOnlyEverReturnsZeroOrOne(t *testing.T) {
	r := NewRandomBitSource(1)
	for i := 0; i < 1000; i++ {
		bit := r.NextBit()
		assert.True(t, bit == 0 || bit == 1)
	}
}

func TestDifferentSeedsCanDiverge(t *testing.T) {
	a := NewRandomBitSource(1)
	b := NewRandomBitSource(2)
	same := true
	for i := 0; i < 64; i++ {
		if a.NextBit() != b.NextBit() {
			same = false
			break
		}
	}
	assert.False(t, same)
}
