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
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/streamsketch/datasketch/internal/errs"
)

// Criterion selects whether a rank/quantile query treats the query point
// itself as included in the count below it.
type Criterion int

const (
	Inclusive Criterion = iota
	Exclusive
)

// entry is one (item, cumulative weight) point of the sorted view, where
// weight is the running total of every retained item's weight up to and
// including this one.
type entry struct {
	item            float64
	cumulativeWeight uint64
}

// sortedView is the derived, lazily built structure every rank/quantile/
// CDF/PMF query consumes. It is invalidated (set to nil) on every Update
// or MergeFrom and rebuilt on the next query.
type sortedView struct {
	entries     []entry
	totalWeight uint64
}

// fingerprint returns an xxhash digest of the sketch's current retained
// items, weight-tagged. Two calls returning the same value do not
// guarantee identical sketch state in general (it's a hash, not an
// equality check), but a caller polling this between queries can treat a
// changed value as "rebuild your own cache" without re-walking levels
// itself or retaining a full copy to diff against.
func (s *DoublesSketch) fingerprint() uint64 {
	h := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], s.n)
	h.Write(buf[:])
	for _, v := range s.baseBuffer {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	for l, lvl := range s.levels {
		for _, v := range lvl {
			binary.LittleEndian.PutUint64(buf[:], uint64(l))
			h.Write(buf[:])
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}
	return h.Sum64()
}

// Fingerprint exposes fingerprint to callers who want a cheap "has this
// sketch mutated since my last read" check.
func (s *DoublesSketch) Fingerprint() uint64 {
	return s.fingerprint()
}

func (s *DoublesSketch) getSortedView() *sortedView {
	if s.sortedView != nil {
		return s.sortedView
	}
	entries := make([]entry, 0, s.NumRetained())
	for _, v := range s.baseBuffer {
		entries = append(entries, entry{item: v, cumulativeWeight: 1})
	}
	for l, lvl := range s.levels {
		w := weightOf(l)
		for _, v := range lvl {
			entries = append(entries, entry{item: v, cumulativeWeight: w})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].item < entries[j].item })
	var running uint64
	for i := range entries {
		running += entries[i].cumulativeWeight
		entries[i].cumulativeWeight = running
	}
	sv := &sortedView{entries: entries, totalWeight: running}
	s.sortedView = sv
	return sv
}

// GetRank returns the normalized rank of item: the fraction of the
// weighted stream at-or-below (Inclusive) or strictly-below (Exclusive)
// item.
func (s *DoublesSketch) GetRank(item float64, criterion Criterion) (float64, error) {
	if s.IsEmpty() {
		return 0, errs.ArgumentError("GetRank is undefined for an empty sketch")
	}
	sv := s.getSortedView()
	var weight uint64
	if criterion == Inclusive {
		idx := sort.Search(len(sv.entries), func(i int) bool { return sv.entries[i].item > item })
		if idx > 0 {
			weight = sv.entries[idx-1].cumulativeWeight
		}
	} else {
		idx := sort.Search(len(sv.entries), func(i int) bool { return sv.entries[i].item >= item })
		if idx > 0 {
			weight = sv.entries[idx-1].cumulativeWeight
		}
	}
	return float64(weight) / float64(sv.totalWeight), nil
}

// GetQuantile returns the smallest item whose normalized rank is >= r
// (Inclusive) or > r (Exclusive).
func (s *DoublesSketch) GetQuantile(rank float64, criterion Criterion) (float64, error) {
	if s.IsEmpty() {
		return 0, errs.ArgumentError("GetQuantile is undefined for an empty sketch")
	}
	if rank < 0 || rank > 1 {
		return 0, errs.ArgumentError("rank must be in [0,1], got %v", rank)
	}
	if criterion == Inclusive {
		if rank == 0 {
			return *s.minItem, nil
		}
		if rank == 1 {
			return *s.maxItem, nil
		}
	} else if rank == 1 {
		return 0, errs.ArgumentError("rank=1 has no exclusive quantile (no item has weight strictly greater than the full stream)")
	}

	sv := s.getSortedView()
	target := uint64(math.Ceil(rank * float64(sv.totalWeight)))
	if criterion == Inclusive {
		idx := sort.Search(len(sv.entries), func(i int) bool { return sv.entries[i].cumulativeWeight >= target })
		if idx == len(sv.entries) {
			idx = len(sv.entries) - 1
		}
		return sv.entries[idx].item, nil
	}
	idx := sort.Search(len(sv.entries), func(i int) bool { return sv.entries[i].cumulativeWeight > target })
	if idx == len(sv.entries) {
		idx = len(sv.entries) - 1
	}
	return sv.entries[idx].item, nil
}

// GetCDF returns, for strictly ascending finite splitPoints, the rank of
// each split plus a final trailing 1, length len(splitPoints)+1.
func (s *DoublesSketch) GetCDF(splitPoints []float64, criterion Criterion) ([]float64, error) {
	if s.IsEmpty() {
		return nil, errs.ArgumentError("GetCDF is undefined for an empty sketch")
	}
	if err := checkSplitPoints(splitPoints); err != nil {
		return nil, err
	}
	out := make([]float64, len(splitPoints)+1)
	for i, sp := range splitPoints {
		r, err := s.GetRank(sp, criterion)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	out[len(splitPoints)] = 1.0
	return out, nil
}

// GetPMF is the successive difference of GetCDF: the weighted mass
// falling in each bucket delimited by splitPoints.
func (s *DoublesSketch) GetPMF(splitPoints []float64, criterion Criterion) ([]float64, error) {
	cdf, err := s.GetCDF(splitPoints, criterion)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cdf))
	prev := 0.0
	for i, c := range cdf {
		out[i] = c - prev
		prev = c
	}
	return out, nil
}

func checkSplitPoints(splitPoints []float64) error {
	for i, sp := range splitPoints {
		if math.IsNaN(sp) || math.IsInf(sp, 0) {
			return errs.ArgumentError("split point %d is not finite: %v", i, sp)
		}
		if i > 0 && sp <= splitPoints[i-1] {
			return errs.ArgumentError("split points must be strictly ascending: splitPoints[%d]=%v <= splitPoints[%d]=%v", i, sp, i-1, splitPoints[i-1])
		}
	}
	return nil
}

// NormalizedRankError returns the approximate normalized rank error at
// ~99% confidence for this sketch's k (spec's ε = 1.7/k contract).
func (s *DoublesSketch) NormalizedRankError() float64 {
	return rankError(s.k)
}

// NormalizedPMFError returns the corresponding PMF error, ~1.33x the rank
// error since a PMF bucket combines two rank estimates.
func (s *DoublesSketch) NormalizedPMFError() float64 {
	return 1.33 * rankError(s.k)
}

func rankError(k int) float64 {
	return 1.7 / float64(k)
}

// GetRankLowerBound and GetRankUpperBound clamp r +/- 2*epsilon to [0,1],
// the declared confidence interval around a reported rank.
func (s *DoublesSketch) GetRankLowerBound(rank float64) float64 {
	return math.Max(0, rank-2*s.NormalizedRankError())
}

func (s *DoublesSketch) GetRankUpperBound(rank float64) float64 {
	return math.Min(1, rank+2*s.NormalizedRankError())
}
