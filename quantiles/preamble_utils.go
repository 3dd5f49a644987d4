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

import "encoding/binary"

const (
	preIntsByteAdr = 0
	serVerByteAdr  = 1
	familyByteAdr  = 2
	flagsByteAdr   = 3
	kShortAdr      = 4 // to 5

	nLongAdr          = 8  // to 15, full preamble only
	minItemDoubleAdr  = 16 // to 23
	maxItemDoubleAdr  = 24 // to 31
	bitPatternLongAdr = 32 // to 39
	dataStartAdrFull  = 40

	dataStartAdrEmpty = 8

	serVerDoubles     = 1
	familyIDQuantiles = 10

	preIntsEmpty = 1
	preIntsFull  = 5

	emptyBitMask   = 1
	compactBitMask = 2
)

func getPreInts(mem []byte) int      { return int(mem[preIntsByteAdr]) }
func getSerVer(mem []byte) int       { return int(mem[serVerByteAdr]) }
func getFamilyID(mem []byte) int     { return int(mem[familyByteAdr]) }
func getFlags(mem []byte) int        { return int(mem[flagsByteAdr]) }
func getEmptyFlag(mem []byte) bool   { return getFlags(mem)&emptyBitMask != 0 }
func getCompactFlag(mem []byte) bool { return getFlags(mem)&compactBitMask != 0 }

func getK(mem []byte) int {
	return int(binary.LittleEndian.Uint16(mem[kShortAdr : kShortAdr+2]))
}

func getPreambleN(mem []byte) uint64 {
	return binary.LittleEndian.Uint64(mem[nLongAdr : nLongAdr+8])
}

func getPreambleBitPattern(mem []byte) uint64 {
	return binary.LittleEndian.Uint64(mem[bitPatternLongAdr : bitPatternLongAdr+8])
}
