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

package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructorsTagTheRightKind(t *testing.T) {
	cases := []struct {
		err  error
		kind Kind
	}{
		{ArgumentError("bad k %d", 1), Argument},
		{StateError("no hip after merge"), State},
		{ReadOnlyError("segment is read-only"), ReadOnly},
		{SerializationError("short buffer"), Serialization},
	}
	for _, c := range cases {
		kind, ok := KindOf(c.err)
		assert.True(t, ok)
		assert.Equal(t, c.kind, kind)
	}
}

func TestKindOfRejectsPlainErrors(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestIsComparesByKindNotMessage(t *testing.T) {
	a := ArgumentError("first message")
	b := ArgumentError("a completely different message")
	assert.True(t, errors.Is(a, b))

	s := StateError("some state error")
	assert.False(t, errors.Is(a, s))
}

func TestUnwrapExposesUnderlyingError(t *testing.T) {
	err := ArgumentError("k=%d out of range", 99)
	var se *SketchError
	assert.True(t, errors.As(err, &se))
	assert.Contains(t, se.Unwrap().Error(), "99")
}
