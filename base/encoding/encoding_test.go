// Copyright 2026 olist-intelligence Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package encoding

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestWriteDense(t *testing.T) {
	a := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	buf := bytes.NewBuffer(nil)
	err := WriteDense(buf, a)
	assert.NoError(t, err)
	b, err := ReadDense(buf)
	assert.NoError(t, err)
	assert.True(t, mat.Equal(a, b))
}

func TestReadDenseInvalidShape(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0})
	_, err := ReadDense(buf)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestReadDenseOversized(t *testing.T) {
	// the declared shape overflows or exceeds the limit
	for _, shape := range [][2]int64{{1 << 50, 1 << 20}, {1 << 40, 1 << 40}, {MaxDenseElements, 2}} {
		buf := bytes.NewBuffer(nil)
		assert.NoError(t, binary.Write(buf, binary.LittleEndian, shape))
		_, err := ReadDense(buf)
		assert.True(t, errors.Is(err, errors.NotValid), shape)
	}

	// a large declared shape backed by a short stream fails without allocating it
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, binary.Write(buf, binary.LittleEndian, [2]int64{1 << 30, 1}))
	assert.NoError(t, binary.Write(buf, binary.LittleEndian, []float64{1, 2, 3}))
	_, err := ReadDense(buf)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadDenseMultipleChunks(t *testing.T) {
	rows, cols := 3, denseChunk/2+1
	a := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			a.Set(i, j, float64(i*cols+j))
		}
	}
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, WriteDense(buf, a))
	b, err := ReadDense(buf)
	assert.NoError(t, err)
	assert.True(t, mat.Equal(a, b))
}

func TestWriteString(t *testing.T) {
	a := "abc"
	buf := bytes.NewBuffer(nil)
	err := WriteString(buf, a)
	assert.NoError(t, err)
	var b string
	b, err = ReadString(buf)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestReadTruncatedString(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	err := WriteString(buf, "abcdef")
	assert.NoError(t, err)
	truncated := bytes.NewBuffer(buf.Bytes()[:buf.Len()-2])
	_, err = ReadString(truncated)
	assert.Error(t, err)
}

func TestReadBytesOversized(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, binary.Write(buf, binary.LittleEndian, int32(1<<30)))
	buf.WriteString("abc")
	_, err := ReadBytes(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriteGob(t *testing.T) {
	a := []string{"a", "b", "c"}
	buf := bytes.NewBuffer(nil)
	err := WriteGob(buf, a)
	assert.NoError(t, err)
	var b []string
	err = ReadGob(buf, &b)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}
