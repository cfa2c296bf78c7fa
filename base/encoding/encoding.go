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
	"encoding/gob"
	"io"

	"github.com/juju/errors"
	"gonum.org/v1/gonum/mat"
)

// WriteDense writes the shape and the row-major data of a dense matrix to byte stream.
func WriteDense(w io.Writer, m *mat.Dense) error {
	rows, cols := m.Dims()
	if err := binary.Write(w, binary.LittleEndian, [2]int64{int64(rows), int64(cols)}); err != nil {
		return errors.Trace(err)
	}
	for i := 0; i < rows; i++ {
		if err := binary.Write(w, binary.LittleEndian, m.RawRowView(i)); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// MaxDenseElements bounds the number of elements of a matrix read by ReadDense.
const MaxDenseElements = 1 << 31

// denseChunk is the number of elements read at a time. Memory grows with the
// data actually present rather than with the declared shape.
const denseChunk = 1 << 16

// ReadDense reads a dense matrix written by WriteDense.
func ReadDense(r io.Reader) (*mat.Dense, error) {
	var shape [2]int64
	if err := binary.Read(r, binary.LittleEndian, &shape); err != nil {
		return nil, errors.Trace(err)
	}
	rows, cols := shape[0], shape[1]
	if rows <= 0 || cols <= 0 || rows > MaxDenseElements/cols {
		return nil, errors.NotValidf("matrix shape %dx%d", rows, cols)
	}
	n := int(rows * cols)
	data := make([]float64, 0, min(n, denseChunk))
	chunk := make([]float64, min(n, denseChunk))
	for len(data) < n {
		part := chunk[:min(n-len(data), len(chunk))]
		if err := binary.Read(r, binary.LittleEndian, part); err != nil {
			return nil, errors.Annotatef(err, "failed to read %dx%d matrix", rows, cols)
		}
		data = append(data, part...)
	}
	return mat.NewDense(int(rows), int(cols), data), nil
}

// WriteString writes string to byte stream.
func WriteString(w io.Writer, s string) error {
	return WriteBytes(w, []byte(s))
}

// ReadString reads string from byte stream.
func ReadString(r io.Reader) (string, error) {
	data, err := ReadBytes(r)
	return string(data), err
}

// WriteBytes writes bytes to byte stream.
func WriteBytes(w io.Writer, s []byte) error {
	err := binary.Write(w, binary.LittleEndian, int32(len(s)))
	if err != nil {
		return err
	}
	n, err := w.Write(s)
	if err != nil {
		return err
	} else if n != len(s) {
		return errors.New("fail to write string")
	}
	return nil
}

// ReadBytes reads bytes from byte stream.
func ReadBytes(r io.Reader) ([]byte, error) {
	var length int32
	err := binary.Read(r, binary.LittleEndian, &length)
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, errors.NotValidf("byte length %d", length)
	}
	// the buffer grows as bytes arrive, so a corrupt length cannot allocate up front
	var buf bytes.Buffer
	if _, err = io.CopyN(&buf, r, int64(length)); err != nil {
		return nil, errors.Annotate(err, "fail to read string")
	}
	return buf.Bytes(), nil
}

// WriteGob writes object to byte stream.
func WriteGob(w io.Writer, v interface{}) error {
	buffer := bytes.NewBuffer(nil)
	encoder := gob.NewEncoder(buffer)
	err := encoder.Encode(v)
	if err != nil {
		return err
	}
	return WriteBytes(w, buffer.Bytes())
}

// ReadGob read object from byte stream.
func ReadGob(r io.Reader, v interface{}) error {
	data, err := ReadBytes(r)
	if err != nil {
		return err
	}
	buffer := bytes.NewBuffer(data)
	decoder := gob.NewDecoder(buffer)
	return decoder.Decode(v)
}
