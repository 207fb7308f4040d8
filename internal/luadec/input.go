// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luadec

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/dsnet/compress/bzip2"
)

// stdinName is the file argument that reads from standard input.
const stdinName = "-"

// bzip2Magic is the prefix of a bzip2 stream.
// It can never start a Lua chunk.
const bzip2Magic = "BZh"

// readInput reads the whole of the named file,
// decompressing it if it is bzip2-compressed.
// readStdin is called for [stdinName].
// It may be called more than once and must return the same bytes each time.
func readInput(name string, readStdin func() ([]byte, error)) ([]byte, error) {
	var data []byte
	var err error
	if name == stdinName {
		data, err = readStdin()
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return nil, err
	}
	return decompress(data)
}

// decompress returns the decompressed contents of data
// if it starts with [bzip2Magic]
// or data itself otherwise.
func decompress(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, []byte(bzip2Magic)) {
		return data, nil
	}
	zr, err := bzip2.NewReader(bytes.NewReader(data), nil)
	if err != nil {
		return nil, fmt.Errorf("decompress: %v", err)
	}
	defer zr.Close()
	plain, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress: %v", err)
	}
	return plain, nil
}
