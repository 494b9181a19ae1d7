// Copyright (C) The CellCNV Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellcnv

import (
	"bufio"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/klauspost/pgzip"
	"golang.org/x/crypto/blake2b"
)

// matrixEntry is one gob record of a matrix bundle. A bundle is a
// stream of entries sharing one gene axis; each entry carries a slice
// of cells, so bundles produced for different cell batches can be
// concatenated by the merge command. Genes is only present in the
// first entry of a stream.
type matrixEntry struct {
	Genes       []GeneLocus
	Cells       []Cell
	Counts      []float64 // gene-major for this entry's cells
	Fingerprint [blake2b.Size256]byte
}

func countsFingerprint(counts []float64) [blake2b.Size256]byte {
	h, _ := blake2b.New256(nil)
	binary.Write(h, binary.LittleEndian, counts)
	var sum [blake2b.Size256]byte
	h.Sum(sum[:0])
	return sum
}

// WriteMatrix writes m as a single-entry bundle. With gz the stream is
// pgzip-compressed.
func WriteMatrix(w io.Writer, m *ExpressionMatrix, gz bool) error {
	var zw *pgzip.Writer
	if gz {
		zw = pgzip.NewWriter(w)
		w = zw
	}
	bufw := bufio.NewWriter(w)
	err := gob.NewEncoder(bufw).Encode(matrixEntry{
		Genes:       m.Genes,
		Cells:       m.Cells,
		Counts:      m.Data,
		Fingerprint: countsFingerprint(m.Data),
	})
	if err != nil {
		return err
	}
	if err = bufw.Flush(); err != nil {
		return err
	}
	if zw != nil {
		return zw.Close()
	}
	return nil
}

// ReadMatrix reads a bundle stream, concatenating the cell axes of its
// entries and verifying each entry's count fingerprint.
func ReadMatrix(r io.Reader, gz bool) (*ExpressionMatrix, error) {
	if gz {
		zr, err := pgzip.NewReader(bufio.NewReaderSize(r, 1<<20))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}
	dec := gob.NewDecoder(bufio.NewReaderSize(r, 1<<20))
	var genes []GeneLocus
	var parts []matrixEntry
	nCells := 0
	for {
		var ent matrixEntry
		err := dec.Decode(&ent)
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("gob decode: %w", err)
		}
		if ent.Fingerprint != countsFingerprint(ent.Counts) {
			return nil, fmt.Errorf("count fingerprint mismatch: bundle is corrupt")
		}
		if len(ent.Genes) > 0 {
			if genes != nil && !sameGenes(genes, ent.Genes) {
				return nil, fmt.Errorf("bundle entries have different gene sets")
			}
			genes = ent.Genes
		}
		if genes == nil {
			return nil, fmt.Errorf("bundle entry has cells but no gene axis")
		}
		if len(ent.Counts) != len(genes)*len(ent.Cells) {
			return nil, fmt.Errorf("bundle entry size mismatch: %d genes × %d cells but %d counts", len(genes), len(ent.Cells), len(ent.Counts))
		}
		nCells += len(ent.Cells)
		parts = append(parts, ent)
	}
	if genes == nil {
		return nil, fmt.Errorf("empty bundle")
	}
	cells := make([]Cell, 0, nCells)
	for _, ent := range parts {
		cells = append(cells, ent.Cells...)
	}
	data := make([]float64, len(genes)*nCells)
	for g := range genes {
		dst := data[g*nCells:]
		off := 0
		for _, ent := range parts {
			ec := len(ent.Cells)
			copy(dst[off:off+ec], ent.Counts[g*ec:(g+1)*ec])
			off += ec
		}
	}
	// Re-validate cell uniqueness; merged bundles can collide.
	return NewExpressionMatrix(genes, cells, data)
}

func sameGenes(a, b []GeneLocus) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ResultBundle is the serialized form of a pipeline Result: the centered
// profile plus the optional state calls and the cluster assignment.
type ResultBundle struct {
	Centered *CenteredProfile
	States   *StateCalls
	Clusters *ClusterAssignment
}

// WriteResult writes the durable artifacts of res.
func WriteResult(w io.Writer, res *Result, gz bool) error {
	var zw *pgzip.Writer
	if gz {
		zw = pgzip.NewWriter(w)
		w = zw
	}
	bufw := bufio.NewWriter(w)
	err := gob.NewEncoder(bufw).Encode(ResultBundle{
		Centered: res.Centered,
		States:   res.States,
		Clusters: res.Clusters,
	})
	if err != nil {
		return err
	}
	if err = bufw.Flush(); err != nil {
		return err
	}
	if zw != nil {
		return zw.Close()
	}
	return nil
}

// ReadResult reads a bundle written by WriteResult.
func ReadResult(r io.Reader, gz bool) (*ResultBundle, error) {
	if gz {
		zr, err := pgzip.NewReader(bufio.NewReaderSize(r, 1<<20))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}
	var rb ResultBundle
	if err := gob.NewDecoder(bufio.NewReaderSize(r, 1<<20)).Decode(&rb); err != nil {
		return nil, fmt.Errorf("gob decode: %w", err)
	}
	if rb.Centered == nil {
		return nil, fmt.Errorf("result bundle has no centered profile")
	}
	return &rb, nil
}

// isGzName reports whether a filename implies pgzip framing.
func isGzName(name string) bool {
	return len(name) > 3 && name[len(name)-3:] == ".gz"
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
