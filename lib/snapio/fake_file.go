package snapio

import (
	"bytes"
	"encoding/binary"
	"os"
)

// FakeFile is a Gadget-2 file that lives in memory. It is used to build
// small, fully known snapshots for testing. Particle data is stored for all
// types concatenated in type order, the same way it is stored on disk.
type FakeFile struct {
	Header  *Header
	X, V    [][3]float32
	ID      []uint64
	IDBytes int
	// Mass holds one entry for each particle whose type has a zero header
	// mass.
	Mass []float32
}

// NewFakeFile creates a single-file snapshot with npart[k] particles of type
// k and IDs that are idBytes wide. Particle i (counting across all types)
// has position {i, i + 0.25, i + 0.5}, velocity {-i, -2i, -3i}, and ID
// 1000 + i. Every type has a header mass of 1 except those listed in
// explicitMass, which get stored masses of k + 0.5.
func NewFakeFile(npart [NTypes]int, idBytes int, explicitMass ...int) *FakeFile {
	hd := &Header{
		Time: 0.5, Redshift: 1.0, NumFiles: 1,
		BoxSize: 62.5, Omega0: 0.27, OmegaLambda: 0.73, HubbleParam: 0.7,
	}
	n := 0
	for k := 0; k < NTypes; k++ {
		hd.NPart[k] = uint32(npart[k])
		hd.NPartTotal[k] = uint32(npart[k])
		hd.Mass[k] = 1.0
		n += npart[k]
	}
	for _, k := range explicitMass {
		hd.Mass[k] = 0
	}

	f := &FakeFile{
		Header: hd, IDBytes: idBytes,
		X: make([][3]float32, n), V: make([][3]float32, n),
		ID: make([]uint64, n),
	}
	for i := 0; i < n; i++ {
		fi := float32(i)
		f.X[i] = [3]float32{fi, fi + 0.25, fi + 0.5}
		f.V[i] = [3]float32{-fi, -2 * fi, -3 * fi}
		f.ID[i] = uint64(1000 + i)
	}

	for k := 0; k < NTypes; k++ {
		if hd.Mass[k] != 0 {
			continue
		}
		for i := 0; i < npart[k]; i++ {
			f.Mass = append(f.Mass, float32(k)+0.5)
		}
	}

	return f
}

// Bytes returns the file's on-disk representation.
func (f *FakeFile) Bytes(order binary.ByteOrder) []byte {
	buf := &bytes.Buffer{}
	if err := WriteHeader(buf, f.Header, order); err != nil {
		panic(err.Error())
	}

	writeBlock := func(x interface{}, size int) {
		if err := WriteMarker(buf, order, int64(size)); err != nil {
			panic(err.Error())
		}
		if err := binary.Write(buf, order, x); err != nil {
			panic(err.Error())
		}
		if err := WriteMarker(buf, order, int64(size)); err != nil {
			panic(err.Error())
		}
	}

	writeBlock(f.X, VectorSize*len(f.X))
	writeBlock(f.V, VectorSize*len(f.V))
	if f.IDBytes == 4 {
		id := make([]uint32, len(f.ID))
		for i := range id {
			id[i] = uint32(f.ID[i])
		}
		writeBlock(id, 4*len(id))
	} else {
		writeBlock(f.ID, 8*len(f.ID))
	}
	if len(f.Mass) > 0 {
		writeBlock(f.Mass, MassSize*len(f.Mass))
	}

	return buf.Bytes()
}

// Write writes the file to disk.
func (f *FakeFile) Write(fileName string, order binary.ByteOrder) error {
	return os.WriteFile(fileName, f.Bytes(order), 0644)
}

// Split divides the file into nFiles files of a multi-file snapshot. Each
// type's particles are spread as evenly as possible, and the snapshot-wide
// totals and file count are set on every header.
func (f *FakeFile) Split(nFiles int) []*FakeFile {
	out := make([]*FakeFile, nFiles)
	for i := range out {
		hd := f.Header.Clone()
		hd.NumFiles = int32(nFiles)
		out[i] = &FakeFile{Header: hd, IDBytes: f.IDBytes}
	}

	start, massStart := 0, 0
	for k := 0; k < NTypes; k++ {
		nk := int(f.Header.NPart[k])
		for i := range out {
			lo, hi := nk*i/nFiles, nk*(i+1)/nFiles
			out[i].Header.NPart[k] = uint32(hi - lo)
			out[i].X = append(out[i].X, f.X[start+lo:start+hi]...)
			out[i].V = append(out[i].V, f.V[start+lo:start+hi]...)
			out[i].ID = append(out[i].ID, f.ID[start+lo:start+hi]...)
			if f.Header.Mass[k] == 0 {
				out[i].Mass = append(out[i].Mass,
					f.Mass[massStart+lo:massStart+hi]...)
			}
		}
		start += nk
		if f.Header.Mass[k] == 0 {
			massStart += nk
		}
	}

	return out
}
