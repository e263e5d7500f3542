package snapio

import (
	"encoding/binary"
	"fmt"
	"os"

	g_error "github.com/phil-mansfield/gadget-subsample/lib/error"
)

// InferIDWidth returns the size of a single ID, 4 or 8 bytes, in the given
// file. Gadget-2 headers don't record it, so it is worked out from the ID
// block's leading marker and the number of particles in the file. The width
// is the same for every file in a snapshot, so callers only need to do this
// once.
func InferIDWidth(fileName string, order binary.ByteOrder) (int, error) {
	hd, err := ReadFileHeader(fileName, order)
	if err != nil {
		return 0, err
	}

	n := hd.FileParticles()
	if n == 0 {
		return 0, fmt.Errorf("%w: %s contains no particles, so the ID "+
			"width cannot be inferred from it.", g_error.ErrInvalidIDWidth,
			fileName)
	}

	f, err := os.Open(fileName)
	if err != nil {
		return 0, fmt.Errorf("%w: the file %s cannot be opened. The system "+
			"error is: \"%s\"", g_error.ErrNotFound, fileName, err.Error())
	}
	defer f.Close()

	idStart, err := NewLayout(hd, 0).BlockStart(ID)
	if err != nil {
		return 0, err
	}
	size, err := ReadMarkerAt(f, order, idStart-MarkerSize)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", fileName, err)
	}

	if size%n != 0 || (size/n != 4 && size/n != 8) {
		return 0, fmt.Errorf("%w: the ID block of %s has %d bytes for %d "+
			"particles, which isn't 4 or 8 bytes per ID. The position or "+
			"velocity blocks may not be what the header says they are.",
			g_error.ErrInvalidIDWidth, fileName, size, n)
	}
	return int(size / n), nil
}
