/*package error contains the error kinds that gadget-subsample reports. Errors
returned by the lib/ packages wrap one of these values whenever the failure
has a known kind, so callers should test for a kind with errors.Is.
*/
package error

import (
	"errors"
)

var (
	// ErrNotFound means that neither naming convention of a snapshot file
	// resolves to a readable file.
	ErrNotFound = errors.New("snapshot file not found")
	// ErrCorruptFrame means that the two length markers around a block
	// disagree with each other or with the size implied by the header.
	ErrCorruptFrame = errors.New("corrupt frame")
	// ErrInvalidIDWidth means that the ID block's length marker does not
	// correspond to 4- or 8-byte IDs.
	ErrInvalidIDWidth = errors.New("invalid ID width")
	// ErrUnsupportedSpecies means that the file contains particles of a type
	// other than the one being subsampled.
	ErrUnsupportedSpecies = errors.New("unsupported particle species")
	// ErrSampleSizeExceeded means that more particles were requested than
	// the file contains.
	ErrSampleSizeExceeded = errors.New("sample size exceeds particle count")
	// ErrSizeOverflow means that a block would be too large to describe with
	// a frame length marker.
	ErrSizeOverflow = errors.New("block size overflows frame marker")
	// ErrOutputExists means that an output file is already on disk.
	ErrOutputExists = errors.New("output file already exists")
	// ErrStorageExhausted means that disk space could not be reserved or a
	// write was refused by the file system.
	ErrStorageExhausted = errors.New("storage exhausted")
	// ErrShortRead means that fewer bytes were read than requested.
	ErrShortRead = errors.New("short read")
	// ErrShortWrite means that fewer bytes were written than requested.
	ErrShortWrite = errors.New("short write")
	// ErrFieldAbsent means that an optional block, i.e. masses, is not
	// stored in the file.
	ErrFieldAbsent = errors.New("field absent from file")
	// ErrInvalidConfig means that a user-supplied setting is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrCorruptManifest means that a selection manifest could not be
	// decoded.
	ErrCorruptManifest = errors.New("corrupt selection manifest")
)

var kinds = []struct {
	err   error
	label string
}{
	{ErrNotFound, "not_found"},
	{ErrCorruptFrame, "corrupt_frame"},
	{ErrInvalidIDWidth, "invalid_id_width"},
	{ErrUnsupportedSpecies, "unsupported_species"},
	{ErrSampleSizeExceeded, "sample_size_exceeded"},
	{ErrSizeOverflow, "size_overflow"},
	{ErrOutputExists, "output_exists"},
	{ErrStorageExhausted, "storage_exhausted"},
	{ErrShortRead, "short_read"},
	{ErrShortWrite, "short_write"},
	{ErrFieldAbsent, "field_absent"},
	{ErrInvalidConfig, "invalid_config"},
	{ErrCorruptManifest, "corrupt_manifest"},
}

// Kind returns a short label for the kind of err, suitable for use as a
// metric label. Errors which don't wrap a known kind are labeled "other" and
// nil is labeled "none".
func Kind(err error) string {
	if err == nil {
		return "none"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.label
		}
	}
	return "other"
}
