package subsample

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/phil-mansfield/gadget-subsample/lib/copier"
	g_error "github.com/phil-mansfield/gadget-subsample/lib/error"
	"github.com/phil-mansfield/gadget-subsample/lib/logger"
	"github.com/phil-mansfield/gadget-subsample/lib/metrics"
	"github.com/phil-mansfield/gadget-subsample/lib/sample"
	"github.com/phil-mansfield/gadget-subsample/lib/snapio"
)

// copiedFields are the blocks written to output files, in order. Masses
// are never written.
var copiedFields = []struct {
	field snapio.Field
	state State
}{
	{snapio.Position, CopyPositions},
	{snapio.Velocity, CopyVelocities},
	{snapio.ID, CopyIDs},
}

// fileRun subsamples a single input file into a single output file.
type fileRun struct {
	index, nFiles   int
	inName, outName string
	cfg             *Config
	idBytes         int
	stream          sample.Stream
	m               *metrics.Metrics
	log             *logger.Logger

	state    State
	in, out  *os.File
	strat    copier.Strategy
	hd       *snapio.Header
	layout   *snapio.Layout
	n, k     int64
	size     int64
	indices  []int
	copyTime [3]time.Duration
}

// run moves the file through every State, stopping at the first error.
func (f *fileRun) run() error {
	defer f.cleanup()
	f.log = logger.Log.With("input", f.inName)

	steps := []struct {
		state State
		fn    func() error
	}{
		{Init, f.init},
		{ValidateInput, f.validateInput},
		{AllocateOutput, f.allocateOutput},
		{WriteHeader, f.writeHeader},
		{CopyPositions, f.copyPositions},
		{CopyVelocities, func() error { return f.copyField(1) }},
		{CopyIDs, func() error { return f.copyField(2) }},
		{Finalize, f.finalize},
	}

	for _, step := range steps {
		f.state = step.state
		f.log.Debug("entering state", "state", f.state.String())
		if err := step.fn(); err != nil {
			return &StateError{f.inName, f.state, err}
		}
	}
	f.state = Done

	f.m.FilesWritten.Inc()
	f.m.ParticlesRead.Add(float64(f.n))
	f.m.ParticlesWritten.Add(float64(f.k))
	f.log.Info("wrote subsampled file",
		"output", f.outName,
		"index", f.index+1,
		"files", f.nFiles,
		"source_particles", f.n,
		"written_particles", f.k,
		"position_time", f.copyTime[0],
		"velocity_time", f.copyTime[1],
		"id_time", f.copyTime[2],
	)
	return nil
}

// cleanup releases any handles which are still open after a failure.
func (f *fileRun) cleanup() {
	if f.strat != nil {
		f.strat.Close()
	}
	if f.out != nil {
		f.out.Close()
	}
	if f.in != nil {
		f.in.Close()
	}
}

func (f *fileRun) order() binary.ByteOrder { return f.cfg.Order }

func (f *fileRun) init() error {
	var err error
	f.in, err = os.Open(f.inName)
	if err != nil {
		return fmt.Errorf("%w: the file %s cannot be opened. The system "+
			"error is: \"%s\"", g_error.ErrNotFound, f.inName, err.Error())
	}

	f.hd, err = snapio.ReadHeaderFrom(f.in, f.order())
	if err != nil {
		return err
	}
	return nil
}

func (f *fileRun) validateInput() error {
	if err := checkSpecies(f.inName, f.hd); err != nil {
		return err
	}

	f.n = int64(f.hd.NPart[snapio.TargetType])
	f.k = SampleSize(f.cfg.Fraction, f.n)
	if f.k > f.n {
		return fmt.Errorf("%w: %d particles were requested, but %s only "+
			"contains %d.", g_error.ErrSampleSizeExceeded, f.k, f.inName, f.n)
	}

	// Sizes implied by the header are checked before the input is read, so
	// an oversized header is reported as an overflow rather than as a
	// short file.
	f.layout = snapio.NewLayout(f.hd, f.idBytes)
	if err := f.layout.CheckFrames(); err != nil {
		return err
	}
	f.size = snapio.HeaderDiskSize
	for _, c := range copiedFields {
		blockSize := f.k * f.layout.ItemSize(c.field)
		if err := snapio.CheckFrameSize(c.field.String(), blockSize); err != nil {
			return err
		}
		f.size += blockSize + snapio.FrameOverhead
	}

	if err := f.checkInputFrames(); err != nil {
		return err
	}
	if f.layout.Present(snapio.Mass) {
		f.log.Warn("input file stores particle masses, which will " +
			"not be written to the output")
	}
	return nil
}

// checkInputFrames checks that the input is large enough for the blocks
// its header describes and that the markers around every block which will
// be read agree with the header.
func (f *fileRun) checkInputFrames() error {
	info, err := f.in.Stat()
	if err != nil {
		return fmt.Errorf("%w: could not stat %s: %s", g_error.ErrNotFound,
			f.inName, err.Error())
	}
	if size := f.layout.FileSize(); size > info.Size() {
		return fmt.Errorf("%w: the header of %s implies a file with %d "+
			"bytes, but it actually has %d bytes.", g_error.ErrShortRead,
			f.inName, size, info.Size())
	}

	for _, c := range copiedFields {
		start, err := f.layout.BlockStart(c.field)
		if err != nil {
			return err
		}
		size := f.layout.BlockSize(c.field)

		nHeader, err := snapio.ReadMarkerAt(f.in, f.order(), start-snapio.MarkerSize)
		if err != nil {
			return err
		}
		nFooter, err := snapio.ReadMarkerAt(f.in, f.order(), start+size)
		if err != nil {
			return err
		}
		if nHeader != size || nFooter != size {
			return fmt.Errorf("%w: the '%s' block in %s should have %d "+
				"bytes, but its header and footer are %d and %d.",
				g_error.ErrCorruptFrame, c.field, f.inName, size,
				nHeader, nFooter)
		}
	}
	return nil
}

func (f *fileRun) allocateOutput() error {
	var err error
	f.out, err = os.OpenFile(f.outName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s already exists and will not be "+
			"overwritten.", g_error.ErrOutputExists, f.outName)
	} else if err != nil {
		return fmt.Errorf("could not create %s: %w", f.outName, err)
	}

	if err := copier.Reserve(f.out, f.size); err != nil {
		return err
	}
	return nil
}

// writeHeader writes a copy of the input header in which only the target
// type's per-file count is changed. Snapshot-wide totals are left as they
// were in the input.
func (f *fileRun) writeHeader() error {
	hd := f.hd.Clone()
	hd.NPart[snapio.TargetType] = uint32(f.k)
	return snapio.WriteHeader(f.out, hd, f.order())
}

func (f *fileRun) copyPositions() error {
	var err error
	f.indices, err = sample.Indices(int(f.n), int(f.k), f.stream, f.indices)
	if err != nil {
		return err
	}

	f.strat, err = copier.New(f.cfg.Strategy, f.in)
	if err != nil {
		return err
	}
	return f.copyField(0)
}

// copyField writes the ith copied field as a framed block.
func (f *fileRun) copyField(i int) error {
	field := copiedFields[i].field
	itemSize := f.layout.ItemSize(field)
	blockSize := f.k * itemSize

	base, err := f.layout.TypeStart(field, snapio.TargetType)
	if err != nil {
		return err
	}

	if err := snapio.WriteMarker(f.out, f.order(), blockSize); err != nil {
		return err
	}
	t0 := time.Now()
	written, err := f.strat.Copy(f.out, base, itemSize, f.indices)
	if err != nil {
		return fmt.Errorf("copying the %s block: %w", field, err)
	} else if written != blockSize {
		return fmt.Errorf("%w: wrote %d of %d bytes of the %s block.",
			g_error.ErrShortWrite, written, blockSize, field)
	}
	f.copyTime[i] = time.Since(t0)
	if err := snapio.WriteMarker(f.out, f.order(), blockSize); err != nil {
		return err
	}

	f.m.ObserveCopy(field.String(), written, f.copyTime[i])
	return nil
}

func (f *fileRun) finalize() error {
	strat := f.strat
	f.strat = nil
	if err := strat.Close(); err != nil {
		return fmt.Errorf("could not release the source of %s: %w",
			f.inName, err)
	}

	pos, err := f.out.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("could not find the end of %s: %w", f.outName, err)
	} else if pos != f.size {
		return fmt.Errorf("%w: wrote %d bytes to %s, but expected %d.",
			g_error.ErrShortWrite, pos, f.outName, f.size)
	}

	out := f.out
	f.out = nil
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: closing %s failed: %s",
			g_error.ErrStorageExhausted, f.outName, err.Error())
	}

	in := f.in
	f.in = nil
	if err := in.Close(); err != nil {
		return fmt.Errorf("could not close %s: %w", f.inName, err)
	}

	info, err := os.Stat(f.outName)
	if err != nil {
		return fmt.Errorf("could not stat %s: %w", f.outName, err)
	} else if info.Size() != f.size {
		return fmt.Errorf("%w: %s has %d bytes, but %d bytes were "+
			"reserved.", g_error.ErrShortWrite, f.outName, info.Size(),
			f.size)
	}
	return nil
}
