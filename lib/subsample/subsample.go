/*package subsample writes a random subsample of the particles in a Gadget-2
snapshot to a new snapshot. Every output file keeps the particles of its
input file in their original order, so output files can be matched back to
their parents.

Only dark matter-only snapshots are supported: every particle must have type
snapio.TargetType. Each file is subsampled independently, keeping
floor(fraction * n) of its n particles. One random stream is shared by all
the files of a snapshot and consumed in file order, so a given seed always
selects the same particles.
*/
package subsample

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"time"

	"github.com/phil-mansfield/gadget-subsample/lib/copier"
	g_error "github.com/phil-mansfield/gadget-subsample/lib/error"
	"github.com/phil-mansfield/gadget-subsample/lib/logger"
	"github.com/phil-mansfield/gadget-subsample/lib/manifest"
	"github.com/phil-mansfield/gadget-subsample/lib/metrics"
	"github.com/phil-mansfield/gadget-subsample/lib/sample"
	"github.com/phil-mansfield/gadget-subsample/lib/snapio"
)

// Config describes a single subsampling run.
type Config struct {
	// Fraction is the fraction of particles kept in each file. Values above
	// one fail with ErrSampleSizeExceeded.
	Fraction float64
	// Input and Output are snapshot names, without file indices.
	Input, Output string
	// Strategy is the copier strategy used for record copies. Defaults to
	// copier.Mmap.
	Strategy string
	// Order is the byte order of the input and output files. Defaults to
	// little endian.
	Order binary.ByteOrder
	// Manifest is an optional path for a selection manifest.
	Manifest string
}

// Summary describes a completed run.
type Summary struct {
	Files            int
	IDBytes          int
	ParticlesRead    int64
	ParticlesWritten int64
	Outputs          []string
	Elapsed          time.Duration
}

// Run subsamples the snapshot described by cfg, drawing random numbers from
// stream. Metrics are recorded in m, which may be nil. The first failure
// aborts the run. Output files written before the failure are left on disk.
func Run(cfg *Config, stream sample.Stream, m *metrics.Metrics) (*Summary, error) {
	if m == nil {
		m = metrics.New()
	}

	t0 := time.Now()
	sum, err := run(cfg, stream, m)
	elapsed := time.Since(t0)

	m.RunDuration.Set(elapsed.Seconds())
	m.ObserveFailure(err)
	if err != nil {
		return nil, err
	}

	sum.Elapsed = elapsed
	logger.Log.Info("subsampling finished",
		"output", cfg.Output,
		"files", sum.Files,
		"particles_read", sum.ParticlesRead,
		"particles_written", sum.ParticlesWritten,
		"elapsed", elapsed,
	)
	return sum, nil
}

func run(cfg *Config, stream sample.Stream, m *metrics.Metrics) (*Summary, error) {
	cfg, err := checkConfig(cfg)
	if err != nil {
		return nil, err
	}

	p, err := newPlan(cfg)
	if err != nil {
		return nil, err
	}

	idBytes, err := p.idWidth(cfg.Order)
	if err != nil {
		return nil, err
	}
	logger.Log.Info("starting subsample",
		"input", cfg.Input,
		"output", cfg.Output,
		"fraction", cfg.Fraction,
		"files", len(p.inputs),
		"id_bytes", idBytes,
		"strategy", cfg.Strategy,
	)

	var mwr *manifest.Writer
	if cfg.Manifest != "" {
		mwr, err = manifest.Create(cfg.Manifest, cfg.Order, len(p.inputs))
		if err != nil {
			return nil, err
		}
		// A manifest left by a failed run is truncated and fails to Read.
		defer func() {
			if mwr != nil {
				mwr.Close()
			}
		}()
	}

	sum := &Summary{Files: len(p.inputs), IDBytes: idBytes}
	var indices []int
	for i := range p.inputs {
		f := &fileRun{
			index: i, nFiles: len(p.inputs),
			inName: p.inputs[i], outName: p.outputs[i],
			cfg: cfg, idBytes: idBytes,
			stream: stream, indices: indices, m: m,
		}
		if err := f.run(); err != nil {
			return nil, err
		}
		indices = f.indices

		if mwr != nil {
			if err := mwr.Add(i, int(f.n), f.indices); err != nil {
				return nil, err
			}
		}
		sum.ParticlesRead += f.n
		sum.ParticlesWritten += f.k
		sum.Outputs = append(sum.Outputs, f.outName)
	}

	if mwr != nil {
		err := mwr.Close()
		mwr = nil
		if err != nil {
			return nil, err
		}
		logger.Log.Info("wrote selection manifest", "manifest", cfg.Manifest)
	}

	return sum, nil
}

// checkConfig validates cfg and returns a copy with defaults filled in.
// Fractions above one are caught per file, when the requested number of
// particles is compared against the number available.
func checkConfig(cfg *Config) (*Config, error) {
	out := *cfg
	if !(out.Fraction > 0) || math.IsInf(out.Fraction, 0) {
		return nil, fmt.Errorf("%w: the subsample fraction is %g, but it "+
			"must be positive.", g_error.ErrInvalidConfig, out.Fraction)
	} else if out.Input == "" || out.Output == "" {
		return nil, fmt.Errorf("%w: both an input and an output snapshot "+
			"must be given.", g_error.ErrInvalidConfig)
	} else if out.Input == out.Output {
		return nil, fmt.Errorf("%w: the input and output snapshots are "+
			"both '%s'.", g_error.ErrInvalidConfig, out.Input)
	}

	if out.Strategy == "" {
		out.Strategy = copier.Mmap
	}
	if out.Order == nil {
		out.Order = binary.LittleEndian
	}
	return &out, nil
}

// SampleSize returns the number of particles kept out of n.
func SampleSize(fraction float64, n int64) int64 {
	return int64(math.Floor(fraction * float64(n)))
}

// plan lists the files of a snapshot and checks everything about them that
// can be checked before any output is written.
type plan struct {
	inputs, outputs []string
	headers         []*snapio.Header
}

// OutputNames returns the input and output file names of a snapshot with
// nFiles files. firstFile is the name that the first input file was found
// under. Single-file outputs follow the same convention as their input.
func OutputNames(input, output, firstFile string, nFiles int) (inputs, outputs []string) {
	if nFiles == 1 {
		if firstFile == input {
			return []string{input}, []string{output}
		}
		return []string{firstFile}, []string{fmt.Sprintf("%s.0", output)}
	}

	for i := 0; i < nFiles; i++ {
		inputs = append(inputs, fmt.Sprintf("%s.%d", input, i))
		outputs = append(outputs, fmt.Sprintf("%s.%d", output, i))
	}
	return inputs, outputs
}

func newPlan(cfg *Config) (*plan, error) {
	hd, firstFile, err := snapio.ReadHeader(cfg.Input, cfg.Order)
	if err != nil {
		return nil, err
	}

	p := &plan{}
	p.inputs, p.outputs = OutputNames(cfg.Input, cfg.Output, firstFile,
		hd.FileCount())

	for i := range p.inputs {
		if i > 0 {
			if hd, err = snapio.ReadFileHeader(p.inputs[i], cfg.Order); err != nil {
				return nil, err
			}
		}
		if err := checkSpecies(p.inputs[i], hd); err != nil {
			return nil, err
		}
		if p.inputs[i] == p.outputs[i] {
			return nil, fmt.Errorf("%w: input file %s would be overwritten.",
				g_error.ErrInvalidConfig, p.inputs[i])
		}
		if err := checkOutputAbsent(p.outputs[i]); err != nil {
			return nil, err
		}

		p.headers = append(p.headers, hd)
	}

	return p, nil
}

// idWidth infers the ID width from the first file which has any particles.
// A snapshot without particles has no IDs, so any width will do.
func (p *plan) idWidth(order binary.ByteOrder) (int, error) {
	for i := range p.inputs {
		if p.headers[i].FileParticles() > 0 {
			return snapio.InferIDWidth(p.inputs[i], order)
		}
	}
	logger.Log.Warn("snapshot contains no particles", "input", p.inputs[0])
	return 4, nil
}

// checkSpecies returns an error if the file contains particles of any type
// other than snapio.TargetType.
func checkSpecies(fileName string, hd *snapio.Header) error {
	for k := 0; k < snapio.NTypes; k++ {
		if k != snapio.TargetType && hd.NPart[k] > 0 {
			return fmt.Errorf("%w: %s contains %d particles of type %d. "+
				"Only snapshots where every particle has type %d can be "+
				"subsampled.", g_error.ErrUnsupportedSpecies, fileName,
				hd.NPart[k], k, snapio.TargetType)
		}
	}
	return nil
}

func checkOutputAbsent(fileName string) error {
	_, err := os.Stat(fileName)
	if err == nil {
		return fmt.Errorf("%w: %s already exists and will not be "+
			"overwritten.", g_error.ErrOutputExists, fileName)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("could not check whether %s exists: %w",
			fileName, err)
	}
	return nil
}
