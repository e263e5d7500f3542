package main

import (
	"fmt"

	"github.com/scott-cotton/cli"

	"github.com/phil-mansfield/gadget-subsample/lib/config"
	"github.com/phil-mansfield/gadget-subsample/lib/logger"
	"github.com/phil-mansfield/gadget-subsample/lib/metrics"
	"github.com/phil-mansfield/gadget-subsample/lib/sample"
	"github.com/phil-mansfield/gadget-subsample/lib/subsample"
)

type runConfig struct {
	*cli.Command
	Config      string `cli:"name=config aliases=c desc='gcfg config file, overridden by any other option'"`
	Fraction    string `cli:"name=fraction aliases=f desc='fraction of particles kept in each file, in (0, 1]'"`
	Seed        string `cli:"name=seed aliases=s desc='random seed (default 42)'"`
	Generator   string `cli:"name=generator desc='random generator: mt19937, mt19937_64, or xorshift'"`
	Strategy    string `cli:"name=strategy desc='copy strategy: buffered, mmap, writev, or sendfile'"`
	ByteOrder   string `cli:"name=byte-order desc='byte order of the snapshot: little, big, or native'"`
	Manifest    string `cli:"name=manifest aliases=m desc='write the selected indices to this file'"`
	MetricsFile string `cli:"name=metrics-file desc='write prometheus metrics to this file'"`
	LogLevel    string `cli:"name=log-level desc='debug, info, warn, or error'"`
	LogFormat   string `cli:"name=log-format desc='console or json'"`
}

// RunCommand returns the run subcommand.
func RunCommand() *cli.Command {
	cfg := &runConfig{}
	opts, _ := cli.StructOpts(cfg)
	return cli.NewCommandAt(&cfg.Command, "run").
		WithSynopsis("run [options] <input> <output> - subsample a snapshot").
		WithOpts(opts...).
		WithRun(cfg.run)
}

func (cfg *runConfig) run(cc *cli.Context, args []string) error {
	args, err := cfg.Parse(cc, args)
	if err != nil {
		return err
	}

	raw, err := cfg.rawArgs(args)
	if err != nil {
		return err
	}
	a, err := raw.Process()
	if err != nil {
		return fmt.Errorf("%w: %w", cli.ErrUsage, err)
	}

	logger.Setup(a.LogLevel, a.LogFormat)
	sum, err := runArgs(a, metrics.New())
	if err != nil {
		logger.Log.Error("subsampling failed", "error", err)
		return cli.ExitCodeErr(1)
	}

	fmt.Fprintf(cc.Out, "Wrote %d of %d particles to %d file(s) in %s.\n",
		sum.ParticlesWritten, sum.ParticlesRead, sum.Files, sum.Elapsed)
	return nil
}

// rawArgs combines the config file, if any, with the command line options
// and the positional input and output names.
func (cfg *runConfig) rawArgs(args []string) (*config.RawArgs, error) {
	raw := &config.RawArgs{}
	if cfg.Config != "" {
		var err error
		if raw, err = config.ParseConfigFile(cfg.Config); err != nil {
			return nil, err
		}
	}

	cmd := &config.RawArgs{}
	s := &cmd.Subsample
	s.Fraction, s.Seed = cfg.Fraction, cfg.Seed
	s.Generator, s.Strategy, s.ByteOrder = cfg.Generator, cfg.Strategy, cfg.ByteOrder
	s.Manifest, s.MetricsFile = cfg.Manifest, cfg.MetricsFile
	cmd.Log.Level, cmd.Log.Format = cfg.LogLevel, cfg.LogFormat

	switch len(args) {
	case 0:
	case 2:
		s.Input, s.Output = args[0], args[1]
	default:
		return nil, fmt.Errorf("%w: run takes an input and an output "+
			"snapshot, or neither if both are set in the config file, "+
			"got %v", cli.ErrUsage, args)
	}

	raw.Overwrite(cmd)
	return raw, nil
}

// runArgs subsamples the snapshot described by a. If a metrics file was
// requested, it is written whether or not the run succeeds.
func runArgs(a *config.Args, m *metrics.Metrics) (*subsample.Summary, error) {
	stream, err := sample.NewStream(a.Generator, a.Seed)
	if err != nil {
		return nil, err
	}

	sum, err := subsample.Run(&subsample.Config{
		Fraction: a.Fraction,
		Input:    a.Input,
		Output:   a.Output,
		Strategy: a.Strategy,
		Order:    a.Order,
		Manifest: a.Manifest,
	}, stream, m)

	if a.MetricsFile != "" {
		if mErr := m.WriteTextfile(a.MetricsFile); mErr != nil {
			logger.Log.Warn("could not export metrics", "error", mErr)
		}
	}
	return sum, err
}
