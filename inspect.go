package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/scott-cotton/cli"

	"github.com/phil-mansfield/gadget-subsample/lib/config"
	g_error "github.com/phil-mansfield/gadget-subsample/lib/error"
	"github.com/phil-mansfield/gadget-subsample/lib/snapio"
)

type inspectConfig struct {
	*cli.Command
	ByteOrder string `cli:"name=byte-order desc='byte order of the snapshot: little, big, or native'"`
}

// InspectCommand returns the inspect subcommand.
func InspectCommand() *cli.Command {
	cfg := &inspectConfig{}
	opts, _ := cli.StructOpts(cfg)
	return cli.NewCommandAt(&cfg.Command, "inspect").
		WithSynopsis("inspect [options] <snapshot> - print a snapshot's header and layout").
		WithOpts(opts...).
		WithRun(cfg.run)
}

func (cfg *inspectConfig) run(cc *cli.Context, args []string) error {
	args, err := cfg.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: inspect requires one argument, a snapshot name", cli.ErrUsage)
	}

	name := config.DefaultByteOrder
	if cfg.ByteOrder != "" {
		name = cfg.ByteOrder
	}
	order, err := config.ParseByteOrder(name)
	if err != nil {
		return fmt.Errorf("%w: %w", cli.ErrUsage, err)
	}

	return inspect(cc.Out, args[0], order)
}

// inspect writes a description of the first file of the named snapshot to w.
func inspect(w io.Writer, name string, order binary.ByteOrder) error {
	hd, fileName, err := snapio.ReadHeader(name, order)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "file:            %s\n", fileName)
	fmt.Fprintf(w, "files:           %d\n", hd.FileCount())
	fmt.Fprintf(w, "particles:       %d in file, %d in snapshot\n",
		hd.FileParticles(), hd.TotalParticles())
	fmt.Fprintf(w, "time:            %g\n", hd.Time)
	fmt.Fprintf(w, "redshift:        %g\n", hd.Z())
	fmt.Fprintf(w, "box size:        %g\n", hd.BoxSize)
	fmt.Fprintf(w, "omega_m:         %g\n", hd.Omega0)
	fmt.Fprintf(w, "omega_l:         %g\n", hd.OmegaLambda)
	fmt.Fprintf(w, "h100:            %g\n", hd.HubbleParam)

	fmt.Fprintf(w, "\n%-6s %12s %14s %14s\n", "type", "npart", "total", "mass")
	for k := 0; k < snapio.NTypes; k++ {
		fmt.Fprintf(w, "%-6d %12d %14d %14g\n",
			k, hd.NPart[k], hd.TypeTotal(k), hd.Mass[k])
	}

	if hd.FileParticles() == 0 {
		fmt.Fprintf(w, "\nThe file contains no particles, so it has no blocks.\n")
		return nil
	}

	idBytes, err := snapio.InferIDWidth(fileName, order)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nid width:        %d bytes\n", idBytes)

	layout := snapio.NewLayout(hd, idBytes)
	fmt.Fprintf(w, "\n%-10s %14s %14s\n", "block", "start", "bytes")
	for _, f := range snapio.Fields {
		start, err := layout.BlockStart(f)
		if errors.Is(err, g_error.ErrFieldAbsent) {
			fmt.Fprintf(w, "%-10s %14s %14s\n", f, "-", "-")
			continue
		} else if err != nil {
			return err
		}
		fmt.Fprintf(w, "%-10s %14d %14d\n", f, start, layout.BlockSize(f))
	}
	fmt.Fprintf(w, "\nexpected file size: %d bytes\n", layout.FileSize())
	return nil
}
