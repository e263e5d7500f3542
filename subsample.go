package main

import (
	"context"

	"github.com/scott-cotton/cli"
)

const usageText = `gadget-subsample - random subsampling of Gadget-2 snapshots

Usage:
  gadget-subsample run [options] <input> <output>   Subsample a snapshot
  gadget-subsample run -config <file>                Read settings from a file
  gadget-subsample inspect [options] <snapshot>      Print a snapshot's layout

Snapshot names don't include file indices: "snapdir/snap" refers to either
"snapdir/snap" or "snapdir/snap.0", snap.1, ... Only snapshots where every
particle has type 1 can be subsampled.

Examples:
  gadget-subsample run -fraction 0.01 snapdir_100/snap_100 sub/snap_100
  gadget-subsample run -config subsample.ini -seed 7
  gadget-subsample inspect snapdir_100/snap_100`

func main() {
	cli.MainContext(context.Background(), Root())
}

// Root returns the root command.
func Root() *cli.Command {
	return cli.NewCommand("gadget-subsample").
		WithSynopsis("gadget-subsample - random subsampling of Gadget-2 snapshots").
		WithDescription(usageText).
		WithSubs(
			RunCommand(),
			InspectCommand(),
		)
}
