package main

import (
	"github.com/james-lawrence/tpm/commands"
)

type cmdStatus struct {
	Service string `arg:"" optional:"" help:"dataservice to report, defaults to the coordinator's" predictor:"tpm.dataservice"`
}

func (t cmdStatus) Run(gctx *Global) error {
	cctx, printer, err := gctx.Cluster()
	if err != nil {
		return err
	}

	s, err := commands.Status(gctx.Context, cctx, t.Service)
	if err != nil {
		return err
	}

	printer.Topology(s)
	return nil
}
