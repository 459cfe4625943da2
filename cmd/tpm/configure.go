package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/james-lawrence/tpm"
	"github.com/james-lawrence/tpm/commands"
	"github.com/james-lawrence/tpm/internal/envx"
)

type cmdConfigure struct {
	Definition string `arg:"" optional:"" help:"yaml cluster definition" type:"existingfile"`
}

func (t cmdConfigure) Run(gctx *Global) (err error) {
	if err = os.MkdirAll(filepath.Dir(gctx.Config), 0700); err != nil {
		return errors.Wrap(err, "unable to create the configuration directory")
	}

	s, err := commands.Configure(t.Definition, gctx.Config, gctx.Properties...)
	if err != nil {
		return err
	}

	if envx.Boolean(false, tpm.EnvLogsVerbose) {
		if err = s.Encode(os.Stderr); err != nil {
			return err
		}
	}

	log.Println("saved", gctx.Config)
	return nil
}
