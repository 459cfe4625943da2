package main

import (
	"log"

	"github.com/manifoldco/promptui"

	"github.com/james-lawrence/tpm/commands"
	"github.com/james-lawrence/tpm/ux"
)

func run(gctx *Global, cmd commands.Command) (err error) {
	cctx, printer, err := gctx.Cluster()
	if err != nil {
		return err
	}

	s, err := commands.Run(cctx, cmd, append(gctx.Options(printer), commands.OptionPersist(gctx.Config))...)
	report(printer, s)

	return err
}

func report(printer ux.Printer, s commands.Summary) {
	printer.Validation(s.Validation)

	if len(s.Execution.Results) > 0 {
		printer.Report(s.Execution)
	}

	if s.Persisted != "" {
		printer.Logger.Println("saved", s.Persisted)
	}
}

type cmdDeploy struct{}

func (t cmdDeploy) Run(gctx *Global) error {
	return run(gctx, commands.Deploy{})
}

type cmdReset struct {
	ArchiveLogs bool `name:"archive-logs" help:"keep the transaction and service logs by renaming them instead of deleting them"`
	Yes         bool `short:"y" help:"do not ask for confirmation"`
}

func (t cmdReset) Run(gctx *Global) error {
	if !t.Yes {
		_, err := (&promptui.Prompt{
			Label:     "reset clears the replication state of every host, continue",
			IsConfirm: true,
		}).Run()

		// declined.
		if err != nil {
			log.Println("reset aborted")
			return nil
		}
	}

	return run(gctx, commands.Reset{ArchiveLogs: t.ArchiveLogs})
}

type cmdValidate struct{}

func (t cmdValidate) Run(gctx *Global) error {
	cctx, printer, err := gctx.Cluster()
	if err != nil {
		return err
	}

	s, err := commands.Run(cctx, commands.Validate{}, gctx.Options(printer)...)
	report(printer, s)

	return err
}
