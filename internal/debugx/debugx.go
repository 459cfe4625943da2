// Package debugx goroutine dumps for diagnosing a stuck run.
package debugx

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"time"

	"github.com/pkg/errors"
)

// WriteRoutines writes the stack of every goroutine to dst.
func WriteRoutines(dst io.Writer) error {
	return errors.WithStack(pprof.Lookup("goroutine").WriteTo(dst, 1))
}

// DumpRoutines into a new file within dir and returns its path.
func DumpRoutines(dir string) (path string, err error) {
	path = filepath.Join(dir, fmt.Sprintf("tpm-routines-%d.txt", time.Now().Unix()))

	dst, err := os.Create(path)
	if err != nil {
		return path, errors.Wrapf(err, "unable to create %s", path)
	}
	defer dst.Close()

	return path, WriteRoutines(dst)
}

// DumpOnSignal dumps the goroutines into the temp directory every time one of
// the signals arrives. blocks until the context is done.
func DumpOnSignal(ctx context.Context, sigs ...os.Signal) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, sigs...)
	defer signal.Stop(signals)

	for {
		select {
		case <-ctx.Done():
			return
		case <-signals:
		}

		path, err := DumpRoutines(os.TempDir())
		if err != nil {
			log.Println("routine dump failed, writing to stderr:", err)
			_ = WriteRoutines(os.Stderr)
			continue
		}

		log.Println("routine dump located at:", path)
	}
}
