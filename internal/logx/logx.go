package logx

import (
	"io"
	"log"
	"strings"
)

// Discard logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// Lines logs each line of the provided output individually.
func Lines(l *log.Logger, output string) {
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		l.Println(line)
	}
}
