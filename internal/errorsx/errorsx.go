package errorsx

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Compact returns the first error in the set, if any.
func Compact(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}

// MaybeLog logs the error if present.
func MaybeLog(err error) error {
	if err == nil {
		return err
	}

	log.Output(2, fmt.Sprintln(err))
	return err
}

// Ignore returns nil if the error matches any of the provided errors.
func Ignore(err error, ignore ...error) error {
	for _, i := range ignore {
		if errors.Is(err, i) {
			return nil
		}
	}

	return err
}

// String useful wrapper for string constants as errors.
type String string

func (t String) Error() string {
	return string(t)
}

// Timeout error.
type Timeout interface {
	Timedout() time.Duration
}

// Timedout represents a timeout.
func Timedout(cause error, d time.Duration) error {
	if cause == nil {
		return nil
	}

	return timeout{
		error: cause,
		d:     d,
	}
}

type timeout struct {
	error
	d time.Duration
}

func (t timeout) Timedout() time.Duration {
	return t.d
}

func (t timeout) Unwrap() error {
	return t.error
}

// IsTimeout checks if the error represents a timeout.
func IsTimeout(err error) bool {
	var t Timeout
	return errors.As(err, &t)
}

// UserFriendly represents an error that will be displayed to users.
func UserFriendly(err error) error {
	if err == nil {
		return nil
	}

	return userfriendly{
		error: err,
	}
}

type userfriendly struct {
	error
}

// user friendly error
func (t userfriendly) UserFriendly() {}
func (t userfriendly) Unwrap() error {
	return t.error
}
func (t userfriendly) Cause() error {
	return t.error
}

// IsUserFriendly checks if the error was marked as user friendly.
func IsUserFriendly(err error) bool {
	var uf interface{ UserFriendly() }
	return errors.As(err, &uf)
}

// WithHelp attaches operator remediation hints to the error.
func WithHelp(err error, help ...string) error {
	if err == nil || len(help) == 0 {
		return err
	}

	return helpful{
		error: err,
		help:  help,
	}
}

type helpful struct {
	error
	help []string
}

func (t helpful) Help() []string {
	return t.help
}

func (t helpful) Unwrap() error {
	return t.error
}

func (t helpful) Cause() error {
	return t.error
}

// Help returns the remediation hints attached anywhere within the error chain.
func Help(err error) string {
	var (
		h     interface{ Help() []string }
		hints []string
	)

	for err != nil {
		if !errors.As(err, &h) {
			break
		}

		hints = append(hints, h.Help()...)
		err = errors.Unwrap(h.(error))
	}

	return strings.Join(hints, "\n")
}
