package common

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// TimeArg is a command line argument holding a point in time, given either as
// Unix seconds or in RFC 3339 format. The zero value stands for "not set".
type TimeArg time.Time

var _ pflag.Value = (*TimeArg)(nil)

func (f *TimeArg) String() string {
	t := time.Time(*f)
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func (f *TimeArg) Set(value string) error {
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		*f = TimeArg(time.Unix(seconds, 0))
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return fmt.Errorf("expected Unix seconds or an RFC 3339 timestamp, got %q", value)
	}
	*f = TimeArg(t)
	return nil
}

func (f *TimeArg) Type() string {
	return "time"
}

// OrNow returns the argument's time, or the current time if it is not set.
func (f *TimeArg) OrNow() time.Time {
	t := time.Time(*f)
	if t.IsZero() {
		return time.Now()
	}
	return t
}
