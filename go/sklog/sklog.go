// Package sklog is a small leveled-logging facade over the standard
// library's log package. It exists so that package code never imports
// "log" directly, keeping a single seam for redirecting or structuring
// output later without touching call sites.
package sklog

import (
	"fmt"
	"log"
	"os"
)

var logger = log.New(os.Stderr, "", log.LstdFlags|log.Lshortfile)

// SetOutput is used by tests to capture log output.
func SetOutput(l *log.Logger) {
	if l == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags|log.Lshortfile)
		return
	}
	logger = l
}

func output(prefix, format string, args []interface{}) {
	_ = logger.Output(3, prefix+fmt.Sprintf(format, args...))
}

// Debugf logs at debug level.
func Debugf(format string, args ...interface{}) { output("D ", format, args) }

// Infof logs at info level.
func Infof(format string, args ...interface{}) { output("I ", format, args) }

// Warningf logs at warning level.
func Warningf(format string, args ...interface{}) { output("W ", format, args) }

// Errorf logs at error level.
func Errorf(format string, args ...interface{}) { output("E ", format, args) }

// Fatalf logs at fatal level and terminates the process.
func Fatalf(format string, args ...interface{}) {
	output("F ", format, args)
	os.Exit(1)
}

// Fatal logs err at fatal level and terminates the process.
func Fatal(err error) {
	output("F ", "%v", []interface{}{err})
	os.Exit(1)
}

// FmtErrorf logs the formatted message at error level and returns it as an
// error, so a single call site can both report and propagate a failure.
func FmtErrorf(format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	output("E ", "%v", []interface{}{err})
	return err
}
