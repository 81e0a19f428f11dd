package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
)

var (
	debug = false

	UNDELETE_DEBUG *bool

	// Record level warnings go here. The CLI raises the level with
	// --verbose.
	Logger = logrus.New()
)

func init() {
	Logger.SetLevel(logrus.WarnLevel)
}

func Debug(arg interface{}) {
	spew.Dump(arg)
}

func SetDebug() {
	debug = true
	Logger.SetLevel(logrus.DebugLevel)
}

func Printf(fmt_str string, args ...interface{}) {
	if debug {
		fmt.Printf(fmt_str, args...)
	}
}

func DebugPrint(fmt_str string, v ...interface{}) {
	if UNDELETE_DEBUG == nil {
		// os.Environ() seems very expensive in Go so we cache
		// it.
		for _, x := range os.Environ() {
			if strings.HasPrefix(x, "UNDELETE_DEBUG=") {
				value := true
				UNDELETE_DEBUG = &value
				break
			}
		}
	}

	if UNDELETE_DEBUG == nil {
		value := false
		UNDELETE_DEBUG = &value
	}

	if *UNDELETE_DEBUG {
		fmt.Printf(fmt_str, v...)
	}
}

func warnRecord(record_number int64, err error) {
	Logger.WithFields(logrus.Fields{
		"Record": record_number,
	}).Warn(err.Error())
}
