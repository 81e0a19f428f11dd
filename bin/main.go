package main

import (
	"os"

	"github.com/sirupsen/logrus"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/go-undelete/parser"
)

type CommandHandler func(command string) bool

var (
	app = kingpin.New("undelete",
		"Recover deleted files from the MFT of an NTFS image.")

	verbose_flag = app.Flag("verbose", "Log every record warning").
			Short('v').Bool()

	debug_flag = app.Flag("debug", "Print debugging information").Bool()

	command_handlers []CommandHandler
)

func main() {
	app.HelpFlag.Short('h')
	app.UsageTemplate(kingpin.CompactUsageTemplate)
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *debug_flag {
		parser.SetDebug()
	} else if !*verbose_flag {
		// Warnings are already part of the report.
		parser.Logger.SetLevel(logrus.ErrorLevel)
	}

	for _, command_handler := range command_handlers {
		if command_handler(command) {
			break
		}
	}
}
