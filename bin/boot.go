package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/go-undelete/parser"
)

var (
	boot_command = app.Command(
		"boot", "Inspect the volume geometry.")

	boot_command_arg = boot_command.Arg(
		"file", "The image file to inspect",
	).Required().File()

	boot_command_image_offset = boot_command.Flag(
		"image_offset", "The offset in the image to use.",
	).Int64()
)

func doBoot() {
	geometry, err := parser.GetGeometry(*boot_command_arg,
		*boot_command_image_offset)
	kingpin.FatalIfError(err, "Boot record")

	parser.DebugPrint("%v\n", geometry.DebugString())

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Value"})
	defer table.Render()

	stats := geometry.Stats()
	for _, k := range stats.Keys() {
		v, _ := stats.Get(k)
		table.Append([]string{k, fmt.Sprintf("%v", v)})
	}
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case "boot":
			doBoot()
		default:
			return false
		}
		return true
	})
}
