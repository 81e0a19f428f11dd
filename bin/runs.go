package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/go-undelete/parser"
)

var (
	runs_command = app.Command(
		"runs", "Display the $DATA runlist of an MFT record.")

	runs_command_file_arg = runs_command.Arg(
		"file", "The image file to inspect",
	).Required().File()

	runs_command_arg = runs_command.Arg(
		"mft_id", "The MFT record number.",
	).Required().Int64()

	runs_command_mft = runs_command.Flag(
		"mft", "An extracted $MFT to use instead of the image's own",
	).File()

	runs_command_image_offset = runs_command.Flag(
		"image_offset", "The offset in the image to use.",
	).Int64()
)

func doRuns() {
	image := &parser.OffsetReader{
		Offset: *runs_command_image_offset,
		Reader: *runs_command_file_arg,
	}

	var mft []byte
	var err error
	if *runs_command_mft != nil {
		st, err := (*runs_command_mft).Stat()
		kingpin.FatalIfError(err, "Can not open MFT file")
		mft, err = parser.ReadMFTFile(*runs_command_mft, st.Size())
		kingpin.FatalIfError(err, "Can not read MFT file")
	} else {
		mft, err = parser.ReadMFTFromImage(image)
		kingpin.FatalIfError(err, "Can not read $MFT from image")
	}

	walker := parser.NewMFTWalker(mft, nil, parser.GetDefaultOptions())
	record := walker.Record(*runs_command_arg)
	if record == nil {
		kingpin.Fatalf("Record %d is past the end of the $MFT", *runs_command_arg)
	}

	headers, err := parser.DataAttributeHeaders(record)
	kingpin.FatalIfError(err, "Parsing record %d", *runs_command_arg)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Attribute", "Run", "Start", "End", "Length"})
	table.SetCaption(true, fmt.Sprintf("$DATA runs of MFT %d", *runs_command_arg))
	defer table.Render()

	for attr_idx, h := range headers {
		if *debug_flag {
			parser.Debug(h.Header)
		}

		if !h.Header.NonResident {
			table.Append([]string{fmt.Sprintf("%d", attr_idx),
				"resident", "", "", fmt.Sprintf("%d", h.Header.ContentSize)})
			continue
		}

		if int(h.Header.RunlistOffset) > len(h.Raw) {
			fmt.Fprintf(os.Stderr, "Warning: runlist offset %d outside attribute\n",
				h.Header.RunlistOffset)
			continue
		}

		runs, err := parser.DecodeRunList(
			h.Raw[h.Header.RunlistOffset:], parser.DefaultMaxRuns)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		for idx, r := range runs {
			table.Append([]string{
				fmt.Sprintf("%d", attr_idx),
				fmt.Sprintf("%d", idx),
				fmt.Sprintf("%d", r.Start),
				fmt.Sprintf("%d", r.End),
				fmt.Sprintf("%d", r.Length()),
			})
		}
	}
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case "runs":
			doRuns()
		default:
			return false
		}
		return true
	})
}
