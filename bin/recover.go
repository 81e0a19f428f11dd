package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/go-undelete/parser"
)

var (
	recover_command = app.Command(
		"recover", "Report deleted files found in the MFT.")

	recover_command_file_arg = recover_command.Arg(
		"file", "The raw NTFS image to inspect",
	).Required().File()

	recover_command_mft = recover_command.Flag(
		"mft", "An extracted $MFT to use instead of the image's own",
	).File()

	recover_command_image_offset = recover_command.Flag(
		"image_offset", "The offset in the image to use.",
	).Int64()

	recover_command_json = recover_command.Flag(
		"json", "Emit one JSON object per deleted file",
	).Bool()

	recover_command_no_fixups = recover_command.Flag(
		"no_fixups", "Do not apply update sequence fixups to records",
	).Bool()

	recover_command_raw_content = recover_command.Flag(
		"raw_content", "Do not trim non-resident content to the declared file size",
	).Bool()

	recover_command_trim_resident = recover_command.Flag(
		"trim_resident", "Trim resident content to its declared size",
	).Bool()

	recover_command_all_slots = recover_command.Flag(
		"all_slots", "Also consider records without a FILE signature",
	).Bool()

	recover_command_max_content = recover_command.Flag(
		"max_content", "Maximum bytes recovered per non-resident stream",
	).Default(fmt.Sprintf("%d", parser.DefaultMaxContentSize)).Int64()

	recover_command_workers = recover_command.Flag(
		"workers", "Number of records decoded in parallel",
	).Default("1").Int()
)

func getRecoverOptions() parser.Options {
	options := parser.GetDefaultOptions()
	options.ApplyFixups = !*recover_command_no_fixups
	options.ClampToActualSize = !*recover_command_raw_content
	options.TrimResidentContent = *recover_command_trim_resident
	options.RequireSignature = !*recover_command_all_slots
	options.MaxContentSize = *recover_command_max_content
	options.Workers = *recover_command_workers
	return options
}

func readMFT(image *parser.OffsetReader) []byte {
	if *recover_command_mft != nil {
		st, err := (*recover_command_mft).Stat()
		kingpin.FatalIfError(err, "Can not open MFT file")

		mft, err := parser.ReadMFTFile(*recover_command_mft, st.Size())
		kingpin.FatalIfError(err, "Can not read MFT file")
		return mft
	}

	mft, err := parser.ReadMFTFromImage(image)
	kingpin.FatalIfError(err, "Can not read $MFT from image")
	return mft
}

func doRecover() {
	fd := *recover_command_file_arg
	st, err := fd.Stat()
	kingpin.FatalIfError(err, "Can not open image")

	image := &parser.OffsetReader{
		Offset: *recover_command_image_offset,
		Reader: fd,
	}
	image_size := st.Size() - *recover_command_image_offset

	geometry, err := parser.GetGeometry(image, 0)
	kingpin.FatalIfError(err, "Boot sector")
	if !geometry.HasNTFSMagic() {
		fmt.Fprintf(os.Stderr, "Warning: OEM id is %q, not an NTFS volume?\n",
			geometry.OEMId)
	}

	clusters, err := parser.NewClusterReader(
		image, image_size, geometry.ClusterSize())
	kingpin.FatalIfError(err, "Cluster reader")

	mft := readMFT(image)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	stats, err := recoverFiles(ctx, mft, clusters, getRecoverOptions(),
		*recover_command_json, os.Stdout)
	kingpin.FatalIfError(err, "Recover")
	parser.Printf("%v\n", stats.DebugString())

	printSummary(clusters, stats, len(mft))
}

// Write every deleted file in mft to out, either as the text report
// or as one JSON object per line.
func recoverFiles(ctx context.Context, mft []byte,
	clusters *parser.ClusterReader, options parser.Options,
	as_json bool, out io.Writer) (*parser.Stats, error) {
	stats := &parser.Stats{}
	walker := parser.NewMFTWalker(mft, clusters, options)
	report := parser.NewReportWriter(out)

	for item := range walker.Walk(ctx, stats) {
		if as_json {
			serialized, err := json.Marshal(item.ToDict())
			if err != nil {
				return stats, err
			}
			fmt.Fprintln(out, string(serialized))
			continue
		}
		report.Write(item)
	}

	return stats, nil
}

// The summary goes to stderr so the report on stdout stays
// scriptable.
func printSummary(clusters *parser.ClusterReader, stats *parser.Stats, mft_size int) {
	writeSummary(os.Stderr, clusters, stats, mft_size)
}

func writeSummary(out io.Writer,
	clusters *parser.ClusterReader, stats *parser.Stats, mft_size int) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Item", "Count"})
	table.SetCaption(true, fmt.Sprintf(
		"%v $MFT, cluster size %v, image %v",
		humanize.Bytes(uint64(mft_size)),
		humanize.Bytes(uint64(clusters.ClusterSize())),
		humanize.Bytes(uint64(clusters.ImageSize()))))
	defer table.Render()

	summary := stats.ToDict()
	for _, k := range summary.Keys() {
		v, _ := summary.Get(k)
		value := fmt.Sprintf("%v", v)
		if k == "RecoveredContentLen" {
			value = humanize.Bytes(uint64(stats.RecoveredContentLen))
		}
		table.Append([]string{k, value})
	}
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case "recover":
			doRecover()
		default:
			return false
		}
		return true
	})
}
