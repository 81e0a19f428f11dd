package parser

import (
	"fmt"
	"io"
	"strings"
)

// Writes the text report for recovered files. The layout is consumed
// by scripts so field order and labels must not change.
type ReportWriter struct {
	out io.Writer
}

func NewReportWriter(out io.Writer) *ReportWriter {
	return &ReportWriter{out: out}
}

func (self *ReportWriter) printf(format string, args ...interface{}) {
	fmt.Fprintf(self.out, format, args...)
}

func (self *ReportWriter) Write(file *RecoveredFile) {
	self.printf("\n----DELETED FILE #%d----\n\n", file.Index)
	self.printf("Number of MFT record: %d\n\n", file.RecordNumber)
	self.printf("Attributes info:\n\n")

	for _, attr := range file.Attributes {
		self.printf("Attribute %s - %d\n", attr.TypeName(), attr.TypeCode())

		switch t := attr.(type) {
		case *StandardInformation:
			self.writeStandardInformation(t)
		case *FileName:
			self.printf("Deleted file name:%s\n\n", t.DisplayName())
		case *Data:
			self.writeData(t)
		default:
			self.printf("\n")
		}
	}

	for _, warning := range file.Warnings {
		self.printf("Warning: %s\n", warning)
	}
}

func (self *ReportWriter) writeStandardInformation(si *StandardInformation) {
	self.printf("Attribute Type: %d\n", si.AttributeType)
	self.printf("Total Size: %d\n", si.TotalSize)
	self.printf("Creation Time: %s\n", si.Creation)
	self.printf("Modification Time: %s\n", si.Modification)
	self.printf("MFT Modified Time: %s\n", si.MFTModified)
	self.printf("Last Access Time: %s\n\n", si.LastAccess)
}

func (self *ReportWriter) writeData(data *Data) {
	self.printf("Attribute form: %s\n", data.Form())
	self.printf("File content:\n")

	text := data.Text()
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	self.printf("%s\n", text)
}
