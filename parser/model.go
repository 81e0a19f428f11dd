package parser

import (
	"github.com/Velocidex/ordereddict"
)

// Everything recovered from a single deleted MFT record.
type RecoveredFile struct {
	// Sequential number of this deleted file within the walk.
	Index int

	RecordNumber int64

	Attributes []Attribute
	Warnings   []string

	problems []error
}

func (self *RecoveredFile) addProblem(err error) {
	self.problems = append(self.problems, err)
	self.Warnings = append(self.Warnings, err.Error())
}

func (self *RecoveredFile) Problems() []error {
	return self.problems
}

func (self *RecoveredFile) StandardInformation() *StandardInformation {
	for _, attr := range self.Attributes {
		si, ok := attr.(*StandardInformation)
		if ok {
			return si
		}
	}
	return nil
}

func (self *RecoveredFile) FileNames() []*FileName {
	result := []*FileName{}
	for _, attr := range self.Attributes {
		fn, ok := attr.(*FileName)
		if ok {
			result = append(result, fn)
		}
	}
	return result
}

// The longest valid name is usually the Win32 long name rather than
// the DOS 8.3 one.
func (self *RecoveredFile) FileName() string {
	result := ""
	for _, fn := range self.FileNames() {
		if fn.Err == nil && len(fn.Name) > len(result) {
			result = fn.Name
		}
	}
	return result
}

func (self *RecoveredFile) Data() []*Data {
	result := []*Data{}
	for _, attr := range self.Attributes {
		data, ok := attr.(*Data)
		if ok {
			result = append(result, data)
		}
	}
	return result
}

func (self *RecoveredFile) ToDict() *ordereddict.Dict {
	attributes := make([]*ordereddict.Dict, 0, len(self.Attributes))
	for _, attr := range self.Attributes {
		attributes = append(attributes, attr.ToDict())
	}

	warnings := self.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	return ordereddict.NewDict().
		Set("Index", self.Index).
		Set("RecordNumber", self.RecordNumber).
		Set("FileName", self.FileName()).
		Set("Attributes", attributes).
		Set("Warnings", warnings)
}
