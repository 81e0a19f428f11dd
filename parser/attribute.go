package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
)

const (
	ATTR_TYPE_STANDARD_INFORMATION = 16
	ATTR_TYPE_ATTRIBUTE_LIST       = 32
	ATTR_TYPE_FILE_NAME            = 48
	ATTR_TYPE_VOLUME_VERSION       = 64
	ATTR_TYPE_SECURITY_DESCRIPTOR  = 80
	ATTR_TYPE_VOLUME_NAME          = 96
	ATTR_TYPE_VOLUME_INFORMATION   = 112
	ATTR_TYPE_DATA                 = 128
	ATTR_TYPE_INDEX_ROOT           = 144
	ATTR_TYPE_INDEX_ALLOCATION     = 160
	ATTR_TYPE_BITMAP               = 176
	ATTR_TYPE_SYMBOLIC_LINK        = 192

	// Terminates the attribute chain of a record.
	ATTR_TYPE_END = 0xFFFFFFFF
)

var attributeTypeNames = map[uint32]string{
	ATTR_TYPE_STANDARD_INFORMATION: "$STANDARD_INFORMATION",
	ATTR_TYPE_ATTRIBUTE_LIST:       "$ATTRIBUTE_LIST",
	ATTR_TYPE_FILE_NAME:            "$FILE_NAME",
	ATTR_TYPE_VOLUME_VERSION:       "$VOLUME_VERSION",
	ATTR_TYPE_SECURITY_DESCRIPTOR:  "$SECURITY_DESCRIPTOR",
	ATTR_TYPE_VOLUME_NAME:          "$VOLUME_NAME",
	ATTR_TYPE_VOLUME_INFORMATION:   "$VOLUME_INFORMATION",
	ATTR_TYPE_DATA:                 "$DATA",
	ATTR_TYPE_INDEX_ROOT:           "$INDEX_ROOT",
	ATTR_TYPE_INDEX_ALLOCATION:     "$INDEX_ALLOCATION",
	ATTR_TYPE_BITMAP:               "$BITMAP",
	ATTR_TYPE_SYMBOLIC_LINK:        "$SYMBOLIC_LINK",
}

// Returns the name of a known attribute type code.
func AttributeTypeName(code uint32) (string, bool) {
	name, pres := attributeTypeNames[code]
	return name, pres
}

const (
	// Common attribute header.
	attrTypeOffset        = 0x00
	attrLengthOffset      = 0x04
	attrNonResidentOffset = 0x08

	// Resident attributes.
	attrContentSizeOffset   = 0x10
	attrContentOffsetOffset = 0x14

	// Non-resident attributes.
	attrRunlistOffsetOffset = 0x20
	attrActualSizeOffset    = 0x30

	// The smallest header we can make sense of.
	MinAttributeLength = 0x18

	// $STANDARD_INFORMATION timestamps follow the 24 byte resident
	// header.
	siTimesOffset = 24

	// Fixed part of the $FILE_NAME structure before the name.
	FileNamePrefixLength = 66
	fnNamespaceOffset    = 0x41
)

type AttributeHeader struct {
	Type        uint32
	Length      uint32
	NonResident bool

	// Only meaningful for resident attributes.
	ContentSize   uint32
	ContentOffset uint16

	// Only meaningful for non-resident attributes.
	RunlistOffset uint16
	ActualSize    uint64
}

func ParseAttributeHeader(buf []byte) (*AttributeHeader, error) {
	if len(buf) < MinAttributeLength {
		return nil, errors.Wrapf(OutOfBoundsReadError,
			"Attribute header needs %d bytes, have %d",
			MinAttributeLength, len(buf))
	}

	result := &AttributeHeader{}
	result.Type, _ = getUint32(buf, attrTypeOffset)
	result.Length, _ = getUint32(buf, attrLengthOffset)
	flag, _ := getUint8(buf, attrNonResidentOffset)
	result.NonResident = flag != 0

	var err error
	if result.NonResident {
		result.RunlistOffset, err = getUint16(buf, attrRunlistOffsetOffset)
		if err != nil {
			return nil, err
		}
		result.ActualSize, err = getUint64(buf, attrActualSizeOffset)
		if err != nil {
			return nil, err
		}
	} else {
		result.ContentSize, _ = getUint32(buf, attrContentSizeOffset)
		result.ContentOffset, _ = getUint16(buf, attrContentOffsetOffset)
	}

	return result, nil
}

// Returns the resident value of the attribute.
func (self *AttributeHeader) ResidentValue(buf []byte) ([]byte, error) {
	start := int(self.ContentOffset)
	end := start + int(self.ContentSize)
	if self.NonResident || start > len(buf) || end > len(buf) {
		return nil, errors.Wrapf(OutOfBoundsReadError,
			"Resident value %d-%d outside attribute of %d bytes",
			start, end, len(buf))
	}
	return buf[start:end], nil
}

// Every decoded attribute is one of StandardInformation, FileName,
// Data or Other.
type Attribute interface {
	TypeCode() uint32
	TypeName() string
	ToDict() *ordereddict.Dict
}

type StandardInformation struct {
	AttributeType uint32
	TotalSize     uint32

	Creation     WinFileTime
	Modification WinFileTime
	MFTModified  WinFileTime
	LastAccess   WinFileTime
}

func (self *StandardInformation) TypeCode() uint32 {
	return ATTR_TYPE_STANDARD_INFORMATION
}

func (self *StandardInformation) TypeName() string {
	return attributeTypeNames[ATTR_TYPE_STANDARD_INFORMATION]
}

func (self *StandardInformation) Times() []WinFileTime {
	return []WinFileTime{
		self.Creation, self.Modification, self.MFTModified, self.LastAccess}
}

func (self *StandardInformation) ToDict() *ordereddict.Dict {
	return ordereddict.NewDict().
		Set("Type", self.TypeName()).
		Set("TypeId", self.TypeCode()).
		Set("AttributeType", self.AttributeType).
		Set("TotalSize", self.TotalSize).
		Set("CreationTime", self.Creation.String()).
		Set("ModificationTime", self.Modification.String()).
		Set("MFTModifiedTime", self.MFTModified.String()).
		Set("LastAccessTime", self.LastAccess.String())
}

var fileNameNamespaces = map[uint8]string{
	0: "POSIX",
	1: "Win32",
	2: "DOS",
	3: "DOS+Win32",
}

type FileName struct {
	Name string

	// Set when the name could not be decoded. Name is then empty.
	Err error

	ParentRecord uint64
	Namespace    string
}

func (self *FileName) TypeCode() uint32 {
	return ATTR_TYPE_FILE_NAME
}

func (self *FileName) TypeName() string {
	return attributeTypeNames[ATTR_TYPE_FILE_NAME]
}

func (self *FileName) DisplayName() string {
	if self.Err != nil {
		return "<invalid name>"
	}
	return self.Name
}

func (self *FileName) ToDict() *ordereddict.Dict {
	return ordereddict.NewDict().
		Set("Type", self.TypeName()).
		Set("TypeId", self.TypeCode()).
		Set("Name", self.DisplayName()).
		Set("Namespace", self.Namespace).
		Set("ParentRecord", self.ParentRecord)
}

// Decode the name held in a $FILE_NAME value. The name follows the 66
// byte fixed prefix and is UTF-16LE.
func DecodeFileName(value []byte) (string, error) {
	if len(value) < FileNamePrefixLength {
		return "", errors.Wrapf(InvalidFileNameError,
			"$FILE_NAME value too short (%d bytes)", len(value))
	}

	name := value[FileNamePrefixLength:]
	if len(name)%2 != 0 {
		return "", errors.Wrapf(InvalidFileNameError,
			"Odd UTF-16 name length %d", len(name))
	}

	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).
		NewDecoder().Bytes(name)
	if err != nil {
		return "", errors.Wrap(InvalidFileNameError, err.Error())
	}

	// The decoder substitutes unpaired surrogates.
	if strings.ContainsRune(string(decoded), utf8.RuneError) {
		return "", errors.Wrap(InvalidFileNameError, "Invalid UTF-16 name")
	}

	return string(decoded), nil
}

type Data struct {
	NonResident bool

	Runs       []ClusterRun
	ActualSize uint64
	Content    []byte

	// Content stopped early (read error or size cap).
	Truncated bool
}

func (self *Data) TypeCode() uint32 {
	return ATTR_TYPE_DATA
}

func (self *Data) TypeName() string {
	return attributeTypeNames[ATTR_TYPE_DATA]
}

func (self *Data) Form() string {
	if self.NonResident {
		return "non-resident"
	}
	return "resident"
}

// Best effort text rendering of the content. Invalid sequences are
// replaced, never rejected.
func (self *Data) Text() string {
	return DecodeText(self.Content)
}

func (self *Data) ToDict() *ordereddict.Dict {
	runs := make([]string, 0, len(self.Runs))
	for _, r := range self.Runs {
		runs = append(runs, r.String())
	}

	return ordereddict.NewDict().
		Set("Type", self.TypeName()).
		Set("TypeId", self.TypeCode()).
		Set("Form", self.Form()).
		Set("Runs", runs).
		Set("ActualSize", self.ActualSize).
		Set("ContentLength", len(self.Content)).
		Set("Truncated", self.Truncated).
		Set("Content", self.Text())
}

func DecodeText(content []byte) string {
	decoded, err := unicode.UTF8.NewDecoder().Bytes(content)
	if err != nil {
		return string(content)
	}
	return string(decoded)
}

// Any attribute we do not decode further.
type Other struct {
	Code uint32
}

func (self *Other) TypeCode() uint32 {
	return self.Code
}

func (self *Other) TypeName() string {
	name, pres := attributeTypeNames[self.Code]
	if !pres {
		return fmt.Sprintf("UNKNOWN(%#x)", self.Code)
	}
	return name
}

func (self *Other) IsKnown() bool {
	_, pres := attributeTypeNames[self.Code]
	return pres
}

func (self *Other) ToDict() *ordereddict.Dict {
	return ordereddict.NewDict().
		Set("Type", self.TypeName()).
		Set("TypeId", self.TypeCode())
}

type AttributeDecoder struct {
	clusters *ClusterReader
	options  Options
}

func NewAttributeDecoder(clusters *ClusterReader, options Options) *AttributeDecoder {
	return &AttributeDecoder{
		clusters: clusters,
		options:  options,
	}
}

// Decode a single attribute. buf holds exactly the attribute's
// declared length. The returned errors are problems found along the
// way: the attribute may still be returned (with sentinel or partial
// values). A nil attribute means it was skipped.
func (self *AttributeDecoder) Decode(buf []byte) (Attribute, []error) {
	header, err := ParseAttributeHeader(buf)
	if err != nil {
		return nil, []error{err}
	}

	switch header.Type {
	case ATTR_TYPE_STANDARD_INFORMATION:
		return self.decodeStandardInformation(buf)

	case ATTR_TYPE_FILE_NAME:
		return self.decodeFileName(header, buf)

	case ATTR_TYPE_DATA:
		if header.NonResident {
			return self.decodeNonResidentData(header, buf)
		}
		return self.decodeResidentData(header, buf)
	}

	other := &Other{Code: header.Type}
	if !other.IsKnown() {
		return nil, []error{errors.Wrapf(UnknownAttributeTypeError,
			"Attribute type %#x (%d)", header.Type, header.Type)}
	}
	return other, nil
}

func (self *AttributeDecoder) decodeStandardInformation(buf []byte) (
	Attribute, []error) {
	if len(buf) < siTimesOffset+32 {
		return nil, []error{errors.Wrapf(OutOfBoundsReadError,
			"$STANDARD_INFORMATION too short (%d bytes)", len(buf))}
	}

	result := &StandardInformation{}
	result.AttributeType, _ = getUint32(buf, attrTypeOffset)
	result.TotalSize, _ = getUint32(buf, attrLengthOffset)

	times := make([]WinFileTime, 0, 4)
	for i := 0; i < 4; i++ {
		filetime, _ := getUint64(buf, siTimesOffset+8*i)
		times = append(times, NewWinFileTime(filetime))
	}
	result.Creation = times[0]
	result.Modification = times[1]
	result.MFTModified = times[2]
	result.LastAccess = times[3]

	var problems []error
	for _, t := range result.Times() {
		if t.Err != nil {
			problems = append(problems, t.Err)
		}
	}
	return result, problems
}

func (self *AttributeDecoder) decodeFileName(
	header *AttributeHeader, buf []byte) (Attribute, []error) {
	result := &FileName{}

	value, err := header.ResidentValue(buf)
	if err != nil {
		result.Err = errors.Wrap(InvalidFileNameError, err.Error())
		return result, []error{result.Err}
	}

	result.ParentRecord, _ = getUint64(value, 0)
	result.ParentRecord &= 0xFFFFFFFFFFFF
	namespace, _ := getUint8(value, fnNamespaceOffset)
	result.Namespace = fileNameNamespaces[namespace]

	result.Name, result.Err = DecodeFileName(value)
	if result.Err != nil {
		return result, []error{result.Err}
	}
	return result, nil
}

func (self *AttributeDecoder) decodeResidentData(
	header *AttributeHeader, buf []byte) (Attribute, []error) {
	result := &Data{ActualSize: uint64(header.ContentSize)}

	start := int(header.ContentOffset)
	if start > len(buf) {
		return result, []error{errors.Wrapf(OutOfBoundsReadError,
			"Resident content offset %d outside attribute of %d bytes",
			start, len(buf))}
	}

	end := len(buf)
	if self.options.TrimResidentContent &&
		start+int(header.ContentSize) < end {
		end = start + int(header.ContentSize)
	}
	result.Content = buf[start:end]
	return result, nil
}

func (self *AttributeDecoder) decodeNonResidentData(
	header *AttributeHeader, buf []byte) (Attribute, []error) {
	result := &Data{
		NonResident: true,
		ActualSize:  header.ActualSize,
	}

	// A corrupt runlist can not be trusted to point at the file's
	// clusters so the whole attribute is skipped.
	start := int(header.RunlistOffset)
	if start > len(buf) {
		return nil, []error{errors.Wrapf(MalformedRunlistError,
			"Runlist offset %d outside attribute of %d bytes",
			start, len(buf))}
	}

	runs, err := DecodeRunList(buf[start:], self.options.MaxRuns)
	if err != nil {
		return nil, []error{err}
	}
	result.Runs = runs

	if self.clusters == nil {
		return result, []error{errors.Wrap(OutOfBoundsReadError,
			"No image available to read clusters from")}
	}

	var problems []error

	limit := uint64(self.options.MaxContentSize)
	if self.options.MaxContentSize <= 0 {
		limit = ^uint64(0)
	}
	size_limited := false
	if self.options.ClampToActualSize && header.ActualSize < limit {
		limit = header.ActualSize
		size_limited = true
	}

	content, err := self.readRuns(runs, limit)
	result.Content = content
	if err != nil {
		result.Truncated = true
		problems = append(problems, err)

	} else if !size_limited && uint64(len(content)) == limit &&
		RunListClusters(runs)*uint64(self.clusters.ClusterSize()) > limit {
		result.Truncated = true
		problems = append(problems, errors.Errorf(
			"Content truncated to %d bytes", limit))
	}

	return result, problems
}

// Read every cluster of every run in order, stopping after limit
// bytes.
func (self *AttributeDecoder) readRuns(
	runs []ClusterRun, limit uint64) ([]byte, error) {
	result := []byte{}

	for _, run := range runs {
		for idx := run.Start; idx < run.End; idx++ {
			remaining := limit - uint64(len(result))
			if remaining == 0 {
				return result, nil
			}

			cluster, err := self.clusters.ReadCluster(idx)
			if err != nil {
				return result, err
			}

			if uint64(len(cluster)) > remaining {
				cluster = cluster[:remaining]
			}
			result = append(result, cluster...)
		}
	}

	return result, nil
}
