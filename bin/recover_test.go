package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"www.velocidex.com/golang/go-undelete/parser"
)

const testClusterSize = 512

// A resident attribute whose value starts right after the header.
func residentAttribute(attr_type uint32, value []byte) []byte {
	length := (24 + len(value) + 7) &^ 7
	buf := make([]byte, length)
	binary.LittleEndian.PutUint32(buf[0x00:], attr_type)
	binary.LittleEndian.PutUint32(buf[0x04:], uint32(length))
	binary.LittleEndian.PutUint32(buf[0x10:], uint32(len(value)))
	binary.LittleEndian.PutUint16(buf[0x14:], 24)
	copy(buf[24:], value)
	return buf
}

func fileNameValue(name string) []byte {
	encoded := utf16.Encode([]rune(name))
	buf := make([]byte, parser.FileNamePrefixLength+2*len(encoded))
	binary.LittleEndian.PutUint64(buf[0:], 5)
	buf[0x40] = byte(len(encoded))
	buf[0x41] = 1
	for i, c := range encoded {
		binary.LittleEndian.PutUint16(buf[parser.FileNamePrefixLength+2*i:], c)
	}
	return buf
}

// A non-resident $DATA attribute with a single run.
func singleRunData(cluster, actual_size uint64) []byte {
	buf := make([]byte, 0x48)
	binary.LittleEndian.PutUint32(buf[0x00:], parser.ATTR_TYPE_DATA)
	binary.LittleEndian.PutUint32(buf[0x04:], uint32(len(buf)))
	buf[0x08] = 1
	binary.LittleEndian.PutUint16(buf[0x20:], 0x40)
	binary.LittleEndian.PutUint64(buf[0x30:], actual_size)
	copy(buf[0x40:], []byte{0x11, 0x01, byte(cluster), 0x00})
	return buf
}

func mftRecord(flags uint16, attrs ...[]byte) []byte {
	buf := make([]byte, parser.RecordSize)
	copy(buf, "FILE")
	binary.LittleEndian.PutUint16(buf[0x04:], 0x30)
	binary.LittleEndian.PutUint16(buf[0x14:], 0x38)
	binary.LittleEndian.PutUint16(buf[0x16:], flags)

	offset := 0x38
	for _, attr := range attrs {
		copy(buf[offset:], attr)
		offset += len(attr)
	}
	binary.LittleEndian.PutUint32(buf[offset:], parser.ATTR_TYPE_END)
	return buf
}

type RecoverTestSuite struct {
	suite.Suite
	tmpdir     string
	image_path string
	mft_path   string
}

func (self *RecoverTestSuite) SetupTest() {
	var err error
	self.tmpdir, err = ioutil.TempDir("", "tmp")
	assert.NoError(self.T(), err)

	// Boot sector in cluster 0, file content in cluster 3.
	image := make([]byte, 8*testClusterSize)
	copy(image[3:], "NTFS    ")
	binary.LittleEndian.PutUint16(image[0x0B:], testClusterSize)
	image[0x0D] = 1
	copy(image[3*testClusterSize:], "deleted content\n")

	self.image_path = filepath.Join(self.tmpdir, "image.dd")
	assert.NoError(self.T(), ioutil.WriteFile(self.image_path, image, 0600))

	mft := &bytes.Buffer{}
	for i := 0; i < parser.FirstUserRecord; i++ {
		mft.Write(mftRecord(1))
	}
	mft.Write(mftRecord(0,
		residentAttribute(parser.ATTR_TYPE_FILE_NAME, fileNameValue("notes.txt")),
		singleRunData(3, 16)))
	mft.Write(mftRecord(1,
		residentAttribute(parser.ATTR_TYPE_FILE_NAME, fileNameValue("live.txt"))))

	self.mft_path = filepath.Join(self.tmpdir, "mft.bin")
	assert.NoError(self.T(), ioutil.WriteFile(self.mft_path, mft.Bytes(), 0600))
}

func (self *RecoverTestSuite) TearDownTest() {
	os.RemoveAll(self.tmpdir)
}

func (self *RecoverTestSuite) open() (
	*parser.Geometry, *parser.ClusterReader, []byte) {
	fd, err := os.Open(self.image_path)
	assert.NoError(self.T(), err)
	self.T().Cleanup(func() { fd.Close() })

	st, err := fd.Stat()
	assert.NoError(self.T(), err)

	image := &parser.OffsetReader{Reader: fd}
	geometry, err := parser.GetGeometry(image, 0)
	assert.NoError(self.T(), err)
	assert.True(self.T(), geometry.HasNTFSMagic())

	clusters, err := parser.NewClusterReader(
		image, st.Size(), geometry.ClusterSize())
	assert.NoError(self.T(), err)

	mft_fd, err := os.Open(self.mft_path)
	assert.NoError(self.T(), err)
	defer mft_fd.Close()

	mft_st, err := mft_fd.Stat()
	assert.NoError(self.T(), err)

	mft, err := parser.ReadMFTFile(mft_fd, mft_st.Size())
	assert.NoError(self.T(), err)

	return geometry, clusters, mft
}

func (self *RecoverTestSuite) TestTextReport() {
	_, clusters, mft := self.open()

	out := &bytes.Buffer{}
	stats, err := recoverFiles(context.Background(), mft, clusters,
		parser.GetDefaultOptions(), false, out)
	assert.NoError(self.T(), err)
	assert.Equal(self.T(), 1, stats.DeletedRecords)
	assert.Equal(self.T(), 1, stats.AllocatedRecords)

	g := goldie.New(self.T(), goldie.WithFixtureDir("fixtures"))
	g.Assert(self.T(), "recover", out.Bytes())
}

func (self *RecoverTestSuite) TestJSONReport() {
	_, clusters, mft := self.open()

	out := &bytes.Buffer{}
	_, err := recoverFiles(context.Background(), mft, clusters,
		parser.GetDefaultOptions(), true, out)
	assert.NoError(self.T(), err)

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	assert.Equal(self.T(), 1, len(lines))

	item := make(map[string]interface{})
	assert.NoError(self.T(), json.Unmarshal(lines[0], &item))
	assert.Equal(self.T(), float64(24), item["RecordNumber"])
	assert.Equal(self.T(), "notes.txt", item["FileName"])

	attributes := item["Attributes"].([]interface{})
	assert.Equal(self.T(), 2, len(attributes))

	data := attributes[1].(map[string]interface{})
	assert.Equal(self.T(), "non-resident", data["Form"])
	assert.Equal(self.T(), "deleted content\n", data["Content"])
	assert.Equal(self.T(), []interface{}{"Clusters 3-4 (Length 1)"}, data["Runs"])
}

func (self *RecoverTestSuite) TestRawContent() {
	_, clusters, mft := self.open()

	options := parser.GetDefaultOptions()
	options.ClampToActualSize = false

	stats, err := recoverFiles(context.Background(), mft, clusters,
		options, false, &bytes.Buffer{})
	assert.NoError(self.T(), err)

	// The whole cluster is recovered including the slack.
	assert.Equal(self.T(), int64(testClusterSize), stats.RecoveredContentLen)
}

func (self *RecoverTestSuite) TestSummary() {
	_, clusters, mft := self.open()

	stats, err := recoverFiles(context.Background(), mft, clusters,
		parser.GetDefaultOptions(), false, &bytes.Buffer{})
	assert.NoError(self.T(), err)

	out := &bytes.Buffer{}
	writeSummary(out, clusters, stats, len(mft))

	// The caption is wrapped to the table width. 26 records of 1kb
	// are 27 kB in SI units.
	summary := strings.Join(strings.Fields(out.String()), " ")
	assert.Contains(self.T(), summary, "DeletedRecords")
	assert.Contains(self.T(), summary,
		"27 kB $MFT, cluster size 512 B, image 4.1 kB")
}

// Without --mft the $MFT comes from the volume itself.
func (self *RecoverTestSuite) TestImageMFT() {
	fd, err := os.Open("../parser/test_data/test.ntfs.dd")
	assert.NoError(self.T(), err)
	defer fd.Close()

	st, err := fd.Stat()
	assert.NoError(self.T(), err)

	image := &parser.OffsetReader{Reader: fd}
	geometry, err := parser.GetGeometry(image, 0)
	assert.NoError(self.T(), err)

	clusters, err := parser.NewClusterReader(
		image, st.Size(), geometry.ClusterSize())
	assert.NoError(self.T(), err)

	mft, err := parser.ReadMFTFromImage(image)
	assert.NoError(self.T(), err)

	out := &bytes.Buffer{}
	stats, err := recoverFiles(context.Background(), mft, clusters,
		parser.GetDefaultOptions(), true, out)
	assert.NoError(self.T(), err)
	assert.Equal(self.T(), 1, stats.DeletedRecords)

	item := make(map[string]interface{})
	assert.NoError(self.T(), json.Unmarshal(bytes.TrimSpace(out.Bytes()), &item))
	assert.Equal(self.T(), float64(37), item["RecordNumber"])
	assert.Equal(self.T(), "deleted.bin", item["FileName"])
	assert.Equal(self.T(), []interface{}{}, item["Warnings"])
}

func TestRecover(t *testing.T) {
	suite.Run(t, &RecoverTestSuite{})
}
