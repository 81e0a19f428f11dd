package parser

import (
	"fmt"
	"io"

	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"
)

const (
	// Boot sector field offsets.
	bootOEMIdOffset             = 0x03
	bootBytesPerSectorOffset    = 0x0B
	bootSectorsPerClusterOffset = 0x0D

	MaxClusterSize = 1024 * 1024
)

// The volume geometry as described by the boot sector. Computed once
// per run and never changed after.
type Geometry struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	OEMId             string
}

func (self *Geometry) ClusterSize() int64 {
	return int64(self.BytesPerSector) * int64(self.SectorsPerCluster)
}

func (self *Geometry) HasNTFSMagic() bool {
	return self.OEMId == "NTFS    "
}

func (self *Geometry) IsValid() error {
	cluster_size := self.ClusterSize()
	if cluster_size == 0 || cluster_size > MaxClusterSize {
		return errors.Wrapf(MalformedVolumeHeaderError,
			"Invalid cluster size %d (%d bytes per sector, %d sectors per cluster)",
			cluster_size, self.BytesPerSector, self.SectorsPerCluster)
	}
	return nil
}

func (self *Geometry) Stats() *ordereddict.Dict {
	return ordereddict.NewDict().
		Set("OEMId", self.OEMId).
		Set("BytesPerSector", self.BytesPerSector).
		Set("SectorsPerCluster", self.SectorsPerCluster).
		Set("ClusterSize", self.ClusterSize())
}

func (self *Geometry) DebugString() string {
	return fmt.Sprintf("[Geometry] OEM %q BytesPerSector %d SectorsPerCluster %d ClusterSize %d",
		self.OEMId, self.BytesPerSector, self.SectorsPerCluster,
		self.ClusterSize())
}

// Read the geometry from the boot sector at offset.
func GetGeometry(reader io.ReaderAt, offset int64) (*Geometry, error) {
	header := make([]byte, bootSectorsPerClusterOffset+1)
	n, err := reader.ReadAt(header, offset)
	if n < len(header) {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrapf(MalformedVolumeHeaderError,
			"Reading boot sector: %v", err)
	}

	bytes_per_sector, _ := getUint16(header, bootBytesPerSectorOffset)
	sectors_per_cluster, _ := getUint8(header, bootSectorsPerClusterOffset)

	result := &Geometry{
		BytesPerSector:    bytes_per_sector,
		SectorsPerCluster: sectors_per_cluster,
		OEMId:             string(header[bootOEMIdOffset:bootBytesPerSectorOffset]),
	}

	err = result.IsValid()
	if err != nil {
		return nil, err
	}

	DebugPrint("%v\n", result.DebugString())
	return result, nil
}
