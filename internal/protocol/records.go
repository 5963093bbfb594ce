package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Compression codecs (record batch attributes bits 0-2)
const (
	CompressionNone   int8 = 0
	CompressionGzip   int8 = 1
	CompressionSnappy int8 = 2
	CompressionLz4    int8 = 3
	CompressionZstd   int8 = 4
)

// Record batch header layout (magic v2). Batches are passed through to the
// backend untouched; only the header is inspected.
const (
	batchBaseOffsetOffset  = 0
	batchAttributesOffset  = 21
	batchRecordCountOffset = 57
	batchHeaderLen         = 61
)

// BatchInfo is what the gateway needs to know about an incoming record batch
// without materializing its records.
type BatchInfo struct {
	BaseOffset    int64
	Codec         int8
	RecordCount   int32
	MaxRecordSize int
}

// InspectBatch reads the v2 batch header and, for uncompressed batches, walks
// the record frames to find the largest single serialized record. Compressed
// batches report the whole payload as one record since individual frames are
// opaque.
func InspectBatch(data []byte) (BatchInfo, error) {
	if len(data) < batchHeaderLen {
		return BatchInfo{}, fmt.Errorf("record batch too short: %d bytes", len(data))
	}

	info := BatchInfo{
		BaseOffset:  int64(binary.BigEndian.Uint64(data[batchBaseOffsetOffset:])),
		Codec:       int8(binary.BigEndian.Uint16(data[batchAttributesOffset:]) & 0x07),
		RecordCount: int32(binary.BigEndian.Uint32(data[batchRecordCountOffset:])),
	}

	if info.Codec != CompressionNone {
		info.MaxRecordSize = len(data)
		return info, nil
	}

	d := NewDecoder(bytes.NewReader(data[batchHeaderLen:]))
	for i := int32(0); i < info.RecordCount; i++ {
		length, err := d.ReadVarInt()
		if err != nil || length < 0 {
			return BatchInfo{}, fmt.Errorf("malformed record %d in batch", i)
		}
		if size := int(length); size > info.MaxRecordSize {
			info.MaxRecordSize = size
		}
		skip := make([]byte, length)
		if _, err := io.ReadFull(d.r, skip); err != nil {
			return BatchInfo{}, fmt.Errorf("truncated record %d in batch", i)
		}
	}

	return info, nil
}

// PatchBaseOffset rewrites the batch's base offset in place so fetched data
// reflects the offsets the backend assigned on append.
func PatchBaseOffset(data []byte, base int64) {
	if len(data) >= 8 {
		binary.BigEndian.PutUint64(data[batchBaseOffsetOffset:], uint64(base))
	}
}
