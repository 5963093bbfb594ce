package protocol

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildBatch(baseOffset int64, codec int8, recordSizes ...int) []byte {
	batch := make([]byte, batchHeaderLen)
	binary.BigEndian.PutUint64(batch[batchBaseOffsetOffset:], uint64(baseOffset))
	batch[16] = 2 // magic
	binary.BigEndian.PutUint16(batch[batchAttributesOffset:], uint16(codec))
	binary.BigEndian.PutUint32(batch[batchRecordCountOffset:], uint32(len(recordSizes)))

	for _, size := range recordSizes {
		batch = binary.AppendVarint(batch, int64(size))
		batch = append(batch, make([]byte, size)...)
	}
	return batch
}

func TestInspectBatchUncompressed(t *testing.T) {
	info, err := InspectBatch(buildBatch(100, CompressionNone, 10, 512, 64))
	require.NoError(t, err)

	assert.Equal(t, int64(100), info.BaseOffset)
	assert.Equal(t, CompressionNone, info.Codec)
	assert.Equal(t, int32(3), info.RecordCount)
	assert.Equal(t, 512, info.MaxRecordSize)
}

// Compressed record frames are opaque, so the whole payload counts as
// one record for sizing purposes.
func TestInspectBatchCompressed(t *testing.T) {
	batch := buildBatch(0, CompressionGzip, 10, 20)

	info, err := InspectBatch(batch)
	require.NoError(t, err)

	assert.Equal(t, CompressionGzip, info.Codec)
	assert.Equal(t, len(batch), info.MaxRecordSize)
}

func TestInspectBatchErrors(t *testing.T) {
	t.Run("short header", func(t *testing.T) {
		_, err := InspectBatch(make([]byte, batchHeaderLen-1))
		assert.Error(t, err)
	})

	t.Run("truncated record", func(t *testing.T) {
		batch := buildBatch(0, CompressionNone, 10, 20)
		_, err := InspectBatch(batch[:len(batch)-5])
		assert.Error(t, err)
	})

	t.Run("negative record length", func(t *testing.T) {
		batch := buildBatch(0, CompressionNone)
		binary.BigEndian.PutUint32(batch[batchRecordCountOffset:], 1)
		batch = binary.AppendVarint(batch, -4)
		_, err := InspectBatch(batch)
		assert.Error(t, err)
	})
}

func TestPatchBaseOffset(t *testing.T) {
	batch := buildBatch(0, CompressionNone, 10)
	PatchBaseOffset(batch, 9000)

	info, err := InspectBatch(batch)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), info.BaseOffset)

	// Undersized buffers are left alone rather than sliced out of range.
	PatchBaseOffset(batch[:4], 1)
}
