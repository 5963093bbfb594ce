package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpermana/kafgate/internal/protocol"
)

func frameFor(key, version int16, correlationID int32, body []byte) []byte {
	e := protocol.NewEncoder()
	e.WriteInt16(key)
	e.WriteInt16(version)
	e.WriteInt32(correlationID)
	if protocol.IsFlexible(key, version) {
		e.WriteCompactString("test-client")
		e.WriteEmptyTaggedFields()
	} else {
		e.WriteString("test-client")
	}
	return append(e.Bytes(), body...)
}

func TestHandleApiVersions(t *testing.T) {
	g, _, _, _ := newTestGateway()

	resp := g.Handle(context.Background(), frameFor(protocol.APIKeyApiVersions, 1, 7, nil))
	require.NotNil(t, resp)

	d := decoderFor(resp)
	correlation, _ := d.ReadInt32()
	assert.Equal(t, int32(7), correlation)

	code, _ := d.ReadInt16()
	assert.Equal(t, protocol.ErrNone, code)

	count, _ := d.ReadArrayLen(false)
	assert.Equal(t, len(protocol.SupportedVersions()), count)
}

// A version the gateway does not speak still gets an answer, and for
// ApiVersions that answer lists what would have been accepted.
func TestHandleUnsupportedVersion(t *testing.T) {
	g, _, _, _ := newTestGateway()

	t.Run("api versions", func(t *testing.T) {
		resp := g.Handle(context.Background(), frameFor(protocol.APIKeyApiVersions, 99, 8, nil))
		require.NotNil(t, resp)

		d := decoderFor(resp)
		d.ReadInt32() // correlation id
		code, _ := d.ReadInt16()
		assert.Equal(t, protocol.ErrUnsupportedVersion, code)

		count, _ := d.ReadArrayLen(false)
		assert.Equal(t, len(protocol.SupportedVersions()), count)
	})

	t.Run("other api", func(t *testing.T) {
		resp := g.Handle(context.Background(), frameFor(protocol.APIKeyFetch, 99, 9, nil))
		require.NotNil(t, resp)

		d := decoderFor(resp)
		correlation, _ := d.ReadInt32()
		assert.Equal(t, int32(9), correlation)
		code, _ := d.ReadInt16()
		assert.Equal(t, protocol.ErrUnsupportedVersion, code)
	})
}

func TestHandleUnknownAPIKey(t *testing.T) {
	g, _, _, _ := newTestGateway()

	resp := g.Handle(context.Background(), frameFor(12345, 0, 3, nil))
	require.NotNil(t, resp)

	d := decoderFor(resp)
	d.ReadInt32() // correlation id
	code, _ := d.ReadInt16()
	assert.Equal(t, protocol.ErrUnsupportedVersion, code)
}

func TestHandleUnreadableFrame(t *testing.T) {
	g, _, _, _ := newTestGateway()

	assert.Nil(t, g.Handle(context.Background(), []byte{0x00}))
}
