package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrFraming          = errors.New("framing error")
)

// Decoder reads client-protocol wire data
type Decoder struct {
	r   io.Reader
	buf []byte
}

// NewDecoder creates a new decoder
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, buf: make([]byte, 8)}
}

func (d *Decoder) ReadInt8() (int8, error) {
	if _, err := io.ReadFull(d.r, d.buf[:1]); err != nil {
		return 0, err
	}
	return int8(d.buf[0]), nil
}

func (d *Decoder) ReadInt16() (int16, error) {
	if _, err := io.ReadFull(d.r, d.buf[:2]); err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(d.buf[:2])), nil
}

func (d *Decoder) ReadInt32() (int32, error) {
	if _, err := io.ReadFull(d.r, d.buf[:4]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(d.buf[:4])), nil
}

func (d *Decoder) ReadInt64() (int64, error) {
	if _, err := io.ReadFull(d.r, d.buf[:8]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(d.buf[:8])), nil
}

// ReadVarInt reads a zigzag-encoded signed varint.
func (d *Decoder) ReadVarInt() (int64, error) {
	v, err := d.ReadUVarInt()
	if err != nil {
		return 0, err
	}
	return int64(v>>1) ^ -int64(v&1), nil
}

func (d *Decoder) ReadUVarInt() (uint64, error) {
	var value uint64
	var shift uint
	for {
		b, err := d.ReadInt8()
		if err != nil {
			return 0, err
		}
		value |= uint64(b&0x7F) << shift
		if b&-128 == 0 {
			break
		}
		shift += 7
	}
	return value, nil
}

func (d *Decoder) ReadString() (string, error) {
	length, err := d.ReadInt16()
	if err != nil {
		return "", err
	}
	if length < 0 {
		return "", nil // null string
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(d.r, data); err != nil {
		return "", err
	}
	return string(data), nil
}

func (d *Decoder) ReadNullableString() (*string, error) {
	length, err := d.ReadInt16()
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, nil
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(d.r, data); err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

func (d *Decoder) ReadCompactString() (string, error) {
	length, err := d.ReadUVarInt()
	if err != nil {
		return "", err
	}
	if length == 0 {
		return "", nil
	}
	data := make([]byte, length-1)
	if _, err := io.ReadFull(d.r, data); err != nil {
		return "", err
	}
	return string(data), nil
}

func (d *Decoder) ReadCompactNullableString() (*string, error) {
	length, err := d.ReadUVarInt()
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}
	data := make([]byte, length-1)
	if _, err := io.ReadFull(d.r, data); err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

func (d *Decoder) ReadBytes() ([]byte, error) {
	length, err := d.ReadInt32()
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, nil
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(d.r, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (d *Decoder) ReadBool() (bool, error) {
	b, err := d.ReadInt8()
	return b != 0, err
}

// ReadName reads a string in classic or compact form depending on the
// schema's flexible flag.
func (d *Decoder) ReadName(flexible bool) (string, error) {
	if flexible {
		return d.ReadCompactString()
	}
	return d.ReadString()
}

// ReadArrayLen reads an array length in classic or compact form. A negative
// result means a null array.
func (d *Decoder) ReadArrayLen(flexible bool) (int, error) {
	if flexible {
		n, err := d.ReadUVarInt()
		if err != nil {
			return 0, err
		}
		return int(n) - 1, nil
	}
	n, err := d.ReadInt32()
	return int(n), err
}

// SkipTaggedFields discards an (empty) tagged-field section.
func (d *Decoder) SkipTaggedFields() {
	d.ReadUVarInt()
}

// Encoder writes client-protocol wire data
type Encoder struct {
	buf []byte
}

// NewEncoder creates a new encoder
func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 1024)}
}

func (e *Encoder) Bytes() []byte {
	return e.buf
}

func (e *Encoder) Len() int {
	return len(e.buf)
}

func (e *Encoder) WriteInt8(v int8) {
	e.buf = append(e.buf, byte(v))
}

func (e *Encoder) WriteInt16(v int16) {
	e.buf = append(e.buf, byte(v>>8), byte(v))
}

func (e *Encoder) WriteInt32(v int32) {
	e.buf = append(e.buf,
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func (e *Encoder) WriteInt64(v int64) {
	e.buf = append(e.buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func (e *Encoder) WriteUVarInt(v uint64) {
	for v >= 0x80 {
		e.buf = append(e.buf, byte(v)|0x80)
		v >>= 7
	}
	e.buf = append(e.buf, byte(v))
}

func (e *Encoder) WriteString(s string) {
	e.WriteInt16(int16(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *Encoder) WriteNullableString(s *string) {
	if s == nil {
		e.WriteInt16(-1)
		return
	}
	e.WriteString(*s)
}

func (e *Encoder) WriteCompactString(s string) {
	e.WriteUVarInt(uint64(len(s) + 1))
	e.buf = append(e.buf, s...)
}

func (e *Encoder) WriteCompactNullableString(s *string) {
	if s == nil {
		e.WriteUVarInt(0)
		return
	}
	e.WriteCompactString(*s)
}

func (e *Encoder) WriteBytes(data []byte) {
	if data == nil {
		e.WriteInt32(-1)
		return
	}
	e.WriteInt32(int32(len(data)))
	e.buf = append(e.buf, data...)
}

func (e *Encoder) WriteRaw(data []byte) {
	e.buf = append(e.buf, data...)
}

func (e *Encoder) WriteBool(v bool) {
	if v {
		e.WriteInt8(1)
	} else {
		e.WriteInt8(0)
	}
}

// WriteName writes a string in classic or compact form.
func (e *Encoder) WriteName(s string, flexible bool) {
	if flexible {
		e.WriteCompactString(s)
		return
	}
	e.WriteString(s)
}

// WriteArrayLen writes an array length in classic or compact form.
func (e *Encoder) WriteArrayLen(n int, flexible bool) {
	if flexible {
		e.WriteUVarInt(uint64(n + 1))
		return
	}
	e.WriteInt32(int32(n))
}

// WriteEmptyTaggedFields writes an empty tagged fields section
func (e *Encoder) WriteEmptyTaggedFields() {
	e.WriteUVarInt(0)
}

// ----------------------------------------------------------------------------
// Headers
// ----------------------------------------------------------------------------

// ReadHeader reads a request header; the client id encoding follows the
// schema table's flexible boundary for the declared API version.
func (d *Decoder) ReadHeader() (RequestHeader, error) {
	var h RequestHeader
	var err error

	h.APIKey, err = d.ReadInt16()
	if err != nil {
		return h, err
	}
	h.APIVersion, err = d.ReadInt16()
	if err != nil {
		return h, err
	}
	h.CorrelationID, err = d.ReadInt32()
	if err != nil {
		return h, err
	}

	if IsFlexible(h.APIKey, h.APIVersion) {
		h.ClientID, err = d.ReadCompactString()
		if err != nil {
			return h, err
		}
		d.SkipTaggedFields()
	} else {
		s, serr := d.ReadNullableString()
		if serr != nil {
			return h, serr
		}
		if s != nil {
			h.ClientID = *s
		}
	}

	return h, nil
}

// WriteResponseHeader writes a classic response header.
func (e *Encoder) WriteResponseHeader(correlationID int32) {
	e.WriteInt32(correlationID)
}

// WriteResponseHeaderFlexible writes a response header followed by an empty
// tagged-field section, as flexible versions require.
func (e *Encoder) WriteResponseHeaderFlexible(correlationID int32) {
	e.WriteInt32(correlationID)
	e.WriteUVarInt(0)
}
