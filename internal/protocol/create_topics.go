package protocol

// ============================================================================
// CreateTopics (API Key 19)
// Supported versions: 0-5 (flexible from v5)
// ============================================================================

// NoNumPartitions is the sentinel meaning "use the cluster default".
const NoNumPartitions int32 = -1

// ----------------------------------------------------------------------------
// Request
// ----------------------------------------------------------------------------

type CreateTopicsRequest struct {
	Topics       []CreateTopicsRequestTopic
	TimeoutMs    int32
	ValidateOnly bool // v1+
}

type CreateTopicsRequestTopic struct {
	Name              string
	NumPartitions     int32
	ReplicationFactor int16
	Assignments       map[int32][]int32 // partition -> brokers
	Configs           map[string]string
}

// Request Readers

func (r *CreateTopicsRequest) readTopics(d *Decoder, flexible bool) {
	count, _ := d.ReadArrayLen(flexible)
	if count < 0 {
		return
	}
	r.Topics = make([]CreateTopicsRequestTopic, count)
	for i := range r.Topics {
		r.Topics[i].readFrom(d, flexible)
	}
}

func (t *CreateTopicsRequestTopic) readFrom(d *Decoder, flexible bool) {
	t.Assignments = make(map[int32][]int32)
	t.Configs = make(map[string]string)

	t.Name, _ = d.ReadName(flexible)
	t.NumPartitions, _ = d.ReadInt32()
	t.ReplicationFactor, _ = d.ReadInt16()

	t.readAssignments(d, flexible)
	t.readConfigs(d, flexible)

	if flexible {
		d.SkipTaggedFields()                    // topic tagged fields
	}
}

func (t *CreateTopicsRequestTopic) readAssignments(d *Decoder, flexible bool) {
	count, _ := d.ReadArrayLen(flexible)

	for i := 0; i < count; i++ {
		partition, _ := d.ReadInt32()

		brokerCount, _ := d.ReadArrayLen(flexible)
		brokers := make([]int32, 0, max(brokerCount, 0))
		for j := 0; j < brokerCount; j++ {
			b, _ := d.ReadInt32()
			brokers = append(brokers, b)
		}
		t.Assignments[partition] = brokers

		if flexible {
			d.SkipTaggedFields()                // assignment tagged fields
		}
	}
}

func (t *CreateTopicsRequestTopic) readConfigs(d *Decoder, flexible bool) {
	count, _ := d.ReadArrayLen(flexible)

	for i := 0; i < count; i++ {
		var name string
		var value *string

		if flexible {
			name, _ = d.ReadCompactString()
			value, _ = d.ReadCompactNullableString()
			d.SkipTaggedFields()                // config tagged fields
		} else {
			name, _ = d.ReadString()
			value, _ = d.ReadNullableString()
		}

		if value != nil {
			t.Configs[name] = *value
		}
	}
}

// Decode - the recipe

func DecodeCreateTopicsRequest(d *Decoder, v int16) (*CreateTopicsRequest, error) {
	flexible := IsFlexible(APIKeyCreateTopics, v)
	r := &CreateTopicsRequest{}

	r.readTopics(d, flexible)                   // v0+
	r.TimeoutMs, _ = d.ReadInt32()              // v0+
	if v >= 1 {
		r.ValidateOnly, _ = d.ReadBool()        // v1+
	}
	if flexible {
		d.SkipTaggedFields()                    // v5+
	}

	return r, nil
}

// ----------------------------------------------------------------------------
// Response
// ----------------------------------------------------------------------------

type CreateTopicsResponse struct {
	ThrottleTimeMs int32 // v2+
	Topics         []CreateTopicsResponseTopic
}

type CreateTopicsResponseTopic struct {
	Name              string
	ErrorCode         int16
	ErrorMessage      *string // v1+
	NumPartitions     int32   // v5+
	ReplicationFactor int16   // v5+
	Configs           []CreateTopicsResponseConfig // v5+
}

type CreateTopicsResponseConfig struct {
	Name         string
	Value        *string
	ReadOnly     bool
	ConfigSource int8
	IsSensitive  bool
}

// Response Writers

func (r *CreateTopicsResponse) writeTopics(e *Encoder, version int16, flexible bool) {
	e.WriteArrayLen(len(r.Topics), flexible)

	for _, t := range r.Topics {
		t.writeTo(e, version, flexible)
	}
}

func (t *CreateTopicsResponseTopic) writeTo(e *Encoder, version int16, flexible bool) {
	e.WriteName(t.Name, flexible)
	e.WriteInt16(t.ErrorCode)

	if version >= 1 {
		if flexible {
			e.WriteCompactNullableString(t.ErrorMessage)
		} else {
			e.WriteNullableString(t.ErrorMessage)
		}
	}

	if version >= 5 {
		e.WriteInt32(t.NumPartitions)           // v5+
		e.WriteInt16(t.ReplicationFactor)       // v5+
		t.writeConfigs(e)                       // v5+
		e.WriteEmptyTaggedFields()              // v5+ topic tagged fields
	}
}

func (t *CreateTopicsResponseTopic) writeConfigs(e *Encoder) {
	e.WriteArrayLen(len(t.Configs), true)

	for _, c := range t.Configs {
		e.WriteCompactString(c.Name)
		e.WriteCompactNullableString(c.Value)
		e.WriteBool(c.ReadOnly)
		e.WriteInt8(c.ConfigSource)
		e.WriteBool(c.IsSensitive)
		e.WriteEmptyTaggedFields()              // config tagged fields
	}
}

// Encode - the recipe

func EncodeCreateTopicsResponse(e *Encoder, v int16, r *CreateTopicsResponse) {
	flexible := IsFlexible(APIKeyCreateTopics, v)

	if v >= 2 {
		e.WriteInt32(r.ThrottleTimeMs)          // v2+
	}
	r.writeTopics(e, v, flexible)               // v0+
	if flexible {
		e.WriteEmptyTaggedFields()              // v5+
	}
}
