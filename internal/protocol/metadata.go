package protocol

// ============================================================================
// Metadata (API Key 3)
// Supported versions: 0-8
// ============================================================================

// ----------------------------------------------------------------------------
// Request
// ----------------------------------------------------------------------------

type MetadataRequest struct {
	Topics                             []string // nil = all topics, empty = no topics (v1+)
	AllowAutoTopicCreation             bool     // v4+
	IncludeClusterAuthorizedOperations bool     // v8+
	IncludeTopicAuthorizedOperations   bool     // v8+
}

// Request Readers

func (r *MetadataRequest) readTopics(d *Decoder, v int16) {
	count, _ := d.ReadArrayLen(false)

	switch {
	case count > 0:
		r.Topics = make([]string, count)
		for i := range r.Topics {
			r.Topics[i], _ = d.ReadString()
		}
	case count == 0 && v >= 1:
		// v0 has no null form, so an empty array means all topics
		// there; from v1 on it means none.
		r.Topics = []string{}
	default:
		r.Topics = nil // all topics
	}
}

func (r *MetadataRequest) readAutoCreate(d *Decoder) {
	r.AllowAutoTopicCreation, _ = d.ReadBool()
}

func (r *MetadataRequest) readAuthorizedOpsFlags(d *Decoder) {
	r.IncludeClusterAuthorizedOperations, _ = d.ReadBool()
	r.IncludeTopicAuthorizedOperations, _ = d.ReadBool()
}

// Decode - the recipe

func DecodeMetadataRequest(d *Decoder, v int16) (*MetadataRequest, error) {
	r := &MetadataRequest{AllowAutoTopicCreation: true}

	r.readTopics(d, v)                          // v0+
	if v >= 4 {
		r.readAutoCreate(d)                     // v4+
	}
	if v >= 8 {
		r.readAuthorizedOpsFlags(d)             // v8+
	}

	return r, nil
}

// ----------------------------------------------------------------------------
// Response
// ----------------------------------------------------------------------------

type MetadataResponse struct {
	ThrottleTimeMs       int32 // v3+
	Brokers              []MetadataBroker
	ClusterID            *string // v2+
	ControllerID         int32   // v1+
	Topics               []MetadataTopic
	ClusterAuthorizedOps int32 // v8+
	IncludeClusterOps    bool  // internal: whether cluster ops were requested
	IncludeTopicOps      bool  // internal: whether topic ops were requested
}

type MetadataBroker struct {
	NodeID int32
	Host   string
	Port   int32
	Rack   *string // v1+
}

type MetadataTopic struct {
	ErrorCode          int16
	Name               string
	IsInternal         bool // v1+
	Partitions         []MetadataPartition
	TopicAuthorizedOps int32 // v8+
}

type MetadataPartition struct {
	ErrorCode       int16
	PartitionIndex  int32
	LeaderID        int32
	LeaderEpoch     int32 // v7+
	ReplicaNodes    []int32
	IsrNodes        []int32
	OfflineReplicas []int32 // v5+
}

const opsNotRequested int32 = -2147483648 // INT32_MIN

// Response Writers

func (r *MetadataResponse) writeBrokers(e *Encoder, version int16) {
	e.WriteArrayLen(len(r.Brokers), false)

	for _, b := range r.Brokers {
		e.WriteInt32(b.NodeID)
		e.WriteString(b.Host)
		e.WriteInt32(b.Port)
		if version >= 1 {
			e.WriteNullableString(b.Rack)       // v1+
		}
	}
}

func (r *MetadataResponse) writeTopics(e *Encoder, version int16) {
	e.WriteArrayLen(len(r.Topics), false)

	for _, t := range r.Topics {
		t.writeTo(e, version, r.IncludeTopicOps)
	}
}

func (t *MetadataTopic) writeTo(e *Encoder, version int16, includeOps bool) {
	e.WriteInt16(t.ErrorCode)
	e.WriteString(t.Name)

	if version >= 1 {
		e.WriteBool(t.IsInternal)               // v1+
	}

	e.WriteArrayLen(len(t.Partitions), false)
	for _, p := range t.Partitions {
		p.writeTo(e, version)
	}

	if version >= 8 {
		if includeOps {
			e.WriteInt32(t.TopicAuthorizedOps)  // v8+
		} else {
			e.WriteInt32(opsNotRequested)
		}
	}
}

func (p *MetadataPartition) writeTo(e *Encoder, version int16) {
	e.WriteInt16(p.ErrorCode)
	e.WriteInt32(p.PartitionIndex)
	e.WriteInt32(p.LeaderID)

	if version >= 7 {
		e.WriteInt32(p.LeaderEpoch)             // v7+
	}

	writeInt32Array(e, p.ReplicaNodes)
	writeInt32Array(e, p.IsrNodes)

	if version >= 5 {
		writeInt32Array(e, p.OfflineReplicas)   // v5+
	}
}

func writeInt32Array(e *Encoder, vs []int32) {
	e.WriteArrayLen(len(vs), false)
	for _, v := range vs {
		e.WriteInt32(v)
	}
}

// Encode - the recipe

func EncodeMetadataResponse(e *Encoder, v int16, r *MetadataResponse) {
	if v >= 3 {
		e.WriteInt32(r.ThrottleTimeMs)          // v3+
	}
	r.writeBrokers(e, v)                        // v0+
	if v >= 2 {
		e.WriteNullableString(r.ClusterID)      // v2+
	}
	if v >= 1 {
		e.WriteInt32(r.ControllerID)            // v1+
	}
	r.writeTopics(e, v)                         // v0+
	if v >= 8 {
		if r.IncludeClusterOps {
			e.WriteInt32(r.ClusterAuthorizedOps) // v8+
		} else {
			e.WriteInt32(opsNotRequested)
		}
	}
}
