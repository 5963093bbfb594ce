package protocol

// ============================================================================
// DeleteTopics (API Key 20)
// Supported versions: 0-3
// ============================================================================

// ----------------------------------------------------------------------------
// Request
// ----------------------------------------------------------------------------

type DeleteTopicsRequest struct {
	TopicNames []string
	TimeoutMs  int32
}

// Request Readers

func (r *DeleteTopicsRequest) readTopicNames(d *Decoder) {
	count, _ := d.ReadArrayLen(false)
	if count < 0 {
		return
	}
	r.TopicNames = make([]string, count)
	for i := range r.TopicNames {
		r.TopicNames[i], _ = d.ReadString()
	}
}

// Decode - the recipe

func DecodeDeleteTopicsRequest(d *Decoder, v int16) (*DeleteTopicsRequest, error) {
	r := &DeleteTopicsRequest{}

	r.readTopicNames(d)                         // v0+
	r.TimeoutMs, _ = d.ReadInt32()              // v0+

	return r, nil
}

// ----------------------------------------------------------------------------
// Response
// ----------------------------------------------------------------------------

type DeleteTopicsResponse struct {
	ThrottleTimeMs int32 // v1+
	Responses      []DeleteTopicsResponseTopic
}

type DeleteTopicsResponseTopic struct {
	Name      string
	ErrorCode int16
}

// Response Writers

func (r *DeleteTopicsResponse) writeResponses(e *Encoder) {
	e.WriteArrayLen(len(r.Responses), false)

	for _, t := range r.Responses {
		e.WriteString(t.Name)
		e.WriteInt16(t.ErrorCode)
	}
}

// Encode - the recipe

func EncodeDeleteTopicsResponse(e *Encoder, v int16, r *DeleteTopicsResponse) {
	if v >= 1 {
		e.WriteInt32(r.ThrottleTimeMs)          // v1+
	}
	r.writeResponses(e)                         // v0+
}
