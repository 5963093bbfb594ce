package protocol

// ============================================================================
// CreatePartitions (API Key 37)
// Supported versions: 0-1
// ============================================================================

// ----------------------------------------------------------------------------
// Request
// ----------------------------------------------------------------------------

type CreatePartitionsRequest struct {
	Topics       []CreatePartitionsRequestTopic
	TimeoutMs    int32
	ValidateOnly bool
}

type CreatePartitionsRequestTopic struct {
	Name  string
	Count int32
	// Assignments holds explicit replica sets for the new partitions; nil
	// when the caller lets the backend place them.
	Assignments [][]int32
}

// Request Readers

func (r *CreatePartitionsRequest) readTopics(d *Decoder) {
	count, _ := d.ReadArrayLen(false)
	if count < 0 {
		return
	}
	r.Topics = make([]CreatePartitionsRequestTopic, count)
	for i := range r.Topics {
		r.Topics[i].readFrom(d)
	}
}

func (t *CreatePartitionsRequestTopic) readFrom(d *Decoder) {
	t.Name, _ = d.ReadString()
	t.Count, _ = d.ReadInt32()

	count, _ := d.ReadArrayLen(false)
	if count < 0 {
		return // null = no manual assignment
	}
	t.Assignments = make([][]int32, count)
	for i := range t.Assignments {
		brokerCount, _ := d.ReadArrayLen(false)
		brokers := make([]int32, 0, max(brokerCount, 0))
		for j := 0; j < brokerCount; j++ {
			b, _ := d.ReadInt32()
			brokers = append(brokers, b)
		}
		t.Assignments[i] = brokers
	}
}

// Decode - the recipe

func DecodeCreatePartitionsRequest(d *Decoder, v int16) (*CreatePartitionsRequest, error) {
	r := &CreatePartitionsRequest{}

	r.readTopics(d)                             // v0+
	r.TimeoutMs, _ = d.ReadInt32()              // v0+
	r.ValidateOnly, _ = d.ReadBool()            // v0+

	return r, nil
}

// ----------------------------------------------------------------------------
// Response
// ----------------------------------------------------------------------------

type CreatePartitionsResponse struct {
	ThrottleTimeMs int32
	Results        []CreatePartitionsResult
}

type CreatePartitionsResult struct {
	Name         string
	ErrorCode    int16
	ErrorMessage *string
}

// Response Writers

func (r *CreatePartitionsResponse) writeResults(e *Encoder) {
	e.WriteArrayLen(len(r.Results), false)

	for _, res := range r.Results {
		e.WriteString(res.Name)
		e.WriteInt16(res.ErrorCode)
		e.WriteNullableString(res.ErrorMessage)
	}
}

// Encode - the recipe

func EncodeCreatePartitionsResponse(e *Encoder, v int16, r *CreatePartitionsResponse) {
	e.WriteInt32(r.ThrottleTimeMs)              // v0+
	r.writeResults(e)                           // v0+
}
