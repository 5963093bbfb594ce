package protocol

// ============================================================================
// AlterConfigs (API Key 33)
// Supported versions: 0-1
// ============================================================================

// ----------------------------------------------------------------------------
// Request
// ----------------------------------------------------------------------------

type AlterConfigsRequest struct {
	Resources    []AlterConfigsRequestResource
	ValidateOnly bool
}

type AlterConfigsRequestResource struct {
	ResourceType int8
	ResourceName string
	Configs      map[string]*string
}

// Request Readers

func (r *AlterConfigsRequest) readResources(d *Decoder) {
	count, _ := d.ReadArrayLen(false)
	if count < 0 {
		return
	}
	r.Resources = make([]AlterConfigsRequestResource, count)
	for i := range r.Resources {
		r.Resources[i].readFrom(d)
	}
}

func (res *AlterConfigsRequestResource) readFrom(d *Decoder) {
	res.ResourceType, _ = d.ReadInt8()
	res.ResourceName, _ = d.ReadString()
	res.Configs = make(map[string]*string)

	count, _ := d.ReadArrayLen(false)
	for i := 0; i < count; i++ {
		name, _ := d.ReadString()
		value, _ := d.ReadNullableString()
		res.Configs[name] = value
	}
}

// Decode - the recipe

func DecodeAlterConfigsRequest(d *Decoder, v int16) (*AlterConfigsRequest, error) {
	r := &AlterConfigsRequest{}

	r.readResources(d)                          // v0+
	r.ValidateOnly, _ = d.ReadBool()            // v0+

	return r, nil
}

// ----------------------------------------------------------------------------
// Response
// ----------------------------------------------------------------------------

type AlterConfigsResponse struct {
	ThrottleTimeMs int32
	Responses      []AlterConfigsResult
}

type AlterConfigsResult struct {
	ErrorCode    int16
	ErrorMessage *string
	ResourceType int8
	ResourceName string
}

// Response Writers

func (r *AlterConfigsResponse) writeResponses(e *Encoder) {
	e.WriteArrayLen(len(r.Responses), false)

	for _, res := range r.Responses {
		e.WriteInt16(res.ErrorCode)
		e.WriteNullableString(res.ErrorMessage)
		e.WriteInt8(res.ResourceType)
		e.WriteString(res.ResourceName)
	}
}

// Encode - the recipe

func EncodeAlterConfigsResponse(e *Encoder, v int16, r *AlterConfigsResponse) {
	e.WriteInt32(r.ThrottleTimeMs)              // v0+
	r.writeResponses(e)                         // v0+
}
