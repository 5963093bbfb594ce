package protocol

// ============================================================================
// ApiVersions (API Key 18)
// Supported versions: 0-3
// ============================================================================

// ----------------------------------------------------------------------------
// Request
// ----------------------------------------------------------------------------

type ApiVersionsRequest struct {
	ClientSoftwareName    string // v3+
	ClientSoftwareVersion string // v3+
}

// Request Readers

func (r *ApiVersionsRequest) readClientInfo(d *Decoder) {
	r.ClientSoftwareName, _ = d.ReadCompactString()
	r.ClientSoftwareVersion, _ = d.ReadCompactString()
	d.SkipTaggedFields()
}

// Decode - the recipe

func DecodeApiVersionsRequest(d *Decoder, v int16) (*ApiVersionsRequest, error) {
	r := &ApiVersionsRequest{}

	// v0-v2: empty request body
	if v >= 3 {
		r.readClientInfo(d)                     // v3+
	}

	return r, nil
}

// ----------------------------------------------------------------------------
// Response
// ----------------------------------------------------------------------------

type ApiVersionsResponse struct {
	ErrorCode      int16
	ApiVersions    []ApiVersion
	ThrottleTimeMs int32 // v1+
}

// Response Writers

func (r *ApiVersionsResponse) writeApiVersions(e *Encoder, flexible bool) {
	e.WriteArrayLen(len(r.ApiVersions), flexible)

	for _, v := range r.ApiVersions {
		e.WriteInt16(v.APIKey)
		e.WriteInt16(v.MinVersion)
		e.WriteInt16(v.MaxVersion)
		if flexible {
			e.WriteEmptyTaggedFields()          // per-entry tagged fields
		}
	}
}

// Encode - the recipe

func EncodeApiVersionsResponse(e *Encoder, v int16, r *ApiVersionsResponse) {
	e.WriteInt16(r.ErrorCode)                   // v0+

	if v >= 3 {
		r.writeApiVersions(e, true)             // v3+ compact
		e.WriteInt32(r.ThrottleTimeMs)          // v3+ (after api_keys)
		e.WriteEmptyTaggedFields()              // v3+ response tagged fields
	} else {
		r.writeApiVersions(e, false)            // v0-v2 classic
		if v >= 1 {
			e.WriteInt32(r.ThrottleTimeMs)      // v1+
		}
	}
}
