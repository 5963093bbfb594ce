package protocol

// ============================================================================
// DescribeConfigs (API Key 32)
// Supported versions: 0-2
// ============================================================================

// Config sources (v1+)
const (
	ConfigSourceUnknown             int8 = 0
	ConfigSourceTopic               int8 = 1
	ConfigSourceStaticBrokerDefault int8 = 4
	ConfigSourceDefault             int8 = 5
)

// ----------------------------------------------------------------------------
// Request
// ----------------------------------------------------------------------------

type DescribeConfigsRequest struct {
	Resources       []DescribeConfigsRequestResource
	IncludeSynonyms bool // v1+
}

type DescribeConfigsRequestResource struct {
	ResourceType int8
	ResourceName string
	ConfigNames  []string // nil = all configs
}

// Request Readers

func (r *DescribeConfigsRequest) readResources(d *Decoder) {
	count, _ := d.ReadArrayLen(false)
	if count < 0 {
		return
	}
	r.Resources = make([]DescribeConfigsRequestResource, count)
	for i := range r.Resources {
		r.Resources[i].readFrom(d)
	}
}

func (res *DescribeConfigsRequestResource) readFrom(d *Decoder) {
	res.ResourceType, _ = d.ReadInt8()
	res.ResourceName, _ = d.ReadString()

	count, _ := d.ReadArrayLen(false)
	if count < 0 {
		return // null = all configs
	}
	res.ConfigNames = make([]string, count)
	for i := range res.ConfigNames {
		res.ConfigNames[i], _ = d.ReadString()
	}
}

// Decode - the recipe

func DecodeDescribeConfigsRequest(d *Decoder, v int16) (*DescribeConfigsRequest, error) {
	r := &DescribeConfigsRequest{}

	r.readResources(d)                          // v0+
	if v >= 1 {
		r.IncludeSynonyms, _ = d.ReadBool()     // v1+
	}

	return r, nil
}

// ----------------------------------------------------------------------------
// Response
// ----------------------------------------------------------------------------

type DescribeConfigsResponse struct {
	ThrottleTimeMs int32
	Results        []DescribeConfigsResult
}

type DescribeConfigsResult struct {
	ErrorCode    int16
	ErrorMessage *string
	ResourceType int8
	ResourceName string
	Configs      []DescribeConfigsEntry
}

type DescribeConfigsEntry struct {
	Name        string
	Value       *string
	ReadOnly    bool
	IsDefault   bool // v0 only
	Source      int8 // v1+
	IsSensitive bool
}

// Response Writers

func (r *DescribeConfigsResponse) writeResults(e *Encoder, version int16) {
	e.WriteArrayLen(len(r.Results), false)

	for _, res := range r.Results {
		res.writeTo(e, version)
	}
}

func (res *DescribeConfigsResult) writeTo(e *Encoder, version int16) {
	e.WriteInt16(res.ErrorCode)
	e.WriteNullableString(res.ErrorMessage)
	e.WriteInt8(res.ResourceType)
	e.WriteString(res.ResourceName)

	e.WriteArrayLen(len(res.Configs), false)
	for _, c := range res.Configs {
		c.writeTo(e, version)
	}
}

func (c *DescribeConfigsEntry) writeTo(e *Encoder, version int16) {
	e.WriteString(c.Name)
	e.WriteNullableString(c.Value)
	e.WriteBool(c.ReadOnly)

	if version == 0 {
		e.WriteBool(c.IsDefault)                // v0 only
	} else {
		e.WriteInt8(c.Source)                   // v1+
	}

	e.WriteBool(c.IsSensitive)

	if version >= 1 {
		e.WriteArrayLen(0, false)               // v1+ synonyms (none reported)
	}
}

// Encode - the recipe

func EncodeDescribeConfigsResponse(e *Encoder, v int16, r *DescribeConfigsResponse) {
	e.WriteInt32(r.ThrottleTimeMs)              // v0+
	r.writeResults(e, v)                        // v0+
}
