package protocol

import "fmt"

// apiSchema describes one supported API: its version range and, for layouts
// that change wholesale at a version boundary, where the flexible (compact,
// tagged-field) encoding begins. flexibleNever marks APIs we only speak in
// the classic encoding.
//
// Version-dependent layout lives here and in the per-API recipes, never in
// ad-hoc branching at call sites: supporting a new version means adding or
// widening a row and guarding the new fields, without touching sibling
// versions.
type apiSchema struct {
	Key          int16
	Name         string
	MinVersion   int16
	MaxVersion   int16
	FlexibleFrom int16
}

const flexibleNever int16 = 0x7fff

var apiTable = []apiSchema{
	{APIKeyProduce, "Produce", 0, 8, flexibleNever},
	{APIKeyFetch, "Fetch", 0, 11, flexibleNever},
	{APIKeyListOffsets, "ListOffsets", 0, 5, flexibleNever},
	{APIKeyMetadata, "Metadata", 0, 8, flexibleNever},
	{APIKeyOffsetCommit, "OffsetCommit", 0, 7, flexibleNever},
	{APIKeyOffsetFetch, "OffsetFetch", 0, 5, flexibleNever},
	{APIKeyApiVersions, "ApiVersions", 0, 3, 3},
	{APIKeyCreateTopics, "CreateTopics", 0, 5, 5},
	{APIKeyDeleteTopics, "DeleteTopics", 0, 3, flexibleNever},
	{APIKeyDescribeConfigs, "DescribeConfigs", 0, 2, flexibleNever},
	{APIKeyAlterConfigs, "AlterConfigs", 0, 1, flexibleNever},
	{APIKeyCreatePartitions, "CreatePartitions", 0, 1, flexibleNever},
}

// The OffsetCommit request carried an explicit retention_time_ms field only
// in this version window: v2 added it and v5 removed it in favor of the
// broker-side default. This is protocol history, not policy; treat it like
// cluster configuration.
const (
	OffsetRetentionMinVersion int16 = 2
	OffsetRetentionMaxVersion int16 = 4
)

// RetentionNotSet is the wire value meaning "no per-request retention".
const RetentionNotSet int64 = -1

func lookupAPI(key int16) (apiSchema, bool) {
	for _, s := range apiTable {
		if s.Key == key {
			return s, true
		}
	}
	return apiSchema{}, false
}

// CheckVersion reports whether we can decode and encode the given API at the
// given version. The error text names the API when known.
func CheckVersion(key, version int16) error {
	s, ok := lookupAPI(key)
	if !ok {
		return fmt.Errorf("unsupported api key %d", key)
	}
	if version < s.MinVersion || version > s.MaxVersion {
		return fmt.Errorf("unsupported %s version %d (supported %d-%d)",
			s.Name, version, s.MinVersion, s.MaxVersion)
	}
	return nil
}

// IsFlexible reports whether the given API version uses the flexible
// (compact, tagged-field) encoding.
func IsFlexible(key, version int16) bool {
	s, ok := lookupAPI(key)
	return ok && version >= s.FlexibleFrom
}

// APIName returns a printable name for logs and errors.
func APIName(key int16) string {
	if s, ok := lookupAPI(key); ok {
		return s.Name
	}
	return fmt.Sprintf("api-%d", key)
}

// SupportedVersions lists every (apiKey, min, max) row for the ApiVersions
// response.
func SupportedVersions() []ApiVersion {
	out := make([]ApiVersion, 0, len(apiTable))
	for _, s := range apiTable {
		out = append(out, ApiVersion{APIKey: s.Key, MinVersion: s.MinVersion, MaxVersion: s.MaxVersion})
	}
	return out
}
