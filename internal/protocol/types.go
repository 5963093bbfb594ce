package protocol

// API Keys
const (
	APIKeyProduce          int16 = 0
	APIKeyFetch            int16 = 1
	APIKeyListOffsets      int16 = 2
	APIKeyMetadata         int16 = 3
	APIKeyOffsetCommit     int16 = 8
	APIKeyOffsetFetch      int16 = 9
	APIKeyApiVersions      int16 = 18
	APIKeyCreateTopics     int16 = 19
	APIKeyDeleteTopics     int16 = 20
	APIKeyDescribeConfigs  int16 = 32
	APIKeyAlterConfigs     int16 = 33
	APIKeyCreatePartitions int16 = 37
)

// Error Codes
const (
	ErrUnknownServerError       int16 = -1
	ErrNone                     int16 = 0
	ErrOffsetOutOfRange         int16 = 1
	ErrUnknownTopicOrPartition  int16 = 3
	ErrLeaderNotAvailable       int16 = 5
	ErrNotLeaderForPartition    int16 = 6
	ErrRecordTooLarge           int16 = 10 // MESSAGE_TOO_LARGE on the wire
	ErrInvalidTopic             int16 = 17
	ErrUnsupportedVersion       int16 = 35
	ErrTopicAlreadyExists       int16 = 36
	ErrInvalidPartitions        int16 = 37
	ErrInvalidReplicationFactor int16 = 38
	ErrInvalidRequest           int16 = 42
)

// Config resource types carried by DescribeConfigs/AlterConfigs.
const (
	ResourceUnknown int8 = 0
	ResourceTopic   int8 = 2
	ResourceBroker  int8 = 4
)

// RequestHeader represents the common request header
type RequestHeader struct {
	APIKey        int16
	APIVersion    int16
	CorrelationID int32
	ClientID      string
}

// ResponseHeader represents the common response header
type ResponseHeader struct {
	CorrelationID int32
}

// ApiVersion represents a supported API version range
type ApiVersion struct {
	APIKey     int16
	MinVersion int16
	MaxVersion int16
}
