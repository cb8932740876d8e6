package mqtt

import "strings"

// DefaultTopicPrefix is used when the configuration leaves the prefix empty.
const DefaultTopicPrefix = "sensornet"

// Topics builds topics under a configurable root prefix.
//
// The layout is flat: {prefix}/{category}/{protocol}/{address...}
//
//	topics := mqtt.NewTopics("sensornet")
//	topics.Join("state", "mysensors", "12", "1")
//	// Returns: "sensornet/state/mysensors/12/1"
type Topics struct {
	Prefix string
}

// NewTopics returns a builder rooted at prefix. Surrounding slashes are
// trimmed and an empty prefix selects DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

// Join appends levels to the prefix.
func (t Topics) Join(levels ...string) string {
	prefix := t.Prefix
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return prefix + "/" + strings.Join(levels, "/")
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: sensornet/system/status
func (t Topics) SystemStatus() string {
	return t.Join("system", "status")
}

// All returns a subscription pattern matching every topic under the prefix.
func (t Topics) All() string {
	return t.Join("#")
}

// ValidatePublishTopic rejects topics a client may not publish to.
func ValidatePublishTopic(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if strings.ContainsAny(topic, "+#") {
		return ErrWildcardTopic
	}
	return nil
}
