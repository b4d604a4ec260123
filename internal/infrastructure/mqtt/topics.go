package mqtt

import "fmt"

// TopicPrefix is the root of every controller topic.
const TopicPrefix = "cardcore"

// Topics provides builders for controller MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.IODigitalOutput(3) // "cardcore/io/do/3"
type Topics struct{}

// IODigitalInput returns the state topic of a field digital input channel.
//
// Example: cardcore/io/di/4
func (Topics) IODigitalInput(ch int) string {
	return fmt.Sprintf("%s/io/di/%d", TopicPrefix, ch)
}

// IOAnalogInput returns the state topic of a field analog input channel.
//
// Example: cardcore/io/ai/0
func (Topics) IOAnalogInput(ch int) string {
	return fmt.Sprintf("%s/io/ai/%d", TopicPrefix, ch)
}

// IODigitalOutput returns the topic a digital output level is written to.
//
// Example: cardcore/io/do/2
func (Topics) IODigitalOutput(ch int) string {
	return fmt.Sprintf("%s/io/do/%d", TopicPrefix, ch)
}

// Snapshot returns the retained full-snapshot topic.
func (Topics) Snapshot() string {
	return TopicPrefix + "/snapshot"
}

// CardState returns the per-card state topic.
//
// Example: cardcore/card/12/state
func (Topics) CardState(id int) string {
	return fmt.Sprintf("%s/card/%d/state", TopicPrefix, id)
}

// Command returns the topic commands are accepted on.
func (Topics) Command() string {
	return TopicPrefix + "/command"
}

// CommandAck returns the topic command acknowledgements are published on.
func (Topics) CommandAck() string {
	return TopicPrefix + "/command/ack"
}

// SystemStatus returns the online/offline status topic (also the LWT topic).
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// AllDigitalInputs matches every digital input channel.
func (Topics) AllDigitalInputs() string {
	return TopicPrefix + "/io/di/+"
}

// AllAnalogInputs matches every analog input channel.
func (Topics) AllAnalogInputs() string {
	return TopicPrefix + "/io/ai/+"
}

// AllCardStates matches every per-card state topic.
func (Topics) AllCardStates() string {
	return TopicPrefix + "/card/+/state"
}

// AllTopics matches every controller topic. Use with caution.
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
