package mqtt

import "fmt"

// Topic prefixes. All node topics use the scheme
// rivercore/{site}/{category}[/{id}]; system-wide topics live under
// rivercore/system.
const (
	// TopicPrefix is the base for all topics.
	TopicPrefix = "rivercore"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "rivercore/system"
)

// Topics provides builders for the broker topic hierarchy. Using these
// helpers keeps topic naming consistent between publishers and consumers.
//
//	topics := mqtt.Topics{}
//	topics.Reading("G4", "M0")  // "rivercore/G4/reading/M0"
type Topics struct{}

// Reading returns the topic a probe's readings are published on.
//
// Example: rivercore/G4/reading/M0
func (Topics) Reading(siteID, sensorID string) string {
	return fmt.Sprintf("%s/%s/reading/%s", TopicPrefix, siteID, sensorID)
}

// Event returns the topic a site's event log entries are mirrored to.
//
// Example: rivercore/NAS/event
func (Topics) Event(siteID string) string {
	return fmt.Sprintf("%s/%s/event", TopicPrefix, siteID)
}

// NodeStatus returns the topic a node's status updates are published on.
//
// Example: rivercore/SUMP/status
func (Topics) NodeStatus(siteID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefix, siteID)
}

// Control returns the topic control notifications for a device are
// published on.
//
// Example: rivercore/SUMP/control/P0
func (Topics) Control(siteID, deviceID string) string {
	return fmt.Sprintf("%s/%s/control/%s", TopicPrefix, siteID, deviceID)
}

// SystemStatus returns the broker-wide status topic carrying LWT and
// online/offline announcements.
//
// Example: rivercore/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllReadings returns a pattern matching every probe's readings.
//
// Pattern: rivercore/+/reading/+
func (Topics) AllReadings() string {
	return fmt.Sprintf("%s/+/reading/+", TopicPrefix)
}

// SiteReadings returns a pattern matching all readings from one site.
//
// Pattern: rivercore/G4/reading/+
func (Topics) SiteReadings(siteID string) string {
	return fmt.Sprintf("%s/%s/reading/+", TopicPrefix, siteID)
}

// AllEvents returns a pattern matching every site's events.
//
// Pattern: rivercore/+/event
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/+/event", TopicPrefix)
}

// AllStatus returns a pattern matching every node's status updates.
//
// Pattern: rivercore/+/status
func (Topics) AllStatus() string {
	return fmt.Sprintf("%s/+/status", TopicPrefix)
}

// SiteControl returns a pattern matching control notifications for all of
// one site's devices.
//
// Pattern: rivercore/SUMP/control/+
func (Topics) SiteControl(siteID string) string {
	return fmt.Sprintf("%s/%s/control/+", TopicPrefix, siteID)
}

// AllTopics returns a pattern matching the whole hierarchy.
// Use with caution, this receives ALL traffic.
//
// Pattern: rivercore/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
