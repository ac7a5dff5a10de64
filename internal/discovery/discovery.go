// Package discovery builds the Home Assistant MQTT discovery announcements
// for station sensors.
package discovery

import (
	"strings"

	"github.com/klagroix/ambient-weather-to-mqtt/internal/config"
	"github.com/klagroix/ambient-weather-to-mqtt/internal/mapping"
)

const (
	Manufacturer = "Ambient Weather"

	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Payload is the JSON body published on a sensor's config topic.
type Payload struct {
	Name                string         `json:"name"`
	ObjectID            string         `json:"object_id"`
	UniqueID            string         `json:"unique_id"`
	StateTopic          string         `json:"state_topic"`
	ValueTemplate       string         `json:"value_template"`
	Device              Device         `json:"device"`
	Availability        []Availability `json:"availability"`
	PayloadAvailable    string         `json:"payload_available"`
	PayloadNotAvailable string         `json:"payload_not_available"`
	UnitOfMeasurement   string         `json:"unit_of_measurement,omitempty"`
	DeviceClass         string         `json:"device_class,omitempty"`
	Icon                string         `json:"icon,omitempty"`
	StateClass          string         `json:"state_class,omitempty"`
}

type Device struct {
	Connections  [][2]string `json:"connections"`
	Identifiers  []string    `json:"identifiers"`
	Manufacturer string      `json:"manufacturer"`
	Name         string      `json:"name"`
}

type Availability struct {
	Topic string `json:"topic"`
}

// Announcement is one payload and the topic it goes to.
type Announcement struct {
	Topic    string
	UniqueID string
	Payload  Payload
}

var sanitizer = strings.NewReplacer(":", "-", ".", "-")

// Sanitize replaces the characters discovery topics cannot carry.
func Sanitize(s string) string {
	return sanitizer.Replace(s)
}

// UniqueID is "<sanitized mac>_<sanitized suffix>".
func UniqueID(mac, suffix string) string {
	return Sanitize(mac) + "_" + Sanitize(suffix)
}

// Topics derives every topic name from the broker prefixes.
type Topics struct {
	DiscoveryPrefix string
	MQTTPrefix      string
	DocumentTopic   string
	OnlineTopic     string
}

func TopicsFromConfig(cfg config.Config) Topics {
	return Topics{
		DiscoveryPrefix: cfg.DiscoveryPrefix,
		MQTTPrefix:      cfg.MQTTPrefix,
		DocumentTopic:   cfg.DocumentTopic,
		OnlineTopic:     cfg.MQTTOnlineTopic,
	}
}

// Document is where readings for a station are published. key is the
// sanitized mac, or a placeholder when the station sent none.
func (t Topics) Document(key string) string {
	return t.MQTTPrefix + "/" + key + "/" + t.DocumentTopic
}

func (t Topics) Config(uniqueID string) string {
	return t.DiscoveryPrefix + "/sensor/" + uniqueID + "/config"
}

func (t Topics) Availability() string {
	return t.MQTTPrefix + "/" + t.OnlineTopic
}

// Builder renders announcements for one deployment.
type Builder struct {
	Topics Topics
	// Names maps a raw mac to the device name. Unmapped macs get an empty name.
	Names map[string]string
}

func NewBuilder(cfg config.Config) Builder {
	return Builder{Topics: TopicsFromConfig(cfg), Names: cfg.MACNames}
}

func (b Builder) DeviceName(mac string) string {
	return b.Names[mac]
}

// Build renders the announcement for sensor s of the station identified by mac.
func (b Builder) Build(mac, stationType string, s mapping.Sensor) Announcement {
	id := UniqueID(mac, s.Path)
	device := b.DeviceName(mac)
	return Announcement{
		Topic:    b.Topics.Config(id),
		UniqueID: id,
		Payload: Payload{
			Name:          s.Name,
			ObjectID:      device + " - " + s.Name,
			UniqueID:      id,
			StateTopic:    b.Topics.Document(Sanitize(mac)),
			ValueTemplate: s.ValueTemplate(),
			Device: Device{
				Connections:  [][2]string{{"mac", mac}},
				Identifiers:  []string{stationType},
				Manufacturer: Manufacturer,
				Name:         device,
			},
			Availability:        []Availability{{Topic: b.Topics.Availability()}},
			PayloadAvailable:    PayloadOnline,
			PayloadNotAvailable: PayloadOffline,
			UnitOfMeasurement:   s.Unit,
			DeviceClass:         s.DeviceClass,
			Icon:                s.Icon,
			StateClass:          s.StateClass,
		},
	}
}
