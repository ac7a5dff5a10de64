package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	// Precision is the number of decimals derived float values are rounded to.
	Precision int

	SendDiscovery      bool
	DiscoveryPrefix    string
	BirthTopic         string
	BirthOnlinePayload string

	// MACNames maps a station mac address to the device name used in discovery payloads.
	MACNames map[string]string

	// DocumentTopic is the subtopic documents are published on, below {MQTTPrefix}/{mac}.
	DocumentTopic string

	CacheBackend  string
	CacheFile     string
	CacheLockFile string

	MQTTHost        string
	MQTTPort        int
	MQTTUsername    string
	MQTTPassword    string
	MQTTKeepAlive   int
	MQTTPrefix      string
	MQTTClientID    string
	MQTTOnlineTopic string
	MQTTQoS         byte
}

// Load reads a .env file when one exists and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file
	return LoadFromEnv()
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}
	debug, err := envBool("DEBUG", false)
	if err != nil {
		return Config{}, err
	}
	if debug {
		level = slog.LevelDebug
	}

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if httpAddr == "" {
		port, err := envInt("LISTEN_PORT", 8000)
		if err != nil {
			return Config{}, err
		}
		httpAddr = ":" + strconv.Itoa(port)
	}

	precision, err := envInt("PRECISION", 2)
	if err != nil {
		return Config{}, err
	}
	if precision < 0 || precision > 10 {
		return Config{}, fmt.Errorf("PRECISION must be between 0 and 10, got %d", precision)
	}

	sendDiscovery, err := envBool("SEND_HA_DISCOVERY_CONFIG", true)
	if err != nil {
		return Config{}, err
	}

	macNames, err := parseMACNames(os.Getenv("MAC_NAME_MAPPING"))
	if err != nil {
		return Config{}, err
	}

	backend := strings.ToLower(envString("KNOWN_SENSORS_BACKEND", BackendFile))
	switch backend {
	case BackendFile, BackendSQLite:
	default:
		return Config{}, fmt.Errorf("invalid KNOWN_SENSORS_BACKEND %q (allowed: file, sqlite)", backend)
	}

	mqttHost := strings.TrimSpace(os.Getenv("MQTT_HOST"))
	if mqttHost == "" {
		return Config{}, fmt.Errorf("MQTT_HOST is required")
	}
	mqttPort, err := envInt("MQTT_PORT", 1883)
	if err != nil {
		return Config{}, err
	}
	if mqttPort <= 0 || mqttPort > 65535 {
		return Config{}, fmt.Errorf("MQTT_PORT out of range: %d", mqttPort)
	}
	keepAlive, err := envInt("MQTT_KEEPALIVE_SEC", 60)
	if err != nil {
		return Config{}, err
	}
	qos, err := envInt("MQTT_QOS", 0)
	if err != nil {
		return Config{}, err
	}
	if qos < 0 || qos > 2 {
		return Config{}, fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", qos)
	}

	return Config{
		AppEnv:             appEnv,
		LogLevel:           level,
		HTTPAddr:           httpAddr,
		Precision:          precision,
		SendDiscovery:      sendDiscovery,
		DiscoveryPrefix:    envString("HA_DISCOVERY_PREFIX", "homeassistant"),
		BirthTopic:         envString("HA_BIRTH_TOPIC", "homeassistant/status"),
		BirthOnlinePayload: envString("HA_BIRTH_TOPIC_ONLINE", "online"),
		MACNames:           macNames,
		DocumentTopic:      envString("MQTT_TOPIC_JSON", "sensor"),
		CacheBackend:       backend,
		CacheFile:          envString("KNOWN_SENSORS_CACHE_FILE", "known_sensors.json"),
		CacheLockFile:      envString("KNOWN_SENSORS_LOCK_FILE", "known_sensors.lock"),
		MQTTHost:           mqttHost,
		MQTTPort:           mqttPort,
		MQTTUsername:       os.Getenv("MQTT_USERNAME"),
		MQTTPassword:       os.Getenv("MQTT_PASSWORD"),
		MQTTKeepAlive:      keepAlive,
		MQTTPrefix:         envString("MQTT_PREFIX", "ambientweather"),
		MQTTClientID:       envString("MQTT_CLIENT_ID", "ambientweather"),
		MQTTOnlineTopic:    envString("MQTT_TOPIC_ONLINE", "online"),
		MQTTQoS:            byte(qos),
	}, nil
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

// parseMACNames parses "mac/name,mac/name". Only the first "/" separates mac from name.
func parseMACNames(s string) (map[string]string, error) {
	out := make(map[string]string)
	s = strings.TrimSpace(s)
	if s == "" {
		return out, nil
	}
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		mac, name, ok := strings.Cut(entry, "/")
		mac = strings.TrimSpace(mac)
		if !ok || mac == "" {
			return nil, fmt.Errorf("invalid MAC_NAME_MAPPING entry %q (expected mac/name)", entry)
		}
		out[mac] = strings.TrimSpace(name)
	}
	return out, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
