// Package config loads server configuration from an embedded JSON
// default file, with every field individually overridable by an
// environment variable -- the same two-layer pattern used elsewhere
// in this codebase for gameConfig.json, adapted to HQM's fields.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config is the fully resolved, ready-to-use server configuration.
type Config struct {
	Network NetworkConfig
	Rink    RinkConfig
	Game    GameConfig
	Listing ListingConfig
}

type NetworkConfig struct {
	BindHost        string
	BindPort        int
	ReadBufferSize  int
	WriteBufferSize int
	RateLimitMsgSec int
	RateLimitBurst  int
}

type RinkConfig struct {
	Width        float32
	Length       float32
	CornerRadius float32
}

type GameConfig struct {
	TickRate    int
	TeamMaxSize int
	StickHand   float32
	ServerName  string
	Version     uint8
}

type ListingConfig struct {
	Public            bool
	MasterAddress     string
	BeaconIntervalSec int
}

// JSONConfig mirrors the shape of hqm.json.
type JSONConfig struct {
	Network struct {
		BindHost        string `json:"bindHost"`
		BindPort        int    `json:"bindPort"`
		ReadBufferSize  int    `json:"readBufferSize"`
		WriteBufferSize int    `json:"writeBufferSize"`
		RateLimitMsgSec int    `json:"rateLimitMsgSec"`
		RateLimitBurst  int    `json:"rateLimitBurst"`
	} `json:"network"`
	Rink struct {
		Width        float32 `json:"width"`
		Length       float32 `json:"length"`
		CornerRadius float32 `json:"cornerRadius"`
	} `json:"rink"`
	Game struct {
		TickRate    int     `json:"tickRate"`
		TeamMaxSize int     `json:"teamMaxSize"`
		StickHand   float32 `json:"stickHand"`
		ServerName  string  `json:"serverName"`
		Version     int     `json:"version"`
	} `json:"game"`
	Listing struct {
		Public            bool   `json:"public"`
		MasterAddress     string `json:"masterAddress"`
		BeaconIntervalSec int    `json:"beaconIntervalSec"`
	} `json:"listing"`
}

// hardcodedDefaults mirrors hqm.json exactly, as a fallback for the case
// where the embedded asset itself cannot be parsed -- a packaging defect,
// not a reason for a game server to refuse to start (see DESIGN.md for
// the os.Exit(1)-on-embed-failure behavior this deviates from).
func hardcodedDefaults() JSONConfig {
	var d JSONConfig
	d.Network.BindHost = "0.0.0.0"
	d.Network.BindPort = 27590
	d.Network.ReadBufferSize = 4096
	d.Network.WriteBufferSize = 4096
	d.Network.RateLimitMsgSec = 90
	d.Network.RateLimitBurst = 16
	d.Rink.Width = 30
	d.Rink.Length = 61
	d.Rink.CornerRadius = 8.5
	d.Game.TickRate = 100
	d.Game.TeamMaxSize = 5
	d.Game.StickHand = 1
	d.Game.ServerName = "HQM Server"
	d.Game.Version = 55
	d.Listing.Public = false
	d.Listing.BeaconIntervalSec = 10
	return d
}

// Load resolves the final Config: embedded JSON defaults (or, failing
// that, compiled-in defaults with a warning), each field then
// individually overridable by an environment variable.
func Load() *Config {
	jsonConfig, err := loadEmbeddedConfig()
	if err != nil {
		fmt.Printf("⚠️  could not parse embedded config (%v), falling back to compiled defaults\n", err)
		d := hardcodedDefaults()
		jsonConfig = &d
	}

	return &Config{
		Network: NetworkConfig{
			BindHost:        getEnvString("HQM_BIND_HOST", jsonConfig.Network.BindHost),
			BindPort:        getEnvInt("HQM_BIND_PORT", jsonConfig.Network.BindPort),
			ReadBufferSize:  getEnvInt("HQM_READ_BUFFER_SIZE", jsonConfig.Network.ReadBufferSize),
			WriteBufferSize: getEnvInt("HQM_WRITE_BUFFER_SIZE", jsonConfig.Network.WriteBufferSize),
			RateLimitMsgSec: getEnvInt("HQM_RATE_LIMIT_MSG_SEC", jsonConfig.Network.RateLimitMsgSec),
			RateLimitBurst:  getEnvInt("HQM_RATE_LIMIT_BURST", jsonConfig.Network.RateLimitBurst),
		},
		Rink: RinkConfig{
			Width:        getEnvFloat("HQM_RINK_WIDTH", jsonConfig.Rink.Width),
			Length:       getEnvFloat("HQM_RINK_LENGTH", jsonConfig.Rink.Length),
			CornerRadius: getEnvFloat("HQM_RINK_CORNER_RADIUS", jsonConfig.Rink.CornerRadius),
		},
		Game: GameConfig{
			TickRate:    getEnvInt("HQM_TICK_RATE", jsonConfig.Game.TickRate),
			TeamMaxSize: getEnvInt("HQM_TEAM_MAX_SIZE", jsonConfig.Game.TeamMaxSize),
			StickHand:   getEnvFloat("HQM_STICK_HAND", jsonConfig.Game.StickHand),
			ServerName:  getEnvString("HQM_SERVER_NAME", jsonConfig.Game.ServerName),
			Version:     uint8(getEnvInt("HQM_VERSION", jsonConfig.Game.Version)),
		},
		Listing: ListingConfig{
			Public:            getEnvBool("HQM_PUBLIC", jsonConfig.Listing.Public),
			MasterAddress:     getEnvString("HQM_MASTER_ADDRESS", jsonConfig.Listing.MasterAddress),
			BeaconIntervalSec: getEnvInt("HQM_BEACON_INTERVAL_SEC", jsonConfig.Listing.BeaconIntervalSec),
		},
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(f)
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
