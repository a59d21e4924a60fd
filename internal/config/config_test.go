package config

import (
	"os"
	"testing"
)

func TestLoadUsesEmbeddedDefaultsWithoutEnvOverrides(t *testing.T) {
	os.Unsetenv("HQM_BIND_PORT")
	c := Load()
	if c.Network.BindPort != 27590 {
		t.Fatalf("BindPort = %d, want 27590", c.Network.BindPort)
	}
	if c.Game.TickRate != 100 {
		t.Fatalf("TickRate = %d, want 100", c.Game.TickRate)
	}
	if c.Rink.Width != 30 {
		t.Fatalf("Rink.Width = %v, want 30", c.Rink.Width)
	}
}

func TestLoadHonorsEnvOverride(t *testing.T) {
	os.Setenv("HQM_BIND_PORT", "9999")
	defer os.Unsetenv("HQM_BIND_PORT")
	c := Load()
	if c.Network.BindPort != 9999 {
		t.Fatalf("BindPort = %d, want 9999 from env override", c.Network.BindPort)
	}
}

func TestHardcodedDefaultsMatchEmbeddedJSON(t *testing.T) {
	d := hardcodedDefaults()
	embedded, err := loadEmbeddedConfig()
	if err != nil {
		t.Fatalf("embedded config failed to parse: %v", err)
	}
	if d != *embedded {
		t.Fatalf("fallback defaults drifted from embedded hqm.json: %+v != %+v", d, *embedded)
	}
}
