package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	conf, err := ParseConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(conf.Sources) != 5 {
		t.Fatalf("got %d sources, want 5", len(conf.Sources))
	}
	for _, r := range AllRegistries() {
		if conf.Sources[r.String()] == "" {
			t.Fatalf("no default url for %s", r)
		}
	}
	if len(conf.CuratedLists) != 2 {
		t.Fatalf("got %d curated lists, want 2", len(conf.CuratedLists))
	}
	if conf.CuratedLists[0].Name != "StateSponsorsOfTerrorism" || len(conf.CuratedLists[0].Codes) != 4 {
		t.Fatalf("unexpected first curated list: %+v", conf.CuratedLists[0])
	}
	if conf.CuratedLists[1].Name != "OFACSanctioned" || len(conf.CuratedLists[1].Codes) != 18 {
		t.Fatalf("unexpected second curated list: %+v", conf.CuratedLists[1])
	}
	if conf.Listen == "" || conf.cacheMaxAge() <= 0 {
		t.Fatalf("incomplete defaults: %+v", conf)
	}
}

func TestParseConfigOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
listen: ":9999"
output_dir: /tmp/out
download_timeout_seconds: 5
sources:
  apnic: http://localhost/apnic
curated_lists:
  - name: TestList
    codes: [IR, KP]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	conf, err := ParseConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if conf.Listen != ":9999" || conf.OutputDir != "/tmp/out" {
		t.Fatalf("override not applied: %+v", conf)
	}
	if conf.downloadTimeout() != 5*time.Second {
		t.Fatalf("timeout override not applied: %v", conf.downloadTimeout())
	}
	// overridden source replaces only its own registry
	if conf.Sources["apnic"] != "http://localhost/apnic" {
		t.Fatalf("apnic source not overridden: %s", conf.Sources["apnic"])
	}
	if conf.Sources["ripencc"] == "" {
		t.Fatal("untouched sources lost")
	}
	if len(conf.CuratedLists) != 1 || conf.CuratedLists[0].Name != "TestList" {
		t.Fatalf("curated lists not overridden: %+v", conf.CuratedLists)
	}
}

func TestParseConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(":\n  - not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseConfig(path); err == nil {
		t.Fatal("expected parse error for invalid yaml")
	}
}
