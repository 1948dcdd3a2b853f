package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hlscap/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracks.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
		"Name": "Test Event",
		"UserAgent": "hlscap-test",
		"OutputDir": "/tmp/out",
		"Tracks": [
			{"Id": "audio", "Manifest": "https://cdn.example.com/a.m3u8"},
			{"Id": "video", "Manifest": "https://cdn.example.com/v.mpd", "Kind": "DASH", "Representation": "video_1080"},
			{"Id": "subs", "Manifest": "https://cdn.example.com/s.m3u8", "Output": "/data/subs.vtt", "Policy": "gapfill"}
		]
	}`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Test Event", cfg.Name)
	assert.Equal(t, "hlscap-test", cfg.UserAgent)
	require.Len(t, cfg.Tracks, 3)

	audio := cfg.Tracks[0]
	assert.Equal(t, config.KindHLS, audio.Kind)
	assert.Equal(t, config.PolicySequence, audio.Policy)
	assert.Equal(t, filepath.Join("/tmp/out", "audio.ts"), audio.Output)

	video := cfg.Tracks[1]
	assert.Equal(t, config.KindDASH, video.Kind)
	assert.Equal(t, config.PolicyTimeClamp, video.Policy)
	assert.Equal(t, "video_1080", video.Representation)
	assert.Equal(t, filepath.Join("/tmp/out", "video.m4s"), video.Output)

	// Absolute outputs stay put and explicit policies win.
	subs := cfg.Tracks[2]
	assert.Equal(t, "/data/subs.vtt", subs.Output)
	assert.Equal(t, config.PolicyGapFill, subs.Policy)
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"no tracks", `{"Name": "x", "Tracks": []}`},
		{"missing id", `{"Tracks": [{"Manifest": "https://x/m.m3u8"}]}`},
		{"duplicate id", `{"Tracks": [
			{"Id": "a", "Manifest": "https://x/1.m3u8"},
			{"Id": "a", "Manifest": "https://x/2.m3u8"}
		]}`},
		{"missing manifest", `{"Tracks": [{"Id": "a"}]}`},
		{"unknown kind", `{"Tracks": [{"Id": "a", "Manifest": "https://x/m", "Kind": "rtmp"}]}`},
		{"unknown policy", `{"Tracks": [{"Id": "a", "Manifest": "https://x/m", "Policy": "strict"}]}`},
		{"malformed json", `{"Tracks": [`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
