package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Track kinds. The kind selects the manifest parser and the default
// timeline insertion policy.
const (
	KindHLS  = "hls"
	KindDASH = "dash"
)

// Insertion policies by name, as accepted in the config file.
const (
	PolicyGapFill   = "gapfill"
	PolicySequence  = "sequence"
	PolicyTimeClamp = "timeclamp"
)

// Track defines one stream to capture. Sibling tracks of a job are kept
// time-aligned during capture.
type Track struct {
	Id       string
	Manifest string
	Output   string
	Kind     string
	// Policy is the timeline insertion policy; defaulted from Kind.
	Policy string
	// Representation selects a DASH representation by ID. Empty picks
	// the first one. Ignored for HLS tracks.
	Representation string
}

// Config holds the fully processed application configuration.
type Config struct {
	Name      string
	UserAgent string
	OutputDir string
	Tracks    []Track
}

// rawTrack is used for intermediate unmarshaling from the JSON file.
type rawTrack struct {
	Id             string `json:"Id"`
	Manifest       string `json:"Manifest"`
	Output         string `json:"Output"`
	Kind           string `json:"Kind"`
	Policy         string `json:"Policy"`
	Representation string `json:"Representation"`
}

// rawConfig is the intermediate structure that maps directly to the JSON file.
type rawConfig struct {
	Name      string     `json:"Name"`
	UserAgent string     `json:"UserAgent"`
	OutputDir string     `json:"OutputDir"`
	Tracks    []rawTrack `json:"Tracks"`
}

// Load reads and parses the configuration file from the given path,
// normalizing kinds and defaulting per-track insertion policies.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file at %s: %w", path, err)
	}

	var rawCfg rawConfig
	if err := json.Unmarshal(data, &rawCfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config JSON: %w", err)
	}

	if len(rawCfg.Tracks) == 0 {
		return nil, fmt.Errorf("config declares no tracks")
	}

	tracks := make([]Track, 0, len(rawCfg.Tracks))
	seen := make(map[string]struct{}, len(rawCfg.Tracks))
	for i, rt := range rawCfg.Tracks {
		if rt.Id == "" {
			return nil, fmt.Errorf("track %d has no Id", i)
		}
		if _, dup := seen[rt.Id]; dup {
			return nil, fmt.Errorf("duplicate track Id %q", rt.Id)
		}
		seen[rt.Id] = struct{}{}

		if rt.Manifest == "" {
			return nil, fmt.Errorf("track %q has no Manifest URL", rt.Id)
		}

		kind := strings.ToLower(rt.Kind)
		if kind == "" {
			kind = KindHLS
		}
		if kind != KindHLS && kind != KindDASH {
			return nil, fmt.Errorf("track %q has unknown Kind %q", rt.Id, rt.Kind)
		}

		policy := strings.ToLower(rt.Policy)
		if policy == "" {
			policy = defaultPolicy(kind)
		}
		switch policy {
		case PolicyGapFill, PolicySequence, PolicyTimeClamp:
		default:
			return nil, fmt.Errorf("track %q has unknown Policy %q", rt.Id, rt.Policy)
		}

		output := rt.Output
		if output == "" {
			output = rt.Id + defaultExt(kind)
		}
		if rawCfg.OutputDir != "" && !filepath.IsAbs(output) {
			output = filepath.Join(rawCfg.OutputDir, output)
		}

		tracks = append(tracks, Track{
			Id:             rt.Id,
			Manifest:       rt.Manifest,
			Output:         output,
			Kind:           kind,
			Policy:         policy,
			Representation: rt.Representation,
		})
	}

	return &Config{
		Name:      rawCfg.Name,
		UserAgent: rawCfg.UserAgent,
		OutputDir: rawCfg.OutputDir,
		Tracks:    tracks,
	}, nil
}

func defaultPolicy(kind string) string {
	if kind == KindDASH {
		return PolicyTimeClamp
	}
	return PolicySequence
}

func defaultExt(kind string) string {
	if kind == KindDASH {
		return ".m4s"
	}
	return ".ts"
}
