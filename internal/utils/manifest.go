package utils

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Manifest struct {
	Downloads []DownloadEntry `yaml:"downloads"`
}

// ReadManifest loads a batch file. Every entry needs a link.
func ReadManifest(filePath string) ([]DownloadEntry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading YAML file: %v", err)
	}
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("error parsing YAML file: %v", err)
	}
	for i, entry := range manifest.Downloads {
		if entry.URL == "" {
			return nil, fmt.Errorf("missing link for entry %d", i+1)
		}
	}
	log.Debug().Str("op", "utils/manifest").Int("count", len(manifest.Downloads)).Msg("Entries loaded from YAML")
	return manifest.Downloads, nil
}

// Request converts an entry, filling unset fields from the defaults.
func (e DownloadEntry) Request(defaults DownloadRequest) DownloadRequest {
	req := defaults
	req.URL = e.URL
	req.FileName = e.FileName
	if e.OutputDir != "" {
		req.OutputDir = e.OutputDir
	}
	if e.Segments != nil {
		req.Segmenting = *e.Segments
	}
	return req
}
