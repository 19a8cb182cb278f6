package http

import (
	"strings"

	"stealthbuddy/internal/config"
)

type downloadLink struct {
	ID          string
	OS          string
	Label       string
	URL         string
	Recommended bool
}

// downloadsFor lists the desktop builds and marks the one matching the
// visitor's OS. Macs default to the Apple Silicon build.
func downloadsFor(cfg config.DownloadConfig, userAgent string) []downloadLink {
	links := []downloadLink{
		{ID: "mac-arm64", OS: "macOS", Label: "Download (arm64)", URL: cfg.MacArm64},
		{ID: "mac-intel", OS: "macOS", Label: "Download (x64)", URL: cfg.MacIntel},
		{ID: "windows", OS: "Windows", Label: "Download", URL: cfg.Windows},
	}

	var recommended string
	switch {
	case strings.Contains(userAgent, "Win"):
		recommended = "windows"
	case strings.Contains(userAgent, "Mac"):
		recommended = "mac-arm64"
	}
	for i := range links {
		links[i].Recommended = links[i].ID == recommended
	}
	return links
}
