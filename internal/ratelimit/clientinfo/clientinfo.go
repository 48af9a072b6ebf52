// Package clientinfo summarizes a User-Agent header for event metadata.
package clientinfo

import (
	"strings"

	"github.com/mssola/useragent"
)

// Info is the parsed view of a User-Agent.
type Info struct {
	Browser string
	OS      string
	Mobile  bool
	Bot     bool
}

// Parse reads a User-Agent string. An empty string yields the zero Info.
func Parse(userAgent string) Info {
	if strings.TrimSpace(userAgent) == "" {
		return Info{}
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	return Info{
		Browser: strings.TrimSpace(browser),
		OS:      strings.TrimSpace(ua.OS()),
		Mobile:  ua.Mobile(),
		Bot:     ua.Bot(),
	}
}

// DisplayName returns "Browser on OS", e.g. "Chrome on macOS".
func (i Info) DisplayName() string {
	browser := i.Browser
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := i.OS
	if os == "" {
		os = "Unknown OS"
	}
	return browser + " on " + os
}

// Metadata is the event metadata for a User-Agent, nil when there is none.
func Metadata(userAgent string) map[string]any {
	if strings.TrimSpace(userAgent) == "" {
		return nil
	}
	info := Parse(userAgent)
	return map[string]any{
		"client": info.DisplayName(),
		"mobile": info.Mobile,
		"bot":    info.Bot,
	}
}
