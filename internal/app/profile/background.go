/*
Package profile reads and writes the cosmetic message-background settings
premium accounts can customize.

The settings live behind two plain HTTP endpoints: an XML document exposing
the current values and a form endpoint accepting the full merged set back.
The room session announces an applied change on the wire afterwards.
*/
package profile

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultSettingsURL is the template for the per-user settings
	// document: first letter, second letter, username.
	DefaultSettingsURL = "http://fp.chatango.com/profileimg/%s/%s/%s/msgbg.xml"

	// DefaultUpdateURL is the form endpoint settings are posted back to.
	DefaultUpdateURL = "http://chatango.com/updatemsgbg"
)

var attrPattern = regexp.MustCompile(`(\w+)="(.*?)"`)

// Background holds one update to the message-background settings. Nil
// pointer fields leave the current value untouched.
type Background struct {
	// Color is an HTML color code; 1- and 3-digit shorthands are
	// expanded, anything else must be 6 digits.
	Color string

	// Image toggles the background picture.
	Image *bool

	// Transparency accepts a fraction up to 1 or a percentage up to 100.
	Transparency *float64
}

// Service talks to the background-settings endpoints.
type Service struct {
	SettingsURL string
	UpdateURL   string
	Client      *http.Client
}

// NewService constructs a Service against the production endpoints.
func NewService() *Service {
	return &Service{
		SettingsURL: DefaultSettingsURL,
		UpdateURL:   DefaultUpdateURL,
		Client:      &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch reads the current settings document and returns its attributes.
func (s *Service) Fetch(username string) (map[string]string, error) {
	username = strings.ToLower(username)
	if username == "" {
		return nil, fmt.Errorf("username required to fetch background settings")
	}

	first := username[:1]
	second := first
	if len(username) > 1 {
		second = username[1:2]
	}

	resp, err := s.client().Get(fmt.Sprintf(s.SettingsURL, first, second, username))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch background settings: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read background settings: %w", err)
	}

	settings := make(map[string]string)
	matches := attrPattern.FindAllStringSubmatch(string(body), -1)
	// The first attribute belongs to the XML prolog, not the settings.
	for i, m := range matches {
		if i == 0 {
			continue
		}
		settings[m[1]] = m[2]
	}
	return settings, nil
}

// Update merges the given change into the current settings and posts the
// result back.
func (s *Service) Update(username, password string, bg Background) error {
	color, err := normalizeColor(bg.Color)
	if err != nil {
		return err
	}

	settings, err := s.Fetch(username)
	if err != nil {
		return err
	}

	settings["lo"] = strings.ToLower(username)
	settings["p"] = password
	if color != "" {
		settings["bgc"] = color
	}
	if bg.Transparency != nil {
		settings["bgalp"] = fmt.Sprintf("%g", normalizeTransparency(*bg.Transparency)*100)
	}
	if bg.Image != nil {
		settings["useimg"] = "0"
		if *bg.Image {
			settings["useimg"] = "1"
		}
	}

	form := url.Values{}
	for key, value := range settings {
		form.Set(key, value)
	}

	resp, err := s.client().PostForm(s.UpdateURL, form)
	if err != nil {
		return fmt.Errorf("failed to update background settings: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("background update rejected with status %d", resp.StatusCode)
	}
	return nil
}

func (s *Service) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

// normalizeColor expands 1- and 3-digit color shorthands to 6 digits.
func normalizeColor(color string) (string, error) {
	switch len(color) {
	case 0, 6:
		return color, nil
	case 1:
		return strings.Repeat(color, 6), nil
	case 3:
		return color + color, nil
	default:
		return "", fmt.Errorf("invalid background color %q", color)
	}
}

// normalizeTransparency maps percentages into the 0..1 fraction range.
func normalizeTransparency(t float64) float64 {
	if t < 0 {
		t = -t
	}
	if t > 1 {
		t = t / 100
	}
	return t
}
