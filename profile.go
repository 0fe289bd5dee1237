package go5250

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is one named connection profile from a YAML profile file,
// keeping per-host settings out of automation code:
//
//	production:
//	  host: as400.example.com
//	  tls: tls
//	  device: GOBATCH1
//	  codepage: "1140"
//	staging:
//	  host: 10.0.0.12
//	  port: 2323
//
// Fields mirror the connection settings of Config.
type Profile struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	TLS                string `yaml:"tls"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	Proxy              string `yaml:"proxy"`
	Device             string `yaml:"device"`
	TerminalType       string `yaml:"terminal_type"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	Enhanced           bool   `yaml:"enhanced"`
	Codepage           string `yaml:"codepage"`
}

// LoadProfiles reads a YAML file mapping profile names to connection
// settings.
func LoadProfiles(path string) (map[string]Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	profiles := make(map[string]Profile)
	if err := yaml.Unmarshal(raw, &profiles); err != nil {
		return nil, fmt.Errorf("parse profiles %s: %w", path, err)
	}
	return profiles, nil
}

// Config converts the profile into a session Config. Zero-valued
// fields keep the Connect defaults.
func (p Profile) Config() Config {
	return Config{
		Host:               p.Host,
		Port:               p.Port,
		TLSMode:            p.TLS,
		InsecureSkipVerify: p.InsecureSkipVerify,
		Proxy:              p.Proxy,
		DeviceName:         p.Device,
		TerminalType:       p.TerminalType,
		User:               p.User,
		Password:           p.Password,
		Enhanced:           p.Enhanced,
		Codepage:           p.Codepage,
	}
}
