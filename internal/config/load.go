package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigFile names the YAML options file read by Load.
const EnvConfigFile = "HARVESTER_E2E_CONFIG"

// fileOptions mirrors Options for YAML. Pointer fields distinguish "unset"
// from zero values so that a file only overrides what it names.
type fileOptions struct {
	Harvester *endpointFile `yaml:"harvester"`
	Rancher   *endpointFile `yaml:"rancher"`

	SSLVerify          *bool   `yaml:"sslVerify"`
	WaitTimeout        *string `yaml:"waitTimeout"`
	RancherWaitTimeout *string `yaml:"rancherWaitTimeout"`
	PollInterval       *string `yaml:"pollInterval"`

	VLANID       *int    `yaml:"vlanID"`
	VLANNIC      *string `yaml:"vlanNIC"`
	DoNotCleanup *bool   `yaml:"doNotCleanup"`

	ImageCacheURL *string `yaml:"imageCacheURL"`
	K8sVersion    *string `yaml:"k8sVersion"`
	RKE1Version   *string `yaml:"rke1Version"`
	NamePrefix    *string `yaml:"namePrefix"`

	Artifacts *artifactsFile `yaml:"artifacts"`
}

type endpointFile struct {
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type artifactsFile struct {
	Dir             string `yaml:"dir"`
	Bucket          string `yaml:"bucket"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKey       string `yaml:"accessKey"`
	SecretKey       string `yaml:"secretKey"`
	MetricsTextfile string `yaml:"metricsTextfile"`
}

// Load returns validated options from defaults, the file named by
// HARVESTER_E2E_CONFIG (if set) and the environment.
func Load() (*Options, error) {
	return LoadFile(os.Getenv(EnvConfigFile))
}

// LoadFile is Load with an explicit options file. An empty path reads no
// file.
func LoadFile(path string) (*Options, error) {
	opts := Defaults()
	if path != "" {
		if err := opts.ApplyFile(path); err != nil {
			return nil, err
		}
	}
	opts.ApplyEnv()

	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return opts, nil
}

// ApplyFile overlays the options named in a YAML file.
func (o *Options) ApplyFile(path string) error {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return o.ApplyYAML(data)
}

// ApplyYAML overlays the options named in YAML data.
func (o *Options) ApplyYAML(data []byte) error {
	var f fileOptions
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	if f.Harvester != nil {
		applyEndpoint(f.Harvester, &o.HarvesterEndpoint, &o.HarvesterToken, &o.HarvesterUsername, &o.HarvesterPassword)
	}
	if f.Rancher != nil {
		applyEndpoint(f.Rancher, &o.RancherEndpoint, &o.RancherToken, &o.RancherUsername, &o.RancherPassword)
	}

	durations := []struct {
		name string
		val  *string
		dst  *time.Duration
	}{
		{"waitTimeout", f.WaitTimeout, &o.WaitTimeout},
		{"rancherWaitTimeout", f.RancherWaitTimeout, &o.RancherWaitTimeout},
		{"pollInterval", f.PollInterval, &o.PollInterval},
	}
	for _, d := range durations {
		if d.val == nil {
			continue
		}
		parsed, err := ParseDuration(*d.val)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	setIf(&o.SSLVerify, f.SSLVerify)
	setIf(&o.VLANID, f.VLANID)
	setIf(&o.VLANNIC, f.VLANNIC)
	setIf(&o.DoNotCleanup, f.DoNotCleanup)
	setIf(&o.ImageCacheURL, f.ImageCacheURL)
	setIf(&o.K8sVersion, f.K8sVersion)
	setIf(&o.RKE1Version, f.RKE1Version)
	setIf(&o.NamePrefix, f.NamePrefix)

	if a := f.Artifacts; a != nil {
		setNonEmpty(&o.ArtifactDir, a.Dir)
		setNonEmpty(&o.ArtifactBucket, a.Bucket)
		setNonEmpty(&o.ArtifactEndpoint, a.Endpoint)
		setNonEmpty(&o.ArtifactRegion, a.Region)
		setNonEmpty(&o.ArtifactAccessKey, a.AccessKey)
		setNonEmpty(&o.ArtifactSecretKey, a.SecretKey)
		setNonEmpty(&o.MetricsTextfile, a.MetricsTextfile)
	}
	return nil
}

func applyEndpoint(e *endpointFile, endpoint, token, username, password *string) {
	setNonEmpty(endpoint, e.Endpoint)
	setNonEmpty(token, e.Token)
	setNonEmpty(username, e.Username)
	setNonEmpty(password, e.Password)
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setNonEmpty(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}
