package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/Masterminds/semver/v3"
)

// ErrNotConfigured is returned by the Require helpers when an API endpoint
// is missing. Suites skip instead of failing on it.
var ErrNotConfigured = errors.New("not configured")

// Validate checks the options for common errors.
func (o *Options) Validate() error {
	if err := validateEndpoint("harvester endpoint", o.HarvesterEndpoint); err != nil {
		return err
	}
	if err := validateEndpoint("rancher endpoint", o.RancherEndpoint); err != nil {
		return err
	}

	if o.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", o.PollInterval)
	}
	if o.WaitTimeout < o.PollInterval {
		return fmt.Errorf("wait timeout %s is shorter than the poll interval %s", o.WaitTimeout, o.PollInterval)
	}
	if o.RancherWaitTimeout < o.PollInterval {
		return fmt.Errorf("rancher wait timeout %s is shorter than the poll interval %s", o.RancherWaitTimeout, o.PollInterval)
	}

	if o.VLANEnabled() {
		if o.VLANID < 1 || o.VLANID > 4094 {
			return fmt.Errorf("vlan id must be between 1 and 4094 or %d, got %d", NoVLAN, o.VLANID)
		}
		if o.VLANNIC == "" {
			return fmt.Errorf("vlan nic is required when a vlan id is set")
		}
	}

	if o.K8sVersion != "" {
		if _, err := semver.NewVersion(o.K8sVersion); err != nil {
			return fmt.Errorf("invalid kubernetes version %q: %w", o.K8sVersion, err)
		}
	}

	if o.NamePrefix == "" {
		return fmt.Errorf("name prefix is required")
	}

	if o.ArtifactBucket != "" && o.ArtifactEndpoint != "" {
		if err := validateEndpoint("artifact endpoint", o.ArtifactEndpoint); err != nil {
			return err
		}
	}
	return nil
}

// RequireHarvester returns ErrNotConfigured unless the Harvester endpoint and
// credentials are set.
func (o *Options) RequireHarvester() error {
	if o.HarvesterEndpoint == "" {
		return fmt.Errorf("harvester endpoint: %w", ErrNotConfigured)
	}
	if o.HarvesterToken == "" && o.HarvesterPassword == "" {
		return fmt.Errorf("harvester credentials: %w", ErrNotConfigured)
	}
	return nil
}

// RequireRancher returns ErrNotConfigured unless the Rancher endpoint and
// credentials are set.
func (o *Options) RequireRancher() error {
	if o.RancherEndpoint == "" {
		return fmt.Errorf("rancher endpoint: %w", ErrNotConfigured)
	}
	if o.RancherToken == "" && o.RancherPassword == "" {
		return fmt.Errorf("rancher credentials: %w", ErrNotConfigured)
	}
	return nil
}

func validateEndpoint(name, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s %q must be an http or https URL", name, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s %q has no host", name, raw)
	}
	return nil
}
