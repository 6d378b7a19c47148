package resources

import (
	"fmt"

	"sigs.k8s.io/yaml"
)

// CloudConfig is the cloud-init user data given to guest machines.
type CloudConfig struct {
	Password  string    `json:"password,omitempty"`
	Chpasswd  *Chpasswd `json:"chpasswd,omitempty"`
	SSHPwauth bool      `json:"ssh_pwauth"`
}

// Chpasswd controls password expiry.
type Chpasswd struct {
	Expire bool `json:"expire"`
}

// DefaultCloudConfig allows password login with a non-expiring password,
// which keeps guest VMs reachable for debugging.
func DefaultCloudConfig() CloudConfig {
	return CloudConfig{
		Password:  "test",
		Chpasswd:  &Chpasswd{Expire: false},
		SSHPwauth: true,
	}
}

// Render returns the document with its #cloud-config header.
func (c CloudConfig) Render() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("render cloud-config: %w", err)
	}
	return "#cloud-config\n" + string(data), nil
}
