package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// NoVLAN disables every test that needs a VLAN network.
const NoVLAN = -1

// Options holds the suite configuration.
type Options struct {
	// Harvester API
	HarvesterEndpoint string
	HarvesterToken    string
	HarvesterUsername string
	HarvesterPassword string

	// Rancher API
	RancherEndpoint string
	RancherToken    string
	RancherUsername string
	RancherPassword string

	SSLVerify bool

	// Polling
	WaitTimeout        time.Duration // Timeout for Harvester resources to converge
	RancherWaitTimeout time.Duration // Timeout for Rancher-provisioned clusters
	PollInterval       time.Duration // Fixed interval between fetches

	// Networking
	VLANID  int    // VLAN id for test networks, NoVLAN to skip
	VLANNIC string // Physical NIC backing the cluster network

	DoNotCleanup bool

	// Workloads
	ImageCacheURL string // Mirror for cloud images, empty for upstream
	K8sVersion    string // RKE2 version for downstream clusters
	RKE1Version   string // Explicit RKE1 version, derived from K8sVersion if empty
	NamePrefix    string // Prefix for generated resource names

	// Artifacts
	ArtifactDir       string
	ArtifactBucket    string
	ArtifactEndpoint  string
	ArtifactRegion    string
	ArtifactAccessKey string
	ArtifactSecretKey string
	MetricsTextfile   string
}

// Defaults returns the built-in option values.
func Defaults() *Options {
	return &Options{
		RancherUsername:    "admin",
		HarvesterUsername:  "admin",
		WaitTimeout:        300 * time.Second,
		RancherWaitTimeout: 1800 * time.Second,
		PollInterval:       5 * time.Second,
		VLANID:             NoVLAN,
		VLANNIC:            "mgmt",
		K8sVersion:         "v1.26.11+rke2r1",
		NamePrefix:         "hvst-e2e",
		ArtifactDir:        "artifacts",
		ArtifactRegion:     "us-east-1",
	}
}

// ApplyEnv overrides options from environment variables. Unset or
// unparsable values leave the current value in place.
//
// Environment Variables:
//   - HARVESTER_ENDPOINT, HARVESTER_TOKEN, HARVESTER_USERNAME, HARVESTER_PASSWORD
//   - RANCHER_ENDPOINT, RANCHER_TOKEN, RANCHER_USERNAME, RANCHER_PASSWORD
//   - E2E_SSL_VERIFY (default: false)
//   - E2E_WAIT_TIMEOUT (default: 300s)
//   - E2E_RANCHER_WAIT_TIMEOUT (default: 1800s)
//   - E2E_POLL_INTERVAL (default: 5s)
//   - E2E_VLAN_ID (default: -1), E2E_VLAN_NIC (default: mgmt)
//   - E2E_DO_NOT_CLEANUP (default: false)
//   - E2E_IMAGE_CACHE_URL, E2E_K8S_VERSION, E2E_RKE1_VERSION, E2E_NAME_PREFIX
//   - E2E_ARTIFACT_DIR, E2E_ARTIFACT_BUCKET, E2E_ARTIFACT_ENDPOINT, E2E_ARTIFACT_REGION
//   - E2E_ARTIFACT_ACCESS_KEY, E2E_ARTIFACT_SECRET_KEY
//   - E2E_METRICS_TEXTFILE
func (o *Options) ApplyEnv() {
	o.HarvesterEndpoint = parseString("HARVESTER_ENDPOINT", o.HarvesterEndpoint)
	o.HarvesterToken = parseString("HARVESTER_TOKEN", o.HarvesterToken)
	o.HarvesterUsername = parseString("HARVESTER_USERNAME", o.HarvesterUsername)
	o.HarvesterPassword = parseString("HARVESTER_PASSWORD", o.HarvesterPassword)

	o.RancherEndpoint = parseString("RANCHER_ENDPOINT", o.RancherEndpoint)
	o.RancherToken = parseString("RANCHER_TOKEN", o.RancherToken)
	o.RancherUsername = parseString("RANCHER_USERNAME", o.RancherUsername)
	o.RancherPassword = parseString("RANCHER_PASSWORD", o.RancherPassword)

	o.SSLVerify = parseBool("E2E_SSL_VERIFY", o.SSLVerify)

	o.WaitTimeout = parseDuration("E2E_WAIT_TIMEOUT", o.WaitTimeout)
	o.RancherWaitTimeout = parseDuration("E2E_RANCHER_WAIT_TIMEOUT", o.RancherWaitTimeout)
	o.PollInterval = parseDuration("E2E_POLL_INTERVAL", o.PollInterval)

	o.VLANID = parseInt("E2E_VLAN_ID", o.VLANID)
	o.VLANNIC = parseString("E2E_VLAN_NIC", o.VLANNIC)
	o.DoNotCleanup = parseBool("E2E_DO_NOT_CLEANUP", o.DoNotCleanup)

	o.ImageCacheURL = parseString("E2E_IMAGE_CACHE_URL", o.ImageCacheURL)
	o.K8sVersion = parseString("E2E_K8S_VERSION", o.K8sVersion)
	o.RKE1Version = parseString("E2E_RKE1_VERSION", o.RKE1Version)
	o.NamePrefix = parseString("E2E_NAME_PREFIX", o.NamePrefix)

	o.ArtifactDir = parseString("E2E_ARTIFACT_DIR", o.ArtifactDir)
	o.ArtifactBucket = parseString("E2E_ARTIFACT_BUCKET", o.ArtifactBucket)
	o.ArtifactEndpoint = parseString("E2E_ARTIFACT_ENDPOINT", o.ArtifactEndpoint)
	o.ArtifactRegion = parseString("E2E_ARTIFACT_REGION", o.ArtifactRegion)
	o.ArtifactAccessKey = parseString("E2E_ARTIFACT_ACCESS_KEY", o.ArtifactAccessKey)
	o.ArtifactSecretKey = parseString("E2E_ARTIFACT_SECRET_KEY", o.ArtifactSecretKey)
	o.MetricsTextfile = parseString("E2E_METRICS_TEXTFILE", o.MetricsTextfile)
}

// VLANEnabled reports whether a VLAN id was configured.
func (o *Options) VLANEnabled() bool {
	return o.VLANID != NoVLAN
}

func parseString(envVar, defaultVal string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultVal
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}

func parseBool(envVar string, defaultVal bool) bool {
	switch strings.ToLower(os.Getenv(envVar)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultVal
	}
}

// ParseDuration accepts a Go duration ("5m30s") or a bare number of
// seconds ("300").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}
