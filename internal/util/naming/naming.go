package naming

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/util/validation"
)

const maxNameLen = validation.DNS1123LabelMaxLength

// UniqueName returns prefix followed by a random 8 character suffix.
func UniqueName(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	prefix = strings.Trim(strings.ToLower(prefix), "-")
	if prefix == "" {
		return suffix
	}
	if len(prefix)+1+len(suffix) > maxNameLen {
		prefix = strings.TrimRight(prefix[:maxNameLen-1-len(suffix)], "-")
	}
	return prefix + "-" + suffix
}

// Validate reports whether name is usable as a resource name.
func Validate(name string) error {
	if errs := validation.IsDNS1123Label(name); len(errs) > 0 {
		return fmt.Errorf("invalid name %q: %s", name, strings.Join(errs, "; "))
	}
	return nil
}

func VLANNetwork(vlanID int) string {
	return fmt.Sprintf("vlan-network-%d", vlanID)
}

func HarvesterMgmtCluster(run string) string {
	return fmt.Sprintf("%s-harv", run)
}

func RKE1Cluster(run string) string {
	return fmt.Sprintf("%s-rke1", run)
}

func RKE2Cluster(run string) string {
	return fmt.Sprintf("%s-rke2", run)
}

func User(run string) string {
	return fmt.Sprintf("user-%s", run)
}

// HostnamePrefix is the prefix of VMs provisioned for a downstream cluster.
func HostnamePrefix(cluster string) string {
	return cluster + "-"
}

// BelongsTo reports whether name was derived from prefix.
func BelongsTo(name, prefix string) bool {
	return prefix != "" && strings.HasPrefix(name, strings.TrimSuffix(prefix, "-")+"-")
}
