package harvester

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/json"

	"github.com/imamik/harvester-e2e/internal/document"
)

// Label and annotation keys.
const (
	LabelClusterNetwork   = "network.harvesterhci.io/clusternetwork"
	LabelNetworkType      = "network.harvesterhci.io/type"
	NetworkTypeL2VLAN     = "L2VlanNetwork"
	AnnotationDisplayName = "harvesterhci.io/imageDisplayName"
	AnnotationStorageSC   = "harvesterhci.io/storageClassName"
)

// BridgeConfig is the CNI config stored as a string in spec.config of a
// network attachment definition.
type BridgeConfig struct {
	CNIVersion  string `json:"cniVersion"`
	Type        string `json:"type"`
	Bridge      string `json:"bridge"`
	PromiscMode bool   `json:"promiscMode"`
	VLAN        int    `json:"vlan"`
	IPAM        struct {
		Type string `json:"type,omitempty"`
	} `json:"ipam"`
}

// ParseBridgeConfig decodes spec.config of a network document.
func ParseBridgeConfig(network document.Document) (BridgeConfig, error) {
	var cfg BridgeConfig
	raw := network.GetString("spec.config")
	if raw == "" {
		return cfg, fmt.Errorf("network %s has no spec.config", network.ID())
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return cfg, fmt.Errorf("parse spec.config of network %s: %w", network.ID(), err)
	}
	return cfg, nil
}

// NetworkBody builds a VLAN network attachment definition bridged on
// clusterNetwork.
func NetworkBody(name, namespace string, vlan int, clusterNetwork string) (document.Document, error) {
	cfg := BridgeConfig{
		CNIVersion:  "0.3.1",
		Type:        "bridge",
		Bridge:      clusterNetwork + "-br",
		PromiscMode: true,
		VLAN:        vlan,
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode bridge config: %w", err)
	}

	return document.Document{
		"type": "k8s.cni.cncf.io.networkattachmentdefinition",
		"metadata": map[string]any{
			"name":      name,
			"namespace": namespace,
			"labels": map[string]any{
				LabelClusterNetwork: clusterNetwork,
				LabelNetworkType:    NetworkTypeL2VLAN,
			},
		},
		"spec": map[string]any{
			"config": string(raw),
		},
	}, nil
}

// ImageByURLBody builds a virtual machine image downloaded from url.
func ImageByURLBody(name, namespace, url string) document.Document {
	return document.Document{
		"type": "harvesterhci.io.virtualmachineimage",
		"metadata": map[string]any{
			"name":      name,
			"namespace": namespace,
			"annotations": map[string]any{
				AnnotationStorageSC: "harvester-longhorn",
			},
		},
		"spec": map[string]any{
			"displayName": name,
			"sourceType":  "download",
			"url":         url,
		},
	}
}

// ClusterNetworkBody builds a cluster network named after the uplink NIC.
func ClusterNetworkBody(name string) document.Document {
	return document.Document{
		"type":     "network.harvesterhci.io.clusternetwork",
		"metadata": map[string]any{"name": name},
	}
}

// VLANConfigBody builds a VLAN config attaching nic to clusterNetwork on
// every node.
func VLANConfigBody(name, clusterNetwork, nic string) document.Document {
	return document.Document{
		"type":     "network.harvesterhci.io.vlanconfig",
		"metadata": map[string]any{"name": name},
		"spec": map[string]any{
			"clusterNetwork": clusterNetwork,
			"uplink": map[string]any{
				"nics":           []any{nic},
				"linkAttributes": map[string]any{"mtu": int64(1500)},
				"bondOptions":    map[string]any{"mode": "active-backup"},
			},
		},
	}
}

// EnableLegacyVLAN returns the legacy "vlan" cluster network document with
// VLAN enabled on nic.
func EnableLegacyVLAN(current document.Document, nic string) document.Document {
	if current == nil {
		current = document.Document{}
	}
	current["enable"] = true
	config := current.GetMap("config")
	if config == nil {
		config = document.Document{}
	}
	config["defaultPhysicalNIC"] = nic
	current["config"] = map[string]any(config)
	return current
}
