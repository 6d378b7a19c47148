// Package harvester groups the Harvester API collections used by the
// suites: VLAN networks, images, virtual machines, settings, cluster
// networks and VLAN configs. Request bodies are built here so that the
// resource lifecycle code only deals with names and documents.
package harvester
