// Package resources implements the create, converge and delete flows for
// each remote resource the suites touch: VLAN networks, images, imported
// Harvester clusters, RKE1 and RKE2 guest clusters, persistent volume
// claims and project members.
//
// Every flow is an [lifecycle.EnsureOperation] or [lifecycle.DeleteOperation]
// plus one or more convergence waits expressed with the predicates in this
// package.
package resources
