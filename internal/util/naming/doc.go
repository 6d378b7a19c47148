// Package naming provides the naming conventions for resources created by
// the end-to-end suites.
//
// Per-run names follow {prefix}-{8 hex chars} so that concurrent runs
// against the same cluster do not collide and leftovers can be found by
// prefix. Derived resources append a role suffix ({run}-rke2, {run}-harv).
// VLAN networks are named by VLAN id (vlan-network-{id}) so that suites
// sharing a VLAN reuse one network.
package naming
