// Package rancher groups the Rancher API collections used by the
// integration suite.
//
// Two API flavours are involved. Steve collections under /v1 address items
// as "namespace/name" (provisioning clusters, secrets, machine configs).
// Norman collections under /v3 address items by server-assigned ids
// (clusters, users, node templates). [Explorer] reaches into a downstream
// cluster through the /k8s/clusters/<id> proxy.
package rancher
