// Package document provides the untyped JSON representation returned by the
// remote APIs.
//
// A [Document] is a decoded JSON object. Fields are addressed with dotted
// paths ("status.progress"), kubectl-style JSONPath templates, or converted
// into typed k8s.io/api objects. Integral JSON numbers decode to int64.
package document
