// Package config defines the options shared by the end-to-end suites and
// the CLI.
//
// [Options] is populated in layers: built-in defaults, an optional YAML
// file, then environment variables. The CLI binds cobra flags on top.
// Durations accept Go duration strings ("5m") or bare seconds ("300").
package config
