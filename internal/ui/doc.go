// Package ui renders CLI output. Styling is applied only when writing to a
// terminal so that CI logs stay plain.
package ui
