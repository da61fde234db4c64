// Package plugin catalogues engine extensions.
//
// The control plane stores plugin registrations (name, type, version,
// file path, config) purely as a reporting surface; the automation
// engine loads and runs them. Names are unique across the catalogue.
package plugin
