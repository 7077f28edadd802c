// Package data embeds the default topology and catalog fixtures cmd/edgesim
// falls back to when no --topology/--catalog flag is given.
package data

import _ "embed"

//go:embed topology.json
var DefaultTopology []byte

//go:embed catalog.json
var DefaultCatalog []byte
