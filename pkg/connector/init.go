package connector

// Blank imports register the built-in connectors with the global
// registry. Importing this package is enough to make them resolvable
// by name.
import (
	_ "github.com/ajitpratap0/brazesync/pkg/connector/destinations/braze"
	_ "github.com/ajitpratap0/brazesync/pkg/connector/destinations/jsonfile"
	_ "github.com/ajitpratap0/brazesync/pkg/connector/sources/braze"
	_ "github.com/ajitpratap0/brazesync/pkg/connector/sources/jsonfile"
)
