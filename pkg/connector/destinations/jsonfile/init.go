package jsonfile

import (
	"github.com/ajitpratap0/brazesync/pkg/config"
	"github.com/ajitpratap0/brazesync/pkg/connector/core"
	"github.com/ajitpratap0/brazesync/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterDestination("jsonfile", func(cfg *config.BaseConfig) (core.Destination, error) {
		return NewDestination(), nil
	})
	_ = registry.RegisterMetadata(core.ConnectorMetadata{
		Name:        "jsonfile",
		Type:        core.ConnectorTypeDestination,
		Version:     "1.0.0",
		Description: "Writes record payloads as JSON lines",
	})
}
