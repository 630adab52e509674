package jsonfile

import (
	"github.com/ajitpratap0/brazesync/pkg/config"
	"github.com/ajitpratap0/brazesync/pkg/connector/core"
	"github.com/ajitpratap0/brazesync/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSource("jsonfile", func(cfg *config.BaseConfig) (core.Source, error) {
		return NewSource(), nil
	})
	_ = registry.RegisterMetadata(core.ConnectorMetadata{
		Name:        "jsonfile",
		Type:        core.ConnectorTypeSource,
		Version:     "1.0.0",
		Description: "Replays a JSON-lines file as a record stream",
	})
}
