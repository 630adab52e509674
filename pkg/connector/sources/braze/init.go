package braze

import (
	"github.com/ajitpratap0/brazesync/pkg/config"
	"github.com/ajitpratap0/brazesync/pkg/connector/core"
	"github.com/ajitpratap0/brazesync/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSource("braze", func(cfg *config.BaseConfig) (core.Source, error) {
		return NewSource(), nil
	})
	_ = registry.RegisterMetadata(core.ConnectorMetadata{
		Name:        "braze",
		Type:        core.ConnectorTypeSource,
		Version:     "1.0.0",
		Description: "Streams flattened Braze analytics series as events",
	})
}
