package braze

import (
	"github.com/ajitpratap0/brazesync/pkg/config"
	"github.com/ajitpratap0/brazesync/pkg/connector/core"
	"github.com/ajitpratap0/brazesync/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterDestination("braze", func(cfg *config.BaseConfig) (core.Destination, error) {
		return NewDestination(), nil
	})
	_ = registry.RegisterMetadata(core.ConnectorMetadata{
		Name:        "braze",
		Type:        core.ConnectorTypeDestination,
		Version:     "1.0.0",
		Description: "Exports inbound analytics events to Braze /users/track",
	})
}
