package modules

import (
	"github.com/fieldline/importhub/modules/bulkimport"
	"github.com/fieldline/importhub/pkg/application"
)

var BuiltInModules = []application.Module{
	bulkimport.NewModule(),
}

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range externalModules {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
