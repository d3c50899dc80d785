package app

import (
	"github.com/vk/frostline/internal/registry"
	"github.com/vk/frostline/modules/artifact"
	"github.com/vk/frostline/modules/checkout"
	"github.com/vk/frostline/modules/environment"
	"github.com/vk/frostline/modules/notify"
	"github.com/vk/frostline/modules/print"
	"github.com/vk/frostline/modules/pyinstaller"
	"github.com/vk/frostline/modules/python_env"
	"github.com/vk/frostline/modules/release"
	"github.com/vk/frostline/modules/verify_file"
)

// coreModules is the definitive list of all modules that are compiled into
// the frostline binary.
var coreModules = []registry.Module{
	&checkout.Module{},
	&python_env.Module{},
	&pyinstaller.Module{},
	&verify_file.Module{},
	&release.Module{},
	&artifact.Module{},
	&environment.Module{},
	&print.Module{},
	&notify.Module{},
}
