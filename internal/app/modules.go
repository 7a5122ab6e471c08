package app

import (
	"github.com/vk/modkit/internal/registry"
	"github.com/vk/modkit/modules/banner"
	"github.com/vk/modkit/modules/env_vars"
	"github.com/vk/modkit/modules/shellhook"
	"github.com/vk/modkit/modules/socketio"
	"github.com/vk/modkit/modules/webhook"
)

// coreModules is the definitive list of all modules that are compiled into
// the modkit binary.
var coreModules = []registry.Module{
	&banner.Module{},
	&env_vars.Module{},
	&shellhook.Module{},
	&webhook.Module{},
	&socketio.Module{},
}
