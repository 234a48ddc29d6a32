package app

import (
	"github.com/vk/tableflow/internal/registry"
	"github.com/vk/tableflow/transformers/flatten"
	"github.com/vk/tableflow/transformers/partition"
	"github.com/vk/tableflow/transformers/selectattributes"
)

// coreModules lists every transformer kind compiled into the binary.
var coreModules = []registry.Module{
	&flatten.Module{},
	&partition.Module{},
	&selectattributes.Module{},
}
