// Package plugins hosts species plugin subpackages. Each subpackage exposes a
// New constructor returning a core.Plugin that contributes rules through
// core.PluginRegistry.
package plugins
