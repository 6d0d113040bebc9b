// Package buildinfo carries build-time metadata injected through ldflags.
package buildinfo

import "runtime/debug"

// UnknownValue is reported for metadata that was not set at build time.
const UnknownValue = "unknown"

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	version   string
	buildDate string
}

// NewContext returns a Context for the given ldflags values. An empty
// version falls back to the main module version recorded by the Go toolchain.
func NewContext(version, buildDate string) *Context {
	if version == "" {
		if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			version = bi.Main.Version
		}
	}
	return &Context{version: version, buildDate: buildDate}
}

// Version returns the build version string
func (c *Context) Version() string {
	if c == nil || c.version == "" {
		return UnknownValue
	}
	return c.version
}

// BuildDate returns the build date string
func (c *Context) BuildDate() string {
	if c == nil || c.buildDate == "" {
		return UnknownValue
	}
	return c.buildDate
}

// String formats the metadata for version output.
func (c *Context) String() string {
	return c.Version() + " (built " + c.BuildDate() + ")"
}
