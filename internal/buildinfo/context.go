// Package buildinfo carries build-time metadata injected by the linker.
package buildinfo

import "fmt"

// UnknownValue is reported for metadata the build did not set.
const UnknownValue = "unknown"

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string
}

// NewContext creates a Context.
func NewContext(version, buildDate string) *Context {
	return &Context{Version: version, BuildDate: buildDate}
}

// GetVersion returns the version, or UnknownValue.
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate returns the build date, or UnknownValue.
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// Release is the telemetry release name, without the "timekeeper@" prefix
// the reporter adds. Development builds report "dev".
func (c *Context) Release() string {
	if v := c.GetVersion(); v != UnknownValue {
		return v
	}
	return "dev"
}

// String formats the metadata for the version command.
func (c *Context) String() string {
	return fmt.Sprintf("timekeeper %s (built %s)", c.GetVersion(), c.GetBuildDate())
}
