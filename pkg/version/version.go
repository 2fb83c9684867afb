package version

// version is set at build time via -ldflags
var version = "dev"

// Get returns the current version
func Get() string {
	return version
}
