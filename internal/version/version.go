// ABOUTME: Version constants for the soundboard server
// ABOUTME: Single place to bump release information
package version

const (
	// Version is the current release version.
	Version = "0.1.0"

	// Product is the product name reported in logs.
	Product = "soundboard-server"
)
