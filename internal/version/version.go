// ABOUTME: Product identity strings
// ABOUTME: Reported by the shell, the remote endpoint, and mDNS records
package version

import "fmt"

const (
	Version      = "0.3.0"
	Product      = "Resonate Speaker"
	Manufacturer = "Resonate"
)

// String returns the banner printed by -version
func String() string {
	return fmt.Sprintf("%s v%s (%s)", Product, Version, Manufacturer)
}
