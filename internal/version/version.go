// ABOUTME: Version information for SampleDeck
// ABOUTME: Product identification reported by the CLI and the conversion service
package version

const (
	// Version is the current software version
	Version = "0.3.0"

	// Product is the product name
	Product = "SampleDeck"

	// Manufacturer identifies who builds the software
	Manufacturer = "SampleDeck"
)

// String returns "Product Version"
func String() string {
	return Product + " " + Version
}
