// Package pledgewatch holds module-level metadata.
package pledgewatch

// Version is the pledgewatch release version.
const Version = "0.1.0"
