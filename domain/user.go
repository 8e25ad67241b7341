// Package domain contains core concepts of the voting system.
// This file defines User identities as resolved from storage.
// No runtime, network, or UI logic should be added here.
package domain

// User is the display metadata cached next to a live connection.
// The ID is opaque to the core; it arrives with the connection itself.
type User struct {
	ID   string
	Name string
}
