// Package credential provides persistent storage for forge API keys.
package credential

import (
	"errors"
	"time"
)

// Slot identifies a stored credential slot.
type Slot string

// SlotForge is the slot holding the code-generation API key.
const SlotForge Slot = "forge"

// ErrNotFound is returned when a slot holds no credential.
var ErrNotFound = errors.New("credential not found")

// Credential represents a stored credential.
type Credential struct {
	Slot      Slot      `json:"slot"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines the credential storage interface.
type Store interface {
	Save(cred Credential) error
	Get(slot Slot) (*Credential, error)
	Delete(slot Slot) error
}
