// Package setup implements the API key setup form.
//
// A Form owns the key-entry state for one session: it resolves a key
// from the environment or the credential store on mount, hands it to
// the client initializer, and tracks success or failure for rendering.
// Collaborators are injected so tests can substitute an in-memory store
// and a fake initializer.
package setup

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/draftforge/forge/internal/config"
	"github.com/draftforge/forge/internal/credential"
	"github.com/draftforge/forge/internal/genclient"
	"github.com/draftforge/forge/internal/log"
)

// MsgKeyRequired is shown when submission is attempted with an empty key.
const MsgKeyRequired = "API key is required"

// msgStartupFailed is shown when a key found at mount fails to initialize.
const msgStartupFailed = "Saved API key could not be initialized. Enter a new key."

// Initializer configures the generation client with a key. It returns
// nil when the key is accepted.
type Initializer func(ctx context.Context, key string) error

// Config wires a Form to its collaborators.
type Config struct {
	// Store persists manually submitted keys. Required.
	Store credential.Store
	// Lookup resolves environment variables. Defaults to os.LookupEnv.
	Lookup func(name string) (string, bool)
	// Init is called with each candidate key. Required.
	Init Initializer
	// Notify is invoked with true when a key becomes active and false
	// when none is. Optional.
	Notify func(active bool)
}

// keySource records where a mount-time credential came from. Keys from
// the environment are never erased on failure; stored keys are.
type keySource int

const (
	sourceEnv keySource = iota
	sourceStored
)

// Form holds the setup form state.
type Form struct {
	store  credential.Store
	lookup func(string) (string, bool)
	init   Initializer
	notify func(bool)

	input       string
	errMsg      string
	initialized bool
}

// New creates a Form from cfg.
func New(cfg Config) *Form {
	lookup := cfg.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Form{
		store:  cfg.Store,
		lookup: lookup,
		init:   cfg.Init,
		notify: cfg.Notify,
	}
}

// Mount resolves a credential and initializes the client with it.
// The environment key takes priority over the stored one. When a stored
// key fails to initialize it is erased; an environment key never is.
// Runs once when the form becomes active.
func (f *Form) Mount(ctx context.Context) {
	key, source, ok := f.resolve()
	if !ok {
		f.notifyParent(false)
		return
	}

	if err := f.init(ctx, key); err != nil {
		log.Debug("startup key rejected", "source", sourceName(source), "error", err)
		f.errMsg = msgStartupFailed
		if source == sourceStored {
			if delErr := f.store.Delete(credential.SlotForge); delErr != nil {
				log.Warn("clearing rejected stored key failed", "error", delErr)
			}
		}
		f.notifyParent(false)
		return
	}

	f.input = key
	f.errMsg = ""
	f.initialized = true
	f.notifyParent(true)
}

// resolve finds the startup credential: environment first, store second.
func (f *Form) resolve() (string, keySource, bool) {
	if key, ok := f.lookup(config.EnvAPIKey); ok && key != "" {
		return key, sourceEnv, true
	}

	cred, err := f.store.Get(credential.SlotForge)
	if err != nil {
		if !errors.Is(err, credential.ErrNotFound) {
			log.Warn("reading stored key failed", "error", err)
		}
		return "", 0, false
	}
	return cred.Key, sourceStored, true
}

// SetInput records the current form field value.
func (f *Form) SetInput(value string) {
	f.input = value
}

// Submit validates the current input and initializes the client with it.
// On success the trimmed key is persisted. On failure nothing is
// persisted and the form stays usable.
func (f *Form) Submit(ctx context.Context) {
	key := strings.TrimSpace(f.input)
	if key == "" {
		f.errMsg = MsgKeyRequired
		return
	}

	f.errMsg = ""
	if err := f.init(ctx, key); err != nil {
		f.errMsg = "Failed to initialize client: " + genclient.ErrorDescription(err)
		return
	}

	if err := f.store.Save(credential.Credential{
		Slot:      credential.SlotForge,
		Key:       key,
		CreatedAt: time.Now(),
	}); err != nil {
		// The client is initialized either way; the key just won't
		// survive this session.
		log.Warn("persisting API key failed", "error", err)
	}

	f.input = key
	f.initialized = true
	f.notifyParent(true)
}

// Reset erases the stored credential and returns the form to the
// unset state. Safe to call repeatedly.
func (f *Form) Reset() {
	if err := f.store.Delete(credential.SlotForge); err != nil {
		log.Warn("deleting stored key failed", "error", err)
	}
	f.input = ""
	f.initialized = false
	f.notifyParent(false)
}

// Initialized reports whether the client holds an accepted key.
func (f *Form) Initialized() bool {
	return f.initialized
}

// ErrorMessage returns the message from the most recent failed attempt,
// or "" when the last attempt succeeded.
func (f *Form) ErrorMessage() string {
	return f.errMsg
}

// Input returns the current form field value.
func (f *Form) Input() string {
	return f.input
}

// CanSubmit reports whether the submit action is enabled.
func (f *Form) CanSubmit() bool {
	return strings.TrimSpace(f.input) != ""
}

func (f *Form) notifyParent(active bool) {
	if f.notify != nil {
		f.notify(active)
	}
}

func sourceName(s keySource) string {
	if s == sourceEnv {
		return "env"
	}
	return "store"
}
