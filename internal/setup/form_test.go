package setup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/draftforge/forge/internal/config"
	"github.com/draftforge/forge/internal/credential"
	"github.com/draftforge/forge/internal/genclient"
)

// fakeInit records initializer calls and fails while err is set.
type fakeInit struct {
	calls []string
	err   error
}

func (fi *fakeInit) fn(_ context.Context, key string) error {
	fi.calls = append(fi.calls, key)
	return fi.err
}

// recorder captures parent notifications.
type recorder struct {
	notes []bool
}

func (r *recorder) fn(active bool) {
	r.notes = append(r.notes, active)
}

func envWith(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func saved(t *testing.T, store credential.Store, key string) {
	t.Helper()
	err := store.Save(credential.Credential{
		Slot:      credential.SlotForge,
		Key:       key,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seeding store: %v", err)
	}
}

func TestForm_Submit(t *testing.T) {
	t.Run("success persists trimmed key", func(t *testing.T) {
		store := credential.NewMemStore()
		init := &fakeInit{}
		notes := &recorder{}
		form := New(Config{
			Store:  store,
			Lookup: envWith(nil),
			Init:   init.fn,
			Notify: notes.fn,
		})

		form.SetInput("  fk_secret  ")
		form.Submit(context.Background())

		if !form.Initialized() {
			t.Error("form not initialized after successful submit")
		}
		if form.ErrorMessage() != "" {
			t.Errorf("ErrorMessage = %q, want empty", form.ErrorMessage())
		}
		if len(init.calls) != 1 || init.calls[0] != "fk_secret" {
			t.Errorf("initializer calls = %v, want [fk_secret]", init.calls)
		}
		cred, err := store.Get(credential.SlotForge)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if cred.Key != "fk_secret" {
			t.Errorf("stored key = %q, want trimmed %q", cred.Key, "fk_secret")
		}
		if len(notes.notes) != 1 || !notes.notes[0] {
			t.Errorf("notifications = %v, want [true]", notes.notes)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		for _, input := range []string{"", "   ", "\t\n"} {
			store := credential.NewMemStore()
			init := &fakeInit{}
			form := New(Config{Store: store, Lookup: envWith(nil), Init: init.fn})

			form.SetInput(input)
			form.Submit(context.Background())

			if form.ErrorMessage() != MsgKeyRequired {
				t.Errorf("input %q: ErrorMessage = %q, want %q", input, form.ErrorMessage(), MsgKeyRequired)
			}
			if len(init.calls) != 0 {
				t.Errorf("input %q: initializer called %d times, want 0", input, len(init.calls))
			}
			if form.Initialized() {
				t.Errorf("input %q: form initialized", input)
			}
		}
	})

	t.Run("failure embeds structured message and does not persist", func(t *testing.T) {
		store := credential.NewMemStore()
		init := &fakeInit{err: &genclient.APIError{Status: 401, Message: "invalid API key: nope"}}
		notes := &recorder{}
		form := New(Config{Store: store, Lookup: envWith(nil), Init: init.fn, Notify: notes.fn})

		form.SetInput("fk_bad")
		form.Submit(context.Background())

		if form.Initialized() {
			t.Error("form initialized after failed submit")
		}
		want := "Failed to initialize client: invalid API key: nope"
		if form.ErrorMessage() != want {
			t.Errorf("ErrorMessage = %q, want %q", form.ErrorMessage(), want)
		}
		if _, err := store.Get(credential.SlotForge); !errors.Is(err, credential.ErrNotFound) {
			t.Error("failed key was persisted")
		}
		if len(notes.notes) != 0 {
			t.Errorf("notifications = %v, want none", notes.notes)
		}
	})

	t.Run("failure uses string form of plain errors", func(t *testing.T) {
		form := New(Config{
			Store:  credential.NewMemStore(),
			Lookup: envWith(nil),
			Init:   (&fakeInit{err: errors.New("connection refused")}).fn,
		})

		form.SetInput("fk_any")
		form.Submit(context.Background())

		want := "Failed to initialize client: connection refused"
		if form.ErrorMessage() != want {
			t.Errorf("ErrorMessage = %q, want %q", form.ErrorMessage(), want)
		}
	})

	t.Run("form stays usable after failure", func(t *testing.T) {
		store := credential.NewMemStore()
		init := &fakeInit{err: errors.New("boom")}
		form := New(Config{Store: store, Lookup: envWith(nil), Init: init.fn})

		form.SetInput("fk_first")
		form.Submit(context.Background())
		if !form.CanSubmit() {
			t.Error("submit disabled after failure")
		}

		init.err = nil
		form.SetInput("fk_second")
		form.Submit(context.Background())

		if !form.Initialized() {
			t.Error("form not initialized after recovery")
		}
		if form.ErrorMessage() != "" {
			t.Errorf("ErrorMessage = %q, want empty after recovery", form.ErrorMessage())
		}
	})
}

func TestForm_Mount(t *testing.T) {
	t.Run("no credential anywhere", func(t *testing.T) {
		init := &fakeInit{}
		notes := &recorder{}
		form := New(Config{
			Store:  credential.NewMemStore(),
			Lookup: envWith(nil),
			Init:   init.fn,
			Notify: notes.fn,
		})

		form.Mount(context.Background())

		if form.Initialized() {
			t.Error("form initialized with no credential")
		}
		if len(init.calls) != 0 {
			t.Error("initializer called with no credential")
		}
		if len(notes.notes) != 1 || notes.notes[0] {
			t.Errorf("notifications = %v, want [false]", notes.notes)
		}
	})

	t.Run("environment credential succeeds", func(t *testing.T) {
		init := &fakeInit{}
		notes := &recorder{}
		form := New(Config{
			Store:  credential.NewMemStore(),
			Lookup: envWith(map[string]string{config.EnvAPIKey: "fk_env"}),
			Init:   init.fn,
			Notify: notes.fn,
		})

		form.Mount(context.Background())

		if !form.Initialized() {
			t.Error("form not initialized from environment credential")
		}
		if form.Input() != "fk_env" {
			t.Errorf("Input = %q, want fk_env", form.Input())
		}
		if len(notes.notes) != 1 || !notes.notes[0] {
			t.Errorf("notifications = %v, want [true]", notes.notes)
		}
	})

	t.Run("environment wins over stored", func(t *testing.T) {
		store := credential.NewMemStore()
		saved(t, store, "fk_stored")
		init := &fakeInit{}
		form := New(Config{
			Store:  store,
			Lookup: envWith(map[string]string{config.EnvAPIKey: "fk_env"}),
			Init:   init.fn,
		})

		form.Mount(context.Background())

		if len(init.calls) != 1 || init.calls[0] != "fk_env" {
			t.Errorf("initializer calls = %v, want [fk_env]", init.calls)
		}
	})

	t.Run("empty environment value treated as absent", func(t *testing.T) {
		store := credential.NewMemStore()
		saved(t, store, "fk_stored")
		init := &fakeInit{}
		form := New(Config{
			Store:  store,
			Lookup: envWith(map[string]string{config.EnvAPIKey: ""}),
			Init:   init.fn,
		})

		form.Mount(context.Background())

		if len(init.calls) != 1 || init.calls[0] != "fk_stored" {
			t.Errorf("initializer calls = %v, want [fk_stored]", init.calls)
		}
	})

	t.Run("stored credential succeeds", func(t *testing.T) {
		store := credential.NewMemStore()
		saved(t, store, "fk_stored")
		form := New(Config{Store: store, Lookup: envWith(nil), Init: (&fakeInit{}).fn})

		form.Mount(context.Background())

		if !form.Initialized() {
			t.Error("form not initialized from stored credential")
		}
		if form.Input() != "fk_stored" {
			t.Errorf("Input = %q, want fk_stored", form.Input())
		}
	})

	t.Run("rejected stored credential is erased", func(t *testing.T) {
		store := credential.NewMemStore()
		saved(t, store, "fk_revoked")
		init := &fakeInit{err: errors.New("unauthorized")}
		form := New(Config{Store: store, Lookup: envWith(nil), Init: init.fn})

		form.Mount(context.Background())

		if form.Initialized() {
			t.Error("form initialized with rejected key")
		}
		if form.ErrorMessage() == "" {
			t.Error("no error message after rejected startup key")
		}
		if _, err := store.Get(credential.SlotForge); !errors.Is(err, credential.ErrNotFound) {
			t.Error("rejected stored credential still present")
		}
	})

	t.Run("rejected environment credential leaves store untouched", func(t *testing.T) {
		store := credential.NewMemStore()
		saved(t, store, "fk_stored")
		init := &fakeInit{err: errors.New("unauthorized")}
		form := New(Config{
			Store:  store,
			Lookup: envWith(map[string]string{config.EnvAPIKey: "fk_env_bad"}),
			Init:   init.fn,
		})

		form.Mount(context.Background())

		cred, err := store.Get(credential.SlotForge)
		if err != nil {
			t.Fatalf("stored credential erased on environment key failure: %v", err)
		}
		if cred.Key != "fk_stored" {
			t.Errorf("stored key = %q, want fk_stored", cred.Key)
		}
	})
}

func TestForm_Reset(t *testing.T) {
	newInitialized := func(t *testing.T) (*Form, *credential.MemStore, *recorder) {
		t.Helper()
		store := credential.NewMemStore()
		notes := &recorder{}
		form := New(Config{Store: store, Lookup: envWith(nil), Init: (&fakeInit{}).fn, Notify: notes.fn})
		form.SetInput("fk_secret")
		form.Submit(context.Background())
		if !form.Initialized() {
			t.Fatal("setup: submit failed")
		}
		return form, store, notes
	}

	t.Run("clears everything", func(t *testing.T) {
		form, store, notes := newInitialized(t)

		form.Reset()

		if form.Initialized() {
			t.Error("form still initialized after reset")
		}
		if form.Input() != "" {
			t.Errorf("Input = %q, want empty", form.Input())
		}
		if _, err := store.Get(credential.SlotForge); !errors.Is(err, credential.ErrNotFound) {
			t.Error("stored credential survived reset")
		}
		if len(notes.notes) != 2 || notes.notes[1] {
			t.Errorf("notifications = %v, want [true false]", notes.notes)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		form, store, _ := newInitialized(t)

		form.Reset()
		form.Reset()

		if form.Initialized() || form.Input() != "" {
			t.Error("state changed on second reset")
		}
		if _, err := store.Get(credential.SlotForge); !errors.Is(err, credential.ErrNotFound) {
			t.Error("stored credential present after double reset")
		}
	})

	t.Run("does not touch environment credential", func(t *testing.T) {
		store := credential.NewMemStore()
		env := envWith(map[string]string{config.EnvAPIKey: "fk_env"})
		init := &fakeInit{}
		form := New(Config{Store: store, Lookup: env, Init: init.fn})

		form.Mount(context.Background())
		form.Reset()

		// A later mount re-initializes from the environment again.
		next := New(Config{Store: store, Lookup: env, Init: init.fn})
		next.Mount(context.Background())

		if !next.Initialized() {
			t.Error("environment credential lost after reset")
		}
		if next.Input() != "fk_env" {
			t.Errorf("Input = %q, want fk_env", next.Input())
		}
	})
}

func TestForm_CanSubmit(t *testing.T) {
	form := New(Config{Store: credential.NewMemStore(), Lookup: envWith(nil), Init: (&fakeInit{}).fn})

	if form.CanSubmit() {
		t.Error("CanSubmit true with empty input")
	}
	form.SetInput("   ")
	if form.CanSubmit() {
		t.Error("CanSubmit true with whitespace input")
	}
	form.SetInput(" fk_x ")
	if !form.CanSubmit() {
		t.Error("CanSubmit false with non-empty input")
	}
}
