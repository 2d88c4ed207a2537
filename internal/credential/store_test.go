package credential

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStore_SaveAndGet(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, []byte("test-encryption-key-32-bytes!!ab"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	cred := Credential{
		Slot:      SlotForge,
		Key:       "fk_test123",
		CreatedAt: time.Now(),
	}

	if err := store.Save(cred); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(SlotForge)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if got.Key != cred.Key {
		t.Errorf("Key = %q, want %q", got.Key, cred.Key)
	}
}

func TestFileStore_Delete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, []byte("test-encryption-key-32-bytes!!ab"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	store.Save(Credential{
		Slot:      SlotForge,
		Key:       "fk_test123",
		CreatedAt: time.Now(),
	})
	if err := store.Delete(SlotForge); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	_, err = store.Get(SlotForge)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestFileStore_DeleteEmptySlot(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, []byte("test-encryption-key-32-bytes!!ab"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	// Deleting a slot that was never written succeeds.
	if err := store.Delete(SlotForge); err != nil {
		t.Errorf("Delete on empty slot: %v", err)
	}
}

func TestFileStore_GetNotFound(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, []byte("test-encryption-key-32-bytes!!ab"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	_, err = store.Get(SlotForge)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get = %v, want ErrNotFound", err)
	}
}

func TestFileStore_BadKeySize(t *testing.T) {
	_, err := NewFileStore(t.TempDir(), []byte("too-short"))
	if err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestFileStore_EncryptedOnDisk(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, []byte("test-encryption-key-32-bytes!!ab"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	secret := "fk_very_secret_value"
	store.Save(Credential{Slot: SlotForge, Key: secret, CreatedAt: time.Now()})

	raw, err := os.ReadFile(filepath.Join(dir, "forge.enc"))
	if err != nil {
		t.Fatalf("reading credential file: %v", err)
	}
	if string(raw) == secret {
		t.Error("credential stored in plaintext")
	}
	for i := 0; i+len(secret) <= len(raw); i++ {
		if string(raw[i:i+len(secret)]) == secret {
			t.Fatal("plaintext key found inside credential file")
		}
	}
}

func TestMemStore_RoundTrip(t *testing.T) {
	store := NewMemStore()

	if _, err := store.Get(SlotForge); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get on empty store = %v, want ErrNotFound", err)
	}

	cred := Credential{Slot: SlotForge, Key: "fk_mem", CreatedAt: time.Now()}
	if err := store.Save(cred); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(SlotForge)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Key != "fk_mem" {
		t.Errorf("Key = %q, want %q", got.Key, "fk_mem")
	}

	if err := store.Delete(SlotForge); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(SlotForge); err != nil {
		t.Errorf("second Delete: %v", err)
	}
	if _, err := store.Get(SlotForge); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}
