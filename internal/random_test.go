package internal

import (
	"encoding/hex"
	"sync"
	"testing"
)

func TestNewSessionIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		sid, err := NewSessionID()
		if err != nil {
			t.Fatalf("session id generation failed: %v", err)
		}
		s := sid.String()
		if len(s) != 22 {
			t.Fatalf("unexpected id length %d: %q", len(s), s)
		}
		if seen[s] {
			t.Fatalf("duplicate session id: %q", s)
		}
		seen[s] = true
	}
}

func TestNewHexToken(t *testing.T) {
	tok, err := NewHexToken(48)
	if err != nil {
		t.Fatalf("hex token generation failed: %v", err)
	}
	if len(tok) != 96 {
		t.Fatalf("expected 96 characters, got %d", len(tok))
	}
	if _, err := hex.DecodeString(tok); err != nil {
		t.Fatalf("token is not valid hex: %v", err)
	}

	if _, err := NewHexToken(0); err == nil {
		t.Fatal("zero size accepted")
	}
}

func TestNewURLToken(t *testing.T) {
	tok, err := NewURLToken(32)
	if err != nil {
		t.Fatalf("url token generation failed: %v", err)
	}
	if len(tok) != 43 {
		t.Fatalf("expected 43 characters, got %d", len(tok))
	}

	other, err := NewURLToken(32)
	if err != nil {
		t.Fatalf("second token failed: %v", err)
	}
	if tok == other {
		t.Fatal("tokens not unique")
	}

	if _, err := NewURLToken(-1); err == nil {
		t.Fatal("negative size accepted")
	}
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	km := NewKeyedMutex()

	counter := 0
	var wg sync.WaitGroup
	const goroutines = 32

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			km.Lock("user-1")
			defer km.Unlock("user-1")
			counter++
		}()
	}
	wg.Wait()

	if counter != goroutines {
		t.Fatalf("expected %d, got %d", goroutines, counter)
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := NewKeyedMutex()

	km.Lock("a")
	done := make(chan struct{})
	go func() {
		km.Lock("b")
		km.Unlock("b")
		close(done)
	}()
	<-done
	km.Unlock("a")
}
