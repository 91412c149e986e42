// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// TRANSCRIPT TESTS
// =============================================================================

func TestTranscript_AppendOrder(t *testing.T) {
	tr := NewTranscript()
	tr.AppendUser("hello")
	tr.AppendAssistant("hi")
	tr.AppendUser("bye")

	msgs := tr.Messages()
	if len(msgs) != 3 {
		t.Fatalf("Len = %d, want 3", len(msgs))
	}

	want := []struct {
		role    Role
		content string
	}{
		{RoleUser, "hello"},
		{RoleAssistant, "hi"},
		{RoleUser, "bye"},
	}
	for i, w := range want {
		if msgs[i].Role != w.role || msgs[i].Content != w.content {
			t.Errorf("msgs[%d] = %+v, want %v %q", i, msgs[i], w.role, w.content)
		}
		if msgs[i].CreatedAt.IsZero() {
			t.Errorf("msgs[%d].CreatedAt is zero", i)
		}
	}
}

func TestTranscript_MessagesIsCopy(t *testing.T) {
	tr := NewTranscript()
	tr.AppendUser("original")

	msgs := tr.Messages()
	msgs[0].Content = "mutated"

	if got, _ := tr.At(0); got.Content != "original" {
		t.Errorf("transcript was mutated through Messages(): %q", got.Content)
	}
}

func TestTranscript_At(t *testing.T) {
	tr := NewTranscript()
	tr.AppendUser("a")

	if _, ok := tr.At(-1); ok {
		t.Error("At(-1) should be out of range")
	}
	if _, ok := tr.At(1); ok {
		t.Error("At(1) should be out of range")
	}
	if m, ok := tr.At(0); !ok || m.Content != "a" {
		t.Errorf("At(0) = %+v, %v", m, ok)
	}
}

func TestTranscript_LastAssistant(t *testing.T) {
	tr := NewTranscript()
	if _, ok := tr.LastAssistant(); ok {
		t.Error("empty transcript has no assistant message")
	}

	tr.AppendUser("q1")
	tr.AppendAssistant("a1")
	tr.AppendUser("q2")

	m, ok := tr.LastAssistant()
	if !ok || m.Content != "a1" {
		t.Errorf("LastAssistant() = %+v, %v; want a1", m, ok)
	}
}

func TestTranscript_ConcurrentAppend(t *testing.T) {
	tr := NewTranscript()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tr.AppendUser("x")
		}()
		go func() {
			defer wg.Done()
			_ = tr.Messages()
		}()
	}
	wg.Wait()

	if tr.Len() != 50 {
		t.Errorf("Len = %d, want 50", tr.Len())
	}
}

// =============================================================================
// STORE TESTS
// =============================================================================

func TestStore_GetOrCreate(t *testing.T) {
	s := NewStore(time.Hour)

	sess, created := s.GetOrCreate("")
	if !created {
		t.Fatal("empty id should create a session")
	}
	if _, err := uuid.Parse(sess.ID); err != nil {
		t.Errorf("session id %q is not a uuid: %v", sess.ID, err)
	}

	again, created := s.GetOrCreate(sess.ID)
	if created || again != sess {
		t.Error("known id should return the same session")
	}

	other, created := s.GetOrCreate("forged-cookie")
	if !created || other.ID == "forged-cookie" {
		t.Error("unknown ids must not be adopted")
	}

	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}

	s.Delete(sess.ID)
	if _, ok := s.Get(sess.ID); ok {
		t.Error("deleted session still present")
	}
}

func TestStore_Sweep(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(30 * time.Minute)
	s.now = func() time.Time { return base }

	stale, _ := s.GetOrCreate("")
	s.now = func() time.Time { return base.Add(20 * time.Minute) }
	fresh, _ := s.GetOrCreate("")

	removed := s.Sweep(base.Add(45 * time.Minute))
	if removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
	if _, ok := s.Get(stale.ID); ok {
		t.Error("stale session survived sweep")
	}
	if _, ok := s.Get(fresh.ID); !ok {
		t.Error("fresh session was swept")
	}
}

func TestStore_SweepKeepsBusySession(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(30 * time.Minute)
	s.now = func() time.Time { return base }

	busy, _ := s.GetOrCreate("")
	busy.Lock()

	if removed := s.Sweep(base.Add(2 * time.Hour)); removed != 0 {
		t.Fatalf("Sweep removed %d sessions mid-turn", removed)
	}
	if _, ok := s.Get(busy.ID); !ok {
		t.Fatal("session was swept while its turn was in flight")
	}

	busy.Unlock()
	if removed := s.Sweep(base.Add(2 * time.Hour)); removed != 1 {
		t.Errorf("Sweep after the turn removed %d, want 1", removed)
	}
}

func TestStore_SweepDisabled(t *testing.T) {
	s := NewStore(0)
	s.GetOrCreate("")

	if removed := s.Sweep(time.Now().Add(24 * time.Hour)); removed != 0 {
		t.Errorf("Sweep with no timeout removed %d", removed)
	}
}

func TestStore_Run(t *testing.T) {
	s := NewStore(time.Nanosecond)
	s.GetOrCreate("")

	ctx, cancel := context.WithCancel(context.Background())
	swept := make(chan int, 1)
	go s.Run(ctx, 5*time.Millisecond, func(n int) {
		select {
		case swept <- n:
		default:
		}
	})
	defer cancel()

	select {
	case n := <-swept:
		if n != 1 {
			t.Errorf("swept %d, want 1", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run never swept")
	}
}

func TestSession_Notice(t *testing.T) {
	s := NewStore(0)
	sess, _ := s.GetOrCreate("")

	if n := sess.TakeNotice(); n != "" {
		t.Errorf("fresh notice = %q", n)
	}

	sess.SetNotice("Error: Ollama is not running")
	if n := sess.TakeNotice(); n != "Error: Ollama is not running" {
		t.Errorf("TakeNotice = %q", n)
	}
	if n := sess.TakeNotice(); n != "" {
		t.Errorf("notice should be one-shot, got %q", n)
	}
}

func TestSession_LockSerializesTurns(t *testing.T) {
	s := NewStore(0)
	sess, _ := s.GetOrCreate("")

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.Lock()
			defer sess.Unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("max concurrent turns = %d, want 1", maxSeen)
	}
}
