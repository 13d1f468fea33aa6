package enrich

import (
	"sync"
	"testing"
	"time"
)

func TestInflightSingleWinner(t *testing.T) {
	registry := NewInflight()

	done, ok := registry.Begin("42")
	if !ok {
		t.Fatal("first Begin refused")
	}
	if _, ok := registry.Begin("42"); ok {
		t.Fatal("second Begin for same id accepted")
	}
	if _, ok := registry.Begin("43"); !ok {
		t.Fatal("Begin for different id refused")
	}

	done()
	if _, ok := registry.Begin("42"); !ok {
		t.Fatal("Begin refused after completion")
	}
}

func TestInflightRunningChannelCloses(t *testing.T) {
	registry := NewInflight()
	done, _ := registry.Begin("42")

	ch, running := registry.Running("42")
	if !running {
		t.Fatal("Running did not see active job")
	}
	go done()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("done channel never closed")
	}
	if _, running := registry.Running("42"); running {
		t.Fatal("job still registered after completion")
	}
}

func TestInflightConcurrentBegins(t *testing.T) {
	registry := NewInflight()
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if done, ok := registry.Begin("42"); ok {
				mu.Lock()
				winners++
				mu.Unlock()
				done()
			}
		}()
	}
	wg.Wait()
	if winners == 0 {
		t.Fatal("no goroutine won the registration")
	}
}
