package index

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/MrSnakeDoc/georegistry/internal/domain/domaintest"
)

func TestMemoryIndexRepository(t *testing.T) {
	domaintest.RunRepository(t, func(*testing.T) domain.Repository {
		return NewMemoryIndex()
	})
}

func TestNewMemoryIndex(t *testing.T) {
	index := NewMemoryIndex()
	if index == nil {
		t.Fatal("NewMemoryIndex() returned nil")
	}
	services, layers := index.Count()
	if services != 0 || layers != 0 {
		t.Errorf("NewMemoryIndex() should start empty, got %d services %d layers", services, layers)
	}
	if !index.GetLastWrite().IsZero() {
		t.Error("GetLastWrite() should be zero before any write")
	}
}

func TestRecordsAreCopied(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()

	svc := domain.NewService("http://example.com/wms", domain.ServiceWMS, "", time.Now())
	if err := index.CreateService(ctx, svc); err != nil {
		t.Fatal(err)
	}

	// Mutating the caller's copy must not leak into the index
	svc.Title = "changed"
	svc.AddSRS("EPSG:4326")

	got, err := index.GetService(ctx, svc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "" || len(got.SRS) != 0 {
		t.Errorf("index shares state with caller: %+v", got)
	}
}

func TestConcurrentGetOrCreateLayer(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()

	svc := domain.NewService("http://example.com/wms", domain.ServiceWMS, "", time.Now())
	if err := index.CreateService(ctx, svc); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup

	// Concurrent upserts of 10 distinct names, 10 times each
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, _, err := index.GetOrCreateLayer(ctx, svc.ID, fmt.Sprintf("layer-%d", i%10)); err != nil {
				t.Errorf("GetOrCreateLayer: %v", err)
			}
		}(i)
	}

	// Concurrent reads
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = index.ListLayers(ctx, svc.ID)
		}()
	}

	wg.Wait()

	layers, _ := index.ListLayers(ctx, svc.ID)
	if len(layers) != 10 {
		t.Errorf("concurrent GetOrCreateLayer created %d layers, want 10", len(layers))
	}
}
