// Package domaintest holds the behaviour every domain.Repository must share.
package domaintest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/MrSnakeDoc/georegistry/internal/geo"
)

// RunRepository runs the repository contract against fresh instances
// returned by newRepo.
func RunRepository(t *testing.T, newRepo func(t *testing.T) domain.Repository) {
	t.Helper()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("catalogs", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		if _, err := repo.GetCatalog(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("GetCatalog(missing) error = %v, want ErrNotFound", err)
		}
		for _, slug := range []string{"b", "a"} {
			if err := repo.SaveCatalog(ctx, &domain.Catalog{Slug: slug, Name: slug}); err != nil {
				t.Fatalf("SaveCatalog(%s): %v", slug, err)
			}
		}
		all, err := repo.ListCatalogs(ctx)
		if err != nil {
			t.Fatalf("ListCatalogs: %v", err)
		}
		if len(all) != 2 || all[0].Slug != "a" {
			t.Errorf("ListCatalogs = %+v, want [a b]", all)
		}
	})

	t.Run("service uniqueness per catalog", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		s1 := domain.NewService("http://example.com/wms", domain.ServiceWMS, "a", now)
		if err := repo.CreateService(ctx, s1); err != nil {
			t.Fatalf("CreateService: %v", err)
		}
		if s1.ID == 0 {
			t.Fatal("CreateService did not assign an id")
		}

		dup := domain.NewService("http://example.com/wms", domain.ServiceWMS, "a", now)
		if err := repo.CreateService(ctx, dup); !errors.Is(err, domain.ErrDuplicateService) {
			t.Fatalf("duplicate CreateService error = %v, want ErrDuplicateService", err)
		}

		other := domain.NewService("http://example.com/wms", domain.ServiceWMS, "b", now)
		if err := repo.CreateService(ctx, other); err != nil {
			t.Fatalf("same url in another catalog should be accepted: %v", err)
		}

		found, err := repo.FindService(ctx, "a", "http://example.com/wms")
		if err != nil || found.ID != s1.ID {
			t.Fatalf("FindService = %+v, %v", found, err)
		}

		found.Title = "renamed"
		found.AddSRS("EPSG:4326")
		if err := repo.SaveService(ctx, found); err != nil {
			t.Fatalf("SaveService: %v", err)
		}
		got, err := repo.GetService(ctx, s1.ID)
		if err != nil {
			t.Fatalf("GetService: %v", err)
		}
		if got.Title != "renamed" || len(got.SRS) != 1 {
			t.Errorf("GetService = %+v, want saved fields", got)
		}

		all, _ := repo.ListServices(ctx)
		if len(all) != 2 {
			t.Errorf("ListServices = %d, want 2", len(all))
		}
		if _, err := repo.GetService(ctx, 9999); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("GetService(9999) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("layer get or create", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		svc := domain.NewService("http://example.com/wms", domain.ServiceWMS, "a", now)
		if err := repo.CreateService(ctx, svc); err != nil {
			t.Fatalf("CreateService: %v", err)
		}

		l, created, err := repo.GetOrCreateLayer(ctx, svc.ID, "roads")
		if err != nil || !created {
			t.Fatalf("first GetOrCreateLayer = created %v, err %v", created, err)
		}
		l.Title = "Roads"
		l.SetBBox(&geo.BBox{MinX: -10, MinY: -5, MaxX: 10, MaxY: 5})
		l.AddKeyword("transport")
		l.AddDate("1950-01-01", domain.DateDetected)
		if err := repo.SaveLayer(ctx, l); err != nil {
			t.Fatalf("SaveLayer: %v", err)
		}

		again, created, err := repo.GetOrCreateLayer(ctx, svc.ID, "roads")
		if err != nil || created {
			t.Fatalf("second GetOrCreateLayer = created %v, err %v", created, err)
		}
		if again.ID != l.ID || again.Title != "Roads" || again.BBox == nil || again.BBox.MaxX != 10 {
			t.Errorf("reloaded layer = %+v, want saved fields", again)
		}
		if len(again.Keywords) != 1 || len(again.Dates) != 1 {
			t.Errorf("reloaded keywords/dates = %v / %v", again.Keywords, again.Dates)
		}

		if _, _, err := repo.GetOrCreateLayer(ctx, svc.ID, "rivers"); err != nil {
			t.Fatalf("GetOrCreateLayer(rivers): %v", err)
		}
		layers, _ := repo.ListLayers(ctx, svc.ID)
		if len(layers) != 2 {
			t.Errorf("ListLayers = %d, want 2", len(layers))
		}
		if all, _ := repo.ListLayers(ctx, 0); len(all) != 2 {
			t.Errorf("ListLayers(0) = %d, want 2", len(all))
		}
		if _, _, err := repo.GetOrCreateLayer(ctx, 9999, "x"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("GetOrCreateLayer on unknown service error = %v, want ErrNotFound", err)
		}
	})

	t.Run("srs and checks", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		for _, code := range []string{"EPSG:4326", "EPSG:3857", "EPSG:4326"} {
			if _, err := repo.GetOrCreateSRS(ctx, code); err != nil {
				t.Fatalf("GetOrCreateSRS: %v", err)
			}
		}
		srs, _ := repo.ListSRS(ctx)
		if len(srs) != 2 {
			t.Errorf("ListSRS = %v, want 2 codes", srs)
		}

		key := domain.ResourceKey{Kind: domain.KindLayer, ID: 3}
		for i := range 3 {
			c := domain.NewCheck(key, i != 1, time.Duration(i)*time.Millisecond, "", now.Add(time.Duration(i)*time.Minute))
			if err := repo.AppendCheck(ctx, c); err != nil {
				t.Fatalf("AppendCheck: %v", err)
			}
		}
		checks, err := repo.ListChecks(ctx, key)
		if err != nil {
			t.Fatalf("ListChecks: %v", err)
		}
		if len(checks) != 3 || checks[1].Success {
			t.Errorf("ListChecks = %+v", checks)
		}
		if others, _ := repo.ListChecks(ctx, domain.ResourceKey{Kind: domain.KindService, ID: 3}); len(others) != 0 {
			t.Errorf("checks leaked across kinds: %v", others)
		}
	})
}
