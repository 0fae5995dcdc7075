package store

import (
	"context"
	"reflect"
	"testing"

	"github.com/roach88/apagea/internal/query"
)

func newTestView(t *testing.T) (*Store, *View) {
	t.Helper()
	s := newTestStore(t)
	ctx := context.Background()

	col, err := s.CreateCollection(ctx, "people")
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	seedPeople(t, col)

	v, err := s.CreateView(ctx, "roster", "people", []string{"name", "city"})
	if err != nil {
		t.Fatalf("CreateView: %v", err)
	}
	return s, v
}

func TestCreateViewValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateCollection(ctx, "people"); err != nil {
		t.Fatal(err)
	}

	if _, err := s.CreateView(ctx, "v1", "ghosts", []string{"name"}); !IsNotFound(err) {
		t.Fatalf("view over missing collection: got %v, want not-found error", err)
	}
	if _, err := s.CreateView(ctx, "v1", "people", nil); !IsInvalidName(err) {
		t.Fatalf("view without fields: got %v, want invalid-name error", err)
	}
	if _, err := s.CreateView(ctx, "bad name", "people", []string{"name"}); !IsInvalidName(err) {
		t.Fatalf("bad view name: got %v, want invalid-name error", err)
	}

	if _, err := s.CreateView(ctx, "v1", "people", []string{"name"}); err != nil {
		t.Fatalf("CreateView: %v", err)
	}
	if _, err := s.CreateView(ctx, "v1", "people", []string{"name"}); !IsAlreadyExists(err) {
		t.Fatalf("duplicate view: got %v, want exists error", err)
	}
}

func TestViewListProjectsFields(t *testing.T) {
	_, v := newTestView(t)

	rows, err := v.List(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("List returned %d rows, want 1", len(rows))
	}

	row := rows[0]
	if row.PK != "p1" {
		t.Fatalf("row.PK = %q, want p1", row.PK)
	}
	if row.Fields["name"] != "John" || row.Fields["city"] != "NYC" {
		t.Fatalf("row.Fields = %v", row.Fields)
	}
	// Only the projected fields come through; age was not selected.
	if _, ok := row.Fields["age"]; ok {
		t.Fatalf("unprojected field leaked: %v", row.Fields)
	}
}

func TestViewFindUsesFlattenedColumns(t *testing.T) {
	_, v := newTestView(t)

	expr, err := query.Parse(map[string]any{"city": "NYC"}, query.Limits{})
	if err != nil {
		t.Fatal(err)
	}
	rows, err := v.Find(context.Background(), expr, FindOptions{Limit: 10})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	pks := make([]string, 0, len(rows))
	for _, r := range rows {
		pks = append(pks, r.PK)
	}
	if want := []string{"p1", "p3"}; !reflect.DeepEqual(pks, want) {
		t.Fatalf("Find = %v, want %v", pks, want)
	}
}

func TestViewFindNestedProjection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	col, err := s.CreateCollection(ctx, "people")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := col.Insert(ctx, "n1", map[string]any{
		"name":    "Eve",
		"address": map[string]any{"city": "Oslo"},
	}); err != nil {
		t.Fatal(err)
	}

	v, err := s.CreateView(ctx, "places", "people", []string{"address.city"})
	if err != nil {
		t.Fatalf("CreateView: %v", err)
	}

	// The dotted path projects as an underscore column and is queried
	// under that flattened name.
	expr, err := query.Parse(map[string]any{"address.city": "Oslo"}, query.Limits{})
	if err != nil {
		t.Fatal(err)
	}
	rows, err := v.Find(ctx, expr, FindOptions{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(rows) != 1 || rows[0].Fields["address_city"] != "Oslo" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestViewCount(t *testing.T) {
	_, v := newTestView(t)

	n, err := v.Count(context.Background())
	if err != nil || n != 4 {
		t.Fatalf("Count = %d, %v, want 4", n, err)
	}
}

func TestViewReflectsCollectionWrites(t *testing.T) {
	s, v := newTestView(t)
	ctx := context.Background()

	col, err := s.Collection(ctx, "people")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := col.Insert(ctx, "p5", map[string]any{"name": "Zoe", "city": "LA"}); err != nil {
		t.Fatal(err)
	}

	n, err := v.Count(ctx)
	if err != nil || n != 5 {
		t.Fatalf("Count after insert = %d, %v, want 5", n, err)
	}
}

func TestViewLifecycle(t *testing.T) {
	s, _ := newTestView(t)
	ctx := context.Background()

	names, err := s.ListViews(ctx)
	if err != nil {
		t.Fatalf("ListViews: %v", err)
	}
	if want := []string{"roster"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("ListViews = %v, want %v", names, want)
	}

	exists, err := s.ViewExists(ctx, "roster")
	if err != nil || !exists {
		t.Fatalf("ViewExists = %v, %v", exists, err)
	}

	if err := s.RenameView(ctx, "roster", "staff"); err != nil {
		t.Fatalf("RenameView: %v", err)
	}
	if exists, _ := s.ViewExists(ctx, "roster"); exists {
		t.Fatal("old view name still present after rename")
	}

	v, err := s.View(ctx, "staff")
	if err != nil {
		t.Fatalf("View after rename: %v", err)
	}
	if n, err := v.Count(ctx); err != nil || n != 4 {
		t.Fatalf("renamed view Count = %d, %v, want 4", n, err)
	}

	if err := s.DropView(ctx, "staff"); err != nil {
		t.Fatalf("DropView: %v", err)
	}
	// Dropping a missing view is a no-op.
	if err := s.DropView(ctx, "staff"); err != nil {
		t.Fatalf("idempotent drop: %v", err)
	}
	if _, err := s.View(ctx, "staff"); !IsNotFound(err) {
		t.Fatalf("dropped view lookup: got %v, want not-found error", err)
	}
}

func TestRenameViewConflicts(t *testing.T) {
	s, _ := newTestView(t)
	ctx := context.Background()

	if _, err := s.CreateView(ctx, "other", "people", []string{"name"}); err != nil {
		t.Fatal(err)
	}
	if err := s.RenameView(ctx, "roster", "other"); !IsAlreadyExists(err) {
		t.Fatalf("rename onto existing: got %v, want exists error", err)
	}
	if err := s.RenameView(ctx, "ghost", "fresh"); !IsNotFound(err) {
		t.Fatalf("rename missing: got %v, want not-found error", err)
	}
}

func TestDropCollectionLeavesViewDangling(t *testing.T) {
	s, v := newTestView(t)
	ctx := context.Background()

	if err := s.DropCollection(ctx, "people"); err != nil {
		t.Fatalf("DropCollection: %v", err)
	}

	// SQLite resolves view bodies at query time, so reads now fail.
	if _, err := v.Count(ctx); err == nil {
		t.Fatal("Count over dangling view succeeded, want error")
	}
}
