// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package favorites

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/animescope/internal/metrics"
	"github.com/tomtom215/animescope/internal/models"
)

type fakeCollab struct {
	mu      sync.Mutex
	stored  []int
	listErr error
	addErr  error
	remErr  error
	calls   []string
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeCollab) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeCollab) ListFavoriteIDs(context.Context) ([]int, error) {
	f.record("list")
	return f.stored, f.listErr
}

func (f *fakeCollab) AddFavorite(_ context.Context, id int) error {
	f.record("add")
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return f.addErr
}

func (f *fakeCollab) RemoveFavorite(context.Context, int) error {
	f.record("remove")
	return f.remErr
}

func (f *fakeCollab) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func user() Session {
	return Session{User: &models.User{ID: 1, Email: "a@b.c", Role: models.RoleUser}}
}

func TestToggle_AnonymousMakesNoCall(t *testing.T) {
	collab := &fakeCollab{}
	o := NewOverlay(Session{}, collab)

	_, err := o.Toggle(context.Background(), 5423)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
	if collab.callCount() != 0 {
		t.Errorf("collaborator calls = %d, want 0", collab.callCount())
	}
	if o.IsFavorite(5423) {
		t.Error("anonymous toggle changed the set")
	}
}

func TestToggle_AddAndRemove(t *testing.T) {
	collab := &fakeCollab{}
	o := NewOverlay(user(), collab)
	var changes []bool
	o.OnChange(func(id int, fav bool) { changes = append(changes, fav) })

	fav, err := o.Toggle(context.Background(), 21)
	if err != nil || !fav || !o.IsFavorite(21) {
		t.Fatalf("add: fav=%v err=%v", fav, err)
	}
	fav, err = o.Toggle(context.Background(), 21)
	if err != nil || fav || o.IsFavorite(21) {
		t.Fatalf("remove: fav=%v err=%v", fav, err)
	}
	if len(changes) != 2 || !changes[0] || changes[1] {
		t.Errorf("changes = %v", changes)
	}
}

func TestToggle_FailureRestoresPreviousValue(t *testing.T) {
	tests := []struct {
		name     string
		initial  bool
		collab   *fakeCollab
		wantCall string
	}{
		{"failed add", false, &fakeCollab{addErr: errors.New("db down")}, "add"},
		{"failed remove", true, &fakeCollab{stored: []int{7}, remErr: errors.New("db down")}, "remove"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOverlay(user(), tt.collab)
			if err := o.Sync(context.Background()); err != nil {
				t.Fatal(err)
			}
			before := testutil.ToFloat64(metrics.FavoriteToggles.WithLabelValues(tt.wantCall, "rolled_back"))

			fav, err := o.Toggle(context.Background(), 7)
			if err == nil {
				t.Fatal("expected error")
			}
			if fav != tt.initial || o.IsFavorite(7) != tt.initial {
				t.Errorf("IsFavorite = %v, want %v", o.IsFavorite(7), tt.initial)
			}
			after := testutil.ToFloat64(metrics.FavoriteToggles.WithLabelValues(tt.wantCall, "rolled_back"))
			if after-before != 1 {
				t.Errorf("rollback counter delta = %v, want 1", after-before)
			}
		})
	}
}

func TestToggle_OptimisticAndInProgress(t *testing.T) {
	collab := &fakeCollab{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	o := NewOverlay(user(), collab)

	done := make(chan error, 1)
	go func() {
		_, err := o.Toggle(context.Background(), 3)
		done <- err
	}()
	<-collab.entered

	if !o.IsFavorite(3) {
		t.Error("set should be updated before the collaborator answers")
	}
	if _, err := o.Toggle(context.Background(), 3); !errors.Is(err, ErrToggleInProgress) {
		t.Errorf("second toggle err = %v, want ErrToggleInProgress", err)
	}

	close(collab.block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if !o.IsFavorite(3) {
		t.Error("favorite lost after success")
	}
}

func TestToggle_InvalidID(t *testing.T) {
	o := NewOverlay(user(), &fakeCollab{})
	if _, err := o.Toggle(context.Background(), 0); !errors.Is(err, ErrInvalidID) {
		t.Errorf("err = %v", err)
	}
}

func TestSync(t *testing.T) {
	collab := &fakeCollab{stored: []int{9, 3, -1, 3}}
	o := NewOverlay(user(), collab)
	if err := o.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	ids := o.IDs()
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 9 {
		t.Errorf("IDs = %v, want [3 9]", ids)
	}

	collab.listErr = errors.New("boom")
	if err := o.Sync(context.Background()); err == nil {
		t.Error("expected error")
	}
	if o.Len() != 2 {
		t.Error("failed sync should keep the previous set")
	}
}

func TestSync_AnonymousIsEmpty(t *testing.T) {
	collab := &fakeCollab{stored: []int{1}}
	o := NewOverlay(Session{}, collab)
	if err := o.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	if o.Len() != 0 || collab.callCount() != 0 {
		t.Errorf("len %d calls %d, want 0 and 0", o.Len(), collab.callCount())
	}
}

func TestSet_NotifiesOnlyOnChange(t *testing.T) {
	o := NewOverlay(user(), &fakeCollab{})
	n := 0
	cancel := o.OnChange(func(int, bool) { n++ })

	o.Set(4, true)
	o.Set(4, true)
	o.Set(4, false)
	if n != 2 {
		t.Errorf("notifications = %d, want 2", n)
	}

	cancel()
	o.Set(4, true)
	if n != 2 {
		t.Errorf("notified after cancel: %d", n)
	}
}
