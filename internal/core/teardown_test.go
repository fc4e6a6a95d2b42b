package core

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/giantswarm/testns/internal/store"
	"github.com/giantswarm/testns/internal/store/memstore"
)

// locatingStore reports a fixed current location.
type locatingStore struct {
	*memstore.Store
	location string
}

func (s locatingStore) Location() (string, bool) {
	return s.location, s.location != ""
}

var _ store.Locator = locatingStore{}

func TestTeardownRemovesNamespace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := mountedStore(t)
	mustCreate(t, s, testRoot+"/A/B")
	td := &teardowner{store: s, alias: testAlias, log: discardLog}

	if err := td.Teardown(ctx, testRoot); err != nil {
		t.Fatalf("Teardown() error: %v", err)
	}
	if _, err := s.Resolve(ctx, testAlias); !errors.Is(err, store.ErrNotMounted) {
		t.Errorf("Resolve() after teardown error = %v, want ErrNotMounted", err)
	}
	if exists(t, s, testRoot) {
		t.Error("root container still exists after teardown")
	}
	if !exists(t, s, "/testns") {
		t.Error("temp root must survive teardown")
	}
}

func TestTeardownUsesBoundRootWhenPathEmpty(t *testing.T) {
	t.Parallel()

	s := mountedStore(t)
	td := &teardowner{store: s, alias: testAlias, log: discardLog}

	if err := td.Teardown(context.Background(), ""); err != nil {
		t.Fatalf("Teardown() error: %v", err)
	}
	if exists(t, s, testRoot) {
		t.Error("bound root still exists after teardown")
	}
}

func TestTeardownNoOpWhenUnmounted(t *testing.T) {
	t.Parallel()

	s := memstore.New()
	mustCreate(t, s, testRoot+"/A")
	td := &teardowner{store: s, alias: testAlias, log: discardLog}

	if err := td.Teardown(context.Background(), testRoot); err != nil {
		t.Fatalf("Teardown() error = %v, want nil", err)
	}
	if got := deletedPaths(s); len(got) != 0 {
		t.Errorf("Teardown() deleted %v, want nothing", got)
	}
	if got := len(s.Calls(memstore.OpUnmount)); got != 0 {
		t.Errorf("Unmount called %d times, want 0", got)
	}
}

func TestTeardownRootAlreadyGone(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memstore.New()
	mustMount(t, s, testAlias, testRoot)
	td := &teardowner{store: s, alias: testAlias, log: discardLog}

	if err := td.Teardown(ctx, testRoot); err != nil {
		t.Fatalf("Teardown() error = %v, want nil", err)
	}
	if _, err := s.Resolve(ctx, testAlias); !errors.Is(err, store.ErrNotMounted) {
		t.Errorf("alias still mounted: %v", err)
	}
}

func TestTeardownUnmountFailureIsFatal(t *testing.T) {
	t.Parallel()

	s := mountedStore(t)
	s.FailNext(memstore.OpUnmount, errPermission)
	td := &teardowner{store: s, alias: testAlias, log: discardLog}

	err := td.Teardown(context.Background(), testRoot)
	if !errors.Is(err, ErrUnmount) {
		t.Fatalf("Teardown() error = %v, want ErrUnmount", err)
	}
	if !errors.Is(err, errPermission) {
		t.Errorf("Teardown() error = %v, want cause preserved", err)
	}
	if !exists(t, s, testRoot) {
		t.Error("root must not be deleted when unmount fails")
	}
}

func TestTeardownWarnsWhenLocatedInside(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		location string
		wantWarn bool
	}{
		"inside root":  {location: testRoot + "/A", wantWarn: true},
		"at root":      {location: testRoot, wantWarn: true},
		"outside root": {location: "/elsewhere", wantWarn: false},
		"no location":  {location: "", wantWarn: false},
		"sibling root": {location: testRoot + "x", wantWarn: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			log := slog.New(slog.NewTextHandler(&buf, nil))
			s := mountedStore(t)
			td := &teardowner{store: locatingStore{Store: s, location: tc.location}, alias: testAlias, log: log}

			if err := td.Teardown(context.Background(), testRoot); err != nil {
				t.Fatalf("Teardown() error: %v", err)
			}
			warned := strings.Contains(buf.String(), "current location is inside the namespace")
			if warned != tc.wantWarn {
				t.Errorf("warned = %v, want %v; log:\n%s", warned, tc.wantWarn, buf.String())
			}
			if exists(t, s, testRoot) {
				t.Error("teardown must proceed despite the warning")
			}
		})
	}
}
