package expertbackend_test

import (
	"errors"
	"testing"

	"github.com/Strob0t/moecore/internal/domain"
	"github.com/Strob0t/moecore/internal/domain/expert"
	"github.com/Strob0t/moecore/internal/port/expertbackend"
)

func echoFactory(cfg map[string]string) (expert.Callable, error) {
	prefix := cfg["prefix"]
	return func(text string, _ map[string]any) (string, error) { return prefix + text, nil }, nil
}

func TestRegisterAndNew(t *testing.T) {
	r := expertbackend.NewRegistry()
	if err := r.Register("echo", echoFactory); err != nil {
		t.Fatal(err)
	}

	fn, err := r.New("echo", map[string]string{"prefix": ">"})
	if err != nil {
		t.Fatal(err)
	}
	if out, _ := fn("x", nil); out != ">x" {
		t.Fatalf("got %q", out)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := expertbackend.NewRegistry()
	r.MustRegister("echo", echoFactory)
	if err := r.Register("echo", echoFactory); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestNewUnknownBackend(t *testing.T) {
	r := expertbackend.NewRegistry()
	if _, err := r.New("nonexistent", nil); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFactoryErrorIsWrapped(t *testing.T) {
	r := expertbackend.NewRegistry()
	boom := errors.New("missing url")
	r.MustRegister("bad", func(map[string]string) (expert.Callable, error) { return nil, boom })
	if _, err := r.New("bad", nil); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped factory error, got %v", err)
	}
}

func TestAvailableSorted(t *testing.T) {
	r := expertbackend.NewRegistry()
	r.MustRegister("zeta", echoFactory)
	r.MustRegister("alpha", echoFactory)
	got := r.Available()
	if len(got) != 2 || got[0] != "alpha" || got[1] != "zeta" {
		t.Fatalf("got %v", got)
	}
}

func TestMock(t *testing.T) {
	fn, err := expertbackend.Mock(nil)
	if err != nil {
		t.Fatal(err)
	}
	if out, _ := fn("tok", nil); out != "expert(tok)" {
		t.Fatalf("got %q", out)
	}
	fn, _ = expertbackend.Mock(map[string]string{"prefix": "sec"})
	if out, _ := fn("tok", nil); out != "sec(tok)" {
		t.Fatalf("got %q", out)
	}
}
