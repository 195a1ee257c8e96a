package ristretto_test

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/moecore/internal/adapter/ristretto"
	"github.com/Strob0t/moecore/internal/port/cache/cachetest"
)

func TestCompliance(t *testing.T) {
	c, err := ristretto.New(1<<20, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	cachetest.Run(t, c)
}

func TestDefaultTTLApplied(t *testing.T) {
	c, err := ristretto.New(1<<20, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := c.Get(ctx, "k"); !ok || string(v) != "v" {
		t.Fatalf("got %q, %v", v, ok)
	}
}
