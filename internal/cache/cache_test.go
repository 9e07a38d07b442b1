package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) ([]byte, error)              { return nil, f.err }
func (f failingStore) Set(context.Context, string, []byte, time.Duration) error { return f.err }
func (f failingStore) Delete(context.Context, string) error                     { return f.err }

func TestJSONHelpers_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	type profile struct {
		Name   string  `json:"name"`
		Rating float64 `json:"rating"`
	}

	if err := SetJSON(ctx, s, "p", profile{Name: "Luigi's", Rating: 4.5}, time.Hour); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	var got profile
	if err := GetJSON(ctx, s, "p", &got); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if got.Name != "Luigi's" || got.Rating != 4.5 {
		t.Fatalf("unexpected: %+v", got)
	}
}

func TestGetJSON_CorruptValueIsMiss(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Set(ctx, "bad", []byte("{not json"), 0)
	var v map[string]any
	if err := GetJSON(ctx, s, "bad", &v); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
}

func TestJSONHelpers_PropagateStoreErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	s := failingStore{err: boom}
	var v string
	if err := GetJSON(ctx, s, "k", &v); !errors.Is(err, boom) {
		t.Fatalf("GetJSON err = %v", err)
	}
	if err := SetJSON(ctx, s, "k", "v", 0); !errors.Is(err, boom) {
		t.Fatalf("SetJSON err = %v", err)
	}
	if err := SetJSON(ctx, NewMemoryStore(), "k", make(chan int), 0); err == nil {
		t.Fatalf("expected marshal error")
	}
}
