package typings

import (
	"context"
	"reflect"
	"testing"

	"pkt.systems/studiosync/internal/store"
	"pkt.systems/studiosync/schema"
)

type recordingRegistry struct {
	calls []string
}

func (r *recordingRegistry) RegisterLibrary(_ context.Context, name, source string) {
	r.calls = append(r.calls, name+"="+source)
}

func TestMergeSequence(t *testing.T) {
	stores := store.NewSet(nil, nil)
	reg := &recordingRegistry{}
	inj := NewInjector(stores.Typings, reg)
	ctx := context.Background()

	inj.Merge(ctx, schema.TypingsData{"a": "x"})
	inj.Merge(ctx, schema.TypingsData{"b": "y"})
	if got, want := inj.Libraries(), map[string]string{"a": "x", "b": "y"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	inj.Merge(ctx, schema.TypingsData{"a": "z"})
	if got, want := inj.Libraries(), map[string]string{"a": "z", "b": "y"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if want := []string{"a=x", "b=y", "a=z"}; !reflect.DeepEqual(reg.calls, want) {
		t.Fatalf("expected registrations %v, got %v", want, reg.calls)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	stores := store.NewSet(nil, nil)
	inj := NewInjector(stores.Typings, nil)
	ctx := context.Background()
	fragments := schema.TypingsData{"lib": "declare const a: number;", "other": "declare const b: string;"}

	inj.Merge(ctx, fragments)
	first := inj.Libraries()
	inj.Merge(ctx, fragments)
	if !reflect.DeepEqual(first, inj.Libraries()) {
		t.Fatalf("expected replay to keep map unchanged")
	}
}

func TestMergeSkipsEmptyNames(t *testing.T) {
	stores := store.NewSet(nil, nil)
	reg := &recordingRegistry{}
	inj := NewInjector(stores.Typings, reg)
	if n := inj.Merge(context.Background(), schema.TypingsData{"": "ignored", "b": "y"}); n != 1 {
		t.Fatalf("expected 1 merged fragment, got %d", n)
	}
	if _, ok := inj.Libraries()[""]; ok {
		t.Fatalf("did not expect empty name in map")
	}
	if len(reg.calls) != 1 {
		t.Fatalf("expected one registration, got %v", reg.calls)
	}
}

func TestReplayRegistersAllSorted(t *testing.T) {
	stores := store.NewSet(nil, nil)
	inj := NewInjector(stores.Typings, nil)
	inj.Merge(context.Background(), schema.TypingsData{"b": "2", "a": "1"})
	reg := &recordingRegistry{}
	inj.Replay(context.Background(), reg)
	if want := []string{"a=1", "b=2"}; !reflect.DeepEqual(reg.calls, want) {
		t.Fatalf("expected %v, got %v", want, reg.calls)
	}
}
