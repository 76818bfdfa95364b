package dedup

import (
	"reflect"
	"sync"
	"testing"

	"github.com/crimson-sun/tribewatch/internal/model"
)

func recs(texts ...string) []model.RawRecord {
	out := make([]model.RawRecord, len(texts))
	for i, t := range texts {
		out[i] = model.RawRecord{Offset: i * 10, Text: t}
	}
	return out
}

func texts(rs []model.RawRecord) []string {
	var out []string
	for _, r := range rs {
		out = append(out, r.Text)
	}
	return out
}

func TestBaselineThenNew(t *testing.T) {
	d := New(Config{Baseline: true})
	if !d.IsFirstRun() {
		t.Fatal("expected first run pending")
	}

	if got := d.FilterNew(recs("a", "b", "c")); len(got) != 0 {
		t.Fatalf("baseline call returned %v, want none", texts(got))
	}
	if d.IsFirstRun() {
		t.Fatal("first run should be over after baseline call")
	}

	got := d.FilterNew(recs("a", "b", "c", "d"))
	if !reflect.DeepEqual(texts(got), []string{"d"}) {
		t.Fatalf("second call = %v, want [d]", texts(got))
	}
	if got[0].Offset != 30 {
		t.Fatalf("offset not preserved: %d", got[0].Offset)
	}
}

func TestBaselineEmptyStillEndsFirstRun(t *testing.T) {
	d := New(Config{Baseline: true})
	d.FilterNew(nil)
	if d.IsFirstRun() {
		t.Fatal("empty baseline call must end first run")
	}
	if got := d.FilterNew(recs("x")); !reflect.DeepEqual(texts(got), []string{"x"}) {
		t.Fatalf("got %v, want [x]", texts(got))
	}
}

func TestWithoutBaseline(t *testing.T) {
	d := New(Config{})
	if d.IsFirstRun() {
		t.Fatal("baseline disabled: no first run pending")
	}
	got := d.FilterNew(recs("a", "b"))
	if !reflect.DeepEqual(texts(got), []string{"a", "b"}) {
		t.Fatalf("got %v, want [a b]", texts(got))
	}
}

func TestRepeatedFetchNeverReports(t *testing.T) {
	d := New(Config{})
	d.FilterNew(recs("a", "b"))
	for i := 0; i < 3; i++ {
		if got := d.FilterNew(recs("a", "b")); len(got) != 0 {
			t.Fatalf("iteration %d: got %v, want none", i, texts(got))
		}
	}
	if d.Len() != 2 {
		t.Fatalf("Len = %d, want 2", d.Len())
	}
}

func TestDuplicatesWithinCall(t *testing.T) {
	d := New(Config{})
	got := d.FilterNew(recs("a", "b", "a", "c", "b"))
	if !reflect.DeepEqual(texts(got), []string{"a", "b", "c"}) {
		t.Fatalf("got %v, want [a b c]", texts(got))
	}
}

func TestKeyIsRawText(t *testing.T) {
	d := New(Config{})
	// Both clean to the same display text but are distinct records.
	got := d.FilterNew(recs("Day 1, 00:00:00: Dodo died", "Day 2, 00:00:00: Dodo died"))
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
}

func TestBoundedEvictsOnlyStaleKeys(t *testing.T) {
	d := New(Config{Capacity: 3})
	d.FilterNew(recs("a", "b", "c"))

	// "a" is re-encountered and refreshed; "d" evicts the stalest key, "b".
	got := d.FilterNew(recs("a", "d"))
	if !reflect.DeepEqual(texts(got), []string{"d"}) {
		t.Fatalf("got %v, want [d]", texts(got))
	}
	if d.Len() != 3 {
		t.Fatalf("Len = %d, want 3", d.Len())
	}

	got = d.FilterNew(recs("a", "c", "d"))
	if len(got) != 0 {
		t.Fatalf("refreshed keys reported again: %v", texts(got))
	}
	got = d.FilterNew(recs("b"))
	if !reflect.DeepEqual(texts(got), []string{"b"}) {
		t.Fatalf("evicted key should be new again, got %v", texts(got))
	}
}

func TestConcurrentFilterNew(t *testing.T) {
	d := New(Config{})
	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := len(d.FilterNew(recs("a", "b", "c", "d")))
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()
	if total != 4 {
		t.Fatalf("reported %d records across goroutines, want 4", total)
	}
}
