package weights

import "testing"

func TestAbsoluteStoreFetch(t *testing.T) {
	body := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	s := NewAbsoluteStore(body)

	got, err := s.Fetch(2, 3)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	want := []byte{2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Fetch = %v, want %v", got, want)
		}
	}
}

func TestAbsoluteStoreShortRead(t *testing.T) {
	s := NewAbsoluteStore([]byte{0, 1, 2})
	if _, err := s.Fetch(1, 10); err == nil {
		t.Fatal("expected short-read error")
	}
}

func TestAccessorFetchWrapsError(t *testing.T) {
	a := NewAccessor(AbsoluteAddress, NewAbsoluteStore([]byte{0, 1}))
	if _, err := a.Fetch(0, 5); err == nil {
		t.Fatal("expected error from undersized store")
	}
}
