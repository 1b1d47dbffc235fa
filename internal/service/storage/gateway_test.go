package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeGateway struct {
	copyErr   error
	removeErr error
	calls     []string
}

func (f *fakeGateway) List(context.Context, string, ListOptions) ([]Entry, error) {
	return nil, nil
}

func (f *fakeGateway) Download(context.Context, string) ([]byte, error) {
	return nil, nil
}

func (f *fakeGateway) Upload(context.Context, string, []byte, UploadOptions) error {
	return nil
}

func (f *fakeGateway) Update(context.Context, string, []byte, UploadOptions) error {
	return nil
}

func (f *fakeGateway) Copy(_ context.Context, src, dst string) error {
	f.calls = append(f.calls, "copy:"+src+"->"+dst)
	return f.copyErr
}

func (f *fakeGateway) Remove(_ context.Context, keys []string) error {
	f.calls = append(f.calls, "remove:"+keys[0])
	return f.removeErr
}

func TestRename_Success(t *testing.T) {
	g := &fakeGateway{}

	res, err := Rename(context.Background(), g, "a.txt", "b.txt")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Partial {
		t.Error("expected full rename")
	}
	if len(g.calls) != 2 || g.calls[0] != "copy:a.txt->b.txt" || g.calls[1] != "remove:a.txt" {
		t.Errorf("expected copy then remove, got %v", g.calls)
	}
}

func TestRename_CopyFailsNoRemove(t *testing.T) {
	g := &fakeGateway{copyErr: ErrAlreadyExists}

	_, err := Rename(context.Background(), g, "a.txt", "b.txt")

	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
	if len(g.calls) != 1 {
		t.Errorf("remove must not run after a failed copy, got %v", g.calls)
	}
}

func TestRename_RemoveFailsIsPartial(t *testing.T) {
	removeErr := errors.New("permission denied")
	g := &fakeGateway{removeErr: removeErr}

	res, err := Rename(context.Background(), g, "a.txt", "b.txt")

	if err != nil {
		t.Fatalf("expected nil error on partial rename, got %v", err)
	}
	if !res.Partial || !errors.Is(res.RemoveErr, removeErr) {
		t.Errorf("expected partial result, got %+v", res)
	}
}

func TestRename_SameName(t *testing.T) {
	g := &fakeGateway{}
	if _, err := Rename(context.Background(), g, "a.txt", "a.txt"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
	if len(g.calls) != 0 {
		t.Errorf("expected no calls, got %v", g.calls)
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"note.txt", false},
		{"2024/note.txt", false},
		{"", true},
		{"   ", true},
		{"/abs.txt", true},
		{"../escape.txt", true},
	}

	for _, tt := range tests {
		if err := ValidateKey(tt.key); (err != nil) != tt.wantErr {
			t.Errorf("ValidateKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
		}
	}
}

func TestApply(t *testing.T) {
	base := time.Date(2025, 4, 6, 21, 0, 0, 0, time.UTC)
	entries := []Entry{
		{Name: "b.txt", CreatedAt: base.Add(2 * time.Hour)},
		{Name: "a.txt", CreatedAt: base},
		{Name: "Cardio.txt", CreatedAt: base.Add(time.Hour)},
		{Name: "d.txt", CreatedAt: base.Add(3 * time.Hour)},
	}

	tests := []struct {
		name string
		opts ListOptions
		want []string
	}{
		{"created desc", ListOptions{SortBy: SortBy{Column: SortByCreatedAt, Order: "desc"}}, []string{"d.txt", "b.txt", "Cardio.txt", "a.txt"}},
		{"name asc", ListOptions{SortBy: SortBy{Column: SortByName, Order: "asc"}}, []string{"Cardio.txt", "a.txt", "b.txt", "d.txt"}},
		{"limit offset", ListOptions{Limit: 2, Offset: 1, SortBy: SortBy{Column: SortByCreatedAt, Order: "asc"}}, []string{"Cardio.txt", "b.txt"}},
		{"search case insensitive", ListOptions{Search: "CARD"}, []string{"Cardio.txt"}},
		{"offset past end", ListOptions{Offset: 10}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(entries, tt.opts)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range tt.want {
				if got[i].Name != tt.want[i] {
					t.Errorf("position %d: expected %s, got %s", i, tt.want[i], got[i].Name)
				}
			}
		})
	}
}
