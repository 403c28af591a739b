package artwork

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestDeriveLarge(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			in:   "https://is1-ssl.mzstatic.com/image/thumb/Music/v4/ab/cd/100x100bb.jpg",
			want: "https://is1-ssl.mzstatic.com/image/thumb/Music/v4/ab/cd/1000x1000bb.jpg",
		},
		{
			in:   "https://is1-ssl.mzstatic.com/image/thumb/60x60bb.png",
			want: "https://is1-ssl.mzstatic.com/image/thumb/1000x1000bb.png",
		},
		{
			in:   "https://coverartarchive.org/release-group/abc/front-500",
			want: "https://coverartarchive.org/release-group/abc/front-500",
		},
	}

	for _, tt := range tests {
		if got := DeriveLarge(tt.in); got != tt.want {
			t.Errorf("DeriveLarge(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"image/png":                "png",
		"image/webp":               "webp",
		"image/jpeg":               "jpg",
		"image/jpg":                "jpg",
		"IMAGE/PNG; charset=utf-8": "png",
		"":                         "jpg",
	}
	for in, want := range tests {
		if got := Extension(in); got != want {
			t.Errorf("Extension(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPathsFor(t *testing.T) {
	got := PathsFor("itunes", "1440857781", "image/png")
	want := Paths{Thumb: "itunes/1440857781/thumb.png", Medium: "itunes/1440857781/medium.png"}
	if got != want {
		t.Errorf("PathsFor() = %+v, want %+v", got, want)
	}
}

func TestDecode(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString(pngHeader)

	tests := []struct {
		name     string
		in       string
		wantType string
		wantNil  bool
		wantErr  bool
	}{
		{name: "plain base64", in: raw, wantType: "image/png"},
		{name: "data URL", in: "data:image/webp;base64," + raw, wantType: "image/webp"},
		{name: "empty", in: "  ", wantNil: true},
		{name: "not base64", in: "%%%", wantErr: true},
		{name: "not an image", in: base64.StdEncoding.EncodeToString([]byte("hello world")), wantErr: true},
		{name: "bad data URL", in: "data:image/png," + raw, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Decode(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrNotImage) {
					t.Errorf("Decode() error = %v, want %v", err, ErrNotImage)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if tt.wantNil {
				if img != nil {
					t.Errorf("Decode() = %+v, want nil", img)
				}
				return
			}
			if img.ContentType != tt.wantType {
				t.Errorf("ContentType = %q, want %q", img.ContentType, tt.wantType)
			}
		})
	}
}

func TestDirStore(t *testing.T) {
	root := t.TempDir()
	store, err := NewDirStore(root, "/artwork/")
	if err != nil {
		t.Fatalf("NewDirStore() error = %v", err)
	}

	ctx := context.Background()
	if err := store.Put(ctx, "manual/abc/thumb.png", pngHeader, "image/png"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "manual", "abc", "thumb.png"))
	if err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	if string(data) != string(pngHeader) {
		t.Errorf("stored bytes differ")
	}

	if got, want := store.URL("manual/abc/thumb.png"), "/artwork/manual/abc/thumb.png"; got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}

	if err := store.Put(ctx, "../escape.png", pngHeader, "image/png"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Put(../escape.png) error = %v, want %v", err, ErrInvalidPath)
	}

	server := httptest.NewServer(http.StripPrefix("/artwork", store.Handler()))
	defer server.Close()

	resp, err := http.Get(server.URL + "/artwork/manual/abc/thumb.png")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET status = %d, want 200", resp.StatusCode)
	}
}

// memoryStore records uploads.
type memoryStore struct {
	mu      sync.Mutex
	objects map[string]string
	failOn  string
}

func (m *memoryStore) Put(ctx context.Context, objectPath string, data []byte, contentType string) error {
	if objectPath == m.failOn {
		return errors.New("storage unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string]string)
	}
	m.objects[objectPath] = contentType
	return nil
}

func (m *memoryStore) URL(objectPath string) string { return "mem://" + objectPath }

func TestSaveBoth(t *testing.T) {
	store := &memoryStore{}
	thumb := &Image{Data: pngHeader, ContentType: "image/png"}
	medium := &Image{Data: []byte{0xff, 0xd8, 0xff}, ContentType: "image/jpeg"}

	paths, err := SaveBoth(context.Background(), store, "manual", "abc", thumb, medium)
	if err != nil {
		t.Fatalf("SaveBoth() error = %v", err)
	}
	want := Paths{Thumb: "manual/abc/thumb.png", Medium: "manual/abc/medium.jpg"}
	if paths != want {
		t.Errorf("SaveBoth() = %+v, want %+v", paths, want)
	}
	if store.objects[want.Medium] != "image/jpeg" {
		t.Errorf("medium content type = %q", store.objects[want.Medium])
	}

	paths, err = SaveBoth(context.Background(), &memoryStore{}, "itunes", "1", thumb, nil)
	if err != nil {
		t.Fatalf("SaveBoth(nil medium) error = %v", err)
	}
	if paths.Medium != "itunes/1/medium.png" {
		t.Errorf("Medium = %q, want itunes/1/medium.png", paths.Medium)
	}

	failing := &memoryStore{failOn: "manual/abc/medium.png"}
	if _, err := SaveBoth(context.Background(), failing, "manual", "abc", thumb, nil); err == nil {
		t.Error("SaveBoth() error = nil, want upload failure")
	}
}

func TestFetcher(t *testing.T) {
	var largeCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/img/100x100bb.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte{0xff, 0xd8, 0xff, 0xe0})
		case "/img/1000x1000bb.jpg":
			largeCalls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		case "/untyped":
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write(pngHeader)
		case "/html":
			w.Header().Set("Content-Type", "text/html")
			io.WriteString(w, "<html></html>")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	f := NewFetcher("albumrank-test")
	ctx := context.Background()

	img, err := f.FetchLargest(ctx, server.URL+"/img/100x100bb.jpg")
	if err != nil {
		t.Fatalf("FetchLargest() error = %v", err)
	}
	if img.ContentType != "image/jpeg" {
		t.Errorf("ContentType = %q, want image/jpeg", img.ContentType)
	}
	if largeCalls.Load() != 1 {
		t.Errorf("large rendition requested %d times, want 1", largeCalls.Load())
	}

	img, err = f.Fetch(ctx, server.URL+"/untyped")
	if err != nil {
		t.Fatalf("Fetch(untyped) error = %v", err)
	}
	if img.ContentType != "image/png" {
		t.Errorf("sniffed ContentType = %q, want image/png", img.ContentType)
	}

	if _, err := f.Fetch(ctx, server.URL+"/html"); !errors.Is(err, ErrNotImage) {
		t.Errorf("Fetch(html) error = %v, want %v", err, ErrNotImage)
	}
	if _, err := f.Fetch(ctx, server.URL+"/missing"); err == nil {
		t.Error("Fetch(missing) error = nil, want error")
	}
}
