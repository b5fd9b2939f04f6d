package supabase_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vlm-gateway/internal/storage"
	"vlm-gateway/internal/supabase"
)

var _ storage.ImageStore = (*supabase.StorageClient)(nil)

// fakeBucket serves the subset of the Storage API the client uses.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	upserts []string
}

func (f *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path, ok := strings.CutPrefix(r.URL.Path, "/storage/v1/object/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPost:
		f.upserts = append(f.upserts, r.Header.Get("x-upsert"))
		if _, exists := f.objects[path]; exists {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"status":409,"message":"The resource already exists"}`))
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.objects[path] = body
		w.Write([]byte(`{"Key":"` + path + `"}`))
	case http.MethodGet:
		data, exists := f.objects[path]
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"status":404,"message":"Object not found"}`))
			return
		}
		w.Write(data)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFake(t *testing.T) (*fakeBucket, *supabase.StorageClient) {
	t.Helper()
	fake := &fakeBucket{objects: map[string][]byte{}}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client, err := supabase.NewStorageClient(server.URL+"/", "service-key", "feedback-images", "images")
	require.NoError(t, err)
	return fake, client
}

func TestStorageClient_SaveAndLoad(t *testing.T) {
	fake, client := newFake(t)

	ref, err := client.Save(context.Background(), "abc.png", []byte("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "feedback-images/images/abc.png", ref)
	assert.Equal(t, []string{"false"}, fake.upserts)

	data, err := client.Load(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestStorageClient_SaveLogsPublicURL(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	level := logrus.GetLevel()
	logrus.SetLevel(logrus.DebugLevel)
	defer logrus.SetLevel(level)

	_, client := newFake(t)
	ref, err := client.Save(context.Background(), "pub.jpg", []byte("x"), "image/jpeg")
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, ref, entry.Data["ref"])
	assert.Equal(t, client.GetPublicURL(ref), entry.Data["url"])
}

func TestStorageClient_SaveDoesNotOverwrite(t *testing.T) {
	_, client := newFake(t)

	_, err := client.Save(context.Background(), "dup.jpg", []byte("a"), "image/jpeg")
	require.NoError(t, err)
	_, err = client.Save(context.Background(), "dup.jpg", []byte("b"), "image/jpeg")
	assert.Error(t, err)
}

func TestStorageClient_LoadForeignRef(t *testing.T) {
	_, client := newFake(t)

	_, err := client.Load(context.Background(), "other-bucket/x.jpg")
	assert.Error(t, err)
}

func TestStorageClient_PublicURL(t *testing.T) {
	client, err := supabase.NewStorageClient("https://proj.supabase.co/", "k", "feedback-images", "")
	require.NoError(t, err)

	assert.Equal(t,
		"https://proj.supabase.co/storage/v1/object/public/feedback-images/a.jpg",
		client.GetPublicURL("feedback-images/a.jpg"))
}

func TestNewStorageClient_RequiresURLAndBucket(t *testing.T) {
	_, err := supabase.NewStorageClient("", "k", "b", "")
	assert.Error(t, err)
	_, err = supabase.NewStorageClient("https://x", "k", "", "")
	assert.Error(t, err)
}
