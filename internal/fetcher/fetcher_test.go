package fetcher

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/docloader/internal/config"
	"github.com/timmy/docloader/internal/domain"
)

// buildZip returns an in-memory archive holding the given name -> content entries.
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

type recordingMirror struct {
	keys []string
	err  error
}

func (m *recordingMirror) MirrorArchive(ctx context.Context, documentType, link, suffix string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	key := documentType + "/" + link + suffix
	m.keys = append(m.keys, key)
	return key, nil
}

func TestJobs_BuildsURLs(t *testing.T) {
	f := New(&Config{APIURL: "http://data.riksdagen.se", DataPath: t.TempDir()}, nil)
	dt := config.DocumentTypeConfig{
		Name:       "motions",
		Links:      []string{"mot-2014-2017.json", "mot-2010-2013.json"},
		URLPath:    "/dataset/dokument/",
		FileSuffix: ".zip",
	}

	jobs := f.Jobs(dt)
	require.Len(t, jobs, 2)
	assert.Equal(t, "http://data.riksdagen.se/dataset/dokument/mot-2014-2017.json.zip", jobs[0].URL)
	assert.Equal(t, "mot-2010-2013.json", jobs[1].Link)
	assert.Equal(t, "motions", jobs[1].DocumentType)
}

func TestResetFolder_RemovesStaleFiles(t *testing.T) {
	dataPath := t.TempDir()
	dt := config.DocumentTypeConfig{Name: "motions", DataFolder: "mot"}
	dir := filepath.Join(dataPath, "mot")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.json"), []byte("{}"), 0644))

	f := New(&Config{DataPath: dataPath}, nil)
	got, err := f.ResetFolder(dt)
	require.NoError(t, err)

	assert.Equal(t, dir, got)
	assert.Empty(t, listDir(t, dir))
}

func TestFetch_TwoLinksThreeFilesEach(t *testing.T) {
	archives := map[string][]byte{
		"/dataset/a.zip": buildZip(t, map[string]string{"a1.json": "{}", "a2.json": "{}", "a3.json": "{}"}),
		"/dataset/b.zip": buildZip(t, map[string]string{"b1.json": "{}", "b2.json": "{}", "b3.json": "{}"}),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := archives[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(data)
	}))
	defer srv.Close()

	dataPath := t.TempDir()
	dt := config.DocumentTypeConfig{Name: "motions", Links: []string{"a", "b"}, URLPath: "/dataset/", FileSuffix: ".zip"}
	mirror := &recordingMirror{}
	f := New(&Config{APIURL: srv.URL, DataPath: dataPath}, mirror)

	dir, err := f.ResetFolder(dt)
	require.NoError(t, err)

	total := 0
	for _, job := range f.Jobs(dt) {
		n, err := f.Fetch(context.Background(), job, dt.FileSuffix, dir)
		require.NoError(t, err)
		total += n
	}

	assert.Equal(t, 6, total)
	assert.ElementsMatch(t, []string{"a1.json", "a2.json", "a3.json", "b1.json", "b2.json", "b3.json"}, listDir(t, dir))
	assert.Equal(t, []string{"motions/a.zip", "motions/b.zip"}, mirror.keys)
}

func TestFetch_Non200IsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("maintenance"))
	}))
	defer srv.Close()

	f := New(&Config{APIURL: srv.URL, DataPath: t.TempDir()}, nil)
	job := domain.FetchJob{DocumentType: "motions", Link: "a", URL: srv.URL + "/a.zip"}

	_, err := f.Fetch(context.Background(), job, ".zip", t.TempDir())
	require.Error(t, err)

	var transportErr *domain.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, http.StatusServiceUnavailable, transportErr.StatusCode)
	assert.Equal(t, "maintenance", transportErr.Body)
	assert.Equal(t, srv.URL+"/a.zip", transportErr.URL)
}

func TestFetch_InvalidArchiveIsExtractionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a zip"))
	}))
	defer srv.Close()

	f := New(&Config{APIURL: srv.URL}, nil)
	job := domain.FetchJob{DocumentType: "votes", Link: "v2016", URL: srv.URL}

	_, err := f.Fetch(context.Background(), job, ".zip", t.TempDir())

	var extractErr *domain.ExtractionError
	require.True(t, errors.As(err, &extractErr))
	assert.Equal(t, "votes", extractErr.DocumentType)
	assert.Equal(t, "v2016", extractErr.Link)
}

func TestFetch_MirrorFailureStopsFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buildZip(t, map[string]string{"x.json": "{}"}))
	}))
	defer srv.Close()

	mirrorErr := errors.New("bucket gone")
	f := New(&Config{APIURL: srv.URL}, &recordingMirror{err: mirrorErr})
	dir := t.TempDir()

	_, err := f.Fetch(context.Background(), domain.FetchJob{URL: srv.URL}, ".zip", dir)
	assert.ErrorIs(t, err, mirrorErr)
	assert.Empty(t, listDir(t, dir))
}

func TestExtractArchive_RejectsPathTraversal(t *testing.T) {
	data := buildZip(t, map[string]string{"../escape.json": "{}"})
	parent := t.TempDir()
	dir := filepath.Join(parent, "inner")
	require.NoError(t, os.MkdirAll(dir, 0755))

	_, err := ExtractArchive(data, dir)

	var extractErr *domain.ExtractionError
	require.True(t, errors.As(err, &extractErr))
	assert.Equal(t, "../escape.json", extractErr.Entry)
	_, statErr := os.Stat(filepath.Join(parent, "escape.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtractArchive_KeepsNestedNames(t *testing.T) {
	data := buildZip(t, map[string]string{"sub/doc.json": `{"a":1}`})
	dir := t.TempDir()

	written, err := ExtractArchive(data, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"sub/doc.json"}, written)

	content, err := os.ReadFile(filepath.Join(dir, "sub", "doc.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(content))
}
