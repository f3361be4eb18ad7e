package manifest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hack-pad/hackpadfs"
	"github.com/hack-pad/hackpadfs/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/botcsync/internal/store"
	"github.com/roach88/botcsync/internal/testutil"
)

// writePackage saves the fixture dataset and its manifest to a fresh mem FS.
func writePackage(t *testing.T) (hackpadfs.FS, *Manifest) {
	t.Helper()
	fsys, err := mem.NewFS()
	require.NoError(t, err)

	s := store.New(fsys)
	require.NoError(t, s.SaveSnapshot(context.Background(), testutil.Dataset()))

	m, err := Build(testutil.Dataset(), testutil.Epoch, nil)
	require.NoError(t, err)
	require.NoError(t, Write(fsys, FileName, m))
	return fsys, m
}

func TestVerifyPackage_OK(t *testing.T) {
	fsys, m := writePackage(t)

	v, err := VerifyPackage(fsys)
	require.NoError(t, err)
	assert.Equal(t, m.ContentHash, v.Computed)
	assert.Equal(t, 4, v.Characters)
}

func TestVerifyPackage_TamperedCharacters(t *testing.T) {
	fsys, _ := writePackage(t)

	data, err := hackpadfs.ReadFile(fsys, store.CombinedFile)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), "Washerwoman", "Laundress", 1)
	require.NoError(t, store.WriteAtomic(fsys, store.CombinedFile, []byte(tampered)))

	_, err = VerifyPackage(fsys)
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestVerifyPackage_RejectsTruncatedDigest(t *testing.T) {
	fsys, m := writePackage(t)
	m.ContentHash = m.ContentHash[:16]
	require.NoError(t, Write(fsys, FileName, m))

	_, err := VerifyPackage(fsys)
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestVerifyPackage_MissingFiles(t *testing.T) {
	fsys, err := mem.NewFS()
	require.NoError(t, err)

	_, err = VerifyPackage(fsys)
	assert.ErrorIs(t, err, hackpadfs.ErrNotExist)
}

func TestPackage_CopiesVerifiedFiles(t *testing.T) {
	src, m := writePackage(t)
	dst, err := mem.NewFS()
	require.NoError(t, err)

	got, err := Package(src, dst)
	require.NoError(t, err)
	assert.Equal(t, m.ContentHash, got.ContentHash)

	v, err := VerifyPackage(dst)
	require.NoError(t, err)
	assert.Equal(t, m.ContentHash, v.Computed)
}

func TestCheckUpdate(t *testing.T) {
	local, err := Build(testutil.Dataset(), testutil.Epoch, nil)
	require.NoError(t, err)

	tests := []struct {
		name      string
		local     *Manifest
		remote    string
		wantAvail bool
	}{
		{"same hash", local, local.ContentHash, false},
		{"different hash", local, strings.Repeat("0", HashLength), true},
		{"no local manifest", nil, local.ContentHash, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"schemaVersion":1,"version":"2025.04.01","contentHash":"` + tt.remote + `"}`))
			}))
			defer srv.Close()

			status, err := CheckUpdate(context.Background(), nil, tt.local, srv.URL+"/manifest.json")
			require.NoError(t, err)
			assert.Equal(t, tt.wantAvail, status.UpdateAvailable)
			assert.Equal(t, "2025.04.01", status.RemoteVersion)
			assert.Equal(t, tt.remote, status.RemoteHash)
		})
	}
}

func TestCheckUpdate_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := CheckUpdate(context.Background(), nil, nil, srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestCheckUpdate_RemoteWithoutHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"version":"x"}`))
	}))
	defer srv.Close()

	_, err := CheckUpdate(context.Background(), nil, nil, srv.URL)
	assert.Error(t, err)
}
