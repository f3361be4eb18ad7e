package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/botcsync/internal/entity"
	"github.com/roach88/botcsync/internal/manifest"
	"github.com/roach88/botcsync/internal/store"
	"github.com/roach88/botcsync/internal/testutil"
)

func writeScrape(t *testing.T, dir string) string {
	t.Helper()
	data, err := entity.MarshalPublicList(testutil.Dataset())
	require.NoError(t, err)
	path := filepath.Join(dir, "scraped.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// seedData writes the fully fetched fixture dataset with a manifest.
func seedData(t *testing.T, dir string) *manifest.Manifest {
	t.Helper()
	st, err := store.OpenDir(filepath.Join(dir, "data"))
	require.NoError(t, err)
	require.NoError(t, st.SaveSnapshot(context.Background(), testutil.Dataset()))
	m, err := manifest.Build(testutil.Dataset(), testutil.Epoch, nil)
	require.NoError(t, err)
	require.NoError(t, manifest.Write(st.FS(), manifest.FileName, m))
	return m
}

func TestSync_PreserveOnlyRun(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	input := writeScrape(t, dir)

	out, err := execute(t, "--config", cfg, "sync", "--input", input)
	require.NoError(t, err)
	assert.Contains(t, out, "Characters: 4 (previous snapshot: 0)")
	assert.Contains(t, out, "reminders: fetched 0, preserved 0, skipped 4, failed 0, healed 0")
	assert.Contains(t, out, "Manifest: version")

	_, err = os.Stat(filepath.Join(dir, "data", store.CombinedFile))
	require.NoError(t, err)

	out, err = execute(t, "--config", cfg, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "✓")

	out, err = execute(t, "--config", cfg, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "CHARACTERS")

	out, err = execute(t, "--config", cfg, "--format", "json", "history")
	require.NoError(t, err)
	var resp struct {
		Status string `json:"status"`
		Data   []struct {
			Characters int    `json:"characters"`
			State      string `json:"state"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, 4, resp.Data[0].Characters)
	assert.Equal(t, "manifested", resp.Data[0].State)
}

func TestSync_DryRunJSON(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	input := writeScrape(t, dir)

	out, err := execute(t, "--config", cfg, "--format", "json", "sync", "--input", input, "--dry-run")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			State  string `json:"state"`
			DryRun bool   `json:"dryRun"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "merged", resp.Data.State)
	assert.True(t, resp.Data.DryRun)

	_, err = os.Stat(filepath.Join(dir, "data", store.CombinedFile))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "history.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestSync_MissingInput(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)

	out, err := execute(t, "--config", cfg, "sync", "--input", filepath.Join(dir, "nope.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")
}

func TestVerify_DetectsTampering(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	seedData(t, dir)

	_, err := execute(t, "--config", cfg, "verify")
	require.NoError(t, err)

	combined := filepath.Join(dir, "data", store.CombinedFile)
	data, err := os.ReadFile(combined)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), "a Minion becomes the Imp", "a Minion becomes the Spy", 1)
	require.NotEqual(t, string(data), tampered)
	require.NoError(t, os.WriteFile(combined, []byte(tampered), 0o644))

	out, err := execute(t, "--config", cfg, "verify")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "hash mismatch")
}

func TestPackage_CopiesVerifiedFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	m := seedData(t, dir)

	out, err := execute(t, "--config", cfg, "package")
	require.NoError(t, err)
	assert.Contains(t, out, "Packaged 4 characters")

	dist := filepath.Join(dir, "dist")
	for _, name := range []string{store.CombinedFile, manifest.FileName} {
		_, err := os.Stat(filepath.Join(dist, name))
		require.NoError(t, err, name)
	}

	out, err = execute(t, "--config", cfg, "verify", dist)
	require.NoError(t, err)
	assert.Contains(t, out, m.ContentHash)
}

func TestValidate_CleanAndBroken(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	seedData(t, dir)

	out, err := execute(t, "--config", cfg, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "No integrity issues")

	st, err := store.OpenDir(filepath.Join(dir, "data"))
	require.NoError(t, err)
	ds := testutil.Dataset()
	ds[0].Jinxes = []entity.Jinx{{ID: "ghost", Reason: "Nobody."}}
	require.NoError(t, st.SaveSnapshot(context.Background(), ds))

	out, err = execute(t, "--config", cfg, "validate")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "V002")
}

func TestValidate_StrictReportsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	seedData(t, dir)

	combined := filepath.Join(dir, "data", store.CombinedFile)
	data, err := os.ReadFile(combined)
	require.NoError(t, err)
	var records []map[string]any
	require.NoError(t, json.Unmarshal(data, &records))
	records[0]["legacyField"] = "x"
	data, err = json.Marshal(records)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(combined, data, 0o644))

	_, err = execute(t, "--config", cfg, "validate")
	require.NoError(t, err)

	out, err := execute(t, "--config", cfg, "validate", "--strict")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "V007")
	assert.Contains(t, out, "legacyField")
}

func TestSync_StrictReportsUnknownScrapedFields(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)

	data, err := entity.MarshalPublicList(testutil.Dataset())
	require.NoError(t, err)
	var records []map[string]any
	require.NoError(t, json.Unmarshal(data, &records))
	records[0]["bogus"] = "x"
	data, err = json.Marshal(records)
	require.NoError(t, err)
	input := filepath.Join(dir, "scraped.json")
	require.NoError(t, os.WriteFile(input, data, 0o644))

	out, err := execute(t, "--config", cfg, "--format", "json", "sync", "--input", input, "--dry-run", "--strict")
	require.NoError(t, err)

	var resp struct {
		Data struct {
			Issues []struct {
				Code  string `json:"code"`
				Field string `json:"field"`
			} `json:"issues"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Issues, 1)
	assert.Equal(t, "V007", resp.Data.Issues[0].Code)
	assert.Equal(t, "bogus", resp.Data.Issues[0].Field)
}

func TestCheckUpdate(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	local := seedData(t, dir)

	remote := *local
	remote.Version = "2025.04.01"
	remote.ContentHash = "ff" + local.ContentHash[2:]
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := manifest.Marshal(&remote)
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)

	out, err := execute(t, "--config", cfg, "check-update", "--remote", srv.URL+"/manifest.json")
	require.NoError(t, err)
	assert.Contains(t, out, "Update available: 2025.03.14 -> 2025.04.01")

	remote.ContentHash = local.ContentHash
	out, err = execute(t, "--config", cfg, "check-update", "--remote", srv.URL+"/manifest.json")
	require.NoError(t, err)
	assert.Contains(t, out, "Up to date")
}

func TestHistory_Disabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("history_db: \"\"\n"), 0o644))

	out, err := execute(t, "--config", path, "history")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "history is disabled")
}
