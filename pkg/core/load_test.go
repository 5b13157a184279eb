package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeUnit(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadUnits_DirectoryOrdersByLevel(t *testing.T) {
	require.NoError(t, RegisterTask("load_test.noop", func(*App) error { return nil }))

	dir := t.TempDir()
	writeUnit(t, filepath.Join(dir, "a.toml"), "name = \"a\"\ntask = \"load_test.noop\"\nlevel = 1\n")
	writeUnit(t, filepath.Join(dir, "b.yaml"), "name: b\ntask: load_test.noop\nlevel: 5\n")
	writeUnit(t, filepath.Join(dir, "sub", "c.yml"), "name: c\ntask: load_test.noop\nlevel: 5\n")
	writeUnit(t, filepath.Join(dir, "d.toml"), "task = \"load_test.noop\"\n")
	writeUnit(t, filepath.Join(dir, "notes.txt"), "ignored")

	list, err := LoadUnits(dir)
	require.NoError(t, err)

	var names []string
	for _, h := range list {
		names = append(names, h.Name())
	}
	require.Equal(t, []string{"b", "c", "a", "load_test.noop"}, names)
	require.Equal(t, filepath.Join(dir, "b.yaml"), list[0].Source())
	require.Equal(t, 5, list[0].Level())
}

func TestLoadUnits_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadUnits(filepath.Join(dir, "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)

	writeUnit(t, filepath.Join(dir, "unknown.toml"), "task = \"load_test.nobody\"\n")
	_, err = LoadUnits(filepath.Join(dir, "unknown.toml"))
	require.ErrorIs(t, err, ErrUnknownTask)

	writeUnit(t, filepath.Join(dir, "empty", "x.toml"), "name = \"x\"\n")
	_, err = LoadUnits(filepath.Join(dir, "empty"))
	require.ErrorContains(t, err, "task is required")
}

func TestRegisterTask_RejectsNonTasks(t *testing.T) {
	require.Error(t, RegisterTask("load_test.bad", 3))
	_, ok := LookupTask("load_test.bad")
	require.False(t, ok)
}

func TestTasksLoad_RunsUnitsDuringInit(t *testing.T) {
	rec := &recorder{}
	require.NoError(t, RegisterTask("load_test.mark", func(ctx context.Context, a *App) error {
		rec.mark(a.Config.GetString("stage"))
		return nil
	}))

	dir := t.TempDir()
	writeUnit(t, filepath.Join(dir, "one.toml"), "task = \"load_test.mark\"\n")

	app := New()
	app.Config.Set("stage", "loaded")
	require.NoError(t, app.Tasks().Load(dir))
	require.Equal(t, 1, app.Tasks().Len())

	fut, err := app.Init(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, awaitInit(t, fut))
	require.Equal(t, []string{"loaded"}, rec.list())
}
