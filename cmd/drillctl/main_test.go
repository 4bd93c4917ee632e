package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/phrazzld/drill-api/internal/app"
	"github.com/phrazzld/drill-api/internal/config"
	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/platform/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const curriculumJSON = `{
  "lessons": [
    {"id": "L1", "title": "Greetings", "cards": [
      {"id": "c1", "prompt": "hello", "accepted_answers": ["hola"]},
      {"id": "c2", "prompt": "goodbye", "accepted_answers": ["adiós", "chao"]},
      {"id": "c3", "prompt": "thanks", "accepted_answers": ["gracias"]}
    ]},
    {"id": "L2", "title": "Food", "cards": [
      {"id": "c4", "prompt": "bread", "accepted_answers": ["pan"]},
      {"id": "c5", "prompt": "water", "accepted_answers": ["agua"]}
    ]}
  ]
}`

type cliFixture struct {
	dbPath string
	dir    string
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	dir := t.TempDir()
	return &cliFixture{dbPath: filepath.Join(dir, "drill.db"), dir: dir}
}

// run executes drillctl against the fixture database and returns stdout.
func (f *cliFixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	base := []string{"--driver", database.DriverSQLite, "--database-url", f.dbPath, "--log-level", "error"}
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append(args, base...))

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func (f *cliFixture) writeCurriculum(t *testing.T) string {
	t.Helper()
	path := filepath.Join(f.dir, "es.json")
	require.NoError(t, os.WriteFile(path, []byte(curriculumJSON), 0o600))
	return path
}

func (f *cliFixture) components(t *testing.T) *app.Components {
	t.Helper()

	cfg := &config.Config{
		Database: config.DatabaseConfig{Driver: database.DriverSQLite, URL: f.dbPath},
		SRS:      config.SRSConfig{IntervalLadderDays: []int{1, 2, 4}},
		Schedule: config.ScheduleConfig{WarmupSize: 2, SubLessonSize: 4, ReviewIntervals: []int{1, 2}},
	}

	c, err := app.Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMigrate(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run(t, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "migrate up: ok\n", out)

	out, err = f.run(t, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "migrate status: ok")

	_, err = f.run(t, "migrate", "sideways")
	assert.Error(t, err)
}

func TestImportScheduleAndProgress(t *testing.T) {
	f := newCLIFixture(t)
	path := f.writeCurriculum(t)

	out, err := f.run(t, "import", "es", path)
	require.NoError(t, err)
	assert.Equal(t, "imported 2 lessons (5 cards) into es\n", out)

	out, err = f.run(t, "schedule", "es")
	require.NoError(t, err)
	assert.Contains(t, out, "LESSON")
	assert.Contains(t, out, "warmup")
	assert.Contains(t, out, "L2")

	out, err = f.run(t, "schedule", "es", "L1", "--json")
	require.NoError(t, err)
	var lessons []struct {
		LessonID string `json:"lesson_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &lessons))
	require.Len(t, lessons, 1)
	assert.Equal(t, "L1", lessons[0].LessonID)

	_, err = f.run(t, "schedule", "es", "L9")
	assert.Error(t, err)

	out, err = f.run(t, "progress", "es")
	require.NoError(t, err)
	assert.Contains(t, out, "Greetings")
	assert.Contains(t, out, "seed")
	assert.Contains(t, out, "0/3")
}

func TestImport_InvalidFile(t *testing.T) {
	f := newCLIFixture(t)

	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "lessons:\n  - id: L1\n"},
		{name: "no lessons", content: `{"lessons": []}`},
		{name: "unknown field", content: `{"lessons": [], "version": 2}`},
		{name: "duplicate lesson", content: `{"lessons": [
			{"id": "L1", "cards": [{"id": "c1", "prompt": "a", "accepted_answers": ["b"]}]},
			{"id": "L1", "cards": [{"id": "c2", "prompt": "a", "accepted_answers": ["b"]}]}
		]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(f.dir, "bad.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := f.run(t, "import", "es", path)
			assert.Error(t, err)
		})
	}

	_, err := f.run(t, "import", "es", filepath.Join(f.dir, "missing.json"))
	assert.Error(t, err)
}

func TestReset(t *testing.T) {
	f := newCLIFixture(t)
	_, err := f.run(t, "import", "es", f.writeCurriculum(t))
	require.NoError(t, err)

	ctx := context.Background()
	c := f.components(t)
	exposures := []struct {
		lessonID string
		cardID   string
	}{
		{lessonID: "L1", cardID: "c1"},
		{lessonID: "L2", cardID: "c4"},
	}
	for _, e := range exposures {
		key := domain.LessonKey{LessonID: e.lessonID, LanguageID: "es"}
		_, err := c.MasteryService.RecordExposure(ctx, key, e.cardID)
		require.NoError(t, err)
	}
	require.NoError(t, c.Close())

	_, err = f.run(t, "reset", "es")
	assert.ErrorIs(t, err, errResetNotConfirmed)

	out, err := f.run(t, "reset", "es", "L1", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "reset es/L1\n", out)

	out, err = f.run(t, "reset", "es", "-y")
	require.NoError(t, err)
	assert.Equal(t, "reset es: 1 lessons cleared\n", out)
}
