package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/qicore/engine/state"
	"github.com/nathoo/qicore/types"
)

const sectPack = "../../loader/testdata/sect"

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}
	os.Exit(m.Run())
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("QICORE_LOG_LEVEL", "warn")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate", sectPack)
	require.NoError(t, err)
	assert.Contains(t, out, "Azure Cloud Sect: 3 locations, 3 techniques, 4 items, 2 creatures, 2 characters, 2 scenes")
}

func TestValidateCommandBroken(t *testing.T) {
	_, err := execute(t, "validate", "../../loader/testdata/broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestNewInspectApply(t *testing.T) {
	db := filepath.Join(t.TempDir(), "world.db")
	base := []string{"--db", db, "--content", sectPack}

	out, err := execute(t, append(base, "new", "--id", "lin", "--name", "Lin", "--template", "outer_disciple")...)
	require.NoError(t, err)
	assert.Equal(t, "lin\n", out)

	out, err = execute(t, append(base, "inspect")...)
	require.NoError(t, err)
	assert.Equal(t, "lin\n", out)

	out, err = execute(t, append(base, "inspect", "lin")...)
	require.NoError(t, err)
	var s types.SessionState
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, "Lin", s.Character.Name)
	assert.Equal(t, "outer_court", s.Character.LocationID)

	events := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(events, []byte(
		`{"type":"environment:time_passed","sessionId":"lin","minutes":30}`+"\n\n"+
			`{"type":"weather:rain","sessionId":"lin"}`+"\n"), 0o644))
	out, err = execute(t, append(base, "apply", "lin", events)...)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	var first, second types.EventResult
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.True(t, first.Success)
	assert.False(t, second.Success)
	require.NotNil(t, second.Error)
	assert.Equal(t, "VALIDATION_ERROR", second.Error.Code)

	// The applied event was flushed on exit.
	out, err = execute(t, append(base, "inspect", "lin")...)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, state.DefaultStartTime().TotalMinutes+30, s.Time.TotalMinutes)
}

func TestUnknownTemplateStillCreates(t *testing.T) {
	db := filepath.Join(t.TempDir(), "world.db")
	out, err := execute(t, "--db", db, "--content", sectPack, "new", "--id", "wanderer", "--template", "nobody")
	require.NoError(t, err)
	assert.Equal(t, "wanderer\n", out)
}
