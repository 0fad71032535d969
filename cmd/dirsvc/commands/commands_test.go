package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/dirsvc/am"
	"github.com/teranos/dirsvc/directory/channelfinder"
	"github.com/teranos/dirsvc/directory/sqlitedir"
	"github.com/teranos/dirsvc/errors"
	"github.com/teranos/dirsvc/version"
)

func TestBackendFactory_Memory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.yaml")
	require.NoError(t, os.WriteFile(path, []byte("channels:\n  - name: SR:C01-MG:PS1\n  - name: SR:C02-MG:PS1\n"), 0644))

	factory, err := backendFactory(am.BackendConfig{Kind: am.BackendMemory, FixturePath: path})
	require.NoError(t, err)

	client, err := factory(context.Background())
	require.NoError(t, err)
	defer client.Close()

	got, err := client.Find(context.Background(), "SR:C02*")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "SR:C02-MG:PS1", got[0].Name)
}

func TestBackendFactory_MemoryWithoutFixtures(t *testing.T) {
	factory, err := backendFactory(am.BackendConfig{Kind: am.BackendMemory})
	require.NoError(t, err)

	client, err := factory(context.Background())
	require.NoError(t, err)
	got, err := client.Find(context.Background(), "*")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBackendFactory_MissingFixtureFile(t *testing.T) {
	factory, err := backendFactory(am.BackendConfig{Kind: am.BackendMemory, FixturePath: filepath.Join(t.TempDir(), "missing.yaml")})
	require.NoError(t, err)

	_, err = factory(context.Background())
	assert.Error(t, err)
}

func TestBackendFactory_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dir.db")
	factory, err := backendFactory(am.BackendConfig{Kind: am.BackendSQLite, DatabasePath: path})
	require.NoError(t, err)

	client, err := factory(context.Background())
	require.NoError(t, err)
	defer client.Close()
	assert.IsType(t, &sqlitedir.Store{}, client)
}

func TestBackendFactory_ChannelFinder(t *testing.T) {
	factory, err := backendFactory(am.BackendConfig{
		Kind:                am.BackendChannelFinder,
		URL:                 "http://127.0.0.1:8080/ChannelFinder",
		TimeoutSeconds:      5,
		AllowPrivateNetwork: true,
	})
	require.NoError(t, err)

	client, err := factory(context.Background())
	require.NoError(t, err)
	defer client.Close()
	assert.IsType(t, &channelfinder.Client{}, client)
}

func TestBackendFactory_UnknownKind(t *testing.T) {
	_, err := backendFactory(am.BackendConfig{Kind: "ldap"})
	assert.ErrorContains(t, err, `unknown backend kind "ldap"`)
}

func TestVersionCmd_JSON(t *testing.T) {
	var out bytes.Buffer
	VersionCmd.SetOut(&out)
	t.Cleanup(func() { VersionCmd.SetOut(nil) })
	require.NoError(t, VersionCmd.Flags().Set("json", "true"))
	t.Cleanup(func() { _ = VersionCmd.Flags().Set("json", "false") })

	require.NoError(t, VersionCmd.RunE(VersionCmd, nil))

	var info version.Info
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, version.Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: ExitOK},
		{name: "malformed envelope", err: errors.Wrap(errors.ErrMalformedEnvelope, "labels are not strings"), want: ExitMalformedTable},
		{name: "restored malformed envelope", err: errors.Mark(errors.New("payload matches no known envelope"), errors.ErrMalformedEnvelope), want: ExitMalformedTable},
		{name: "no data", err: ErrNoData, want: ExitNoData},
		{name: "missing argument", err: errors.NewMissingArgumentError("query"), want: ExitMissingArgument},
		{name: "backend down", err: errors.Wrap(errors.ErrBackendUnavailable, "dial"), want: ExitFailure},
		{name: "plain error", err: errors.New("boom"), want: ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestExitCode_Distinct(t *testing.T) {
	codes := map[int]bool{}
	for _, c := range []int{ExitOK, ExitFailure, ExitMalformedTable, ExitNoData, ExitMissingArgument} {
		assert.False(t, codes[c], "exit code %d reused", c)
		codes[c] = true
	}
}

func TestQueryArgs(t *testing.T) {
	err := QueryCmd.Args(QueryCmd, nil)
	require.Error(t, err)
	assert.True(t, errors.IsMissingArgumentError(err))
	assert.Equal(t, ExitMissingArgument, ExitCode(err))

	assert.NoError(t, QueryCmd.Args(QueryCmd, []string{"SR:*"}))

	err = QueryCmd.Args(QueryCmd, []string{"a", "b"})
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))
}
