package service

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/teranos/dirsvc/directory"
	"github.com/teranos/dirsvc/envelope"
	"github.com/teranos/dirsvc/errors"
	dirtest "github.com/teranos/dirsvc/internal/testing"
	"github.com/teranos/dirsvc/table"
)

func newService(t *testing.T, handle *directory.Handle) *Service {
	t.Helper()
	s, err := New(handle, nil, Options{Logger: zaptest.NewLogger(t).Sugar()})
	require.NoError(t, err)
	return s
}

func args(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func decode(t *testing.T, s *structpb.Struct) (*table.Table, envelope.Version) {
	t.Helper()
	tbl, v, err := envelope.DefaultRegistry().Decode(s)
	require.NoError(t, err)
	return tbl, v
}

// countingHandle returns a handle whose factory counts its calls.
func countingHandle(client directory.Client, calls *atomic.Int32) *directory.Handle {
	return directory.NewHandle(func(ctx context.Context) (directory.Client, error) {
		calls.Add(1)
		return client, nil
	})
}

func TestQuery_MissingQueryFailsBeforeBackend(t *testing.T) {
	var calls atomic.Int32
	fake := &dirtest.FakeClient{Entities: dirtest.Channels()}
	s := newService(t, countingHandle(fake, &calls))

	for name, a := range map[string]map[string]interface{}{
		"absent":     {"show": "cell"},
		"not string": {"query": 42.0},
		"null":       {"query": nil},
	} {
		t.Run(name, func(t *testing.T) {
			out, err := s.Query(context.Background(), args(t, a))
			require.Error(t, err)
			assert.Nil(t, out)
			assert.True(t, errors.IsMissingArgumentError(err))
		})
	}
	assert.Zero(t, calls.Load())
	assert.Empty(t, fake.Queries())
}

func TestQuery_InvalidOptionalArgument(t *testing.T) {
	s := newService(t, directory.StaticHandle(&dirtest.FakeClient{}))

	_, err := s.Query(context.Background(), args(t, map[string]interface{}{"query": "*", "sort": true}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestQuery_EmptyResult(t *testing.T) {
	s := newService(t, directory.StaticHandle(&dirtest.FakeClient{}))

	out, err := s.Query(context.Background(), args(t, map[string]interface{}{"query": "NOPE*", "owner": true}))
	require.NoError(t, err)

	tbl, v := decode(t, out)
	assert.Equal(t, envelope.V2Nested, v)
	assert.Equal(t, []string{table.LabelChannel}, tbl.Labels)
	assert.Zero(t, tbl.Rows)
	for _, c := range tbl.Columns {
		assert.Zero(t, c.Len())
	}
}

func TestQuery_OwnerColumnGating(t *testing.T) {
	s := newService(t, directory.StaticHandle(&dirtest.FakeClient{Entities: dirtest.Channels()}))

	out, err := s.Query(context.Background(), args(t, map[string]interface{}{"query": "*"}))
	require.NoError(t, err)
	tbl, _ := decode(t, out)
	assert.NotContains(t, tbl.Labels, table.LabelOwner)

	out, err = s.Query(context.Background(), args(t, map[string]interface{}{"query": "*", "owner": nil}))
	require.NoError(t, err)
	tbl, _ = decode(t, out)
	owners, ok := tbl.Column(table.LabelOwner)
	require.True(t, ok)
	assert.Equal(t, tbl.Rows, owners.Len())
	assert.Equal(t, []string{"ops", "physics", ""}, owners.Text)
}

func TestQuery_ShowSortOwner(t *testing.T) {
	fake := &dirtest.FakeClient{Entities: dirtest.Channels()}
	s := newService(t, directory.StaticHandle(fake))

	out, err := s.Query(context.Background(), args(t, map[string]interface{}{
		"query":      "SR:*",
		"show":       "device, @owner,archived,bogus",
		"sort":       "cell",
		"owner":      true,
		"parameters": "ignored",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"SR:*"}, fake.Queries())

	tbl, _ := decode(t, out)
	assert.Equal(t, []string{"channel", "@owner", "device", "archived"}, tbl.Labels)
	assert.Equal(t, []string{"SR:C02-MG:PS1", "SR:C01-MG:PS1", "SR:C03-BI:BPM1"}, tbl.Columns[0].Text)
	assert.Equal(t, []string{"physics", "ops", ""}, tbl.Columns[1].Text)
	assert.Equal(t, []string{"PS", "PS", "BPM"}, tbl.Columns[2].Text)
	assert.Equal(t, []bool{true, true, false}, tbl.Columns[3].Bool)
}

func TestQuery_OwnerFlagSurvivesShow(t *testing.T) {
	s := newService(t, directory.StaticHandle(&dirtest.FakeClient{Entities: dirtest.Channels()}))

	out, err := s.Query(context.Background(), args(t, map[string]interface{}{
		"query": "*",
		"show":  "unit",
		"owner": true,
	}))
	require.NoError(t, err)

	tbl, _ := decode(t, out)
	assert.Equal(t, []string{"channel", "@owner", "unit"}, tbl.Labels)
	assert.Equal(t, []string{"ops", "physics", ""}, tbl.Columns[1].Text)
	assert.Equal(t, []string{table.Missing, table.Missing, "mm"}, tbl.Columns[2].Text)
}

func TestQuery_BackendUnavailable(t *testing.T) {
	var calls atomic.Int32
	h := directory.NewHandle(func(ctx context.Context) (directory.Client, error) {
		calls.Add(1)
		return nil, errors.New("Unable to create ChannelFinder web service client")
	})
	s := newService(t, h)

	for i := 0; i < 2; i++ {
		out, err := s.Query(context.Background(), args(t, map[string]interface{}{"query": "*"}))
		require.Error(t, err)
		assert.Nil(t, out)
		assert.True(t, errors.IsBackendUnavailableError(err))
		assert.Equal(t, "Unable to create ChannelFinder web service client", err.Error())
	}
	assert.Equal(t, int32(2), calls.Load(), "failed initialisation is retried")
}

func TestQuery_BackendErrorPropagatesUnchanged(t *testing.T) {
	s := newService(t, directory.StaticHandle(&dirtest.FakeClient{Err: errors.New("index timeout")}))

	out, err := s.Query(context.Background(), args(t, map[string]interface{}{"query": "*"}))
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Equal(t, "index timeout", err.Error())
	assert.False(t, errors.IsBackendUnavailableError(err))
}

func TestQuery_Versions(t *testing.T) {
	fake := &dirtest.FakeClient{Entities: dirtest.Channels()}
	s := newService(t, directory.StaticHandle(fake))

	out, err := s.Query(context.Background(), args(t, map[string]interface{}{"query": "*", "version": "v1"}))
	require.NoError(t, err)
	_, v := decode(t, out)
	assert.Equal(t, envelope.V1Flat, v)
	assert.Equal(t, envelope.TypeName, out.Fields[envelope.FlatTypeField].GetStringValue())

	_, err = s.Query(context.Background(), args(t, map[string]interface{}{"query": "*", "version": "7"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownVersion))
	assert.Len(t, fake.Queries(), 1, "unknown version fails before the backend is used")
}

func TestSetDefaultVersion(t *testing.T) {
	s := newService(t, directory.StaticHandle(&dirtest.FakeClient{Entities: dirtest.Channels()}))
	assert.Equal(t, envelope.V2Nested, s.DefaultVersion())

	require.NoError(t, s.SetDefaultVersion(envelope.V1Flat))
	out, err := s.Query(context.Background(), args(t, map[string]interface{}{"query": "*"}))
	require.NoError(t, err)
	_, v := decode(t, out)
	assert.Equal(t, envelope.V1Flat, v)

	err = s.SetDefaultVersion("9")
	require.Error(t, err)
	assert.Equal(t, envelope.V1Flat, s.DefaultVersion())
}

func TestNew(t *testing.T) {
	_, err := New(nil, nil, Options{})
	assert.Error(t, err)

	_, err = New(directory.StaticHandle(&dirtest.FakeClient{}), nil, Options{DefaultVersion: "3"})
	assert.True(t, errors.Is(err, errors.ErrUnknownVersion))
}

func TestRequestArgsRoundTrip(t *testing.T) {
	for _, req := range []Request{
		{Query: "*"},
		{Query: "SR:*", Show: "", ShowSet: true},
		{Query: "SR:*", Show: "cell,device", ShowSet: true, Sort: "cell", Owner: true, Version: envelope.V1Flat},
	} {
		got, err := ParseRequest(req.Args())
		require.NoError(t, err)
		assert.Equal(t, req, got)
	}
}

func TestParseRequest_NullShowIsAbsent(t *testing.T) {
	req, err := ParseRequest(args(t, map[string]interface{}{"query": "*", "show": nil, "version": "V2"}))
	require.NoError(t, err)
	assert.False(t, req.ShowSet)
	assert.Equal(t, envelope.V2Nested, req.Version)
}
