package rpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/teranos/dirsvc/directory"
	"github.com/teranos/dirsvc/envelope"
	"github.com/teranos/dirsvc/errors"
	dirtest "github.com/teranos/dirsvc/internal/testing"
	"github.com/teranos/dirsvc/service"
)

type harness struct {
	client *Client
	cancel context.CancelFunc
	served chan error
}

func startServer(t *testing.T, handle *directory.Handle, srvOpts ServerOptions, cliOpts ClientOptions) *harness {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()

	svc, err := service.New(handle, nil, service.Options{Logger: log})
	require.NoError(t, err)

	srvOpts.Logger = log
	srv := NewServer(svc, srvOpts)
	lis := bufconn.Listen(1 << 20)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, lis) }()

	cliOpts.Logger = log
	cliOpts.DialOptions = append(cliOpts.DialOptions, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	client, err := Dial("passthrough:///bufnet", cliOpts)
	require.NoError(t, err)

	h := &harness{client: client, cancel: cancel, served: served}
	t.Cleanup(func() {
		client.Close()
		cancel()
		<-served
	})
	return h
}

func channelsHandle() *directory.Handle {
	return directory.StaticHandle(&dirtest.FakeClient{Entities: dirtest.Channels()})
}

func TestQuery_EndToEnd(t *testing.T) {
	h := startServer(t, channelsHandle(), ServerOptions{Version: "1.3.0"}, ClientOptions{ServerConstraint: "^1.2"})

	for _, v := range []envelope.Version{envelope.V1Flat, envelope.V2Nested} {
		t.Run(string(v), func(t *testing.T) {
			tbl, got, err := h.client.Table(context.Background(), service.Request{
				Query:   "*",
				Show:    "cell,aligned",
				ShowSet: true,
				Sort:    "cell",
				Version: v,
			})
			require.NoError(t, err)
			assert.Equal(t, v, got)
			assert.Equal(t, []string{"channel", "cell", "aligned"}, tbl.Labels)
			assert.Equal(t, []string{"SR:C02-MG:PS1", "SR:C01-MG:PS1", "SR:C03-BI:BPM1"}, tbl.Columns[0].Text)
			assert.Equal(t, []string{"", "C01", "C03"}, tbl.Columns[1].Text)
			assert.Equal(t, []bool{true, false, false}, tbl.Columns[2].Bool)
		})
	}
}

func TestQuery_MissingArgument(t *testing.T) {
	h := startServer(t, channelsHandle(), ServerOptions{}, ClientOptions{})

	var trailer metadata.MD
	err := h.client.conn.Invoke(context.Background(), QueryMethod, &structpb.Struct{}, new(structpb.Struct), grpc.Trailer(&trailer))
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	restored := fromStatus(err, trailer)
	assert.True(t, errors.IsMissingArgumentError(restored))
	assert.Contains(t, restored.Error(), "query")
}

func TestQuery_BackendUnavailable(t *testing.T) {
	h := startServer(t, directory.NewHandle(func(ctx context.Context) (directory.Client, error) {
		return nil, errors.New("Unable to create ChannelFinder web service client")
	}), ServerOptions{}, ClientOptions{})

	_, err := h.client.Query(context.Background(), service.Request{Query: "*"})
	require.Error(t, err)
	assert.True(t, errors.IsBackendUnavailableError(err))
	assert.Equal(t, "Unable to create ChannelFinder web service client", err.Error())
}

func TestQuery_LabelCollision(t *testing.T) {
	handle := directory.StaticHandle(&dirtest.FakeClient{Entities: []directory.Entity{
		{Name: "a", Properties: []directory.Property{{Name: "labels", Value: "x"}}},
	}})
	h := startServer(t, handle, ServerOptions{}, ClientOptions{})

	_, err := h.client.Query(context.Background(), service.Request{Query: "*", Version: envelope.V1Flat})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrLabelCollision))

	tbl, _, err := h.client.Table(context.Background(), service.Request{Query: "*", Version: envelope.V2Nested})
	require.NoError(t, err)
	assert.Equal(t, []string{"channel", "labels"}, tbl.Labels)
}

func TestQuery_RateLimited(t *testing.T) {
	h := startServer(t, channelsHandle(), ServerOptions{MaxRequestsPerSecond: 0.001}, ClientOptions{})

	_, err := h.client.Query(context.Background(), service.Request{Query: "*"})
	require.NoError(t, err)

	_, err = h.client.Query(context.Background(), service.Request{Query: "*"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestQuery_ServerVersionConstraint(t *testing.T) {
	h := startServer(t, channelsHandle(), ServerOptions{Version: "1.3.0"}, ClientOptions{ServerConstraint: ">= 2"})

	_, err := h.client.Query(context.Background(), service.Request{Query: "*"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires >= 2")
}

func TestHealthAndGracefulStop(t *testing.T) {
	h := startServer(t, channelsHandle(), ServerOptions{}, ClientOptions{})

	require.NoError(t, h.client.Health(context.Background()))

	h.cancel()
	select {
	case err := <-h.served:
		assert.NoError(t, err)
		h.served <- nil // let cleanup drain
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
		kind string
	}{
		{errors.NewMissingArgumentError("query"), codes.InvalidArgument, "missing_argument"},
		{errors.Wrap(errors.ErrUnknownVersion, "version \"7\""), codes.InvalidArgument, "unknown_version"},
		{errors.Mark(errors.New("dial failed"), errors.ErrBackendUnavailable), codes.Unavailable, "backend_unavailable"},
		{errors.Wrap(errors.ErrLabelCollision, "labels"), codes.FailedPrecondition, "label_collision"},
		{errors.NewUnsupportedColumnTypeError("x", 7), codes.Internal, "unsupported_column_type"},
		{errors.WithStack(context.DeadlineExceeded), codes.DeadlineExceeded, ""},
		{errors.New("index timeout"), codes.Unknown, ""},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			st, trailer := toStatus(tt.err)
			assert.Equal(t, tt.code, st.Code())
			assert.Equal(t, tt.err.Error(), st.Message())
			if tt.kind == "" {
				assert.Nil(t, trailer)
				return
			}
			assert.Equal(t, []string{tt.kind}, trailer.Get(ErrorKindTrailer))
		})
	}
}
