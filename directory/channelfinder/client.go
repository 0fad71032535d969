// Package channelfinder queries a ChannelFinder directory over its REST API.
//
// Find returns channels in the order of the service's response array.
package channelfinder

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/dirsvc/directory"
	"github.com/teranos/dirsvc/errors"
	"github.com/teranos/dirsvc/internal/httpclient"
)

const channelsPath = "/resources/channels"

// maxErrorBody bounds how much of a failed response is quoted in errors.
const maxErrorBody = 512

// Options configures a Client.
type Options struct {
	Timeout             time.Duration
	AllowPrivateNetwork bool

	// HTTP overrides the client built from Timeout and AllowPrivateNetwork.
	HTTP   *httpclient.Client
	Logger *zap.SugaredLogger
}

// Client is a directory.Client for a ChannelFinder service.
type Client struct {
	base   *url.URL
	http   *httpclient.Client
	logger *zap.SugaredLogger
}

var _ directory.Client = (*Client)(nil)

// New creates a client for the service rooted at baseURL,
// e.g. https://cf.example.org/ChannelFinder.
func New(baseURL string, opts Options) (*Client, error) {
	if baseURL == "" {
		return nil, errors.WithHint(errors.New("channelfinder URL is empty"), "set backend.url")
	}
	hc := opts.HTTP
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = httpclient.New(timeout, httpclient.Options{AllowPrivateNetwork: opts.AllowPrivateNetwork})
	}
	base, err := hc.ParseURL(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid channelfinder URL %s", baseURL)
	}
	base.Path = strings.TrimSuffix(base.Path, "/")

	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{base: base, http: hc, logger: log}, nil
}

// wireChannel is one element of the /resources/channels response.
type wireChannel struct {
	Name       string `json:"name"`
	Owner      string `json:"owner"`
	Properties []struct {
		Name  string `json:"name"`
		Owner string `json:"owner"`
		Value string `json:"value"`
	} `json:"properties"`
	Tags []struct {
		Name  string `json:"name"`
		Owner string `json:"owner"`
	} `json:"tags"`
}

// Find queries the service. Name globs go out as one comma separated ~name
// parameter, tags as repeated ~tag parameters and properties as name=glob.
func (c *Client) Find(ctx context.Context, query string) ([]directory.Entity, error) {
	q, err := directory.ParseQuery(query)
	if err != nil {
		return nil, err
	}
	if q.Empty() {
		return nil, nil
	}

	u := *c.base
	u.Path += channelsPath
	u.RawQuery = Params(q).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build channelfinder request")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "channelfinder request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, errors.Newf("channelfinder returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var channels []wireChannel
	if err := json.NewDecoder(resp.Body).Decode(&channels); err != nil {
		return nil, errors.Wrap(err, "failed to decode channelfinder response")
	}

	c.logger.Debugw("ChannelFinder query",
		"url", u.String(),
		"rows", len(channels),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return toEntities(channels), nil
}

// Params renders q as ChannelFinder query parameters.
func Params(q directory.Query) url.Values {
	v := url.Values{}
	if len(q.Names) > 0 {
		v.Set("~name", strings.Join(q.Names, ","))
	}
	for _, tag := range q.Tags {
		v.Add("~tag", tag)
	}
	for _, p := range q.Properties {
		v.Add(p.Name, p.Value)
	}
	return v
}

func toEntities(channels []wireChannel) []directory.Entity {
	if len(channels) == 0 {
		return nil
	}
	out := make([]directory.Entity, len(channels))
	for i, ch := range channels {
		e := directory.Entity{Name: ch.Name, Owner: ch.Owner}
		for _, p := range ch.Properties {
			e.Properties = append(e.Properties, directory.Property{Name: p.Name, Value: p.Value})
		}
		for _, t := range ch.Tags {
			e.Tags = append(e.Tags, t.Name)
		}
		out[i] = e
	}
	return out
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
