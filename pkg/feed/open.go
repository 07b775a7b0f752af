package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/Phillezi/ledgerwatch/pkg/ledger"
)

// DefaultURL is the ledger-update stream of a node running locally.
const DefaultURL = "http://localhost:9013/ledger-updates"

// DialOption configures Dial.
type DialOption func(*dialer)

type dialer struct {
	client *http.Client
	header http.Header
}

// WithHTTPClient sets the client used by Dial.
func WithHTTPClient(c *http.Client) DialOption {
	return func(d *dialer) {
		d.client = c
	}
}

// WithHeader adds a request header.
func WithHeader(key, value string) DialOption {
	return func(d *dialer) {
		d.header.Add(key, value)
	}
}

// Dial opens the ledger-update stream at url. The stream stays open until
// ctx is done, the server closes it, or the returned Decoder is closed.
func Dial(ctx context.Context, url string, opts ...DialOption) (*Decoder, error) {
	d := &dialer{client: http.DefaultClient, header: http.Header{}}
	for _, opt := range opts {
		opt(d)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request: %w", err)
	}
	for k, vs := range d.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to feed %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("connect to feed %s: got HTTP %d: %s", url, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return NewDecoder(resp.Body), nil
}

// Open returns a Decoder for target: "-" reads stdin, http:// and https://
// URLs are dialled, file:// URLs and plain paths are opened as files.
func Open(ctx context.Context, target string, opts ...DialOption) (*Decoder, error) {
	switch {
	case target == "-":
		return NewDecoder(io.NopCloser(os.Stdin)), nil
	case strings.HasPrefix(target, "http://"), strings.HasPrefix(target, "https://"):
		return Dial(ctx, target, opts...)
	default:
		path := strings.TrimPrefix(target, "file://")
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open feed file: %w", err)
		}
		return NewDecoder(f), nil
	}
}

type sliceSource struct {
	recs []ledger.Record
}

// FromRecords returns a Source yielding recs and then io.EOF.
func FromRecords(recs ...ledger.Record) ledger.Source {
	return &sliceSource{recs: recs}
}

func (s *sliceSource) Next(ctx context.Context) (ledger.Record, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Record{}, err
	}
	if len(s.recs) == 0 {
		return ledger.Record{}, io.EOF
	}
	rec := s.recs[0]
	s.recs = s.recs[1:]
	return rec, nil
}
