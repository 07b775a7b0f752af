package feed

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/Phillezi/ledgerwatch/pkg/ledger"
)

const maxLineSize = 1 << 20

type item struct {
	rec ledger.Record
	err error
}

// Decoder is a ledger.Source over a newline-delimited JSON stream. Reading
// happens on its own goroutine so Next can return as soon as its context is
// done, even when the underlying reader is blocked.
type Decoder struct {
	r     io.Reader
	items chan item
	done  chan struct{}

	startOnce sync.Once
	closeOnce sync.Once

	err error // terminal error, set by Next
}

var _ ledger.Source = (*Decoder)(nil)

// NewDecoder returns a Decoder reading from r. If r is an io.Closer it is
// closed by Close.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:     r,
		items: make(chan item),
		done:  make(chan struct{}),
	}
}

func (d *Decoder) readLoop() {
	defer close(d.items)

	send := func(it item) bool {
		select {
		case d.items <- it:
			return true
		case <-d.done:
			return false
		}
	}

	sc := bufio.NewScanner(d.r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		rec, err := decodeRecord(line)
		if !send(item{rec: rec, err: err}) || err != nil {
			return
		}
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	send(item{err: err})
}

// Next returns the next record, io.EOF at the end of the stream, the read or
// decode error that stopped the stream, or ctx.Err().
func (d *Decoder) Next(ctx context.Context) (ledger.Record, error) {
	if d.err != nil {
		return ledger.Record{}, d.err
	}
	d.startOnce.Do(func() { go d.readLoop() })

	select {
	case it, ok := <-d.items:
		if !ok {
			d.err = io.EOF
			return ledger.Record{}, d.err
		}
		if it.err != nil {
			d.err = it.err
			return ledger.Record{}, d.err
		}
		return it.rec, nil
	case <-ctx.Done():
		return ledger.Record{}, ctx.Err()
	}
}

// Close stops the read loop and closes the underlying reader if it is an
// io.Closer.
func (d *Decoder) Close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.done)
		if c, ok := d.r.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}
