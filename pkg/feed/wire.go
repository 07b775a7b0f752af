// Package feed provides ledger.Source implementations reading
// newline-delimited JSON ledger updates from files, stdin or an HTTP stream.
//
// Every line is one record:
//
//	{"kind":"begin","marker":{"milestone_index":1,"consumed_count":1,"created_count":0}}
//	{"kind":"consumed","spent":{"output":{"output_id":"0x.."},"transaction_id_spent":"0x.."}}
//	{"kind":"end","marker":{"milestone_index":1,"consumed_count":1,"created_count":0}}
package feed

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Phillezi/ledgerwatch/pkg/ledger"
)

type wireRecord struct {
	Kind   string         `json:"kind"`
	Marker *ledger.Marker `json:"marker,omitempty"`
	Spent  *ledger.Spent  `json:"spent,omitempty"`
	Output *ledger.Output `json:"output,omitempty"`
}

// decodeRecord decodes one line. A kind it does not know decodes to a
// ledger.KindUnknown record, which the milestone protocol rejects.
func decodeRecord(line []byte) (ledger.Record, error) {
	var w wireRecord
	if err := json.Unmarshal(line, &w); err != nil {
		return ledger.Record{}, fmt.Errorf("decode ledger update: %w", err)
	}

	kind := ledger.ParseKind(w.Kind)
	switch kind {
	case ledger.KindBegin, ledger.KindEnd:
		if w.Marker == nil {
			return ledger.Record{}, fmt.Errorf("decode ledger update: %s record without marker", kind)
		}
		return ledger.Record{Kind: kind, Marker: *w.Marker}, nil
	case ledger.KindConsumed:
		if w.Spent == nil {
			return ledger.Record{}, fmt.Errorf("decode ledger update: consumed record without spent output")
		}
		return ledger.ConsumedRecord(*w.Spent), nil
	case ledger.KindCreated:
		if w.Output == nil {
			return ledger.Record{}, fmt.Errorf("decode ledger update: created record without output")
		}
		return ledger.CreatedRecord(*w.Output), nil
	default:
		return ledger.Record{Kind: ledger.KindUnknown}, nil
	}
}

// Encoder writes records in the feed wire format.
type Encoder struct {
	enc *json.Encoder
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: json.NewEncoder(w)}
}

// Encode writes rec followed by a newline.
func (e *Encoder) Encode(rec ledger.Record) error {
	w := wireRecord{Kind: rec.Kind.String()}
	switch rec.Kind {
	case ledger.KindBegin, ledger.KindEnd:
		w.Marker = &rec.Marker
	case ledger.KindConsumed:
		w.Spent = &rec.Spent
	case ledger.KindCreated:
		w.Output = &rec.Output
	}
	return e.enc.Encode(w)
}
