// Package export reads lead files and writes them as JSON, CSV or XLSX.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bioleads/internal/model"
)

// StreamLeads decodes a JSON array of leads element by element. Both
// channels are closed when decoding stops.
func StreamLeads(ctx context.Context, r io.Reader) (<-chan *model.LeadRecord, <-chan error) {
	outCh := make(chan *model.LeadRecord, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		dec := json.NewDecoder(r)

		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			errCh <- eris.Wrap(err, "export: read opening token")
			return
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			errCh <- eris.Errorf("export: expected a JSON array of leads, got %v", tok)
			return
		}

		for i := 0; dec.More(); i++ {
			var lead model.LeadRecord
			if err := dec.Decode(&lead); err != nil {
				errCh <- eris.Wrapf(err, "export: decode lead %d", i)
				return
			}
			select {
			case outCh <- &lead:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "export: context cancelled")
				return
			}
		}

		if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
			errCh <- eris.Wrap(err, "export: read closing token")
		}
	}()

	return outCh, errCh
}

// ReadLeads decodes every lead from r.
func ReadLeads(ctx context.Context, r io.Reader) ([]*model.LeadRecord, error) {
	outCh, errCh := StreamLeads(ctx, r)
	leads := []*model.LeadRecord{}
	for lead := range outCh {
		leads = append(leads, lead)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return leads, nil
}

// ReadLeadsFile decodes the JSON lead array stored at path.
func ReadLeadsFile(ctx context.Context, path string) ([]*model.LeadRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "export: open leads file")
	}
	defer f.Close() //nolint:errcheck

	leads, err := ReadLeads(ctx, f)
	if err != nil {
		return nil, eris.Wrapf(err, "export: read %s", path)
	}
	return leads, nil
}
