package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/doernaz/brandlift/internal/discovery"
)

// CSVSink appends leads to a flat CSV log. Keys already present in the file
// are loaded at open and never written twice. A second log beside it
// records which runs touched each lead, so a run that rediscovers a known
// lead still lists it.
type CSVSink struct {
	path     string
	runsPath string

	mu      sync.Mutex
	rows    map[string]Row
	members map[string][]string
	seen    map[membership]struct{}
}

type membership struct {
	RunID  string `csv:"run_id"`
	LeadID string `csv:"lead_id"`
}

// NewCSV opens or creates the log at path. Run membership lives in
// <name>.runs<ext> next to it.
func NewCSV(path string) (*CSVSink, error) {
	if path == "" {
		return nil, eris.New("sink: csv path is required")
	}
	s := &CSVSink{
		path:     path,
		runsPath: runsPath(path),
		rows:     make(map[string]Row),
		members:  make(map[string][]string),
		seen:     make(map[membership]struct{}),
	}

	rows, err := readCSV[Row](s.path)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if _, ok := s.rows[r.LeadID]; ok {
			continue
		}
		s.rows[r.LeadID] = r
		s.addMember(membership{RunID: r.RunID, LeadID: r.LeadID})
	}

	members, err := readCSV[membership](s.runsPath)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if _, ok := s.rows[m.LeadID]; ok {
			s.addMember(m)
		}
	}
	return s, nil
}

func runsPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".runs" + ext
}

func readCSV[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, eris.Wrapf(err, "sink: read csv %s", path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	dec, err := csvutil.NewDecoder(csv.NewReader(bytes.NewReader(data)))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sink: read csv header %s", path)
	}
	var out []T
	for {
		var v T
		if err := dec.Decode(&v); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, eris.Wrapf(err, "sink: decode csv %s", path)
		}
		out = append(out, v)
	}
}

// appendCSV writes values to the end of path, adding a header when the
// file is new or empty.
func appendCSV[T any](path string, values []T) error {
	info, statErr := os.Stat(path)
	writeHeader := statErr != nil || info.Size() == 0

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return eris.Wrapf(err, "sink: open csv %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	enc := csvutil.NewEncoder(w)
	enc.AutoHeader = writeHeader
	for _, v := range values {
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "sink: encode csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "sink: flush csv")
	}
	return eris.Wrap(f.Sync(), "sink: sync csv")
}

func (s *CSVSink) addMember(m membership) bool {
	if _, ok := s.seen[m]; ok {
		return false
	}
	s.seen[m] = struct{}{}
	s.members[m.RunID] = append(s.members[m.RunID], m.LeadID)
	return true
}

// Ping checks that the log file is writable.
func (s *CSVSink) Ping(_ context.Context) error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return eris.Wrapf(err, "sink: open csv %s", s.path)
	}
	return eris.Wrap(f.Close(), "sink: close csv")
}

// Persist appends the leads whose keys are not yet in the log and records
// run membership for every lead, new or known.
func (s *CSVSink) Persist(_ context.Context, leads []*discovery.VerifiedLead) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fresh []Row
	var joined []membership
	for _, r := range uniqueRows(leads) {
		m := membership{RunID: r.RunID, LeadID: r.LeadID}
		if _, ok := s.rows[r.LeadID]; !ok {
			fresh = append(fresh, r)
		} else if _, ok := s.seen[m]; !ok {
			joined = append(joined, m)
		}
	}

	if len(fresh) > 0 {
		if err := appendCSV(s.path, fresh); err != nil {
			return err
		}
		for _, r := range fresh {
			s.rows[r.LeadID] = r
			s.addMember(membership{RunID: r.RunID, LeadID: r.LeadID})
		}
	}
	if len(joined) > 0 {
		if err := appendCSV(s.runsPath, joined); err != nil {
			return err
		}
		for _, m := range joined {
			s.addMember(m)
		}
	}
	return nil
}

// ListByRunID returns the leads a run persisted in write order. A lead
// first logged by another run carries the requested run id.
func (s *CSVSink) ListByRunID(_ context.Context, runID string) ([]*discovery.VerifiedLead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.members[runID]
	out := make([]*discovery.VerifiedLead, 0, len(ids))
	for _, id := range ids {
		lead := s.rows[id].Lead()
		lead.RunID = runID
		out = append(out, lead)
	}
	return out, nil
}

// Close is a no-op; every Persist syncs the files.
func (s *CSVSink) Close() error {
	return nil
}
