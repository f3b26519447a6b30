package dashboard

import (
	"context"
	"log/slog"

	"logdash/internal/models"
)

// SearchFetcher runs a pattern search on the backend.
type SearchFetcher interface {
	Search(ctx context.Context, q models.SearchQuery) ([]string, error)
}

// Search runs on-demand pattern queries. Overlapping queries are not
// canceled; a response is applied only if it is newer than the last one
// applied.
type Search struct {
	loop    *Loop
	fetcher SearchFetcher
	sink    SearchSink
	logger  *slog.Logger

	results []string
	active  bool
	epoch   uint64
	seq     uint64
	applied uint64
}

func NewSearch(loop *Loop, fetcher SearchFetcher, sink SearchSink, logger *slog.Logger) *Search {
	if logger == nil {
		logger = slog.Default()
	}
	return &Search{
		loop:    loop,
		fetcher: fetcher,
		sink:    sink,
		logger:  logger.With("component", "search"),
	}
}

// Query searches logType for pattern. A blank pattern is a no-op and an
// unknown log type is rejected; neither touches the network. Outside the
// search section it fails with ErrSectionInactive. It reports whether a
// request was issued.
func (s *Search) Query(pattern, logType string) (bool, error) {
	lt, err := models.ParseLogType(logType)
	if err != nil {
		return false, err
	}
	var issued bool
	err = ErrSectionInactive
	s.loop.Call(func() {
		if s.active {
			err = nil
			issued = s.query(models.SearchQuery{Pattern: pattern, LogType: lt})
		}
	})
	return issued, err
}

// Results returns the last applied result lines.
func (s *Search) Results() []string {
	var out []string
	s.loop.Call(func() { out = append(out, s.results...) })
	return out
}

func (s *Search) query(q models.SearchQuery) bool {
	if q.Blank() {
		return false
	}

	s.seq++
	seq, epoch := s.seq, s.epoch
	s.logger.Debug("searching", "pattern", q.Pattern, "type", q.LogType, "seq", seq)

	go func() {
		lines, err := s.fetcher.Search(context.Background(), q)
		s.loop.Post(func() { s.apply(seq, epoch, lines, err) })
	}()
	return true
}

func (s *Search) activate() {
	s.active = true
}

func (s *Search) deactivate() {
	s.active = false
	s.epoch++
}

func (s *Search) apply(seq, epoch uint64, lines []string, err error) {
	if epoch != s.epoch || seq <= s.applied {
		s.logger.Debug("discarding stale search response", "seq", seq)
		return
	}
	s.applied = seq

	if err != nil {
		s.logger.Warn("search failed", "error", err)
		guard(s.logger, "search", func() error {
			s.sink.RenderFailure(err)
			return nil
		})
		return
	}

	s.results = lines
	guard(s.logger, "search", func() error {
		if len(lines) == 0 {
			s.sink.RenderEmpty()
		} else {
			s.sink.RenderResults(lines)
		}
		return nil
	})
}
