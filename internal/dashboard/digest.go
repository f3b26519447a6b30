package dashboard

import (
	"context"
	"log/slog"

	"logdash/internal/models"
)

// DigestFetcher loads the error digest.
type DigestFetcher interface {
	Errors(ctx context.Context) (models.ErrorDigest, error)
}

// ErrorDigest loads the categorized error snapshot when its section is
// activated and replaces the rendered digest wholesale.
type ErrorDigest struct {
	loop    *Loop
	fetcher DigestFetcher
	sink    DigestSink
	logger  *slog.Logger

	groups  []models.SeverityGroup
	active  bool
	epoch   uint64
	seq     uint64
	applied uint64
}

func NewErrorDigest(loop *Loop, fetcher DigestFetcher, sink DigestSink, logger *slog.Logger) *ErrorDigest {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorDigest{
		loop:    loop,
		fetcher: fetcher,
		sink:    sink,
		logger:  logger.With("component", "errors"),
	}
}

// Load fetches the digest again. It fails with ErrSectionInactive unless
// the errors section is active.
func (d *ErrorDigest) Load() error {
	err := ErrSectionInactive
	d.loop.Call(func() {
		if d.active {
			err = nil
			d.load()
		}
	})
	return err
}

// Groups returns the last rendered severity groups.
func (d *ErrorDigest) Groups() []models.SeverityGroup {
	var out []models.SeverityGroup
	d.loop.Call(func() { out = append(out, d.groups...) })
	return out
}

func (d *ErrorDigest) load() {
	d.seq++
	seq, epoch := d.seq, d.epoch

	go func() {
		digest, err := d.fetcher.Errors(context.Background())
		d.loop.Post(func() { d.apply(seq, epoch, digest, err) })
	}()
}

func (d *ErrorDigest) activate() {
	d.active = true
	d.load()
}

func (d *ErrorDigest) deactivate() {
	d.active = false
	d.epoch++
}

func (d *ErrorDigest) apply(seq, epoch uint64, digest models.ErrorDigest, err error) {
	if epoch != d.epoch || seq <= d.applied {
		return
	}
	d.applied = seq

	if err != nil {
		d.logger.Warn("error digest fetch failed", "error", err)
		guard(d.logger, "errors", func() error {
			d.sink.RenderFailure(err)
			return nil
		})
		return
	}

	d.groups = digest.Groups()
	guard(d.logger, "errors", func() error {
		if len(d.groups) == 0 {
			d.sink.RenderEmpty()
		} else {
			d.sink.RenderDigest(d.groups)
		}
		return nil
	})
}
