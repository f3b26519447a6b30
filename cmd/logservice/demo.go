package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/time/rate"

	"logdash/internal/models"
)

var demoPaths = []string{
	"/", "/login", "/logout", "/api/users", "/api/orders", "/api/orders/checkout",
	"/static/app.js", "/static/style.css", "/favicon.ico", "/admin",
}

var demoLevels = []string{"error", "error", "warn", "warn", "warn", "crit", "notice"}

// runDemo stores and publishes synthetic traffic at perSecond access
// records per second, with an error record roughly every twentieth request.
func (s *server) runDemo(ctx context.Context, perSecond float64) {
	faker := gofakeit.New(0)
	pace := rate.NewLimiter(rate.Limit(perSecond), 1)

	for {
		if err := pace.Wait(ctx); err != nil {
			return
		}

		entry := fakeAccess(faker, time.Now())
		if err := s.db.InsertAccessLog(ctx, &entry); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("demo insert failed", "error", err)
			continue
		}
		ingestedTotal.WithLabelValues(string(models.LogTypeAccess)).Inc()
		s.publish([]models.AccessLog{entry})

		if entry.Status >= 500 || faker.Number(1, 20) == 1 {
			e := fakeError(faker, entry)
			if err := s.db.InsertErrorLog(ctx, &e); err != nil {
				slog.Warn("demo insert failed", "error", err)
				continue
			}
			ingestedTotal.WithLabelValues(string(models.LogTypeError)).Inc()
		}
	}
}

func fakeAccess(f *gofakeit.Faker, at time.Time) models.AccessLog {
	return models.AccessLog{
		Timestamp: at,
		Method:    f.HTTPMethod(),
		Path:      f.RandomString(demoPaths),
		Status:    f.HTTPStatusCodeSimple(),
		Bytes:     int64(f.Number(0, 64<<10)),
		ClientIP:  f.IPv4Address(),
		UserAgent: f.UserAgent(),
		Referer:   f.URL(),
	}
}

// fakeError describes a failure of the given request in nginx error log style.
func fakeError(f *gofakeit.Faker, req models.AccessLog) models.ErrorLog {
	return models.ErrorLog{
		Timestamp: req.Timestamp,
		Level:     f.RandomString(demoLevels),
		Message: fmt.Sprintf(`%s, client: %s, request: "%s %s HTTP/1.1"`,
			f.HackerPhrase(), req.ClientIP, req.Method, req.Path),
	}
}
