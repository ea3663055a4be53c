package app

import (
	"context"
	"io"
	"sort"
	"time"

	"estirar/internal/domain/notification"
	"estirar/internal/domain/senior"
	"estirar/internal/domain/video"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// fakeSeniorRepo is an in-memory senior.Repository.
type fakeSeniorRepo struct {
	seniors []*senior.Senior
	listErr error
}

func (r *fakeSeniorRepo) add(id int64, phone string, lang senior.Language, active bool) *senior.Senior {
	s := &senior.Senior{ID: id, PhoneNumber: phone, Language: lang, IsActive: active}
	r.seniors = append(r.seniors, s)
	return s
}

func (r *fakeSeniorRepo) Upsert(_ context.Context, s *senior.Senior) error {
	for _, existing := range r.seniors {
		if existing.PhoneNumber == s.PhoneNumber {
			existing.Language = s.Language
			existing.IsActive = s.IsActive
			*s = *existing
			return nil
		}
	}
	s.ID = int64(len(r.seniors) + 1)
	cp := *s
	r.seniors = append(r.seniors, &cp)
	return nil
}

func (r *fakeSeniorRepo) GetByID(_ context.Context, id int64) (*senior.Senior, error) {
	for _, s := range r.seniors {
		if s.ID == id {
			cp := *s
			return &cp, nil
		}
	}
	return nil, senior.ErrSeniorNotFound
}

func (r *fakeSeniorRepo) GetByPhone(_ context.Context, phone string) (*senior.Senior, error) {
	for _, s := range r.seniors {
		if s.PhoneNumber == phone {
			cp := *s
			return &cp, nil
		}
	}
	return nil, senior.ErrSeniorNotFound
}

func (r *fakeSeniorRepo) Update(_ context.Context, s *senior.Senior) error {
	for _, existing := range r.seniors {
		if existing.ID == s.ID {
			existing.IsActive = s.IsActive
			existing.Language = s.Language
			return nil
		}
	}
	return senior.ErrSeniorNotFound
}

func (r *fakeSeniorRepo) ListActive(_ context.Context) ([]*senior.Senior, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*senior.Senior
	for _, s := range r.seniors {
		if s.IsActive {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeSeniorRepo) ListAll(_ context.Context) ([]*senior.Senior, error) {
	out := make([]*senior.Senior, 0, len(r.seniors))
	for _, s := range r.seniors {
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

// fakeVideoRepo is an in-memory video.Repository.
type fakeVideoRepo struct {
	videos []*video.Video
}

// seed adds n videos for lang with positions 1..n and ids starting at firstID.
func (r *fakeVideoRepo) seed(lang senior.Language, n int, firstID int64) {
	for i := 1; i <= n; i++ {
		r.videos = append(r.videos, &video.Video{
			ID:               firstID + int64(i) - 1,
			Title:            string(lang) + " video " + string(rune('0'+i)),
			URL:              "https://videos.example/" + string(lang) + "/" + string(rune('0'+i)),
			Language:         lang,
			SequencePosition: i,
		})
	}
}

func (r *fakeVideoRepo) GetByID(_ context.Context, id int64) (*video.Video, error) {
	for _, v := range r.videos {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, video.ErrVideoNotFound
}

func (r *fakeVideoRepo) GetBySequence(_ context.Context, lang senior.Language, position int) (*video.Video, error) {
	for _, v := range r.videos {
		if v.Language == lang && v.SequencePosition == position {
			return v, nil
		}
	}
	return nil, video.ErrVideoNotFound
}

func (r *fakeVideoRepo) GetNextInSequence(_ context.Context, lang senior.Language, after int) (*video.Video, error) {
	var best *video.Video
	for _, v := range r.videos {
		if v.Language != lang || v.SequencePosition <= after {
			continue
		}
		if best == nil || v.SequencePosition < best.SequencePosition {
			best = v
		}
	}
	if best == nil {
		return nil, video.ErrVideoNotFound
	}
	return best, nil
}

func (r *fakeVideoRepo) ListByLanguages(_ context.Context, langs []senior.Language) ([]*video.Video, error) {
	var out []*video.Video
	for _, v := range r.videos {
		for _, l := range langs {
			if v.Language == l {
				out = append(out, v)
			}
		}
	}
	return out, nil
}

func (r *fakeVideoRepo) Upsert(_ context.Context, v *video.Video) error {
	r.videos = append(r.videos, v)
	return nil
}

// fakeLogRepo is an in-memory notification.Repository. Stored logs are copied
// in and out so tests observe only what went through the repository.
type fakeLogRepo struct {
	videos    *fakeVideoRepo
	logs      []*notification.Log
	nextID    int64
	createErr error
	markErr   error
}

func newFakeLogRepo(videos *fakeVideoRepo) *fakeLogRepo {
	return &fakeLogRepo{videos: videos, nextID: 1}
}

func (r *fakeLogRepo) add(l notification.Log) *notification.Log {
	l.ID = r.nextID
	r.nextID++
	r.logs = append(r.logs, &l)
	return &l
}

func (r *fakeLogRepo) byID(id int64) *notification.Log {
	for _, l := range r.logs {
		if l.ID == id {
			return l
		}
	}
	return nil
}

func (r *fakeLogRepo) forSenior(seniorID int64) []*notification.Log {
	var out []*notification.Log
	for _, l := range r.logs {
		if l.SeniorID == seniorID {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].SentAt.After(out[j].SentAt)
	})
	return out
}

func (r *fakeLogRepo) CreateLog(_ context.Context, l *notification.Log) error {
	if r.createErr != nil {
		return r.createErr
	}
	stored := r.add(*l)
	l.ID = stored.ID
	return nil
}

func (r *fakeLogRepo) UpdateLog(_ context.Context, l *notification.Log) error {
	stored := r.byID(l.ID)
	if stored == nil {
		return notification.ErrLogNotFound
	}
	*stored = *l
	return nil
}

func (r *fakeLogRepo) GetLogByProviderMessageID(_ context.Context, messageID string) (*notification.Log, error) {
	for _, l := range r.logs {
		if l.ProviderMessageID.Valid && l.ProviderMessageID.String == messageID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, notification.ErrLogNotFound
}

func (r *fakeLogRepo) GetLatestLog(ctx context.Context, seniorID int64) (*notification.Log, int, error) {
	logs := r.forSenior(seniorID)
	if len(logs) == 0 {
		return nil, 0, notification.ErrLogNotFound
	}
	cp := *logs[0]
	position := 0
	if v, err := r.videos.GetByID(ctx, cp.VideoID); err == nil {
		position = v.SequencePosition
	}
	return &cp, position, nil
}

func (r *fakeLogRepo) GetLatestOpenLog(_ context.Context, seniorID int64) (*notification.Log, error) {
	for _, l := range r.forSenior(seniorID) {
		if l.IsOpen() {
			cp := *l
			return &cp, nil
		}
	}
	return nil, notification.ErrLogNotFound
}

func (r *fakeLogRepo) GetLatestLogSince(_ context.Context, seniorID int64, since time.Time) (*notification.Log, error) {
	for _, l := range r.forSenior(seniorID) {
		if !l.SentAt.Before(since) {
			cp := *l
			return &cp, nil
		}
	}
	return nil, notification.ErrLogNotFound
}

func (r *fakeLogRepo) ListLogsSince(_ context.Context, seniorID int64, since time.Time, limit int) ([]*notification.Log, error) {
	var out []*notification.Log
	for _, l := range r.forSenior(seniorID) {
		if l.SentAt.Before(since) {
			continue
		}
		cp := *l
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeLogRepo) MarkUnansweredLogsSkipped(_ context.Context, seniorID int64) (int64, error) {
	if r.markErr != nil {
		return 0, r.markErr
	}
	var n int64
	for _, l := range r.logs {
		unanswered := !l.Completed.Valid && !l.RepliedAt.Valid
		if l.SeniorID == seniorID && unanswered && (l.Status == notification.StatusSent || l.Status == notification.StatusDelivered) {
			l.Status = notification.StatusSkipped
			n++
		}
	}
	return n, nil
}

func (r *fakeLogRepo) ListRecentWithDetails(_ context.Context, limit int) ([]*notification.LogDetails, error) {
	all := append([]*notification.Log(nil), r.logs...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].SentAt.After(all[j].SentAt) })
	var out []*notification.LogDetails
	for _, l := range all {
		if len(out) == limit {
			break
		}
		out = append(out, &notification.LogDetails{Log: *l})
	}
	return out, nil
}

// fakeTelegram records operator messages.
type fakeTelegram struct {
	sent []string
}

func (f *fakeTelegram) SendMessage(_ int64, text string) error {
	f.sent = append(f.sent, text)
	return nil
}
