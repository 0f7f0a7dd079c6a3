package sync

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"driftline/internal/bootstrap/logging"
	"driftline/internal/errs"
	"driftline/internal/ports"
)

// Watcher debounces filesystem events on a local repository clone into
// repo-sync requests for the owning environment. Only meaningful with the
// local gitrepo adapter; remote backends rely on the scheduler.
type Watcher struct {
	svc           *Service
	tenantID      string
	environmentID string
	path          string
	debounce      time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewWatcher(svc *Service, tenantID, environmentID, repoPath string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{
		svc:           svc,
		tenantID:      tenantID,
		environmentID: environmentID,
		path:          repoPath,
		debounce:      debounce,
	}
}

func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return errs.New("watcher already running")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create fsnotify watcher")
	}
	if err := fsw.Add(w.path); err != nil {
		fsw.Close()
		return errs.Wrapf(err, "watch %s", w.path)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.loop(loopCtx, fsw, w.done)
	return nil
}

func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	defer fsw.Close()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !relevantEvent(event) {
				continue
			}
			// Editors produce bursts of writes; collapse them into one
			// trigger per quiet period.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logging.Warn(ctx, "watcher error", slog.Any("err", errs.Loggable(err)))

		case <-fire:
			timer, fire = nil, nil
			job, isNew, err := w.svc.RequestSync(ctx, w.tenantID, w.environmentID, ports.JobKindRepoSync, "watcher")
			if err != nil {
				logging.Warn(ctx, "watcher sync request failed", slog.Any("err", errs.Loggable(err)))
				continue
			}
			if isNew {
				if err := w.svc.RunJob(ctx, job); err != nil {
					logging.Warn(ctx, "watcher-triggered sync failed", slog.Any("err", errs.Loggable(err)))
				}
			}
		}
	}
}

func relevantEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return false
	}
	return strings.HasSuffix(event.Name, ".json") || strings.HasSuffix(event.Name, ".yaml") || strings.HasSuffix(event.Name, ".toml")
}
