package jointtree

import (
	"context"
	"path/filepath"

	"github.com/edaniels/golog"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// Watcher reloads a URDF model file whenever it is rewritten on disk and
// delivers the freshly parsed tree to a callback. It is the piece that feeds
// a controller's robot-swap path during development, when robot descriptions
// are being edited live.
type Watcher struct {
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
	logger  golog.Logger
}

// NewWatcher starts watching the given URDF file. onReload is called from the
// watcher's own goroutine with each successfully parsed tree; parse failures
// are logged and skipped so a half-saved file does not tear down the robot.
func NewWatcher(filename string, onReload func(*Tree), logger golog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}
	// Watch the containing directory rather than the file itself: editors
	// that save by writing a temp file and renaming it over the target
	// replace the inode, which would silently drop a watch on the path.
	if err := fsWatcher.Add(filepath.Dir(filename)); err != nil {
		return nil, errors.Wrapf(err, "failed to watch %q", filepath.Dir(filename))
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		watcher: fsWatcher,
		cancel:  cancel,
		done:    make(chan struct{}),
		logger:  logger,
	}
	go w.watch(ctx, filename, onReload)
	return w, nil
}

func (w *Watcher) watch(ctx context.Context, filename string, onReload func(*Tree)) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(filename) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			tree, err := ParseURDFFile(filename)
			if err != nil {
				w.logger.Errorw("failed to reload model", "file", filename, "error", err)
				continue
			}
			w.logger.Infow("model reloaded", "file", filename, "name", tree.Name())
			onReload(tree)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorw("file watcher error", "error", err)
		}
	}
}

// Close stops watching and releases the underlying watcher.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	<-w.done
	return err
}
