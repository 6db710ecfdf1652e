package watcher

// Watches a save directory and reads every save the game writes.
// Watching never edits anything.

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"sh2edit/editor"
	"sh2edit/types"
)

// Snapshot is the state of one save, read just after the game wrote it.
type Snapshot struct {
	Filename string
	Readings []editor.Reading
	Err      error
}

type Watcher interface {
	StartWatching(out chan<- *Snapshot) error
	StopWatching()
}

func New(dir string, sigs []types.Signature, settle time.Duration) Watcher {
	return &dir_watcher{dir: dir, sigs: sigs, settle: settle, pending: map[string]*time.Timer{}}
}

type dir_watcher struct {
	dir    string
	sigs   []types.Signature
	settle time.Duration

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	pending map[string]*time.Timer // per file, reset on every write
	stopped bool
}

// IsSave reports whether a filename looks like a save written by the game.
func IsSave(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".sav")
}

func (dw *dir_watcher) StartWatching(out chan<- *Snapshot) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dw.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) && IsSave(event.Name) {
					dw.schedule(event.Name, out)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				out <- &Snapshot{Filename: dw.dir, Err: err}
			}
		}
	}()

	err = dw.watcher.Add(dw.dir)
	if err != nil {
		dw.watcher.Close()
	}

	return err
}

func (dw *dir_watcher) StopWatching() {
	dw.mu.Lock()
	dw.stopped = true
	for _, t := range dw.pending {
		t.Stop()
	}
	dw.mu.Unlock()
	dw.watcher.Close()
}

// schedule reads the file once the game has stopped writing it for a while.
// The game writes a save in several goes, so every write pushes the read back.
func (dw *dir_watcher) schedule(filename string, out chan<- *Snapshot) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.stopped {
		return
	}
	if t, ok := dw.pending[filename]; ok {
		t.Reset(dw.settle)
		return
	}
	dw.pending[filename] = time.AfterFunc(dw.settle, func() {
		dw.mu.Lock()
		delete(dw.pending, filename)
		stopped := dw.stopped
		dw.mu.Unlock()
		if !stopped {
			out <- Read(filename, dw.sigs)
		}
	})
}

// Read loads a save read-only and reads every signature.
func Read(filename string, sigs []types.Signature) *Snapshot {
	snap := &Snapshot{Filename: filename}
	data, err := os.ReadFile(filename)
	if err != nil {
		snap.Err = fmt.Errorf("%w: %v", types.ErrIO, err)
		return snap
	}
	ed, err := editor.Load(data, editor.DefaultOptions())
	if err != nil {
		snap.Err = err
		return snap
	}
	snap.Readings = ed.Inspect(sigs)
	return snap
}
