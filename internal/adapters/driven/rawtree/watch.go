package rawtree

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ChangeKind classifies a raw tree change.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Change is one observed modification below the raw root.
type Change struct {
	Path string
	Kind ChangeKind
}

// Watch reports changes below the raw root until ctx is cancelled.
// New directories are watched as they appear. The channel is closed
// when watching stops.
func (s *Scanner) Watch(ctx context.Context) (<-chan Change, error) {
	if _, err := os.Stat(s.root); err != nil {
		return nil, fmt.Errorf("raw root: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := s.addTree(w, s.root); err != nil {
		_ = w.Close()
		return nil, err
	}

	changes := make(chan Change, 64)
	go func() {
		defer close(changes)
		defer w.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				change := s.handleEvent(w, event)
				if change == nil {
					continue
				}
				select {
				case changes <- *change:
				case <-ctx.Done():
					return
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return changes, nil
}

// addTree watches dir and every visible directory below it.
func (s *Scanner) addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != s.root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

// handleEvent maps an fsnotify event onto a Change. Hidden paths and
// permission changes are ignored.
func (s *Scanner) handleEvent(w *fsnotify.Watcher, event fsnotify.Event) *Change {
	rel, err := filepath.Rel(s.root, event.Name)
	if err != nil || isHidden(rel) {
		return nil
	}

	switch {
	case event.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && w != nil {
			_ = s.addTree(w, event.Name)
		}
		return &Change{Path: event.Name, Kind: ChangeCreated}
	case event.Has(fsnotify.Write):
		return &Change{Path: event.Name, Kind: ChangeUpdated}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return &Change{Path: event.Name, Kind: ChangeDeleted}
	default:
		return nil
	}
}
