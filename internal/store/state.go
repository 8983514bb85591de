// Package store is the client-side state container: an immutable State,
// typed actions, a pure reducer, a single-loop Store, async effects and a
// tag-invalidated response cache.
package store

import (
	"filecat/internal/filecat"
)

// ConnectionState is the push stream status as seen by the client.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (c ConnectionState) String() string {
	switch c {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Level classifies console messages.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// ConsoleMessage is one line of the user-visible activity log.
type ConsoleMessage struct {
	Level Level
	Text  string
}

// MaxConsoleMessages bounds State.Console; older lines are dropped.
const MaxConsoleMessages = 200

// Loading flags one in-flight fetch per resource.
type Loading struct {
	Files      bool
	Latest     bool
	Categories bool
	Configs    bool
}

// Revisions count invalidations per cache tag. A load result is only
// applied when the revision it started under is still current.
type Revisions struct {
	Files      uint64
	Categories uint64
	Configs    uint64
}

func (r Revisions) bump(tags []string) Revisions {
	for _, tag := range tags {
		switch tag {
		case TagFiles:
			r.Files++
		case TagCategories:
			r.Categories++
		case TagConfigs:
			r.Configs++
		}
	}
	return r
}

// State is an immutable snapshot. Reduce never modifies a State or anything
// it points to; it copies what it changes.
type State struct {
	Files      []*filecat.FileRecord
	Filter     filecat.FileFilter
	Latest     []*filecat.FileRecord
	Categories []string
	Configs    []*filecat.ConfigEntry
	// ConfigEnvironment is the environment of the last configs load.
	ConfigEnvironment string
	Jobs       map[string]*filecat.BatchJob
	Console    []ConsoleMessage
	Loading    Loading
	Connection ConnectionState
	LastError  string
	Revisions  Revisions
}

// InitialState is the state before anything was loaded.
func InitialState() State {
	return State{
		Filter: filecat.FilterAll,
		Jobs:   map[string]*filecat.BatchJob{},
	}
}

// File returns the loaded record with id, if any.
func (s State) File(id int64) (*filecat.FileRecord, bool) {
	for _, f := range s.Files {
		if f.ID == id {
			return f, true
		}
	}
	return nil, false
}

// ActiveJobs returns jobs that are not yet terminal.
func (s State) ActiveJobs() []*filecat.BatchJob {
	var out []*filecat.BatchJob
	for _, job := range s.Jobs {
		if !job.Status.Terminal() {
			out = append(out, job)
		}
	}
	return out
}
