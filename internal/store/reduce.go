package store

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"filecat/internal/client"
	"filecat/internal/filecat"
)

// Reduce returns the state that follows s after a. It is pure: no I/O, no
// clock, and s is left untouched.
func Reduce(s State, a Action) State {
	s.Revisions = s.Revisions.bump(invalidations(a))

	switch a := a.(type) {
	case LoadFiles:
		s.Filter = a.Filter
		s.Loading.Files = true
	case LoadFilesSuccess:
		if a.Filter != s.Filter || a.Revision != s.Revisions.Files {
			// Answer to a filter the user already left, or fetched before
			// an invalidation. A newer load is on its way.
			return s
		}
		s.Files = slices.Clone(a.Files)
		s.Loading.Files = false
		s.LastError = ""
	case LoadFilesFailure:
		s.Loading.Files = false
		s = failed(s, "loading files", a.Err)

	case LoadLatest:
		s.Loading.Latest = true
	case LoadLatestSuccess:
		if a.Revision != s.Revisions.Files {
			return s
		}
		s.Latest = slices.Clone(a.Files)
		s.Loading.Latest = false
	case LoadLatestFailure:
		s.Loading.Latest = false
		s = failed(s, "loading latest files", a.Err)

	case LoadCategories:
		s.Loading.Categories = true
	case LoadCategoriesSuccess:
		if a.Revision != s.Revisions.Categories {
			return s
		}
		s.Categories = slices.Clone(a.Categories)
		s.Loading.Categories = false
	case LoadCategoriesFailure:
		s.Loading.Categories = false
		s = failed(s, "loading categories", a.Err)

	case LoadConfigs:
		s.ConfigEnvironment = a.Environment
		s.Loading.Configs = true
	case LoadConfigsSuccess:
		if a.Revision != s.Revisions.Configs {
			return s
		}
		s.Configs = slices.Clone(a.Entries)
		s.Loading.Configs = false
	case LoadConfigsFailure:
		s.Loading.Configs = false
		s = failed(s, "loading configs", a.Err)

	case UpdateCategory, NotShowAgain, AcknowledgeFile, CancelJob, UpdateConfig:
		// Handled by effects.

	case UpdateCategorySuccess:
		s = replaceFile(s, a.File)
		s.Categories = withCategory(s.Categories, a.File.Category)
		s = logf(s, LevelInfo, "%s categorized as %s", a.File.Name, a.File.Category)
	case UpdateCategoryFailure:
		s = failed(s, fmt.Sprintf("setting category of file %d", a.FileID), a.Err)

	case NotShowAgainSuccess:
		s = replaceFile(s, a.File)
		s = logf(s, LevelInfo, "%s will not be shown again", a.File.Name)
	case NotShowAgainFailure:
		s = failed(s, fmt.Sprintf("hiding file %d", a.FileID), a.Err)

	case AcknowledgeFileSuccess:
		s = replaceFile(s, a.File)
	case AcknowledgeFileFailure:
		s = failed(s, fmt.Sprintf("acknowledging file %d", a.FileID), a.Err)

	case RefreshFiles:
		s = logf(s, LevelInfo, "Refresh requested")
	case ForceCategorize:
		s = logf(s, LevelInfo, "Categorization requested (force=%t)", a.Force)
	case MoveFiles:
		s = logf(s, LevelInfo, "Move of %d files requested", len(a.Request.Items))
	case TrainModel:
		s = logf(s, LevelInfo, "Training requested")

	case JobAccepted:
		s = withJob(s, &filecat.BatchJob{ID: a.JobID, Kind: a.Kind, Status: filecat.StatusPending})
		s = logf(s, LevelInfo, "%s job %s accepted", a.Kind, a.JobID)
	case MoveFilesAccepted:
		s = withJob(s, &filecat.BatchJob{ID: a.JobID, Kind: filecat.JobMove, Status: filecat.StatusPending})
		s = logf(s, LevelInfo, "Move job %s accepted for %d files", a.JobID, a.Count)
	case JobSubmitFailure:
		s = failed(s, fmt.Sprintf("starting %s job", a.Kind), a.Err)

	case CancelJobFailure:
		s = failed(s, fmt.Sprintf("cancelling job %s", a.JobID), a.Err)

	case UpdateConfigSuccess:
		s.Configs = withConfig(s.Configs, a.Entry)
		s = logf(s, LevelInfo, "Config %s saved for %s", a.Entry.Key, a.Entry.Environment)
	case UpdateConfigFailure:
		s = failed(s, fmt.Sprintf("saving config %s", a.Key), a.Err)

	case FileMoved:
		s = removeFile(s, a.FileID)
		s = logf(s, LevelInfo, "%s", a.ResultText)
	case JobUpdated:
		if prev, ok := s.Jobs[a.Job.ID]; ok && prev.Status.Terminal() {
			return s
		}
		s = withJob(s, a.Job)
	case JobCompleted:
		s = withJob(s, a.Result)
		level := LevelInfo
		switch a.Result.Status {
		case filecat.StatusPartiallyFailed:
			level = LevelWarn
		case filecat.StatusFailed:
			level = LevelError
		}
		s = logf(s, level, "%s", a.ResultText)
	case CategoriesRefreshed:
		s.Categories = slices.Clone(a.Categories)

	case PushConnected:
		s.Connection = Connected
		if a.Reconnect {
			s = logf(s, LevelInfo, "Reconnected to server, reloading")
		}
	case PushDisconnected:
		s.Connection = Connecting
		s = logf(s, LevelWarn, "Lost connection to server: %v", a.Err)
	}
	return s
}

func failed(s State, what string, err error) State {
	var transportErr *client.TransportError
	if errors.As(err, &transportErr) {
		s.LastError = fmt.Sprintf("%s: server unreachable: %v", what, transportErr.Err)
	} else {
		s.LastError = fmt.Sprintf("%s: %v", what, err)
	}
	return logf(s, LevelError, "%s", s.LastError)
}

func logf(s State, level Level, format string, args ...any) State {
	msg := ConsoleMessage{Level: level, Text: fmt.Sprintf(format, args...)}
	start := max(0, len(s.Console)+1-MaxConsoleMessages)
	console := make([]ConsoleMessage, 0, len(s.Console)-start+1)
	console = append(console, s.Console[start:]...)
	s.Console = append(console, msg)
	return s
}

// replaceFile swaps in rec, dropping it when it no longer matches the filter.
func replaceFile(s State, rec *filecat.FileRecord) State {
	files := make([]*filecat.FileRecord, 0, len(s.Files))
	for _, f := range s.Files {
		if f.ID != rec.ID {
			files = append(files, f)
		} else if rec.Matches(s.Filter) {
			files = append(files, rec)
		}
	}
	s.Files = files
	return s
}

// removeFile drops id from the visible list. A moved file leaves the watch
// directory and no filter shows it again.
func removeFile(s State, id int64) State {
	s.Files = slices.DeleteFunc(slices.Clone(s.Files), func(f *filecat.FileRecord) bool {
		return f.ID == id
	})
	return s
}

func withCategory(categories []string, category string) []string {
	if category == "" {
		return categories
	}
	i, found := slices.BinarySearch(categories, category)
	if found {
		return categories
	}
	return slices.Insert(slices.Clone(categories), i, category)
}

func withJob(s State, job *filecat.BatchJob) State {
	jobs := maps.Clone(s.Jobs)
	if jobs == nil {
		jobs = map[string]*filecat.BatchJob{}
	}
	jobs[job.ID] = job
	s.Jobs = jobs
	return s
}

func withConfig(entries []*filecat.ConfigEntry, entry *filecat.ConfigEntry) []*filecat.ConfigEntry {
	out := make([]*filecat.ConfigEntry, 0, len(entries)+1)
	replaced := false
	for _, e := range entries {
		if e.Key == entry.Key && e.Environment == entry.Environment {
			out = append(out, entry)
			replaced = true
			continue
		}
		out = append(out, e)
	}
	if !replaced {
		out = append(out, entry)
	}
	return out
}
