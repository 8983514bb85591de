package store

import (
	"filecat/internal/filecat"
)

// Action is anything the Store can reduce. Each concrete type is handled by
// exactly one case in Reduce.
type Action interface {
	actionName() string
}

// --- loads ---

type LoadFiles struct{ Filter filecat.FileFilter }
type LoadFilesSuccess struct {
	Filter   filecat.FileFilter
	Revision uint64
	Files    []*filecat.FileRecord
}
type LoadFilesFailure struct{ Err error }

type LoadLatest struct{}
type LoadLatestSuccess struct {
	Revision uint64
	Files    []*filecat.FileRecord
}
type LoadLatestFailure struct{ Err error }

type LoadCategories struct{}
type LoadCategoriesSuccess struct {
	Revision   uint64
	Categories []string
}
type LoadCategoriesFailure struct{ Err error }

type LoadConfigs struct{ Environment string }
type LoadConfigsSuccess struct {
	Revision uint64
	Entries  []*filecat.ConfigEntry
}
type LoadConfigsFailure struct{ Err error }

// --- record mutations ---

type UpdateCategory struct {
	FileID   int64
	Category string
}
type UpdateCategorySuccess struct{ File *filecat.FileRecord }
type UpdateCategoryFailure struct {
	FileID int64
	Err    error
}

type NotShowAgain struct{ FileID int64 }
type NotShowAgainSuccess struct{ File *filecat.FileRecord }
type NotShowAgainFailure struct {
	FileID int64
	Err    error
}

type AcknowledgeFile struct{ FileID int64 }
type AcknowledgeFileSuccess struct{ File *filecat.FileRecord }
type AcknowledgeFileFailure struct {
	FileID int64
	Err    error
}

// --- jobs ---

type RefreshFiles struct{}
type ForceCategorize struct{ Force bool }
type MoveFiles struct{ Request filecat.MoveRequest }
type TrainModel struct{}

// JobAccepted reports a submitted Refresh, ForceCategorize or Train job.
type JobAccepted struct {
	Kind  filecat.JobKind
	JobID string
}

// MoveFilesAccepted reports a submitted Move job.
type MoveFilesAccepted struct {
	JobID string
	Count int
}

type JobSubmitFailure struct {
	Kind filecat.JobKind
	Err  error
}

type CancelJob struct{ JobID string }
type CancelJobFailure struct {
	JobID string
	Err   error
}

// --- configs ---

type UpdateConfig struct {
	Key         string
	Value       string
	Environment string
}
type UpdateConfigSuccess struct{ Entry *filecat.ConfigEntry }
type UpdateConfigFailure struct {
	Key string
	Err error
}

// --- push ---

type FileMoved struct {
	FileID     int64
	ResultText string
}
type JobUpdated struct{ Job *filecat.BatchJob }
type JobCompleted struct {
	ResultText string
	Result     *filecat.BatchJob
}
type CategoriesRefreshed struct{ Categories []string }

// --- connection ---

type PushConnected struct{ Reconnect bool }
type PushDisconnected struct{ Err error }

func (LoadFiles) actionName() string              { return "LoadFiles" }
func (LoadFilesSuccess) actionName() string       { return "LoadFilesSuccess" }
func (LoadFilesFailure) actionName() string       { return "LoadFilesFailure" }
func (LoadLatest) actionName() string             { return "LoadLatest" }
func (LoadLatestSuccess) actionName() string      { return "LoadLatestSuccess" }
func (LoadLatestFailure) actionName() string      { return "LoadLatestFailure" }
func (LoadCategories) actionName() string         { return "LoadCategories" }
func (LoadCategoriesSuccess) actionName() string  { return "LoadCategoriesSuccess" }
func (LoadCategoriesFailure) actionName() string  { return "LoadCategoriesFailure" }
func (LoadConfigs) actionName() string            { return "LoadConfigs" }
func (LoadConfigsSuccess) actionName() string     { return "LoadConfigsSuccess" }
func (LoadConfigsFailure) actionName() string     { return "LoadConfigsFailure" }
func (UpdateCategory) actionName() string         { return "UpdateCategory" }
func (UpdateCategorySuccess) actionName() string  { return "UpdateCategorySuccess" }
func (UpdateCategoryFailure) actionName() string  { return "UpdateCategoryFailure" }
func (NotShowAgain) actionName() string           { return "NotShowAgain" }
func (NotShowAgainSuccess) actionName() string    { return "NotShowAgainSuccess" }
func (NotShowAgainFailure) actionName() string    { return "NotShowAgainFailure" }
func (AcknowledgeFile) actionName() string        { return "AcknowledgeFile" }
func (AcknowledgeFileSuccess) actionName() string { return "AcknowledgeFileSuccess" }
func (AcknowledgeFileFailure) actionName() string { return "AcknowledgeFileFailure" }
func (RefreshFiles) actionName() string           { return "RefreshFiles" }
func (ForceCategorize) actionName() string        { return "ForceCategorize" }
func (MoveFiles) actionName() string              { return "MoveFiles" }
func (TrainModel) actionName() string             { return "TrainModel" }
func (JobAccepted) actionName() string            { return "JobAccepted" }
func (MoveFilesAccepted) actionName() string      { return "MoveFilesAccepted" }
func (JobSubmitFailure) actionName() string       { return "JobSubmitFailure" }
func (CancelJob) actionName() string              { return "CancelJob" }
func (CancelJobFailure) actionName() string       { return "CancelJobFailure" }
func (UpdateConfig) actionName() string           { return "UpdateConfig" }
func (UpdateConfigSuccess) actionName() string    { return "UpdateConfigSuccess" }
func (UpdateConfigFailure) actionName() string    { return "UpdateConfigFailure" }
func (FileMoved) actionName() string              { return "FileMoved" }
func (JobUpdated) actionName() string             { return "JobUpdated" }
func (JobCompleted) actionName() string           { return "JobCompleted" }
func (CategoriesRefreshed) actionName() string    { return "CategoriesRefreshed" }
func (PushConnected) actionName() string          { return "PushConnected" }
func (PushDisconnected) actionName() string       { return "PushDisconnected" }

// Name returns the action's type name, for logs.
func Name(a Action) string {
	return a.actionName()
}
