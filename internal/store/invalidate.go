package store

// invalidations lists the cache tags an action makes stale. The Store applies
// them before it processes the next action.
func invalidations(a Action) []string {
	switch a := a.(type) {
	case UpdateCategorySuccess:
		return []string{TagFiles, TagCategories}
	case NotShowAgainSuccess, AcknowledgeFileSuccess, MoveFilesAccepted, FileMoved:
		return []string{TagFiles}
	case JobCompleted:
		return []string{TagFiles, TagCategories}
	case CategoriesRefreshed:
		return []string{TagCategories}
	case UpdateConfigSuccess:
		return []string{TagConfigs}
	case PushConnected:
		if a.Reconnect {
			// Events missed while disconnected are not replayed.
			return InvalidateAll.Tags()
		}
	}
	return nil
}
