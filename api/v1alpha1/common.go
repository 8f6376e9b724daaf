package v1alpha1

func StringToImportStatus(s string) ImportStatus {
	switch s {
	case string(ImportStatusPending):
		return ImportStatusPending
	case string(ImportStatusProcessing):
		return ImportStatusProcessing
	case string(ImportStatusCompleted):
		return ImportStatusCompleted
	case string(ImportStatusCompletedWithErrors):
		return ImportStatusCompletedWithErrors
	case string(ImportStatusCancelled):
		return ImportStatusCancelled
	default:
		return ImportStatusPending
	}
}
