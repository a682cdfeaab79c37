package model

// OperationStatus — статус, который видит вызывающий код публикации.
type OperationStatus int

const (
	OperationStatusSuccess OperationStatus = iota
	OperationStatusAccepted
	OperationStatusUnknown
	OperationStatusFailed
	OperationStatusFailedBranch
	OperationStatusContentNotFound
	OperationStatusCultureMissing
	OperationStatusInvalidCulture
	OperationStatusCannotPublishInvariantWhenVariant
	OperationStatusCannotPublishVariantWhenNotVariant
	OperationStatusCannotUnpublishWhenReferenced
	OperationStatusContentInvalid
	OperationStatusPathNotPublished
	OperationStatusHasExpired
	OperationStatusCultureHasExpired
	OperationStatusAwaitingRelease
	OperationStatusCultureAwaitingRelease
	OperationStatusInTrash
	OperationStatusCancelledByEvent
	OperationStatusNothingToPublish
	OperationStatusMandatoryCultureMissing
	OperationStatusConcurrencyViolation
	OperationStatusUnsavedChanges
	OperationStatusTaskResultNotFound
	OperationStatusTaskStillRunning
)

var operationStatusNames = map[OperationStatus]string{
	OperationStatusSuccess:                            "Success",
	OperationStatusAccepted:                           "Accepted",
	OperationStatusUnknown:                            "Unknown",
	OperationStatusFailed:                             "Failed",
	OperationStatusFailedBranch:                       "FailedBranch",
	OperationStatusContentNotFound:                    "ContentNotFound",
	OperationStatusCultureMissing:                     "CultureMissing",
	OperationStatusInvalidCulture:                     "InvalidCulture",
	OperationStatusCannotPublishInvariantWhenVariant:  "CannotPublishInvariantWhenVariant",
	OperationStatusCannotPublishVariantWhenNotVariant: "CannotPublishVariantWhenNotVariant",
	OperationStatusCannotUnpublishWhenReferenced:      "CannotUnpublishWhenReferenced",
	OperationStatusContentInvalid:                     "ContentInvalid",
	OperationStatusPathNotPublished:                   "PathNotPublished",
	OperationStatusHasExpired:                         "HasExpired",
	OperationStatusCultureHasExpired:                  "CultureHasExpired",
	OperationStatusAwaitingRelease:                    "AwaitingRelease",
	OperationStatusCultureAwaitingRelease:             "CultureAwaitingRelease",
	OperationStatusInTrash:                            "InTrash",
	OperationStatusCancelledByEvent:                   "CancelledByEvent",
	OperationStatusNothingToPublish:                   "NothingToPublish",
	OperationStatusMandatoryCultureMissing:            "MandatoryCultureMissing",
	OperationStatusConcurrencyViolation:               "ConcurrencyViolation",
	OperationStatusUnsavedChanges:                     "UnsavedChanges",
	OperationStatusTaskResultNotFound:                 "TaskResultNotFound",
	OperationStatusTaskStillRunning:                   "TaskStillRunning",
}

func (s OperationStatus) String() string {
	if name, ok := operationStatusNames[s]; ok {
		return name
	}
	return "OperationStatus(?)"
}
