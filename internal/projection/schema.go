package projection

// FieldType is the index type of a projection field.
type FieldType int

const (
	// FieldKeyword is an exact-match, facetable, sortable string.
	FieldKeyword FieldType = iota
	// FieldText is an analyzed full-text string.
	FieldText
	// FieldDate is a timestamp.
	FieldDate
	// FieldBool is a boolean flag.
	FieldBool
	// FieldNumber is a numeric value.
	FieldNumber
	// FieldStored is kept for retrieval only and never searched.
	FieldStored
)

// Index field names. Fields shared between kinds carry the same meaning for each.
const (
	FieldID                       = "id"
	FieldKind                     = "kind"
	FieldNaturalID                = "naturalId"
	FieldIdentification           = "identification"
	FieldIdentificationSearch     = "identificationSearch"
	FieldCaseIdentification       = "caseIdentification"
	FieldCaseIdentificationSearch = "caseIdentificationSearch"
	FieldCaseTypeDescription      = "caseTypeDescription"
	FieldCaseTypeIdentification   = "caseTypeIdentification"
	FieldCreated                  = "created"
	FieldSource                   = "source"

	FieldCaseUUID          = "caseUuid"
	FieldCaseDescription   = "caseDescription"
	FieldCaseExplanation   = "caseExplanation"
	FieldCaseStatus        = "caseStatus"
	FieldCaseStatusFinal   = "caseStatusFinal"
	FieldCaseResult        = "caseResult"
	FieldStartDate         = "startDate"
	FieldTargetDate        = "targetDate"
	FieldFatalDate         = "fatalDate"
	FieldEndDate           = "endDate"
	FieldClosed            = "closed"
	FieldConfidentiality   = "confidentiality"
	FieldChannel           = "channel"
	FieldArchiveNomination = "archiveNomination"
	FieldArchiveActionDate = "archiveActionDate"
	FieldInitiator         = "initiator"
	FieldParticipants      = "participants"
	FieldParticipantIDs    = "participantIds"
	FieldGroupID           = "groupId"
	FieldGroupName         = "groupName"
	FieldAssigneeID        = "assigneeId"
	FieldAssigneeName      = "assigneeName"
	FieldOpenTaskCount     = "openTaskCount"
	FieldCaseIndicators    = "caseIndicators"
	FieldAddressObjectIDs  = "addressObjectIds"

	FieldTaskName        = "taskName"
	FieldTaskNameText    = "taskNameText"
	FieldTaskDescription = "taskDescription"
	FieldTaskStatus      = "taskStatus"
	FieldAssignedDate    = "assignedDate"
	FieldTaskFatalDate   = "taskFatalDate"
	FieldTaskData        = "taskData"

	FieldTitle               = "title"
	FieldTitleSort           = "titleSort"
	FieldDocumentDescription = "documentDescription"
	FieldCaseRelation        = "caseRelation"
	FieldCaseClosed          = "caseClosed"
	FieldRegistrationDate    = "registrationDate"
	FieldReceiptDate         = "receiptDate"
	FieldSentDate            = "sentDate"
	FieldSignedDate          = "signedDate"
	FieldAuthor              = "author"
	FieldDocumentStatus      = "documentStatus"
	FieldFormat              = "format"
	FieldVersion             = "version"
	FieldFileName            = "fileName"
	FieldFileSize            = "fileSize"
	FieldDocumentType        = "documentType"
	FieldLockedBy            = "lockedBy"
	FieldDocumentIndicators  = "documentIndicators"
)

// FieldDef describes how one projection field is indexed.
type FieldDef struct {
	Name string
	Type FieldType
	// InAll includes the field in the composite field searched by "all fields" queries.
	InAll bool
}

// Schema returns the index field definitions of every projection variant.
func Schema() []FieldDef {
	return []FieldDef{
		{Name: FieldID, Type: FieldKeyword},
		{Name: FieldKind, Type: FieldKeyword},
		{Name: FieldNaturalID, Type: FieldKeyword},
		{Name: FieldIdentification, Type: FieldKeyword, InAll: true},
		{Name: FieldIdentificationSearch, Type: FieldKeyword},
		{Name: FieldCaseIdentification, Type: FieldKeyword},
		{Name: FieldCaseIdentificationSearch, Type: FieldKeyword},
		{Name: FieldCaseTypeDescription, Type: FieldKeyword},
		{Name: FieldCaseTypeIdentification, Type: FieldKeyword},
		{Name: FieldCreated, Type: FieldDate},
		{Name: FieldSource, Type: FieldStored},

		{Name: FieldCaseUUID, Type: FieldKeyword},
		{Name: FieldCaseDescription, Type: FieldText, InAll: true},
		{Name: FieldCaseExplanation, Type: FieldText, InAll: true},
		{Name: FieldCaseStatus, Type: FieldKeyword},
		{Name: FieldCaseStatusFinal, Type: FieldBool},
		{Name: FieldCaseResult, Type: FieldKeyword},
		{Name: FieldStartDate, Type: FieldDate},
		{Name: FieldTargetDate, Type: FieldDate},
		{Name: FieldFatalDate, Type: FieldDate},
		{Name: FieldEndDate, Type: FieldDate},
		{Name: FieldClosed, Type: FieldBool},
		{Name: FieldConfidentiality, Type: FieldKeyword},
		{Name: FieldChannel, Type: FieldKeyword},
		{Name: FieldArchiveNomination, Type: FieldKeyword},
		{Name: FieldArchiveActionDate, Type: FieldDate},
		{Name: FieldInitiator, Type: FieldKeyword, InAll: true},
		{Name: FieldParticipants, Type: FieldKeyword},
		{Name: FieldParticipantIDs, Type: FieldKeyword, InAll: true},
		{Name: FieldGroupID, Type: FieldKeyword},
		{Name: FieldGroupName, Type: FieldKeyword},
		{Name: FieldAssigneeID, Type: FieldKeyword},
		{Name: FieldAssigneeName, Type: FieldKeyword},
		{Name: FieldOpenTaskCount, Type: FieldNumber},
		{Name: FieldCaseIndicators, Type: FieldKeyword},
		{Name: FieldAddressObjectIDs, Type: FieldKeyword},

		{Name: FieldTaskName, Type: FieldKeyword},
		{Name: FieldTaskNameText, Type: FieldText, InAll: true},
		{Name: FieldTaskDescription, Type: FieldText, InAll: true},
		{Name: FieldTaskStatus, Type: FieldKeyword},
		{Name: FieldAssignedDate, Type: FieldDate},
		{Name: FieldTaskFatalDate, Type: FieldDate},
		{Name: FieldTaskData, Type: FieldKeyword},

		{Name: FieldTitle, Type: FieldText, InAll: true},
		{Name: FieldTitleSort, Type: FieldKeyword},
		{Name: FieldDocumentDescription, Type: FieldText, InAll: true},
		{Name: FieldCaseRelation, Type: FieldKeyword},
		{Name: FieldCaseClosed, Type: FieldBool},
		{Name: FieldRegistrationDate, Type: FieldDate},
		{Name: FieldReceiptDate, Type: FieldDate},
		{Name: FieldSentDate, Type: FieldDate},
		{Name: FieldSignedDate, Type: FieldDate},
		{Name: FieldAuthor, Type: FieldText, InAll: true},
		{Name: FieldDocumentStatus, Type: FieldKeyword},
		{Name: FieldFormat, Type: FieldKeyword},
		{Name: FieldVersion, Type: FieldNumber},
		{Name: FieldFileName, Type: FieldText, InAll: true},
		{Name: FieldFileSize, Type: FieldNumber},
		{Name: FieldDocumentType, Type: FieldKeyword},
		{Name: FieldLockedBy, Type: FieldKeyword},
		{Name: FieldDocumentIndicators, Type: FieldKeyword},
	}
}

// SchemaField returns the definition of a field by name.
func SchemaField(name string) (FieldDef, bool) {
	for _, f := range Schema() {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}
