package search

import (
	"fmt"
	"strings"

	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
	"github.com/Aman-CERP/casesearch/internal/projection"
)

// FilterField is a facetable field. Declaration order is presentation order.
type FilterField string

const (
	FilterType                  FilterField = "TYPE"
	FilterCaseType              FilterField = "ZAAK_ZAAKTYPE"
	FilterCaseAssignee          FilterField = "ZAAK_BEHANDELAAR"
	FilterCaseGroup             FilterField = "ZAAK_GROEP"
	FilterCaseStatus            FilterField = "ZAAK_STATUS"
	FilterCaseResult            FilterField = "ZAAK_RESULTAAT"
	FilterCaseIndicators        FilterField = "ZAAK_INDICATIES"
	FilterCaseChannel           FilterField = "ZAAK_COMMUNICATIEKANAAL"
	FilterCaseConfidentiality   FilterField = "ZAAK_VERTROUWELIJKHEIDAANDUIDING"
	FilterCaseArchiveNomination FilterField = "ZAAK_ARCHIEF_NOMINATIE"
	FilterTaskName              FilterField = "TAAK_NAAM"
	FilterTaskStatus            FilterField = "TAAK_STATUS"
	FilterTaskCaseType          FilterField = "TAAK_ZAAKTYPE"
	FilterTaskGroup             FilterField = "TAAK_GROEP"
	FilterTaskAssignee          FilterField = "TAAK_BEHANDELAAR"
	FilterDocumentStatus        FilterField = "DOCUMENT_STATUS"
	FilterDocumentType          FilterField = "DOCUMENT_TYPE"
	FilterDocumentLockedBy      FilterField = "DOCUMENT_VERGRENDELD_DOOR"
	FilterDocumentIndicators    FilterField = "DOCUMENT_INDICATIES"
)

// Special filter values.
const (
	// ValueMissing selects documents without a value and labels the missing bucket.
	ValueMissing = "-NULL-"
	// ValuePresent selects documents with any value.
	ValuePresent = "-NOT-NULL-"
)

type fieldDef struct {
	index string
	kinds []projection.Kind
}

var (
	caseOnly     = []projection.Kind{projection.KindCase}
	taskOnly     = []projection.Kind{projection.KindTask}
	documentOnly = []projection.Kind{projection.KindDocument}
)

// filterFields lists every FilterField in presentation order.
var filterFields = []FilterField{
	FilterType,
	FilterCaseType,
	FilterCaseAssignee,
	FilterCaseGroup,
	FilterCaseStatus,
	FilterCaseResult,
	FilterCaseIndicators,
	FilterCaseChannel,
	FilterCaseConfidentiality,
	FilterCaseArchiveNomination,
	FilterTaskName,
	FilterTaskStatus,
	FilterTaskCaseType,
	FilterTaskGroup,
	FilterTaskAssignee,
	FilterDocumentStatus,
	FilterDocumentType,
	FilterDocumentLockedBy,
	FilterDocumentIndicators,
}

// A nil kinds list applies to every kind.
var filterDefs = map[FilterField]fieldDef{
	FilterType:                  {index: projection.FieldKind},
	FilterCaseType:              {index: projection.FieldCaseTypeDescription, kinds: caseOnly},
	FilterCaseAssignee:          {index: projection.FieldAssigneeName, kinds: caseOnly},
	FilterCaseGroup:             {index: projection.FieldGroupName, kinds: caseOnly},
	FilterCaseStatus:            {index: projection.FieldCaseStatus, kinds: caseOnly},
	FilterCaseResult:            {index: projection.FieldCaseResult, kinds: caseOnly},
	FilterCaseIndicators:        {index: projection.FieldCaseIndicators, kinds: caseOnly},
	FilterCaseChannel:           {index: projection.FieldChannel, kinds: caseOnly},
	FilterCaseConfidentiality:   {index: projection.FieldConfidentiality, kinds: caseOnly},
	FilterCaseArchiveNomination: {index: projection.FieldArchiveNomination, kinds: caseOnly},
	FilterTaskName:              {index: projection.FieldTaskName, kinds: taskOnly},
	FilterTaskStatus:            {index: projection.FieldTaskStatus, kinds: taskOnly},
	FilterTaskCaseType:          {index: projection.FieldCaseTypeDescription, kinds: taskOnly},
	FilterTaskGroup:             {index: projection.FieldGroupName, kinds: taskOnly},
	FilterTaskAssignee:          {index: projection.FieldAssigneeName, kinds: taskOnly},
	FilterDocumentStatus:        {index: projection.FieldDocumentStatus, kinds: documentOnly},
	FilterDocumentType:          {index: projection.FieldDocumentType, kinds: documentOnly},
	FilterDocumentLockedBy:      {index: projection.FieldLockedBy, kinds: documentOnly},
	FilterDocumentIndicators:    {index: projection.FieldDocumentIndicators, kinds: documentOnly},
}

// FilterFields returns all filter fields in presentation order.
func FilterFields() []FilterField {
	return append([]FilterField(nil), filterFields...)
}

// IndexField returns the index field the filter reads.
func (f FilterField) IndexField() string {
	return filterDefs[f].index
}

// AppliesTo reports whether the filter is offered for kind.
func (f FilterField) AppliesTo(kind projection.Kind) bool {
	def, ok := filterDefs[f]
	if !ok {
		return false
	}
	return appliesTo(def.kinds, kind)
}

func appliesTo(kinds []projection.Kind, kind projection.Kind) bool {
	if kinds == nil {
		return true
	}
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// ParseFilterField parses a filter field name, case-insensitively.
func ParseFilterField(s string) (FilterField, error) {
	f := FilterField(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := filterDefs[f]; !ok {
		return "", cserrors.InvalidParameters(fmt.Sprintf("unknown filter field %q", s)).
			WithDetail("field", s)
	}
	return f, nil
}

// SearchField is a field-scoped free-text target.
type SearchField string

const (
	SearchAll                 SearchField = "ALLE"
	SearchCaseIdentification  SearchField = "ZAAK_IDENTIFICATIE"
	SearchCaseDescription     SearchField = "ZAAK_OMSCHRIJVING"
	SearchCaseExplanation     SearchField = "ZAAK_TOELICHTING"
	SearchCaseInitiator       SearchField = "ZAAK_INITIATOR"
	SearchCaseParticipants    SearchField = "ZAAK_BETROKKENEN"
	SearchTaskName            SearchField = "TAAK_NAAM"
	SearchTaskExplanation     SearchField = "TAAK_TOELICHTING"
	SearchTaskCase            SearchField = "TAAK_ZAAK_ID"
	SearchDocumentTitle       SearchField = "DOCUMENT_TITEL"
	SearchDocumentDescription SearchField = "DOCUMENT_BESCHRIJVING"
	SearchDocumentFileName    SearchField = "DOCUMENT_BESTANDSNAAM"
)

type searchDef struct {
	index string
	// contains selects case-insensitive substring matching on a lowercased keyword field.
	contains bool
}

var searchDefs = map[SearchField]searchDef{
	SearchAll:                 {index: ""},
	SearchCaseIdentification:  {index: projection.FieldCaseIdentificationSearch, contains: true},
	SearchCaseDescription:     {index: projection.FieldCaseDescription},
	SearchCaseExplanation:     {index: projection.FieldCaseExplanation},
	SearchCaseInitiator:       {index: projection.FieldInitiator},
	SearchCaseParticipants:    {index: projection.FieldParticipantIDs},
	SearchTaskName:            {index: projection.FieldTaskNameText},
	SearchTaskExplanation:     {index: projection.FieldTaskDescription},
	SearchTaskCase:            {index: projection.FieldCaseIdentificationSearch, contains: true},
	SearchDocumentTitle:       {index: projection.FieldTitle},
	SearchDocumentDescription: {index: projection.FieldDocumentDescription},
	SearchDocumentFileName:    {index: projection.FieldFileName},
}

// ParseSearchField parses a search field name, case-insensitively.
func ParseSearchField(s string) (SearchField, error) {
	f := SearchField(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := searchDefs[f]; !ok {
		return "", cserrors.InvalidParameters(fmt.Sprintf("unknown search field %q", s)).
			WithDetail("field", s)
	}
	return f, nil
}

// DateField is a date-range filterable field.
type DateField string

const (
	DateCreated              DateField = "CREATED"
	DateCaseStart            DateField = "ZAAK_STARTDATUM"
	DateCaseTarget           DateField = "ZAAK_STREEFDATUM"
	DateCaseFatal            DateField = "ZAAK_FATALE_DATUM"
	DateTaskFatal            DateField = "TAAK_FATALEDATUM"
	DateDocumentRegistration DateField = "DOCUMENT_REGISTRATIEDATUM"
)

var dateDefs = map[DateField]string{
	DateCreated:              projection.FieldCreated,
	DateCaseStart:            projection.FieldStartDate,
	DateCaseTarget:           projection.FieldTargetDate,
	DateCaseFatal:            projection.FieldFatalDate,
	DateTaskFatal:            projection.FieldTaskFatalDate,
	DateDocumentRegistration: projection.FieldRegistrationDate,
}

// ParseDateField parses a date field name, case-insensitively.
func ParseDateField(s string) (DateField, error) {
	f := DateField(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := dateDefs[f]; !ok {
		return "", cserrors.InvalidParameters(fmt.Sprintf("unknown date field %q", s)).
			WithDetail("field", s)
	}
	return f, nil
}

// SortField is a sortable field.
type SortField string

const (
	SortCreated              SortField = "CREATED"
	SortCaseIdentification   SortField = "ZAAK_IDENTIFICATIE"
	SortCaseType             SortField = "ZAAK_ZAAKTYPE"
	SortCaseStatus           SortField = "ZAAK_STATUS"
	SortCaseTarget           SortField = "ZAAK_STREEFDATUM"
	SortCaseFatal            SortField = "ZAAK_FATALE_DATUM"
	SortCaseAssignee         SortField = "ZAAK_BEHANDELAAR"
	SortTaskName             SortField = "TAAK_NAAM"
	SortTaskFatal            SortField = "TAAK_FATALEDATUM"
	SortTaskAssignee         SortField = "TAAK_BEHANDELAAR"
	SortDocumentTitle        SortField = "DOCUMENT_TITEL"
	SortDocumentRegistration SortField = "DOCUMENT_REGISTRATIEDATUM"
)

var sortDefs = map[SortField]string{
	SortCreated:              projection.FieldCreated,
	SortCaseIdentification:   projection.FieldCaseIdentification,
	SortCaseType:             projection.FieldCaseTypeDescription,
	SortCaseStatus:           projection.FieldCaseStatus,
	SortCaseTarget:           projection.FieldTargetDate,
	SortCaseFatal:            projection.FieldFatalDate,
	SortCaseAssignee:         projection.FieldAssigneeName,
	SortTaskName:             projection.FieldTaskName,
	SortTaskFatal:            projection.FieldTaskFatalDate,
	SortTaskAssignee:         projection.FieldAssigneeName,
	SortDocumentTitle:        projection.FieldTitleSort,
	SortDocumentRegistration: projection.FieldRegistrationDate,
}

// ParseSortField parses a sort field name, case-insensitively.
func ParseSortField(s string) (SortField, error) {
	f := SortField(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := sortDefs[f]; !ok {
		return "", cserrors.InvalidParameters(fmt.Sprintf("unsupported sort field %q", s)).
			WithDetail("field", s)
	}
	return f, nil
}

// SortDirection orders a sort key.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
	SortNone SortDirection = "none"
)

// ParseSortDirection parses a sort direction. Empty means none.
func ParseSortDirection(s string) (SortDirection, error) {
	switch d := SortDirection(strings.ToLower(strings.TrimSpace(s))); d {
	case SortAsc, SortDesc, SortNone:
		return d, nil
	case "":
		return SortNone, nil
	default:
		return "", cserrors.InvalidParameters(fmt.Sprintf("unknown sort direction %q", s)).
			WithDetail("direction", s)
	}
}
