package projection

import (
	"strings"
	"time"
)

// DocumentProjection is the search read model of a document linked to a case.
type DocumentProjection struct {
	Base

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	CaseUUID           string `json:"caseUuid"`
	CaseIdentification string `json:"caseIdentification"`
	CaseRelation       string `json:"caseRelation,omitempty"`
	CaseClosed         bool   `json:"caseClosed"`

	RegistrationDate time.Time `json:"registrationDate,omitzero"`
	ReceiptDate      time.Time `json:"receiptDate,omitzero"`
	SentDate         time.Time `json:"sentDate,omitzero"`
	SignedDate       time.Time `json:"signedDate,omitzero"`

	Confidentiality string `json:"confidentiality,omitempty"`
	Author          string `json:"author,omitempty"`
	Status          string `json:"status,omitempty"`
	Format          string `json:"format,omitempty"`
	Version         int    `json:"version,omitempty"`
	FileName        string `json:"fileName,omitempty"`
	FileSize        int64  `json:"fileSize,omitempty"`
	DocumentType    string `json:"documentType,omitempty"`
	LockedBy        string `json:"lockedBy,omitempty"`

	Indicators Indicators `json:"indicators,omitempty"`
}

// NewDocumentProjection returns an empty document projection for the natural id.
func NewDocumentProjection(naturalID string) *DocumentProjection {
	return &DocumentProjection{Base: NewBase(KindDocument, naturalID)}
}

// Fields implements Projection.
func (d *DocumentProjection) Fields() map[string]any {
	fs := d.Base.fields()
	fs.text(FieldTitle, d.Title)
	fs.keyword(FieldTitleSort, strings.ToLower(d.Title))
	fs.text(FieldDocumentDescription, d.Description)
	fs.keyword(FieldCaseUUID, d.CaseUUID)
	fs.keyword(FieldCaseIdentification, d.CaseIdentification)
	fs.keyword(FieldCaseIdentificationSearch, strings.ToLower(d.CaseIdentification))
	fs.keyword(FieldCaseRelation, d.CaseRelation)
	fs.boolean(FieldCaseClosed, d.CaseClosed)
	fs.date(FieldRegistrationDate, d.RegistrationDate)
	fs.date(FieldReceiptDate, d.ReceiptDate)
	fs.date(FieldSentDate, d.SentDate)
	fs.date(FieldSignedDate, d.SignedDate)
	fs.keyword(FieldConfidentiality, d.Confidentiality)
	fs.text(FieldAuthor, d.Author)
	fs.keyword(FieldDocumentStatus, d.Status)
	fs.keyword(FieldFormat, d.Format)
	if d.Version > 0 {
		fs.number(FieldVersion, float64(d.Version))
	}
	fs.text(FieldFileName, d.FileName)
	if d.FileSize > 0 {
		fs.number(FieldFileSize, float64(d.FileSize))
	}
	fs.keyword(FieldDocumentType, d.DocumentType)
	fs.keyword(FieldLockedBy, d.LockedBy)
	fs.keywords(FieldDocumentIndicators, d.Indicators.Strings())
	return fs
}

var _ Projection = (*DocumentProjection)(nil)
