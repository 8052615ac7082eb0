package converter

import (
	"context"

	"github.com/Aman-CERP/casesearch/internal/projection"
	"github.com/Aman-CERP/casesearch/internal/registry"
)

// DocumentConverter builds DocumentProjections. Only documents linked to a
// case are indexable; case fields come from the first linked case.
type DocumentConverter struct {
	cases     registry.CaseRegistry
	documents registry.DocumentRegistry
	catalog   registry.Catalog
}

// NewDocumentConverter creates a document converter.
func NewDocumentConverter(cases registry.CaseRegistry, documents registry.DocumentRegistry, catalog registry.Catalog) *DocumentConverter {
	return &DocumentConverter{cases: cases, documents: documents, catalog: catalog}
}

// Supports implements projection.Converter.
func (c *DocumentConverter) Supports(kind projection.Kind) bool {
	return kind == projection.KindDocument
}

// Convert implements projection.Converter.
func (c *DocumentConverter) Convert(ctx context.Context, id string) (projection.Projection, error) {
	doc, err := c.documents.Document(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(doc.CaseUUIDs) == 0 {
		return nil, projection.NotIndexable(projection.KindDocument, id, "document not linked to a case")
	}

	zaak, err := parentCase(ctx, c.cases, projection.KindDocument, id, doc.CaseUUIDs[0])
	if err != nil {
		return nil, err
	}
	ct, err := caseType(ctx, c.catalog, zaak.CaseTypeUUID)
	if err != nil {
		return nil, err
	}

	p := projection.NewDocumentProjection(doc.UUID)
	p.Identificatie = doc.Identification
	p.Title = doc.Title
	p.Description = doc.Description

	p.CaseUUID = zaak.UUID
	p.CaseIdentification = zaak.Identification
	p.CaseRelation = doc.CaseRelation
	p.CaseClosed = zaak.Closed()
	p.CaseTypeIdentification = ct.Identification
	p.CaseTypeDescription = ct.Description

	p.Created = utc(doc.Created)
	p.RegistrationDate = utc(doc.Registered)
	p.ReceiptDate = utc(doc.Received)
	p.SentDate = utc(doc.Sent)
	p.SignedDate = utc(doc.Signed)

	p.Confidentiality = doc.Confidentiality
	p.Author = doc.Author
	p.Status = doc.Status
	p.Format = doc.Format
	p.Version = doc.Version
	p.FileName = doc.FileName
	p.FileSize = doc.Size
	p.DocumentType = doc.DocumentType
	p.LockedBy = doc.LockedBy

	p.Indicators.Set(projection.IndicatorLocked, doc.LockedBy != "")
	p.Indicators.Set(projection.IndicatorSigned, !doc.Signed.IsZero())
	p.Indicators.Set(projection.IndicatorUsageRights, doc.UsageRights)
	p.Indicators.Set(projection.IndicatorDecision, doc.Decision)
	p.Indicators.Set(projection.IndicatorSent, !doc.Sent.IsZero())

	return p, nil
}

var _ projection.Converter = (*DocumentConverter)(nil)
