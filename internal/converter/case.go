package converter

import (
	"context"

	"github.com/Aman-CERP/casesearch/internal/projection"
	"github.com/Aman-CERP/casesearch/internal/registry"
)

// CaseConverter builds CaseProjections.
type CaseConverter struct {
	cases   registry.CaseRegistry
	tasks   registry.OpenTaskLister
	catalog registry.Catalog
}

// NewCaseConverter creates a case converter.
func NewCaseConverter(cases registry.CaseRegistry, tasks registry.OpenTaskLister, catalog registry.Catalog) *CaseConverter {
	return &CaseConverter{cases: cases, tasks: tasks, catalog: catalog}
}

// Supports implements projection.Converter.
func (c *CaseConverter) Supports(kind projection.Kind) bool {
	return kind == projection.KindCase
}

// Convert implements projection.Converter.
func (c *CaseConverter) Convert(ctx context.Context, id string) (projection.Projection, error) {
	zaak, err := c.cases.Case(ctx, id)
	if err != nil {
		return nil, err
	}

	ct, err := caseType(ctx, c.catalog, zaak.CaseTypeUUID)
	if err != nil {
		return nil, err
	}

	p := projection.NewCaseProjection(zaak.UUID)
	p.Identificatie = zaak.Identification
	p.Description = zaak.Description
	p.Explanation = zaak.Explanation
	p.CaseTypeUUID = ct.UUID
	p.CaseTypeIdentification = ct.Identification
	p.CaseTypeDescription = ct.Description
	p.Result = zaak.Result

	if zaak.StatusUUID != "" {
		st, err := c.catalog.Status(ctx, zaak.StatusUUID)
		if err != nil {
			return nil, enrichmentError(err, "status", zaak.StatusUUID)
		}
		p.Status = st.Description
		p.StatusFinal = st.Final
	}

	p.RegistrationDate = utc(zaak.RegistrationDate)
	p.StartDate = utc(zaak.StartDate)
	p.TargetDate = utc(zaak.TargetDate)
	p.FatalDate = utc(zaak.FatalDate)
	p.EndDate = utc(zaak.EndDate)
	p.Closed = zaak.Closed()
	p.Created = p.RegistrationDate
	if p.Created.IsZero() {
		p.Created = p.StartDate
	}

	p.Confidentiality = zaak.Confidentiality
	p.Channel = zaak.Channel
	p.ArchiveNomination = zaak.ArchiveNomination
	p.ArchiveActionDate = utc(zaak.ArchiveActionDate)
	p.AddressObjectIDs = append([]string(nil), zaak.AddressObjectIDs...)

	p.Indicators.Set(projection.IndicatorExtended, zaak.Extended)
	p.Indicators.Set(projection.IndicatorSuspended, zaak.Suspended)
	p.Indicators.Set(projection.IndicatorSubCase, zaak.MainCaseUUID != "")
	p.Indicators.Set(projection.IndicatorMainCase, len(zaak.SubCaseUUIDs) > 0)
	p.Indicators.Set(projection.IndicatorReopened, zaak.Reopened)

	roles, err := c.cases.Roles(ctx, zaak.UUID)
	if err != nil {
		return nil, err
	}
	applyRoles(p, roles)

	open, err := c.tasks.OpenTaskIDs(ctx, zaak.UUID)
	if err != nil {
		return nil, err
	}
	p.OpenTaskCount = len(open)

	return p, nil
}

// applyRoles fills assignment, initiator and participant fields.
// Assignee roles describe who handles the case and are not participants.
func applyRoles(p *projection.CaseProjection, roles []registry.Role) {
	for _, r := range roles {
		switch r.RoleType {
		case registry.RoleAssignee:
			switch r.ParticipantType {
			case registry.ParticipantGroup:
				p.GroupID, p.GroupName = r.ParticipantID, r.Name
			case registry.ParticipantEmployee:
				p.AssigneeID, p.AssigneeName = r.ParticipantID, r.Name
			}
		case registry.RoleInitiator:
			p.Initiator = r.ParticipantID
			p.AddParticipant(r.RoleType, r.ParticipantID)
		default:
			p.AddParticipant(r.RoleType, r.ParticipantID)
		}
	}
}

var _ projection.Converter = (*CaseConverter)(nil)
