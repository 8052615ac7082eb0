package projection

import (
	"sort"
	"strings"
	"time"
)

// CaseProjection is the search read model of a case.
type CaseProjection struct {
	Base

	Description string `json:"description,omitempty"`
	Explanation string `json:"explanation,omitempty"`

	CaseTypeUUID string `json:"caseTypeUuid,omitempty"`

	Status      string `json:"status,omitempty"`
	StatusFinal bool   `json:"statusFinal,omitempty"`
	Result      string `json:"result,omitempty"`

	RegistrationDate time.Time `json:"registrationDate,omitzero"`
	StartDate        time.Time `json:"startDate,omitzero"`
	TargetDate       time.Time `json:"targetDate,omitzero"`
	FatalDate        time.Time `json:"fatalDate,omitzero"`
	EndDate          time.Time `json:"endDate,omitzero"`
	Closed           bool      `json:"closed"`

	Confidentiality   string    `json:"confidentiality,omitempty"`
	Channel           string    `json:"channel,omitempty"`
	ArchiveNomination string    `json:"archiveNomination,omitempty"`
	ArchiveActionDate time.Time `json:"archiveActionDate,omitzero"`

	Initiator    string              `json:"initiator,omitempty"`
	Participants map[string][]string `json:"participants,omitempty"`

	GroupID      string `json:"groupId,omitempty"`
	GroupName    string `json:"groupName,omitempty"`
	AssigneeID   string `json:"assigneeId,omitempty"`
	AssigneeName string `json:"assigneeName,omitempty"`

	OpenTaskCount    int        `json:"openTaskCount"`
	Indicators       Indicators `json:"indicators,omitempty"`
	AddressObjectIDs []string   `json:"addressObjectIds,omitempty"`
}

// NewCaseProjection returns an empty case projection for the natural id.
func NewCaseProjection(naturalID string) *CaseProjection {
	return &CaseProjection{Base: NewBase(KindCase, naturalID)}
}

// AddParticipant records id under role. Duplicate pairs are ignored.
func (c *CaseProjection) AddParticipant(role, id string) {
	if role == "" || id == "" {
		return
	}
	if c.Participants == nil {
		c.Participants = make(map[string][]string)
	}
	for _, existing := range c.Participants[role] {
		if existing == id {
			return
		}
	}
	c.Participants[role] = append(c.Participants[role], id)
}

// IsParticipant reports whether id holds any role on the case.
func (c *CaseProjection) IsParticipant(id string) bool {
	for _, ids := range c.Participants {
		for _, existing := range ids {
			if existing == id {
				return true
			}
		}
	}
	return false
}

// ParticipantValue is the indexed form of a (role, id) pair.
func ParticipantValue(role, id string) string {
	return role + "|" + id
}

// Fields implements Projection.
func (c *CaseProjection) Fields() map[string]any {
	fs := c.Base.fields()
	fs.keyword(FieldCaseIdentification, c.Identificatie)
	fs.keyword(FieldCaseIdentificationSearch, strings.ToLower(c.Identificatie))
	fs.keyword(FieldCaseUUID, c.UUID)
	fs.text(FieldCaseDescription, c.Description)
	fs.text(FieldCaseExplanation, c.Explanation)
	fs.keyword(FieldCaseStatus, c.Status)
	fs.boolean(FieldCaseStatusFinal, c.StatusFinal)
	fs.keyword(FieldCaseResult, c.Result)
	fs.date(FieldRegistrationDate, c.RegistrationDate)
	fs.date(FieldStartDate, c.StartDate)
	fs.date(FieldTargetDate, c.TargetDate)
	fs.date(FieldFatalDate, c.FatalDate)
	fs.date(FieldEndDate, c.EndDate)
	fs.boolean(FieldClosed, c.Closed)
	fs.keyword(FieldConfidentiality, c.Confidentiality)
	fs.keyword(FieldChannel, c.Channel)
	fs.keyword(FieldArchiveNomination, c.ArchiveNomination)
	fs.date(FieldArchiveActionDate, c.ArchiveActionDate)
	fs.keyword(FieldInitiator, c.Initiator)
	fs.keyword(FieldGroupID, c.GroupID)
	fs.keyword(FieldGroupName, c.GroupName)
	fs.keyword(FieldAssigneeID, c.AssigneeID)
	fs.keyword(FieldAssigneeName, c.AssigneeName)
	fs.number(FieldOpenTaskCount, float64(c.OpenTaskCount))
	fs.keywords(FieldCaseIndicators, c.Indicators.Strings())
	fs.keywords(FieldAddressObjectIDs, c.AddressObjectIDs)

	roles := make([]string, 0, len(c.Participants))
	for role := range c.Participants {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	var pairs, ids []string
	seen := make(map[string]bool)
	for _, role := range roles {
		for _, id := range c.Participants[role] {
			pairs = append(pairs, ParticipantValue(role, id))
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	fs.keywords(FieldParticipants, pairs)
	fs.keywords(FieldParticipantIDs, ids)

	return fs
}

var _ Projection = (*CaseProjection)(nil)
