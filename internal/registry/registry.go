// Package registry defines read access to the authoritative case, task and
// document registries and the catalog used to enrich projections.
//
// Implementations return errors.NotFound for absent entities and
// errors.SourceUnavailable for transient failures.
package registry

import (
	"context"
	"time"

	"github.com/Aman-CERP/casesearch/internal/projection"
)

// Case is the registry state of a case.
type Case struct {
	UUID           string `yaml:"uuid" json:"uuid"`
	Identification string `yaml:"identification" json:"identification"`
	Description    string `yaml:"description" json:"description"`
	Explanation    string `yaml:"explanation" json:"explanation"`
	CaseTypeUUID   string `yaml:"caseType" json:"caseType"`
	StatusUUID     string `yaml:"status" json:"status"`
	Result         string `yaml:"result" json:"result"`

	RegistrationDate time.Time `yaml:"registrationDate" json:"registrationDate"`
	StartDate        time.Time `yaml:"startDate" json:"startDate"`
	TargetDate       time.Time `yaml:"targetDate" json:"targetDate"`
	FatalDate        time.Time `yaml:"fatalDate" json:"fatalDate"`
	EndDate          time.Time `yaml:"endDate" json:"endDate"`

	Confidentiality   string    `yaml:"confidentiality" json:"confidentiality"`
	Channel           string    `yaml:"channel" json:"channel"`
	ArchiveNomination string    `yaml:"archiveNomination" json:"archiveNomination"`
	ArchiveActionDate time.Time `yaml:"archiveActionDate" json:"archiveActionDate"`

	Extended     bool     `yaml:"extended" json:"extended"`
	Suspended    bool     `yaml:"suspended" json:"suspended"`
	Reopened     bool     `yaml:"reopened" json:"reopened"`
	MainCaseUUID string   `yaml:"mainCase" json:"mainCase"`
	SubCaseUUIDs []string `yaml:"subCases" json:"subCases"`

	AddressObjectIDs []string `yaml:"addressObjects" json:"addressObjects"`
}

// Closed reports whether the case has an end date.
func (c *Case) Closed() bool {
	return !c.EndDate.IsZero()
}

// Role types with a fixed meaning for projections.
const (
	RoleInitiator = "initiator"
	RoleAssignee  = "behandelaar"
)

// Participant types.
const (
	ParticipantPerson       = "natuurlijk_persoon"
	ParticipantOrganisation = "niet_natuurlijk_persoon"
	ParticipantEmployee     = "medewerker"
	ParticipantGroup        = "organisatorische_eenheid"
)

// Role links a participant to a case.
type Role struct {
	CaseUUID        string `yaml:"case" json:"case"`
	RoleType        string `yaml:"roleType" json:"roleType"`
	ParticipantType string `yaml:"participantType" json:"participantType"`
	ParticipantID   string `yaml:"participantId" json:"participantId"`
	Name            string `yaml:"name" json:"name"`
}

// CaseType is a catalog case type.
type CaseType struct {
	UUID           string `yaml:"uuid" json:"uuid"`
	Identification string `yaml:"identification" json:"identification"`
	Description    string `yaml:"description" json:"description"`
}

// Status is a case status with its resolved status type.
type Status struct {
	UUID        string `yaml:"uuid" json:"uuid"`
	Description string `yaml:"description" json:"description"`
	Final       bool   `yaml:"final" json:"final"`
}

// Task states.
const (
	TaskOpen      = "open"
	TaskAssigned  = "assigned"
	TaskCompleted = "completed"
)

// Task is the workflow state of a human task.
type Task struct {
	ID           string            `yaml:"id" json:"id"`
	Name         string            `yaml:"name" json:"name"`
	Description  string            `yaml:"description" json:"description"`
	CaseUUID     string            `yaml:"case" json:"case"`
	State        string            `yaml:"state" json:"state"`
	Created      time.Time         `yaml:"created" json:"created"`
	AssignedDate time.Time         `yaml:"assignedDate" json:"assignedDate"`
	DueDate      time.Time         `yaml:"dueDate" json:"dueDate"`
	GroupID      string            `yaml:"groupId" json:"groupId"`
	GroupName    string            `yaml:"groupName" json:"groupName"`
	AssigneeID   string            `yaml:"assigneeId" json:"assigneeId"`
	AssigneeName string            `yaml:"assigneeName" json:"assigneeName"`
	Data         map[string]string `yaml:"data" json:"data"`
}

// Document is the registry state of an informational document.
type Document struct {
	UUID            string    `yaml:"uuid" json:"uuid"`
	Identification  string    `yaml:"identification" json:"identification"`
	Title           string    `yaml:"title" json:"title"`
	Description     string    `yaml:"description" json:"description"`
	Author          string    `yaml:"author" json:"author"`
	Status          string    `yaml:"status" json:"status"`
	Format          string    `yaml:"format" json:"format"`
	FileName        string    `yaml:"fileName" json:"fileName"`
	Size            int64     `yaml:"size" json:"size"`
	Version         int       `yaml:"version" json:"version"`
	Confidentiality string    `yaml:"confidentiality" json:"confidentiality"`
	DocumentType    string    `yaml:"documentType" json:"documentType"`
	Created         time.Time `yaml:"created" json:"created"`
	Registered      time.Time `yaml:"registered" json:"registered"`
	Received        time.Time `yaml:"received" json:"received"`
	Sent            time.Time `yaml:"sent" json:"sent"`
	Signed          time.Time `yaml:"signed" json:"signed"`
	LockedBy        string    `yaml:"lockedBy" json:"lockedBy"`
	UsageRights     bool      `yaml:"usageRights" json:"usageRights"`
	Decision        bool      `yaml:"decision" json:"decision"`
	CaseUUIDs       []string  `yaml:"cases" json:"cases"`
	CaseRelation    string    `yaml:"caseRelation" json:"caseRelation"`
}

// CaseRegistry reads cases and their roles.
type CaseRegistry interface {
	Case(ctx context.Context, id string) (*Case, error)
	Roles(ctx context.Context, caseID string) ([]Role, error)
}

// OpenTaskLister lists the open tasks of a case.
type OpenTaskLister interface {
	// OpenTaskIDs lists the ids of the case's tasks that are not completed.
	OpenTaskIDs(ctx context.Context, caseID string) ([]string, error)
}

// TaskRegistry reads human tasks.
type TaskRegistry interface {
	Task(ctx context.Context, id string) (*Task, error)
	OpenTaskLister
}

// DocumentRegistry reads documents.
type DocumentRegistry interface {
	Document(ctx context.Context, id string) (*Document, error)
}

// Catalog resolves case types and statuses for enrichment.
type Catalog interface {
	CaseType(ctx context.Context, id string) (*CaseType, error)
	Status(ctx context.Context, id string) (*Status, error)
}

// Lister pages through the natural ids of one kind, ordered and stable.
type Lister interface {
	ListIDs(ctx context.Context, kind projection.Kind, offset, limit int) ([]string, error)
}

// Registry is the full read surface of a registry backend.
type Registry interface {
	CaseRegistry
	TaskRegistry
	DocumentRegistry
	Catalog
	Lister
}

// Change reports that an entity was created, updated or deleted in a registry.
type Change struct {
	Kind    projection.Kind
	ID      string
	Deleted bool
}
