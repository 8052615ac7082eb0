package projection

import (
	"sort"
	"strings"
	"time"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusUnassigned TaskStatus = "NIET_TOEGEKEND"
	TaskStatusAssigned   TaskStatus = "TOEGEKEND"
	TaskStatusCompleted  TaskStatus = "AFGEROND"
)

// TaskProjection is the search read model of an open task.
type TaskProjection struct {
	Base

	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`

	CaseUUID           string `json:"caseUuid"`
	CaseIdentification string `json:"caseIdentification"`
	CaseDescription    string `json:"caseDescription,omitempty"`
	CaseExplanation    string `json:"caseExplanation,omitempty"`

	AssignedDate time.Time `json:"assignedDate,omitzero"`
	FatalDate    time.Time `json:"fatalDate,omitzero"`

	GroupID      string `json:"groupId,omitempty"`
	GroupName    string `json:"groupName,omitempty"`
	AssigneeID   string `json:"assigneeId,omitempty"`
	AssigneeName string `json:"assigneeName,omitempty"`

	Data map[string]string `json:"data,omitempty"`
}

// NewTaskProjection returns an empty task projection for the natural id.
func NewTaskProjection(naturalID string) *TaskProjection {
	return &TaskProjection{Base: NewBase(KindTask, naturalID)}
}

// Fields implements Projection.
func (t *TaskProjection) Fields() map[string]any {
	fs := t.Base.fields()
	fs.keyword(FieldTaskName, t.Name)
	fs.text(FieldTaskNameText, t.Name)
	fs.text(FieldTaskDescription, t.Description)
	fs.keyword(FieldTaskStatus, string(t.Status))
	fs.keyword(FieldCaseUUID, t.CaseUUID)
	fs.keyword(FieldCaseIdentification, t.CaseIdentification)
	fs.keyword(FieldCaseIdentificationSearch, strings.ToLower(t.CaseIdentification))
	fs.text(FieldCaseDescription, t.CaseDescription)
	fs.text(FieldCaseExplanation, t.CaseExplanation)
	fs.date(FieldAssignedDate, t.AssignedDate)
	fs.date(FieldTaskFatalDate, t.FatalDate)
	fs.keyword(FieldGroupID, t.GroupID)
	fs.keyword(FieldGroupName, t.GroupName)
	fs.keyword(FieldAssigneeID, t.AssigneeID)
	fs.keyword(FieldAssigneeName, t.AssigneeName)

	keys := make([]string, 0, len(t.Data))
	for k := range t.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	data := make([]string, 0, len(keys))
	for _, k := range keys {
		data = append(data, k+"|"+t.Data[k])
	}
	fs.keywords(FieldTaskData, data)

	return fs
}

var _ Projection = (*TaskProjection)(nil)
