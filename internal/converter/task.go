package converter

import (
	"context"

	"github.com/Aman-CERP/casesearch/internal/projection"
	"github.com/Aman-CERP/casesearch/internal/registry"
)

// TaskConverter builds TaskProjections for open tasks.
type TaskConverter struct {
	cases   registry.CaseRegistry
	tasks   registry.TaskRegistry
	catalog registry.Catalog
}

// NewTaskConverter creates a task converter.
func NewTaskConverter(cases registry.CaseRegistry, tasks registry.TaskRegistry, catalog registry.Catalog) *TaskConverter {
	return &TaskConverter{cases: cases, tasks: tasks, catalog: catalog}
}

// Supports implements projection.Converter.
func (c *TaskConverter) Supports(kind projection.Kind) bool {
	return kind == projection.KindTask
}

// Convert implements projection.Converter. Completed tasks are not indexable.
func (c *TaskConverter) Convert(ctx context.Context, id string) (projection.Projection, error) {
	task, err := c.tasks.Task(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.State == registry.TaskCompleted {
		return nil, projection.NotIndexable(projection.KindTask, id, "task completed")
	}

	zaak, err := parentCase(ctx, c.cases, projection.KindTask, id, task.CaseUUID)
	if err != nil {
		return nil, err
	}
	ct, err := caseType(ctx, c.catalog, zaak.CaseTypeUUID)
	if err != nil {
		return nil, err
	}

	p := projection.NewTaskProjection(task.ID)
	p.Identificatie = task.Name
	p.Name = task.Name
	p.Description = task.Description
	p.Status = projection.TaskStatusUnassigned
	if task.AssigneeID != "" {
		p.Status = projection.TaskStatusAssigned
	}

	p.CaseUUID = zaak.UUID
	p.CaseIdentification = zaak.Identification
	p.CaseDescription = zaak.Description
	p.CaseExplanation = zaak.Explanation
	p.CaseTypeIdentification = ct.Identification
	p.CaseTypeDescription = ct.Description

	p.Created = utc(task.Created)
	p.AssignedDate = utc(task.AssignedDate)
	p.FatalDate = utc(task.DueDate)

	p.GroupID = task.GroupID
	p.GroupName = task.GroupName
	p.AssigneeID = task.AssigneeID
	p.AssigneeName = task.AssigneeName

	if len(task.Data) > 0 {
		p.Data = make(map[string]string, len(task.Data))
		for k, v := range task.Data {
			p.Data[k] = v
		}
	}

	return p, nil
}

var _ projection.Converter = (*TaskConverter)(nil)
