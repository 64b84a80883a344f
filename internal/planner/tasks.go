package planner

import (
	"context"
	"strings"

	"studycal/internal/apperr"
	"studycal/internal/gcal"
	appLog "studycal/internal/log"
	"studycal/internal/model"
)

func (p *Planner) ListTasks(ctx context.Context, user string) ([]model.Task, error) {
	if err := requireUser("tasks.list", user); err != nil {
		return nil, err
	}
	return p.st.ListTasks(ctx, user)
}

func validateTask(op string, t model.Task) error {
	var missing []string
	if t.Title == "" {
		missing = append(missing, "title")
	}
	if t.StartDate.IsZero() {
		missing = append(missing, "startDate")
	}
	if t.EndDate.IsZero() {
		missing = append(missing, "endDate")
	}
	if t.TaskType == "" {
		missing = append(missing, "taskType")
	}
	if t.Subject == "" {
		missing = append(missing, "subject")
	}
	if len(missing) > 0 {
		return apperr.Validation(op, "missing required fields: %s", strings.Join(missing, ", "))
	}
	if !t.Repeat.Valid() {
		return apperr.Validation(op, "invalid repeat %q", t.Repeat)
	}
	return nil
}

// CreateTask validates task and stores it for user. The id, owner and
// creation time are always set here.
func (p *Planner) CreateTask(ctx context.Context, user string, task model.Task) (model.Task, error) {
	const op = "tasks.create"
	if err := requireUser(op, user); err != nil {
		return model.Task{}, err
	}
	task.Normalize()
	if err := validateTask(op, task); err != nil {
		return model.Task{}, err
	}
	task.ID = p.ids.NewID()
	task.UserID = user
	task.CreatedAt = p.now().UTC()

	created, err := p.st.CreateTask(ctx, task)
	if err != nil {
		return model.Task{}, err
	}
	appLog.Info("task created", "user", user, "task_id", created.ID)
	return created, nil
}

func (p *Planner) UpdateTask(ctx context.Context, user, id string, upd model.TaskUpdate) (model.Task, error) {
	const op = "tasks.update"
	if err := requireUser(op, user); err != nil {
		return model.Task{}, err
	}
	if strings.TrimSpace(id) == "" {
		return model.Task{}, apperr.Validation(op, "id is required")
	}
	if upd.Empty() {
		return model.Task{}, apperr.Validation(op, "updates are required")
	}

	cur, err := p.st.GetTask(ctx, user, id)
	if err != nil {
		return model.Task{}, err
	}
	if err := validateTask(op, upd.Apply(cur)); err != nil {
		return model.Task{}, err
	}
	return p.st.UpdateTask(ctx, user, id, upd)
}

func (p *Planner) DeleteTask(ctx context.Context, user, id string) error {
	const op = "tasks.delete"
	if err := requireUser(op, user); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return apperr.Validation(op, "id is required")
	}
	return p.st.DeleteTask(ctx, user, id)
}

// ToggleTask flips the completed flag and returns the task as stored. On
// any error the stored task is left as it was and the error is returned.
func (p *Planner) ToggleTask(ctx context.Context, user, id string) (model.Task, error) {
	const op = "tasks.toggle"
	if err := requireUser(op, user); err != nil {
		return model.Task{}, err
	}
	cur, err := p.st.GetTask(ctx, user, id)
	if err != nil {
		return model.Task{}, err
	}
	flipped := !cur.Completed
	updated, err := p.st.UpdateTask(ctx, user, id, model.TaskUpdate{Completed: &flipped})
	if err != nil {
		appLog.Error("task toggle failed", err, "user", user, "task_id", id)
		return model.Task{}, err
	}
	return updated, nil
}

// PushTask sends a stored task to the external calendar.
func (p *Planner) PushTask(ctx context.Context, user, id, token string) (gcal.Inserted, error) {
	const op = "tasks.push"
	if err := requireUser(op, user); err != nil {
		return gcal.Inserted{}, err
	}
	t, err := p.st.GetTask(ctx, user, id)
	if err != nil {
		return gcal.Inserted{}, err
	}
	return p.PushEvent(ctx, token, gcal.EventRequest{
		Title:       t.Title,
		Description: strings.TrimSpace(t.TaskType + ": " + t.Subject),
		Start:       t.StartDate,
		End:         t.EndDate,
		Repeat:      t.Repeat,
	})
}

// PushEvent sends req to the external calendar as is.
func (p *Planner) PushEvent(ctx context.Context, token string, req gcal.EventRequest) (gcal.Inserted, error) {
	if p.provider == nil {
		return gcal.Inserted{}, apperr.Transport("calendar.push", errNoProvider)
	}
	return p.provider.InsertEvent(ctx, token, req)
}

// authorizer is a provider with an OAuth consent page.
type authorizer interface {
	AuthCodeURL(state string) string
}

// AuthURL returns the provider's consent page URL for state.
func (p *Planner) AuthURL(state string) (string, error) {
	a, ok := p.provider.(authorizer)
	if !ok {
		return "", apperr.Transport("calendar.auth", errNoProvider)
	}
	return a.AuthCodeURL(state), nil
}
