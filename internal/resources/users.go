package resources

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/imamik/harvester-e2e/internal/document"
	"github.com/imamik/harvester-e2e/internal/lifecycle"
	"github.com/imamik/harvester-e2e/internal/platform/rancher"
)

// Role names used when granting a user access to a project.
const (
	GlobalRoleUser   = "user"
	RoleProjectOwner = "project-owner"
	DefaultProject   = "Default"
)

// ProjectOwner is a user made owner of a cluster's Default project.
type ProjectOwner struct {
	UserID    string
	ProjectID string
	MemberID  string
}

// AddProjectOwner creates a local user, grants it the "user" global role
// and makes it owner of the Default project of clusterID. It then logs in
// as that user and waits until exactly that one project is visible.
func AddProjectOwner(ctx context.Context, rc *rancher.Client, clusterID, username, password string, o Options) (ProjectOwner, error) {
	var owner ProjectOwner

	user, _, err := (&lifecycle.EnsureOperation{
		ResourceType: "user",
		Name:         username,
		Create: func(ctx context.Context) (int, document.Document, error) {
			return rc.Users.Create(ctx, rancher.UserBody(username, password))
		},
		Logger: o.logger(),
	}).Execute(ctx)
	if err != nil {
		return owner, err
	}
	owner.UserID = user.ID()
	principals := user.GetSlice("principalIds")
	if len(principals) == 0 {
		return owner, fmt.Errorf("user %s has no principal ids", owner.UserID)
	}
	principal, _ := principals[0].(string)

	code, binding, err := rc.AddGlobalRole(ctx, owner.UserID, GlobalRoleUser)
	if err != nil {
		return owner, fmt.Errorf("add role %q to %s: %w", GlobalRoleUser, username, err)
	}
	if err := lifecycle.ExpectStatus(fmt.Sprintf("add role %q to %s", GlobalRoleUser, username), code, binding, http.StatusCreated); err != nil {
		return owner, err
	}

	explorer := rc.Explore(clusterID)
	project, err := explorer.ProjectByName(ctx, DefaultProject)
	if err != nil {
		return owner, err
	}
	owner.ProjectID = project.ID()

	code, member, err := rc.ProjectMembers.Create(ctx, rancher.ProjectMemberBody(owner.ProjectID, principal, RoleProjectOwner))
	if err != nil {
		return owner, fmt.Errorf("add %s to project %s: %w", username, owner.ProjectID, err)
	}
	if err := lifecycle.ExpectStatus("add project member "+username, code, member, http.StatusCreated); err != nil {
		return owner, err
	}
	owner.MemberID = member.ID()

	userClient, err := rc.Login(ctx, username, password)
	if err != nil {
		return owner, err
	}
	userExplorer := userClient.Explore(clusterID)
	visible := func(ctx context.Context) (int, document.Document, error) {
		code, projects, err := userExplorer.Projects(ctx)
		return code, document.Document{"count": int64(len(projects))}, err
	}
	exactlyOne := func(code int, doc document.Document) (bool, error) {
		n, _ := doc.GetInt64("count")
		return code == http.StatusOK && n == 1, nil
	}
	_, err = o.wait(fmt.Sprintf("user %s to see exactly one project", username), visible, exactlyOne).
		Run(ctx, "project-member", o.logger())
	return owner, err
}

// RemoveProjectOwner deletes the project membership and the user.
func RemoveProjectOwner(ctx context.Context, rc *rancher.Client, owner ProjectOwner, o Options) error {
	var errs []error
	if owner.MemberID != "" {
		errs = append(errs, deleteNorman(ctx, "project-member", owner.MemberID, rc.ProjectMembers.Delete, o))
	}
	if owner.UserID != "" {
		errs = append(errs, deleteNorman(ctx, "user", owner.UserID, rc.Users.Delete, o))
	}
	return errors.Join(errs...)
}

func deleteNorman(ctx context.Context, resourceType, id string, del idCall, o Options) error {
	return (&lifecycle.DeleteOperation{
		ResourceType: resourceType,
		ID:           id,
		Delete: func(ctx context.Context) (int, document.Document, error) {
			return del(ctx, id)
		},
		Interval: o.Interval,
		Timeout:  o.Timeout,
		Logger:   o.logger(),
	}).Execute(ctx)
}
