package identity

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	orgUnitsPath = "/identity/organization-units"

	// pageSize is the largest page the service hands out.
	pageSize = 1000
)

func (c *Client) ListOrganizationUnits(ctx context.Context) ([]OrganizationUnit, error) {
	var out listResult[OrganizationUnit]
	if _, err := c.doGET(ctx, orgUnitsPath+"/all", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) GetOrganizationUnit(ctx context.Context, id string) (*OrganizationUnit, error) {
	var unit OrganizationUnit
	_, err := c.doGET(ctx, unitPath(id), nil, &unit)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &unit, nil
}

func (c *Client) CreateOrganizationUnit(
	ctx context.Context,
	in CreateOrganizationUnitInput) (*OrganizationUnit, error) {
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	var unit OrganizationUnit
	if _, err := c.doJSON(ctx, http.MethodPost, orgUnitsPath, nil, in, &unit); err != nil {
		return nil, err
	}
	return &unit, nil
}

// UpdateOrganizationUnit renames a unit. Only the display name is sent.
func (c *Client) UpdateOrganizationUnit(
	ctx context.Context,
	id string,
	in UpdateOrganizationUnitInput) (*OrganizationUnit, error) {
	if id == "" {
		return nil, errors.New("identity: organization unit id is required")
	}
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	var unit OrganizationUnit
	if _, err := c.doJSON(ctx, http.MethodPut, unitPath(id), nil, in, &unit); err != nil {
		return nil, err
	}
	return &unit, nil
}

func (c *Client) DeleteOrganizationUnit(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("identity: organization unit id is required")
	}
	_, err := c.doJSON(ctx, http.MethodDelete, orgUnitsPath, url.Values{"id": {id}}, nil, nil)
	return err
}

// MoveOrganizationUnit re-parents a unit. An empty newParentID makes it a root.
func (c *Client) MoveOrganizationUnit(ctx context.Context, id string, newParentID string) error {
	if id == "" {
		return errors.New("identity: organization unit id is required")
	}
	in := MoveOrganizationUnitInput{NewParentID: StringPtr(newParentID)}
	_, err := c.doJSON(ctx, http.MethodPut, unitPath(id)+"/move", nil, in, nil)
	return err
}

func (c *Client) ListUsersForUnit(ctx context.Context, id string) ([]User, error) {
	return listAll[User](ctx, c, unitPath(id)+"/members", nil)
}

func (c *Client) ListRolesForUnit(ctx context.Context, id string) ([]Role, error) {
	return listAll[Role](ctx, c, unitPath(id)+"/roles", nil)
}

// ListAvailableUsers returns users that are not yet members of the unit.
func (c *Client) ListAvailableUsers(ctx context.Context, id string) ([]User, error) {
	return listAll[User](ctx, c, orgUnitsPath+"/available-users", url.Values{"id": {id}})
}

// ListAvailableRoles returns roles that are not yet assigned to the unit.
func (c *Client) ListAvailableRoles(ctx context.Context, id string) ([]Role, error) {
	return listAll[Role](ctx, c, orgUnitsPath+"/available-roles", url.Values{"id": {id}})
}

func (c *Client) AddUsersToUnit(ctx context.Context, id string, userIDs []string) error {
	if id == "" {
		return errors.New("identity: organization unit id is required")
	}
	if len(userIDs) == 0 {
		return errors.New("identity: at least one user id is required")
	}
	in := struct {
		UserIDs []string `json:"userIds"`
	}{UserIDs: userIDs}
	_, err := c.doJSON(ctx, http.MethodPut, unitPath(id)+"/members", nil, in, nil)
	return err
}

func (c *Client) RemoveUserFromUnit(ctx context.Context, id string, userID string) error {
	if id == "" || userID == "" {
		return errors.New("identity: organization unit id and user id are required")
	}
	_, err := c.doJSON(ctx, http.MethodDelete, unitPath(id)+"/members/"+url.PathEscape(userID), nil, nil, nil)
	return err
}

func (c *Client) AddRolesToUnit(ctx context.Context, id string, roleIDs []string) error {
	if id == "" {
		return errors.New("identity: organization unit id is required")
	}
	if len(roleIDs) == 0 {
		return errors.New("identity: at least one role id is required")
	}
	in := struct {
		RoleIDs []string `json:"roleIds"`
	}{RoleIDs: roleIDs}
	_, err := c.doJSON(ctx, http.MethodPut, unitPath(id)+"/roles", nil, in, nil)
	return err
}

func (c *Client) RemoveRoleFromUnit(ctx context.Context, id string, roleID string) error {
	if id == "" || roleID == "" {
		return errors.New("identity: organization unit id and role id are required")
	}
	_, err := c.doJSON(ctx, http.MethodDelete, unitPath(id)+"/roles/"+url.PathEscape(roleID), nil, nil, nil)
	return err
}

// MoveAllUsers moves every member of fromID into toID.
func (c *Client) MoveAllUsers(ctx context.Context, fromID string, toID string) error {
	if fromID == "" || toID == "" {
		return errors.New("identity: source and target unit ids are required")
	}
	params := url.Values{"organizationId": {toID}}
	_, err := c.doJSON(ctx, http.MethodPut, unitPath(fromID)+"/move-all-users", params, nil, nil)
	return err
}

func (c *Client) GetApplicationConfiguration(ctx context.Context) (*ApplicationConfiguration, error) {
	var cfg ApplicationConfiguration
	if _, err := c.doGET(ctx, "/abp/application-configuration", nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// unitPath returns the escaped path of one unit.
func unitPath(id string) string {
	return fmt.Sprintf("%s/%s", orgUnitsPath, url.PathEscape(id))
}

func listAll[T any](ctx context.Context, c *Client, path string, params url.Values) ([]T, error) {
	var all []T
	for {
		p := url.Values{}
		for k, v := range params {
			p[k] = v
		}
		p.Set("SkipCount", strconv.Itoa(len(all)))
		p.Set("MaxResultCount", strconv.Itoa(pageSize))

		var page listResult[T]
		if _, err := c.doGET(ctx, path, p, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if len(page.Items) == 0 || int64(len(all)) >= page.TotalCount {
			return all, nil
		}
	}
}
