package identity

import (
	"time"
)

type OrganizationUnit struct {
	ID                   string     `json:"id"`
	ParentID             *string    `json:"parentId"`
	Code                 string     `json:"code,omitempty"`
	DisplayName          string     `json:"displayName"`
	CreationTime         *time.Time `json:"creationTime,omitempty"`
	LastModificationTime *time.Time `json:"lastModificationTime,omitempty"`
	ConcurrencyStamp     string     `json:"concurrencyStamp,omitempty"`
}

// Parent returns the parent id, or "" for a root unit.
func (u OrganizationUnit) Parent() string {
	if u.ParentID == nil {
		return ""
	}
	return *u.ParentID
}

// IsRoot reports whether the unit has no parent.
func (u OrganizationUnit) IsRoot() bool {
	return u.Parent() == ""
}

type CreateOrganizationUnitInput struct {
	DisplayName string  `json:"displayName" validate:"required,max=128"`
	ParentID    *string `json:"parentId,omitempty"`
}

type UpdateOrganizationUnitInput struct {
	DisplayName string `json:"displayName" validate:"required,max=128"`
}

type MoveOrganizationUnitInput struct {
	NewParentID *string `json:"newParentId"`
}

type User struct {
	ID          string `json:"id"`
	UserName    string `json:"userName"`
	Name        string `json:"name,omitempty"`
	Surname     string `json:"surname,omitempty"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	IsActive    bool   `json:"isActive"`
}

type Role struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefault"`
	IsStatic  bool   `json:"isStatic"`
	IsPublic  bool   `json:"isPublic"`
}

type CurrentUser struct {
	IsAuthenticated bool     `json:"isAuthenticated"`
	ID              *string  `json:"id"`
	TenantID        *string  `json:"tenantId"`
	UserName        string   `json:"userName"`
	Name            string   `json:"name"`
	SurName         string   `json:"surName"`
	Email           string   `json:"email"`
	Roles           []string `json:"roles"`
}

type ApplicationConfiguration struct {
	Auth struct {
		GrantedPolicies map[string]bool `json:"grantedPolicies"`
	} `json:"auth"`
	CurrentUser CurrentUser `json:"currentUser"`
}

type listResult[T any] struct {
	TotalCount int64 `json:"totalCount"`
	Items      []T   `json:"items"`
}

func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
