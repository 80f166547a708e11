package authority

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/fundwit/go-commons/types"
)

type Resource string
type Action string

const (
	ResourceUser        Resource = "user"
	ResourceWorkspace   Resource = "workspace"
	ResourceCampaign    Resource = "campaign"
	ResourceDesigner    Resource = "designer"
	ResourcePublication Resource = "publication"
	ResourceApproval    Resource = "approval"
)

const (
	ActionCreate      Action = "create"
	ActionRead        Action = "read"
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionImpersonate Action = "impersonate"
	ActionUpload      Action = "upload"
)

var Resources = []Resource{
	ResourceUser, ResourceWorkspace, ResourceCampaign,
	ResourceDesigner, ResourcePublication, ResourceApproval,
}

var Actions = []Action{
	ActionCreate, ActionRead, ActionUpdate,
	ActionDelete, ActionImpersonate, ActionUpload,
}

// SystemAdminPermission is a bootstrap permission name outside the
// resource-action catalog, bound to the initial admin account only.
const SystemAdminPermission = "system.admin"

// Permission is an immutable catalog entry for one resource-action pair.
type Permission struct {
	ID          types.ID `json:"id" gorm:"primary_key"`
	Name        string   `json:"name" gorm:"unique_index:uni_permission_name"`
	Resource    Resource `json:"resource"`
	Action      Action   `json:"action"`
	Description string   `json:"description"`
	IsActive    bool     `json:"isActive"`

	CreateTime time.Time `json:"createTime" sql:"type:DATETIME(6)"`
}

func (p Permission) TableName() string {
	return "permissions"
}

// PermissionName derives the canonical catalog name of a resource-action pair.
func PermissionName(resource Resource, action Action) string {
	return string(resource) + "." + string(action)
}

func (r Resource) IsValid() bool {
	for _, v := range Resources {
		if v == r {
			return true
		}
	}
	return false
}

func (a Action) IsValid() bool {
	for _, v := range Actions {
		if v == a {
			return true
		}
	}
	return false
}

// IDSet is a deduplicated set of record ids persisted as a JSON array.
type IDSet []types.ID

func (s IDSet) Value() (driver.Value, error) {
	normalized := s.Normalize()
	if normalized == nil {
		normalized = IDSet{}
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (s *IDSet) Scan(value interface{}) error {
	if value == nil {
		*s = IDSet{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("unsupported source type of IDSet")
	}
	if len(raw) == 0 {
		*s = IDSet{}
		return nil
	}
	return json.Unmarshal(raw, s)
}

func (s IDSet) Contains(id types.ID) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// Add returns a set with the given id appended when absent.
func (s IDSet) Add(id types.ID) IDSet {
	if s.Contains(id) {
		return s
	}
	return append(s, id)
}

// Merge returns the deduplicated union of both sets.
func (s IDSet) Merge(other IDSet) IDSet {
	result := s
	for _, id := range other {
		result = result.Add(id)
	}
	return result
}

// Remove returns a set without the given id; the second value reports
// whether the id was a member.
func (s IDSet) Remove(id types.ID) (IDSet, bool) {
	result := IDSet{}
	removed := false
	for _, v := range s {
		if v == id {
			removed = true
			continue
		}
		result = append(result, v)
	}
	return result, removed
}

// Normalize returns a sorted, deduplicated copy so that equal sets
// always persist as identical column values.
func (s IDSet) Normalize() IDSet {
	result := IDSet{}
	for _, id := range s {
		result = result.Add(id)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// Permissions is the expanded permission-name list carried by a login
// session. Workspace-scoped entries are formatted as "<name>_<workspaceId>",
// unscoped capability names are kept as-is.
type Permissions []string

func (c Permissions) Value() (driver.Value, error) {
	list := c
	if list == nil {
		list = Permissions{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (c *Permissions) Scan(value interface{}) error {
	if value == nil {
		*c = Permissions{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("unsupported source type of Permissions")
	}
	if len(raw) == 0 {
		*c = Permissions{}
		return nil
	}
	return json.Unmarshal(raw, c)
}

func WorkspacePermission(name string, workspaceId types.ID) string {
	return name + "_" + workspaceId.String()
}

func (c Permissions) HasPermission(name string) bool {
	for _, v := range c {
		if strings.EqualFold(v, name) {
			return true
		}
	}
	return false
}

func (c Permissions) HasWorkspacePermission(name string, workspaceId types.ID) bool {
	return c.HasPermission(WorkspacePermission(name, workspaceId))
}

// HasPermissionAnyWorkspace reports whether any workspace-scoped entry
// carries the given permission name.
func (c Permissions) HasPermissionAnyWorkspace(name string) bool {
	prefix := strings.ToLower(name) + "_"
	for _, v := range c {
		if strings.HasPrefix(strings.ToLower(v), prefix) {
			return true
		}
	}
	return false
}

// VisibleWorkspaces parses workspace ids out of workspace-scoped entries.
func (c Permissions) VisibleWorkspaces() []types.ID {
	found := map[types.ID]bool{}
	ids := []types.ID{}
	for _, v := range c {
		idx := strings.LastIndex(v, "_")
		if idx <= 0 {
			continue
		}
		id, err := types.ParseID(v[idx+1:])
		if err != nil {
			continue
		}
		if !found[id] {
			found[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}
