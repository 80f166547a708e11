package authority

// PermissionDefinition is a not-yet-persisted catalog candidate.
type PermissionDefinition struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Resource    Resource `json:"resource"`
	Action      Action   `json:"action"`
}

// GenerateAllPermissions enumerates the full resource-action cross-product.
// The "upload" action only exists for the designer resource, every other
// pairing with it is skipped.
func GenerateAllPermissions() []PermissionDefinition {
	var defs []PermissionDefinition
	for _, resource := range Resources {
		defs = append(defs, GenerateResourcePermissions(resource)...)
	}
	return defs
}

// GenerateResourcePermissions enumerates the valid permissions of one resource.
func GenerateResourcePermissions(resource Resource) []PermissionDefinition {
	var defs []PermissionDefinition
	for _, action := range Actions {
		if action == ActionUpload && resource != ResourceDesigner {
			continue
		}
		defs = append(defs, PermissionDefinition{
			Name:        PermissionName(resource, action),
			Description: "Allows to " + string(action) + " on " + string(resource),
			Resource:    resource,
			Action:      action,
		})
	}
	return defs
}
