package auth

// API scope prefixes checked by the HTTP handlers. A token scope matches a
// prefix when it is equal to it or continues it after a dot.
const (
	// ScopeAdmin grants every administrative endpoint.
	ScopeAdmin = "admin"
	// ScopeAdminGroupMappings allows managing mappings between AD groups and local groups.
	ScopeAdminGroupMappings = "admin.group.mappings"
)
