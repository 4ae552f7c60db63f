package models

// All lists every model for AutoMigrate, dependencies first.
func All() []any {
	return []any{
		&User{},
		&Group{},
		&UserGroup{},
		&ADGroup{},
		&UserADGroup{},
		&ADGroupMapping{},
		&LogoutEvent{},
	}
}
