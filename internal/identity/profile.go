package identity

import (
	"github.com/mitchellh/mapstructure"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/claims"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/db/models"
)

// profile holds the user fields a token may carry. Nil means the claim is absent.
type profile struct {
	FirstName      *string `mapstructure:"first_name"`
	GivenName      *string `mapstructure:"given_name"`
	LastName       *string `mapstructure:"last_name"`
	FamilyName     *string `mapstructure:"family_name"`
	Email          *string `mapstructure:"email"`
	DepartmentName *string `mapstructure:"department_name"`
}

// decodeProfile extracts the profile claims. Values of an unexpected type are
// converted where mapstructure can, anything else leaves the field absent.
func decodeProfile(c claims.Claims) profile {
	var p profile

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return profile{}
	}

	if err := decoder.Decode(map[string]any(c)); err != nil {
		// partial results are kept, the offending field stays nil
		return p
	}

	return p
}

// apply copies the present fields onto u and reports whether anything changed.
func (p profile) apply(u *models.User) bool {
	changed := false

	set := func(dst *string, values ...*string) {
		for _, v := range values {
			if v == nil {
				continue
			}

			if *dst != *v {
				*dst = *v
				changed = true
			}

			return
		}
	}

	set(&u.FirstName, p.FirstName, p.GivenName)
	set(&u.LastName, p.LastName, p.FamilyName)
	set(&u.Email, p.Email)
	set(&u.DepartmentName, p.DepartmentName)

	return changed
}
