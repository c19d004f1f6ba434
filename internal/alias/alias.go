// Package alias maps alias types to the user fields that back them. The
// table is built once at startup so the rest of the code never touches
// field names directly.
package alias

import "github.com/diagnosis/passwordless-api/internal/domain"

type Binding struct {
	Value       func(*domain.User) string
	Verified    func(*domain.User) bool
	SetVerified func(*domain.User)
}

type Bindings struct {
	byType map[domain.AliasType]Binding
}

func Default() *Bindings {
	return &Bindings{
		byType: map[domain.AliasType]Binding{
			domain.AliasEmail: {
				Value:       func(u *domain.User) string { return u.Email },
				Verified:    func(u *domain.User) bool { return u.EmailVerified },
				SetVerified: func(u *domain.User) { u.EmailVerified = true },
			},
			domain.AliasMobile: {
				Value:       func(u *domain.User) string { return u.Mobile },
				Verified:    func(u *domain.User) bool { return u.MobileVerified },
				SetVerified: func(u *domain.User) { u.MobileVerified = true },
			},
		},
	}
}

func (b *Bindings) Lookup(t domain.AliasType) (Binding, bool) {
	binding, ok := b.byType[t]
	return binding, ok
}
