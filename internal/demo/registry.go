// Package demo holds the demo-account registry: designated users that
// always receive a fixed callback token key and never hit token expiry.
// This exists for staging and app-store review accounts only; production
// deployments run with an empty registry.
package demo

type Registry struct {
	keys map[int64]string
}

func NewRegistry(keys map[int64]string) *Registry {
	if keys == nil {
		keys = map[int64]string{}
	}
	return &Registry{keys: keys}
}

func (r *Registry) IsDemo(userID int64) bool {
	_, ok := r.keys[userID]
	return ok
}

// Key returns the fixed token key for a demo user.
func (r *Registry) Key(userID int64) (string, bool) {
	key, ok := r.keys[userID]
	return key, ok
}
