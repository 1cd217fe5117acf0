package auth

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/karma-nest/job-nest/internal/domain"
)

var subdomainRoles = map[string]domain.Role{
	"admin":     domain.RoleAdmin,
	"www":       domain.RoleCandidate,
	"recruiter": domain.RoleRecruiter,
}

// SubdomainFor returns the origin label a role is served under.
func SubdomainFor(role domain.Role) string {
	for label, r := range subdomainRoles {
		if r == role {
			return label
		}
	}
	return "www"
}

// ResolveRole derives the claimed role from the leftmost label of the request
// origin. The label is returned alongside so callers can build redirects.
func ResolveRole(origin, basePath string) (domain.Role, string, error) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return "", "", fmt.Errorf("%w: empty origin", ErrInvalidSubdomain)
	}
	if !strings.Contains(origin, "://") {
		origin = "https://" + origin
	}
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	u, err := url.Parse(strings.TrimRight(origin, "/") + basePath)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidSubdomain, err)
	}

	label, _, _ := strings.Cut(strings.ToLower(u.Hostname()), ".")
	role, ok := subdomainRoles[label]
	if !ok {
		return "", label, fmt.Errorf("%w: %q", ErrInvalidSubdomain, label)
	}
	return role, label, nil
}
