package domain

// Identity is the verified caller attached to a request after authorization.
type Identity struct {
	UserID  int64
	Role    Role
	Purpose TokenPurpose
	// Subdomain is the origin label the request arrived under.
	Subdomain string
}
