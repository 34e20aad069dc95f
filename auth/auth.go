package auth

// A record containing information about a platform user. Users submit and
// download field survey data; admins also manage datasets.
type User struct {
	// name (human-readable and display-friendly)
	Name string `json:"name"`
	// email address
	Email string `json:"email"`
	// organization with which this user is affiliated
	Organization string `json:"organization"`
	// true if this user may create and delete datasets
	IsAdmin bool `json:"is_admin"`
}
