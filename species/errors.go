package species

import (
	"fmt"
)

// indicates that an HTTPS request was redirected to a plain HTTP endpoint
type DowngradedRedirectError struct {
	Endpoint string
}

func (e DowngradedRedirectError) Error() string {
	return fmt.Sprintf("Redirect to insecure endpoint: %s", e.Endpoint)
}

// indicates that the taxonomy service answered with a non-OK status
type UnavailableError struct {
	Status int
}

func (e UnavailableError) Error() string {
	return fmt.Sprintf("The species name service is unavailable (HTTP %d).", e.Status)
}
